package settlement

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/plexora/meterpay/app/models"
)

// DefaultHistoryLimit caps history queries when the caller does not.
const DefaultHistoryLimit = 50

// maxHistoryLimit bounds any single history read.
const maxHistoryLimit = 200

// History returns past settlement records most-recent-first. Read errors
// degrade to an empty result: history display is non-critical and the API
// contract does not distinguish "no history" from "history unavailable".
func (s *Service) History(_ context.Context, userID uint, workspaceID string, limit int) []models.SettlementHistory {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = DefaultHistoryLimit
	}
	rows, err := s.settlements.ListHistory(userID, workspaceID, limit)
	if err != nil {
		log.Warnf("[Settlement] History read for user %d workspace %s failed: %v", userID, workspaceID, err)
		return []models.SettlementHistory{}
	}
	if rows == nil {
		rows = []models.SettlementHistory{}
	}
	return rows
}

// ReconcilePending resolves on-chain settlements that were submitted but
// unconfirmed at settle time. Each pending row with a transaction reference
// is checked once against the network; confirmed rows transition to
// succeeded. Returns the number of rows transitioned. This is the only
// status mutation history rows ever see.
func (s *Service) ReconcilePending(ctx context.Context, userID uint, workspaceID string) (int, error) {
	rows, err := s.settlements.ListHistory(userID, workspaceID, maxHistoryLimit)
	if err != nil {
		return 0, fmt.Errorf("reconcile: read history: %w", err)
	}

	resolved := 0
	for i := range rows {
		row := &rows[i]
		if row.Status != models.SettlementStatusPending || row.Rail != models.SettlementRailOnChain || row.TxHash == "" {
			continue
		}
		confirmed, err := s.rail.Confirmed(ctx, row.TxHash)
		if err != nil {
			log.Warnf("[Settlement] Confirmation check for %s failed: %v", row.TxHash, err)
			continue
		}
		if !confirmed {
			continue
		}
		if err := s.settlements.UpdateHistoryStatus(row.ID, models.SettlementStatusSucceeded); err != nil {
			return resolved, fmt.Errorf("reconcile: update %s: %w", row.UUID, err)
		}
		resolved++
	}
	return resolved, nil
}
