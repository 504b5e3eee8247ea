package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/plexora/meterpay/app/models"
	"github.com/plexora/meterpay/internal/pkg/chain"
	"github.com/plexora/meterpay/internal/pkg/stripe"
)

// Settle groups the user's unsettled items into one batch and executes
// exactly one settlement action: a card charge when the bound customer has a
// usable default payment method, otherwise an on-chain transfer. One history
// row is written per attempt that durably reached the provider or network.
//
// The batcher never retries and performs no locking; callers serialize
// invocations per (user, workspace). Returns (nil, nil) when there is
// nothing to settle.
func (s *Service) Settle(ctx context.Context, userID uint, workspaceID string) (*models.SettlementHistory, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("settle: load user %d: %w", userID, err)
	}
	// Superadmins bypass settlement entirely. Checked before any balance or
	// rail logic.
	if user.IsSuperadmin() {
		return nil, nil
	}

	items, err := s.items.ListUnsettled(userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("settle: read ledger: %w", err)
	}

	var total int64
	usageCount, chargeCount := 0, 0
	for _, it := range items {
		if it.AmountCents < 0 {
			// Items are non-negative by construction; a negative amount is
			// a corrupted ledger, not a runtime condition.
			return nil, fmt.Errorf("settle: item %s has negative amount %d", it.UUID, it.AmountCents)
		}
		total += it.AmountCents
		switch it.Kind {
		case models.UsageKindCard:
			chargeCount++
		default:
			usageCount++
		}
	}
	// Nothing owed: no-op, no history row. Keeps repeated invocations
	// idempotent once items are marked settled.
	if len(items) == 0 || total <= 0 {
		return nil, nil
	}

	customerID, paymentMethodID, err := s.resolveCardRail(ctx, user)
	if err != nil {
		return nil, err
	}

	history := &models.SettlementHistory{
		UUID:        uuid.NewString(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		AmountCents: total,
		UsageCount:  usageCount,
		ChargeCount: chargeCount,
		Status:      models.SettlementStatusSucceeded,
	}
	itemIDs := make([]uint, 0, len(items))
	for _, it := range items {
		itemIDs = append(itemIDs, it.ID)
	}

	if paymentMethodID != "" {
		return s.settleCard(ctx, history, itemIDs, customerID, paymentMethodID, user, total, len(items))
	}
	return s.settleOnChain(ctx, history, itemIDs, items, userID, total)
}

// resolveCardRail asks the provider whether the user has a usable default
// payment method. A missing binding or missing customer selects the on-chain
// rail; any other provider error aborts the batch.
func (s *Service) resolveCardRail(ctx context.Context, user *models.User) (customerID, paymentMethodID string, err error) {
	if user.StripeCustomerID == "" {
		return "", "", nil
	}
	customer, err := s.provider.GetCustomer(ctx, user.StripeCustomerID)
	if err != nil {
		if errors.Is(err, stripe.ErrCustomerNotFound) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("settle: resolve rail: %w", err)
	}
	return customer.ID, customer.InvoiceSettings.DefaultPaymentMethod, nil
}

func (s *Service) settleCard(ctx context.Context, history *models.SettlementHistory, itemIDs []uint, customerID, paymentMethodID string, user *models.User, total int64, itemCount int) (*models.SettlementHistory, error) {
	intent, err := s.provider.ChargeCustomer(ctx, customerID, paymentMethodID, total, s.currency,
		fmt.Sprintf("Usage settlement (%d items)", itemCount))
	if err != nil {
		// No charge happened; items stay unsettled and the whole batch is
		// safe to retry.
		return nil, fmt.Errorf("settle: card charge: %w", err)
	}

	history.Rail = models.SettlementRailCard
	history.StripePaymentIntentID = intent.ID
	history.CardLast4 = user.CardLast4
	history.CardBrand = user.CardBrand
	if intent.Status != "succeeded" {
		history.Status = models.SettlementStatusPending
	}

	if err := s.settlements.SettleItems(history, itemIDs); err != nil {
		return nil, fmt.Errorf("settle: persist card settlement %s: %w", intent.ID, err)
	}
	return history, nil
}

func (s *Service) settleOnChain(ctx context.Context, history *models.SettlementHistory, itemIDs []uint, items []models.UsageItem, userID uint, total int64) (*models.SettlementHistory, error) {
	batch := make([]chain.BatchItem, 0, len(items))
	for _, it := range items {
		batch = append(batch, chain.BatchItem{ID: it.UUID, AmountCents: it.AmountCents, Kind: it.Kind})
	}

	ref, payload, err := s.rail.Submit(ctx, userID, batch, total)
	switch {
	case err == nil:
	case errors.Is(err, chain.ErrConfirmationTimeout) && ref != "":
		// Submitted but unconfirmed: the transfer may still land, so the
		// items must not become retryable. Persist a pending row carrying
		// the reference and surface the timeout for manual reconciliation.
		history.Status = models.SettlementStatusPending
	default:
		return nil, fmt.Errorf("settle: on-chain: %w", err)
	}

	history.Rail = models.SettlementRailOnChain
	history.TxHash = ref

	if perr := s.settlements.SettleItems(history, itemIDs); perr != nil {
		return nil, fmt.Errorf("settle: persist on-chain settlement %s: %w", ref, perr)
	}
	s.archive(ctx, history.UUID, payload)

	if err != nil {
		// The pending history row exists; the caller still needs the
		// distinct timeout kind.
		return history, fmt.Errorf("settle: on-chain: %w", err)
	}
	return history, nil
}

// archive stores the submitted payload bytes best-effort.
func (s *Service) archive(ctx context.Context, historyUUID string, payload []byte) {
	if s.archiver == nil || len(payload) == 0 {
		return
	}
	if err := s.archiver.ArchivePayload(ctx, historyUUID, payload); err != nil {
		log.Warnf("[Settlement] Payload archive for %s failed: %v", historyUUID, err)
	}
}
