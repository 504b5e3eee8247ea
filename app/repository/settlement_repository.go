package repository

import (
	"errors"
	"time"

	"github.com/plexora/meterpay/app/models"
	"gorm.io/gorm"
)

// settlementRepository implements the SettlementRepository interface
type settlementRepository struct {
	db *gorm.DB
}

// NewSettlementRepository creates a new settlement repository instance
func NewSettlementRepository(db *gorm.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

// SettleItems inserts the history row and stamps the items as settled by it
// inside one transaction. The batcher relies on this being all-or-nothing:
// a crash can never leave items settled without their history row.
func (r *settlementRepository) SettleItems(history *models.SettlementHistory, itemIDs []uint) error {
	if len(itemIDs) == 0 {
		return errors.New("settle items: empty batch")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(history).Error; err != nil {
			return err
		}
		now := time.Now()
		res := tx.Model(&models.UsageItem{}).
			Where("id IN ? AND settled_at IS NULL", itemIDs).
			Updates(map[string]interface{}{
				"settled_at":            &now,
				"settlement_history_id": history.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		// A shortfall means another writer consumed part of the batch; roll
		// everything back rather than double-settle.
		if res.RowsAffected != int64(len(itemIDs)) {
			return errors.New("settle items: batch items changed underneath the settlement")
		}
		return nil
	})
}

// InsertHistory writes a history row without touching usage items
func (r *settlementRepository) InsertHistory(history *models.SettlementHistory) error {
	return r.db.Create(history).Error
}

// UpdateHistoryStatus transitions an asynchronous settlement's status.
func (r *settlementRepository) UpdateHistoryStatus(id uint, status string) error {
	return r.db.Model(&models.SettlementHistory{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ListHistory returns settlement records most-recent-first
func (r *settlementRepository) ListHistory(userID uint, workspaceID string, limit int) ([]models.SettlementHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.SettlementHistory
	err := r.db.
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
