package models

import (
	"time"

	"gorm.io/gorm"
)

// Usage item kinds. A "usage" item is metered AI consumption; a "card" item
// is a pending card-style charge created by the metering layer.
const (
	UsageKindUsage = "usage"
	UsageKindCard  = "card"
)

// UsageItem is an atomic unit of metered consumption. Items are created by
// the metering layer, consumed exactly once by a settlement batch and never
// mutated afterwards. Settled items keep their row (settled_at set) so
// history always has a source trail.
type UsageItem struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	UUID                string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	UserID              uint           `gorm:"not null;index:idx_usage_items_user_workspace" json:"user_id"`
	WorkspaceID         string         `gorm:"type:varchar(64);not null;index:idx_usage_items_user_workspace" json:"workspace_id"`
	AmountCents         int64          `gorm:"not null" json:"amount_cents" validate:"gte=0"`
	Kind                string         `gorm:"type:varchar(10);not null;default:'usage'" json:"kind" validate:"oneof=usage card"`
	SettledAt           *time.Time     `gorm:"type:timestamp;default:null;index" json:"settled_at,omitempty"`
	SettlementHistoryID *uint          `gorm:"default:null;index" json:"settlement_history_id,omitempty"`
	CreatedAt           time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsSettled reports whether the item was already consumed by a batch.
func (i *UsageItem) IsSettled() bool {
	return i.SettledAt != nil
}
