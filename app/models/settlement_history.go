package models

import "time"

// Settlement rails.
const (
	SettlementRailCard    = "card"
	SettlementRailOnChain = "on_chain"
)

// Settlement statuses. Rows are immutable after creation except for the
// pending -> succeeded transition of asynchronous on-chain settlements.
const (
	SettlementStatusSucceeded = "succeeded"
	SettlementStatusFailed    = "failed"
	SettlementStatusPending   = "pending"
)

// SettlementHistory is the immutable record of one settlement attempt.
// Exactly one of StripePaymentIntentID / TxHash is set, matching the rail.
type SettlementHistory struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	UUID                  string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	UserID                uint      `gorm:"not null;index:idx_settlement_history_user_workspace" json:"user_id"`
	WorkspaceID           string    `gorm:"type:varchar(64);not null;index:idx_settlement_history_user_workspace" json:"workspace_id"`
	AmountCents           int64     `gorm:"not null" json:"amount_cents"`
	Rail                  string    `gorm:"type:varchar(10);not null" json:"rail"`
	StripePaymentIntentID string    `gorm:"type:varchar(191);default:null" json:"stripe_payment_intent_id,omitempty"`
	TxHash                string    `gorm:"type:varchar(130);default:null" json:"tx_hash,omitempty"`
	UsageCount            int       `gorm:"not null;default:0" json:"usage_count"`
	ChargeCount           int       `gorm:"not null;default:0" json:"charge_count"`
	CardLast4             string    `gorm:"type:varchar(4);default:null" json:"card_last4,omitempty"`
	CardBrand             string    `gorm:"type:varchar(30);default:null" json:"card_brand,omitempty"`
	Status                string    `gorm:"type:varchar(20);not null;default:'succeeded'" json:"status"`
	CreatedAt             time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
