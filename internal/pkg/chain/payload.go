package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plexora/meterpay/internal/pkg/money"
)

// PayloadVersion is the settlement payload schema version.
const PayloadVersion = 1

// Item is one settled usage item as carried in the payload.
type Item struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Kind   string          `json:"kind"`
}

// Payload is the settlement record embedded as transaction data. Field order
// is fixed so that two payloads with identical logical content produce
// identical bytes; audits can reconstruct and byte-compare it.
type Payload struct {
	Version   int             `json:"version"`
	Timestamp int64           `json:"timestamp"`
	Total     decimal.Decimal `json:"total"`
	UserID    string          `json:"userId"`
	Items     []Item          `json:"items"`
}

// BatchItem is the rail-facing view of a usage item. Amounts stay in minor
// units until payload construction.
type BatchItem struct {
	ID          string
	AmountCents int64
	Kind        string
}

// NewPayload builds a version-1 payload. Amounts convert to fixed-point
// decimals exactly once, here.
func NewPayload(userID uint, items []BatchItem, totalCents int64, at time.Time) Payload {
	p := Payload{
		Version:   PayloadVersion,
		Timestamp: at.UnixMilli(),
		Total:     money.FromMinorUnits(totalCents),
		UserID:    strconv.FormatUint(uint64(userID), 10),
		Items:     make([]Item, 0, len(items)),
	}
	for _, it := range items {
		p.Items = append(p.Items, Item{
			ID:     it.ID,
			Amount: money.FromMinorUnits(it.AmountCents),
			Kind:   it.Kind,
		})
	}
	return p
}

// Encode serializes the payload deterministically.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload parses payload bytes and checks the schema version.
func DecodePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, err
	}
	if p.Version != PayloadVersion {
		return Payload{}, fmt.Errorf("unsupported payload version %d", p.Version)
	}
	return p, nil
}

// Verify checks the payload's internal consistency: the total must equal the
// exact sum of item amounts.
func (p Payload) Verify() error {
	sum := decimal.Zero
	for _, it := range p.Items {
		sum = sum.Add(it.Amount)
	}
	if !sum.Equal(p.Total) {
		return errors.New("payload total does not match item sum")
	}
	return nil
}
