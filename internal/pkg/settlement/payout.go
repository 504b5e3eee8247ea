package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/plexora/meterpay/internal/pkg/money"
	"github.com/plexora/meterpay/internal/pkg/stripe"
)

// Balance reads the platform's provider balance.
func (s *Service) Balance(ctx context.Context) (*stripe.Balance, error) {
	balance, err := s.provider.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return balance, nil
}

// Payout moves the platform's own available balance out to its external
// account. Independent of per-user settlement; no retry on failure.
func (s *Service) Payout(ctx context.Context, in PayoutInput) (*PayoutRecord, error) {
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}

	balance, err := s.provider.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("payout: read balance: %w", err)
	}

	var available int64
	for _, b := range balance.Available {
		if strings.EqualFold(b.Currency, currency) {
			available = b.Amount
			break
		}
	}
	if available <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAvailableBalance, currency)
	}

	// Requested amounts are capped at the available balance.
	amount := available
	if strings.TrimSpace(in.Amount) != "" {
		requested, err := money.ToMinorUnits(in.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if requested < amount {
			amount = requested
		}
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	payout, err := s.provider.CreatePayout(ctx, amount, currency)
	if err != nil {
		return nil, fmt.Errorf("payout: submit: %w", err)
	}

	return &PayoutRecord{
		ID:          payout.ID,
		AmountCents: payout.Amount,
		Currency:    payout.Currency,
		Status:      payout.Status,
		ArrivalDate: time.Unix(payout.ArrivalDate, 0).UTC(),
	}, nil
}
