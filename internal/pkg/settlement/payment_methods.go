package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plexora/meterpay/internal/pkg/stripe"
)

// BeginAttach binds the customer and opens a provider-side setup flow for
// collecting a new card out-of-band. No server-side state is written; the
// instrument does not exist until the external flow completes.
func (s *Service) BeginAttach(ctx context.Context, userID uint) (string, error) {
	customerID, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	intent, err := s.provider.CreateSetupIntent(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("begin attach: %w", err)
	}
	return intent.ClientSecret, nil
}

// SetDefaultPaymentMethod designates the instrument as the customer's
// default for future charges and mirrors its display fields onto the user.
// The mirror write is the terminal step, only after provider success.
func (s *Service) SetDefaultPaymentMethod(ctx context.Context, userID uint, paymentMethodID string) (CardDisplay, error) {
	pmID := strings.TrimSpace(paymentMethodID)
	if pmID == "" {
		return CardDisplay{}, fmt.Errorf("%w: payment method id is required", ErrInvalidInput)
	}

	customerID, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return CardDisplay{}, err
	}

	if err := s.provider.SetDefaultPaymentMethod(ctx, customerID, pmID); err != nil {
		return CardDisplay{}, fmt.Errorf("set default payment method: %w", err)
	}

	method, err := s.provider.GetPaymentMethod(ctx, pmID)
	if err != nil {
		return CardDisplay{}, fmt.Errorf("set default payment method: read back %s: %w", pmID, err)
	}

	display := CardDisplay{Last4: method.Card.Last4, Brand: method.Card.Brand}
	if err := s.users.UpdateCardDisplay(userID, display.Last4, display.Brand); err != nil {
		return CardDisplay{}, fmt.Errorf("set default payment method: mirror display: %w", err)
	}
	return display, nil
}

// ListPaymentMethods returns up to 10 card instruments with exactly one
// marked default. A customer deleted upstream yields an empty list, not an
// error.
func (s *Service) ListPaymentMethods(ctx context.Context, userID uint) ([]PaymentMethodInfo, error) {
	customerID, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	customer, err := s.provider.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, stripe.ErrCustomerNotFound) {
			return []PaymentMethodInfo{}, nil
		}
		return nil, fmt.Errorf("list payment methods: %w", err)
	}

	methods, err := s.provider.ListCardPaymentMethods(ctx, customerID, 10)
	if err != nil {
		if errors.Is(err, stripe.ErrCustomerNotFound) {
			return []PaymentMethodInfo{}, nil
		}
		return nil, fmt.Errorf("list payment methods: %w", err)
	}

	defaultID := customer.InvoiceSettings.DefaultPaymentMethod
	out := make([]PaymentMethodInfo, 0, len(methods))
	for _, m := range methods {
		out = append(out, PaymentMethodInfo{
			ID:       m.ID,
			Brand:    m.Card.Brand,
			Last4:    m.Card.Last4,
			ExpMonth: m.Card.ExpMonth,
			ExpYear:  m.Card.ExpYear,
			Default:  defaultID != "" && m.ID == defaultID,
		})
	}
	return out, nil
}
