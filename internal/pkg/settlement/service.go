package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/plexora/meterpay/app/repository"
	"github.com/plexora/meterpay/internal/pkg/stripe"
)

// Service implements the settlement core: identity binding, payment method
// registry, batching, payout and history. All dependencies are injected at
// construction; the service holds no per-call configuration.
type Service struct {
	users       repository.UserRepository
	items       repository.UsageItemRepository
	settlements repository.SettlementRepository
	provider    ProviderClient
	rail        SettlementRail
	archiver    PayloadArchiver
	currency    string
}

// NewService creates a settlement service from injected collaborators.
func NewService(repos *repository.Repositories, provider ProviderClient, rail SettlementRail) *Service {
	return &Service{
		users:       repos.User,
		items:       repos.UsageItem,
		settlements: repos.Settlement,
		provider:    provider,
		rail:        rail,
		currency:    "usd",
	}
}

// WithArchiver attaches an optional payload archiver.
func (s *Service) WithArchiver(a PayloadArchiver) *Service {
	s.archiver = a
	return s
}

// EnsureCustomer binds the user to exactly one live customer record in the
// provider's current account context, recreating the binding when stale.
// Repeated calls converge to the same live binding.
func (s *Service) EnsureCustomer(ctx context.Context, userID uint) (string, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return "", fmt.Errorf("ensure customer: load user %d: %w", userID, err)
	}

	if user.StripeCustomerID != "" {
		_, err := s.provider.GetCustomer(ctx, user.StripeCustomerID)
		if err == nil {
			return user.StripeCustomerID, nil
		}
		// "Not found" is the only tolerated verification failure: the
		// stored binding is stale (e.g. the provider account context
		// changed) and must be replaced. Anything else may be a transient
		// outage and is propagated, never swallowed.
		if !errors.Is(err, stripe.ErrCustomerNotFound) {
			return "", fmt.Errorf("ensure customer: verify %s: %w", user.StripeCustomerID, err)
		}
	}

	customer, err := s.provider.CreateCustomer(ctx, user.Email, user.ID)
	if err != nil {
		return "", fmt.Errorf("ensure customer: create: %w", err)
	}
	if err := s.users.UpdateCustomerRef(user.ID, customer.ID); err != nil {
		return "", fmt.Errorf("ensure customer: persist ref %s: %w", customer.ID, err)
	}
	return customer.ID, nil
}
