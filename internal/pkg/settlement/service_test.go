package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexora/meterpay/app/models"
	"github.com/plexora/meterpay/app/repository"
	"github.com/plexora/meterpay/internal/pkg/chain"
	"github.com/plexora/meterpay/internal/pkg/stripe"
)

// ---- fakes -----------------------------------------------------------------

type fakeUserRepo struct {
	users map[uint]*models.User
}

func (f *fakeUserRepo) Create(u *models.User) error { f.users[u.ID] = u; return nil }
func (f *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	cp := *u
	return &cp, nil
}
func (f *fakeUserRepo) GetByEmail(string) (*models.User, error)      { return nil, errors.New("unused") }
func (f *fakeUserRepo) GetByAPIKeyHash(string) (*models.User, error) { return nil, errors.New("unused") }
func (f *fakeUserRepo) Update(u *models.User) error                  { f.users[u.ID] = u; return nil }
func (f *fakeUserRepo) UpdateCustomerRef(id uint, customerID string) error {
	f.users[id].StripeCustomerID = customerID
	return nil
}
func (f *fakeUserRepo) UpdateCardDisplay(id uint, last4, brand string) error {
	f.users[id].CardLast4 = last4
	f.users[id].CardBrand = brand
	return nil
}
func (f *fakeUserRepo) TouchAPIKeyUsage(uint) error          { return nil }
func (f *fakeUserRepo) List(int, int) ([]models.User, error) { return nil, nil }
func (f *fakeUserRepo) Count() (int64, error)                { return 0, nil }

type fakeItemRepo struct {
	items []models.UsageItem
	err   error
}

func (f *fakeItemRepo) Create(*models.UsageItem) error              { return nil }
func (f *fakeItemRepo) GetByUUID(string) (*models.UsageItem, error) { return nil, errors.New("unused") }
func (f *fakeItemRepo) ListUnsettled(uint, string) ([]models.UsageItem, error) {
	return f.items, f.err
}
func (f *fakeItemRepo) CountUnsettled(uint, string) (int64, error) {
	return int64(len(f.items)), f.err
}

type fakeSettlementRepo struct {
	settled       [][]uint
	histories     []*models.SettlementHistory
	listErr       error
	rows          []models.SettlementHistory
	statusUpdates []statusUpdate
}

type statusUpdate struct {
	id     uint
	status string
}

func (f *fakeSettlementRepo) SettleItems(h *models.SettlementHistory, ids []uint) error {
	h.ID = uint(len(f.histories) + 1)
	f.histories = append(f.histories, h)
	f.settled = append(f.settled, ids)
	return nil
}
func (f *fakeSettlementRepo) InsertHistory(h *models.SettlementHistory) error {
	f.histories = append(f.histories, h)
	return nil
}
func (f *fakeSettlementRepo) UpdateHistoryStatus(id uint, status string) error {
	f.statusUpdates = append(f.statusUpdates, statusUpdate{id: id, status: status})
	return nil
}
func (f *fakeSettlementRepo) ListHistory(uint, string, int) ([]models.SettlementHistory, error) {
	return f.rows, f.listErr
}

type fakeProvider struct {
	customers      map[string]*stripe.Customer
	created        int
	nextCustomerID string
	verifyErr      error
	chargeErr      error
	charges        []int64
	balance        *stripe.Balance
	payouts        []int64
	methods        []stripe.PaymentMethod
	defaultSet     map[string]string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customers:      map[string]*stripe.Customer{},
		nextCustomerID: "cus_new",
		defaultSet:     map[string]string{},
	}
}

func (f *fakeProvider) CreateCustomer(_ context.Context, email string, userID uint) (*stripe.Customer, error) {
	f.created++
	c := &stripe.Customer{ID: f.nextCustomerID, Email: email}
	f.customers[c.ID] = c
	return c, nil
}
func (f *fakeProvider) GetCustomer(_ context.Context, id string) (*stripe.Customer, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	c, ok := f.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", stripe.ErrCustomerNotFound, id)
	}
	return c, nil
}
func (f *fakeProvider) CreateSetupIntent(_ context.Context, customerID string) (*stripe.SetupIntent, error) {
	return &stripe.SetupIntent{ID: "seti_1", ClientSecret: "seti_1_secret_abc"}, nil
}
func (f *fakeProvider) ListCardPaymentMethods(_ context.Context, customerID string, limit int) ([]stripe.PaymentMethod, error) {
	if _, ok := f.customers[customerID]; !ok {
		return nil, fmt.Errorf("%w: %s", stripe.ErrCustomerNotFound, customerID)
	}
	return f.methods, nil
}
func (f *fakeProvider) GetPaymentMethod(_ context.Context, id string) (*stripe.PaymentMethod, error) {
	for _, m := range f.methods {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, &stripe.APIError{StatusCode: 404, Code: "resource_missing"}
}
func (f *fakeProvider) SetDefaultPaymentMethod(_ context.Context, customerID, pmID string) error {
	f.defaultSet[customerID] = pmID
	if c, ok := f.customers[customerID]; ok {
		c.InvoiceSettings.DefaultPaymentMethod = pmID
	}
	return nil
}
func (f *fakeProvider) ChargeCustomer(_ context.Context, customerID, pmID string, amountCents int64, currency, description string) (*stripe.PaymentIntent, error) {
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	f.charges = append(f.charges, amountCents)
	return &stripe.PaymentIntent{ID: "pi_123", Status: "succeeded", Amount: amountCents, Currency: currency}, nil
}
func (f *fakeProvider) GetBalance(context.Context) (*stripe.Balance, error) {
	if f.balance == nil {
		return &stripe.Balance{}, nil
	}
	return f.balance, nil
}
func (f *fakeProvider) CreatePayout(_ context.Context, amountCents int64, currency string) (*stripe.Payout, error) {
	f.payouts = append(f.payouts, amountCents)
	return &stripe.Payout{ID: "po_1", Amount: amountCents, Currency: currency, Status: "pending", ArrivalDate: 1735689600}, nil
}

type fakeRail struct {
	mode      chain.Mode
	ref       string
	err       error
	calls     int
	lastTot   int64
	confirmed map[string]bool
}

func (f *fakeRail) Mode() chain.Mode { return f.mode }
func (f *fakeRail) Confirmed(_ context.Context, ref string) (bool, error) {
	return f.confirmed[ref], nil
}
func (f *fakeRail) Submit(_ context.Context, userID uint, items []chain.BatchItem, totalCents int64) (string, []byte, error) {
	f.calls++
	f.lastTot = totalCents
	if f.err != nil {
		return f.ref, nil, f.err
	}
	return f.ref, []byte(`{"version":1}`), nil
}

func newTestService(users *fakeUserRepo, items *fakeItemRepo, setl *fakeSettlementRepo, provider *fakeProvider, rail *fakeRail) *Service {
	return NewService(&repository.Repositories{User: users, UsageItem: items, Settlement: setl}, provider, rail)
}

func usageItem(id uint, uuid string, cents int64, kind string) models.UsageItem {
	return models.UsageItem{ID: id, UUID: uuid, UserID: 1, WorkspaceID: "ws", AmountCents: cents, Kind: kind}
}

// ---- identity binder --------------------------------------------------------

func TestEnsureCustomer_Idempotent(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1, Email: "u@example.com"}}}
	provider := newFakeProvider()
	svc := newTestService(users, &fakeItemRepo{}, &fakeSettlementRepo{}, provider, &fakeRail{})

	first, err := svc.EnsureCustomer(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.EnsureCustomer(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.created, "exactly one customer created")
	assert.Equal(t, first, users.users[1].StripeCustomerID)
}

func TestEnsureCustomer_RecreatesStaleBinding(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1, Email: "u@example.com", StripeCustomerID: "cus_stale"}}}
	provider := newFakeProvider() // cus_stale not present -> not found on verify
	svc := newTestService(users, &fakeItemRepo{}, &fakeSettlementRepo{}, provider, &fakeRail{})

	id, err := svc.EnsureCustomer(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "cus_new", id)
	assert.Equal(t, 1, provider.created)
	assert.Equal(t, "cus_new", users.users[1].StripeCustomerID, "stored reference updated to the new id")
}

func TestEnsureCustomer_VerificationOutagePropagates(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1, StripeCustomerID: "cus_1"}}}
	provider := newFakeProvider()
	provider.verifyErr = &stripe.APIError{StatusCode: 500, Message: "provider down"}
	svc := newTestService(users, &fakeItemRepo{}, &fakeSettlementRepo{}, provider, &fakeRail{})

	_, err := svc.EnsureCustomer(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 0, provider.created, "no creation on ambiguous verification failure")
	assert.Equal(t, "cus_1", users.users[1].StripeCustomerID)
}

// ---- payment method registry ------------------------------------------------

func TestSetDefaultPaymentMethod_RequiresID(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1}}}
	svc := newTestService(users, &fakeItemRepo{}, &fakeSettlementRepo{}, newFakeProvider(), &fakeRail{})

	_, err := svc.SetDefaultPaymentMethod(context.Background(), 1, "  ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestSetDefaultPaymentMethod_MirrorsDisplay(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1, Email: "u@example.com"}}}
	provider := newFakeProvider()
	provider.methods = []stripe.PaymentMethod{
		{ID: "pm_1", Type: "card", Card: stripe.CardDetails{Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030}},
	}
	svc := newTestService(users, &fakeItemRepo{}, &fakeSettlementRepo{}, provider, &fakeRail{})

	display, err := svc.SetDefaultPaymentMethod(context.Background(), 1, "pm_1")
	require.NoError(t, err)
	assert.Equal(t, CardDisplay{Last4: "4242", Brand: "visa"}, display)
	assert.Equal(t, "4242", users.users[1].CardLast4)
	assert.Equal(t, "visa", users.users[1].CardBrand)
	assert.Equal(t, "pm_1", provider.defaultSet["cus_new"], "single atomic designation on the provider")
}

func TestListPaymentMethods_MarksExactlyOneDefault(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1, StripeCustomerID: "cus_1"}}}
	provider := newFakeProvider()
	cust := &stripe.Customer{ID: "cus_1"}
	cust.InvoiceSettings.DefaultPaymentMethod = "pm_2"
	provider.customers["cus_1"] = cust
	provider.methods = []stripe.PaymentMethod{
		{ID: "pm_1", Card: stripe.CardDetails{Last4: "1111"}},
		{ID: "pm_2", Card: stripe.CardDetails{Last4: "4242"}},
		{ID: "pm_3", Card: stripe.CardDetails{Last4: "9999"}},
	}
	svc := newTestService(users, &fakeItemRepo{}, &fakeSettlementRepo{}, provider, &fakeRail{})

	out, err := svc.ListPaymentMethods(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, out, 3)

	defaults := 0
	for _, m := range out {
		if m.Default {
			defaults++
			assert.Equal(t, "pm_2", m.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

// ---- settlement batcher -----------------------------------------------------

func TestSettle_SuperadminNoOp(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1, Role: models.ROLE_SUPERADMIN}}}
	items := &fakeItemRepo{items: []models.UsageItem{usageItem(1, "a", 99999, "usage")}}
	setl := &fakeSettlementRepo{}
	provider := newFakeProvider()
	rail := &fakeRail{}
	svc := newTestService(users, items, setl, provider, rail)

	h, err := svc.Settle(context.Background(), 1, "ws")
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Empty(t, setl.histories)
	assert.Zero(t, rail.calls)
	assert.Empty(t, provider.charges)
}

func TestSettle_NothingOwedNoOp(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1}}}
	setl := &fakeSettlementRepo{}
	rail := &fakeRail{}
	svc := newTestService(users, &fakeItemRepo{}, setl, newFakeProvider(), rail)

	h, err := svc.Settle(context.Background(), 1, "ws")
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Empty(t, setl.histories, "no history row for an empty batch")
	assert.Zero(t, rail.calls)
}

func TestSettle_OnChainWhenNoDefaultCard(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1}}}
	items := &fakeItemRepo{items: []models.UsageItem{
		usageItem(10, "a", 250, "usage"),
		usageItem(11, "b", 125, "usage"),
	}}
	setl := &fakeSettlementRepo{}
	rail := &fakeRail{mode: chain.ModeSimulated, ref: "0xfeed"}
	svc := newTestService(users, items, setl, newFakeProvider(), rail)

	h, err := svc.Settle(context.Background(), 1, "ws")
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.Equal(t, models.SettlementRailOnChain, h.Rail)
	assert.Equal(t, int64(375), h.AmountCents)
	assert.Equal(t, "0xfeed", h.TxHash)
	assert.Empty(t, h.StripePaymentIntentID)
	assert.Empty(t, h.CardLast4)
	assert.Equal(t, 2, h.UsageCount)
	assert.Equal(t, models.SettlementStatusSucceeded, h.Status)
	assert.Equal(t, int64(375), rail.lastTot)
	require.Len(t, setl.settled, 1)
	assert.Equal(t, []uint{10, 11}, setl.settled[0])
}

func TestSettle_CardWhenDefaultPresent(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1, StripeCustomerID: "cus_1", CardLast4: "4242", CardBrand: "visa"}}}
	items := &fakeItemRepo{items: []models.UsageItem{usageItem(5, "x", 999, "usage")}}
	setl := &fakeSettlementRepo{}
	provider := newFakeProvider()
	cust := &stripe.Customer{ID: "cus_1"}
	cust.InvoiceSettings.DefaultPaymentMethod = "pm_1"
	provider.customers["cus_1"] = cust
	rail := &fakeRail{}
	svc := newTestService(users, items, setl, provider, rail)

	h, err := svc.Settle(context.Background(), 1, "ws")
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.Equal(t, models.SettlementRailCard, h.Rail)
	assert.Equal(t, "pi_123", h.StripePaymentIntentID)
	assert.Empty(t, h.TxHash)
	assert.Equal(t, "4242", h.CardLast4)
	assert.Equal(t, int64(999), h.AmountCents)
	assert.Equal(t, models.SettlementStatusSucceeded, h.Status)
	assert.Equal(t, []int64{999}, provider.charges)
	assert.Zero(t, rail.calls, "card rail must not touch the chain")
}

func TestSettle_CardFailureLeavesItemsUnsettled(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1, StripeCustomerID: "cus_1"}}}
	items := &fakeItemRepo{items: []models.UsageItem{usageItem(5, "x", 999, "usage")}}
	setl := &fakeSettlementRepo{}
	provider := newFakeProvider()
	cust := &stripe.Customer{ID: "cus_1"}
	cust.InvoiceSettings.DefaultPaymentMethod = "pm_1"
	provider.customers["cus_1"] = cust
	provider.chargeErr = &stripe.APIError{StatusCode: 402, Code: "card_declined", Message: "declined"}
	svc := newTestService(users, items, setl, provider, &fakeRail{})

	h, err := svc.Settle(context.Background(), 1, "ws")
	require.Error(t, err)
	assert.Nil(t, h)
	assert.Empty(t, setl.settled, "failed charge must not consume items")
	assert.Empty(t, setl.histories)
}

func TestSettle_ProviderOutageDuringRailResolutionAborts(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1, StripeCustomerID: "cus_1"}}}
	items := &fakeItemRepo{items: []models.UsageItem{usageItem(5, "x", 100, "usage")}}
	provider := newFakeProvider()
	provider.verifyErr = &stripe.APIError{StatusCode: 503, Message: "unavailable"}
	rail := &fakeRail{}
	svc := newTestService(users, items, &fakeSettlementRepo{}, provider, rail)

	_, err := svc.Settle(context.Background(), 1, "ws")
	require.Error(t, err)
	assert.Zero(t, rail.calls, "ambiguous provider state must not silently fall back to chain")
}

func TestSettle_ConfirmationTimeoutPersistsPendingRow(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1}}}
	items := &fakeItemRepo{items: []models.UsageItem{usageItem(7, "y", 500, "card")}}
	setl := &fakeSettlementRepo{}
	rail := &fakeRail{ref: "0xbeef", err: fmt.Errorf("%w: tx 0xbeef unconfirmed", chain.ErrConfirmationTimeout)}
	svc := newTestService(users, items, setl, newFakeProvider(), rail)

	h, err := svc.Settle(context.Background(), 1, "ws")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chain.ErrConfirmationTimeout))
	require.NotNil(t, h, "submitted-but-unconfirmed must surface the pending record")
	assert.Equal(t, models.SettlementStatusPending, h.Status)
	assert.Equal(t, "0xbeef", h.TxHash)
	require.Len(t, setl.settled, 1, "items must not stay retryable after a durable submission")
}

func TestSettle_SubmissionFailureLeavesItemsUnsettled(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{1: {ID: 1}}}
	items := &fakeItemRepo{items: []models.UsageItem{usageItem(7, "y", 500, "usage")}}
	setl := &fakeSettlementRepo{}
	rail := &fakeRail{err: fmt.Errorf("%w: node down", chain.ErrSubmissionFailed)}
	svc := newTestService(users, items, setl, newFakeProvider(), rail)

	h, err := svc.Settle(context.Background(), 1, "ws")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chain.ErrSubmissionFailed))
	assert.Nil(t, h)
	assert.Empty(t, setl.settled)
}

// ---- payout dispatcher ------------------------------------------------------

func TestPayout_CapsAtAvailableBalance(t *testing.T) {
	provider := newFakeProvider()
	provider.balance = &stripe.Balance{Available: []stripe.BalanceAmount{{Amount: 3000, Currency: "usd"}}}
	svc := newTestService(&fakeUserRepo{users: map[uint]*models.User{}}, &fakeItemRepo{}, &fakeSettlementRepo{}, provider, &fakeRail{})

	rec, err := svc.Payout(context.Background(), PayoutInput{Amount: "50", Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), rec.AmountCents, "requested 5000 minor units capped at 3000 available")
	assert.Equal(t, []int64{3000}, provider.payouts)
}

func TestPayout_FullBalanceWhenNoAmount(t *testing.T) {
	provider := newFakeProvider()
	provider.balance = &stripe.Balance{Available: []stripe.BalanceAmount{{Amount: 1234, Currency: "usd"}}}
	svc := newTestService(&fakeUserRepo{users: map[uint]*models.User{}}, &fakeItemRepo{}, &fakeSettlementRepo{}, provider, &fakeRail{})

	rec, err := svc.Payout(context.Background(), PayoutInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), rec.AmountCents)
	assert.Equal(t, "usd", rec.Currency)
}

func TestPayout_NoAvailableBalance(t *testing.T) {
	svc := newTestService(&fakeUserRepo{users: map[uint]*models.User{}}, &fakeItemRepo{}, &fakeSettlementRepo{}, newFakeProvider(), &fakeRail{})

	_, err := svc.Payout(context.Background(), PayoutInput{Currency: "usd"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAvailableBalance))
}

func TestPayout_ZeroRequestedIsInvalid(t *testing.T) {
	provider := newFakeProvider()
	provider.balance = &stripe.Balance{Available: []stripe.BalanceAmount{{Amount: 3000, Currency: "usd"}}}
	svc := newTestService(&fakeUserRepo{users: map[uint]*models.User{}}, &fakeItemRepo{}, &fakeSettlementRepo{}, provider, &fakeRail{})

	_, err := svc.Payout(context.Background(), PayoutInput{Amount: "0"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
	assert.Empty(t, provider.payouts)
}

func TestReconcilePending_TransitionsConfirmedRows(t *testing.T) {
	setl := &fakeSettlementRepo{rows: []models.SettlementHistory{
		{ID: 1, UUID: "a", Rail: models.SettlementRailOnChain, TxHash: "0x1", Status: models.SettlementStatusPending},
		{ID: 2, UUID: "b", Rail: models.SettlementRailOnChain, TxHash: "0x2", Status: models.SettlementStatusPending},
		{ID: 3, UUID: "c", Rail: models.SettlementRailCard, StripePaymentIntentID: "pi_1", Status: models.SettlementStatusSucceeded},
	}}
	rail := &fakeRail{confirmed: map[string]bool{"0x1": true}}
	svc := newTestService(&fakeUserRepo{users: map[uint]*models.User{}}, &fakeItemRepo{}, setl, newFakeProvider(), rail)

	resolved, err := svc.ReconcilePending(context.Background(), 1, "ws")
	require.NoError(t, err)
	assert.Equal(t, 1, resolved, "only the confirmed pending row transitions")
	require.Len(t, setl.statusUpdates, 1)
	assert.Equal(t, uint(1), setl.statusUpdates[0].id)
	assert.Equal(t, models.SettlementStatusSucceeded, setl.statusUpdates[0].status)
}

// ---- history reader ---------------------------------------------------------

func TestHistory_DegradesToEmptyOnError(t *testing.T) {
	setl := &fakeSettlementRepo{listErr: errors.New("db gone")}
	svc := newTestService(&fakeUserRepo{users: map[uint]*models.User{}}, &fakeItemRepo{}, setl, newFakeProvider(), &fakeRail{})

	rows := svc.History(context.Background(), 1, "ws", 50)
	require.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestHistory_ReturnsRows(t *testing.T) {
	setl := &fakeSettlementRepo{rows: []models.SettlementHistory{{ID: 2}, {ID: 1}}}
	svc := newTestService(&fakeUserRepo{users: map[uint]*models.User{}}, &fakeItemRepo{}, setl, newFakeProvider(), &fakeRail{})

	rows := svc.History(context.Background(), 1, "ws", 0)
	assert.Len(t, rows, 2)
}
