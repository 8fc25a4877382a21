package order

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/oniongate/satstore/internal/adapter/storage"
	"github.com/oniongate/satstore/internal/core/domain"
)

const testAddress = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"

type fixedWallet struct{}

func (fixedWallet) PaymentAddress(_ context.Context) (string, error) {
	return testAddress, nil
}

// stubOracle flips to confirmed when told to, counting calls so tests can
// assert idempotence.
type stubOracle struct {
	confirmed bool
	txRef     string
	calls     int
}

func (o *stubOracle) Confirmed(_ context.Context, _ *domain.Order) (bool, string, error) {
	o.calls++
	return o.confirmed, o.txRef, nil
}

type fixture struct {
	store  *storage.MemoryStore
	mgr    *Manager
	oracle *stubOracle
	client *domain.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	oracle := &stubOracle{txRef: "txid123"}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := NewManager(store, store, fixedWallet{}, oracle, 24*time.Hour, log)
	return &fixture{
		store:  store,
		mgr:    mgr,
		oracle: oracle,
		client: &domain.Client{ID: uuid.New(), SessionToken: "anon_test", IPHash: "deadbeef"},
	}
}

func (f *fixture) seedProduct(t *testing.T, name, price, priceBTC string, stock int) domain.Product {
	t.Helper()
	p := domain.Product{
		ID:            uuid.New(),
		Name:          name,
		Price:         decimal.RequireFromString(price),
		PriceBTC:      decimal.RequireFromString(priceBTC),
		StockQuantity: stock,
		MaxPerOrder:   10,
		IsActive:      true,
	}
	f.store.SeedProduct(p)
	return p
}

func (f *fixture) fillCart(t *testing.T, productID uuid.UUID, qty int) {
	t.Helper()
	activeCart, err := f.store.EnsureActiveCart(context.Background(), f.client.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.AddItem(context.Background(), activeCart.ID, productID, qty))
}

func TestCreateEmptyCartFails(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.mgr.Create(context.Background(), f.client, "digital")
	require.True(t, domain.IsValidation(err), "want ValidationError, got %v", err)
	require.Zero(t, f.store.OrderCount(), "no order may exist after a failed create")
}

func TestCreateSnapshotsCartExactly(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 10)
	b := f.seedProduct(t, "Product B", "9.99", "0.0004", 10)
	f.fillCart(t, a.ID, 3)
	f.fillCart(t, b.ID, 2)

	ord, items, err := f.mgr.Create(context.Background(), f.client, "station")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, domain.StatusPending, ord.Status)
	require.Equal(t, "station", ord.DeliveryOption)
	require.Equal(t, testAddress, ord.BitcoinAddress)
	require.True(t, ord.Total.Equal(decimal.RequireFromString("94.98")), "got %s", ord.Total)
	require.True(t, ord.TotalBTC.Equal(decimal.RequireFromString("0.0038")), "got %s", ord.TotalBTC)
	require.Equal(t, int64(380000), ord.AmountSats)
	require.Equal(t, "bitcoin:"+testAddress+"?amount=0.0038", ord.PaymentURI())
}

func TestCreateSwapsCartAtomically(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 10)
	f.fillCart(t, a.ID, 2)

	before, err := f.store.EnsureActiveCart(context.Background(), f.client.ID)
	require.NoError(t, err)

	_, _, err = f.mgr.Create(context.Background(), f.client, "")
	require.NoError(t, err)

	active := f.store.ActiveCarts(f.client.ID)
	require.Len(t, active, 1, "exactly one active cart after order creation")
	require.NotEqual(t, before.ID, active[0], "the consumed cart must not stay active")

	lines, err := f.store.Lines(context.Background(), active[0])
	require.NoError(t, err)
	require.Empty(t, lines, "replacement cart starts empty")
}

func TestCreateDecrementsStock(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 10)
	f.fillCart(t, a.ID, 4)

	_, _, err := f.mgr.Create(context.Background(), f.client, "")
	require.NoError(t, err)
	require.Equal(t, 6, f.store.ProductStock(a.ID))
}

func TestCreateOversellGuard(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 3)
	f.fillCart(t, a.ID, 5) // cart filled before stock was reduced elsewhere

	_, _, err := f.mgr.Create(context.Background(), f.client, "")
	require.True(t, domain.IsValidation(err), "want ValidationError, got %v", err)
	require.Equal(t, 3, f.store.ProductStock(a.ID), "failed create must not touch stock")
	require.Zero(t, f.store.OrderCount())
}

func TestCreatePriceSnapshotSurvivesPriceChange(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 10)
	f.fillCart(t, a.ID, 1)

	ord, items, err := f.mgr.Create(context.Background(), f.client, "")
	require.NoError(t, err)

	// Reprice the product after the order; the snapshot must not move.
	a.Price = decimal.RequireFromString("99.00")
	f.store.SeedProduct(a)

	got, gotItems, err := f.mgr.Get(context.Background(), ord.Number)
	require.NoError(t, err)
	require.True(t, got.Total.Equal(decimal.RequireFromString("25.00")))
	require.True(t, gotItems[0].UnitPrice.Equal(items[0].UnitPrice))
}

func TestCheckStatusBeforeConfirmation(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 10)
	f.fillCart(t, a.ID, 1)
	ord, _, err := f.mgr.Create(context.Background(), f.client, "")
	require.NoError(t, err)

	result, err := f.mgr.CheckStatus(context.Background(), ord.Number)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, result.Order.Status)
	require.False(t, result.Expired)
	require.Empty(t, result.Order.TxRef)
}

func TestCheckStatusConfirmsOnce(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 10)
	f.fillCart(t, a.ID, 1)
	ord, _, err := f.mgr.Create(context.Background(), f.client, "")
	require.NoError(t, err)

	f.oracle.confirmed = true

	first, err := f.mgr.CheckStatus(context.Background(), ord.Number)
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, first.Order.Status)
	require.Equal(t, "txid123", first.Order.TxRef)
	require.True(t, first.Order.PaymentConfirmed)

	// Second check: same status, same reference, oracle not consulted.
	callsAfterFirst := f.oracle.calls
	second, err := f.mgr.CheckStatus(context.Background(), ord.Number)
	require.NoError(t, err)
	require.Equal(t, first.Order.Status, second.Order.Status)
	require.Equal(t, first.Order.TxRef, second.Order.TxRef)
	require.Equal(t, callsAfterFirst, f.oracle.calls, "a confirmed order must not hit the oracle again")
}

func TestCheckStatusReportsExpiry(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 10)
	f.fillCart(t, a.ID, 1)
	ord, _, err := f.mgr.Create(context.Background(), f.client, "")
	require.NoError(t, err)

	f.mgr.WithClock(func() time.Time { return time.Now().Add(25 * time.Hour) })

	result, err := f.mgr.CheckStatus(context.Background(), ord.Number)
	require.NoError(t, err)
	require.True(t, result.Expired)
	require.Equal(t, domain.StatusPending, result.Order.Status, "expiry is advisory, not a transition")
}

func TestCheckStatusUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.CheckStatus(context.Background(), uuid.New())
	require.True(t, domain.IsNotFound(err))
}

func TestCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 10)
	f.fillCart(t, a.ID, 4)
	ord, _, err := f.mgr.Create(context.Background(), f.client, "")
	require.NoError(t, err)
	require.Equal(t, 6, f.store.ProductStock(a.ID))

	cancelled, err := f.mgr.Cancel(context.Background(), f.client, ord.Number)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.Equal(t, 10, f.store.ProductStock(a.ID))
}

func TestCancelForeignClient(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 10)
	f.fillCart(t, a.ID, 1)
	ord, _, err := f.mgr.Create(context.Background(), f.client, "")
	require.NoError(t, err)

	stranger := &domain.Client{ID: uuid.New()}
	_, err = f.mgr.Cancel(context.Background(), stranger, ord.Number)
	require.True(t, domain.IsAuthorization(err), "want AuthorizationError, got %v", err)
}

func TestCancelNonPending(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 10)
	f.fillCart(t, a.ID, 1)
	ord, _, err := f.mgr.Create(context.Background(), f.client, "")
	require.NoError(t, err)

	f.oracle.confirmed = true
	_, err = f.mgr.CheckStatus(context.Background(), ord.Number)
	require.NoError(t, err)

	_, err = f.mgr.Cancel(context.Background(), f.client, ord.Number)
	require.True(t, domain.IsValidation(err), "cancel is only reachable from pending")
}

func TestNotifierFiresOnStatusCheckConfirmation(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Product A", "25.00", "0.001", 10)
	f.fillCart(t, a.ID, 1)
	ord, _, err := f.mgr.Create(context.Background(), f.client, "")
	require.NoError(t, err)

	notified := make(chan domain.Order, 2)
	f.mgr.WithNotifier(func(o *domain.Order) { notified <- *o })

	f.oracle.confirmed = true
	_, err = f.mgr.CheckStatus(context.Background(), ord.Number)
	require.NoError(t, err)

	// The status check itself drives the notification, not a sweep.
	select {
	case got := <-notified:
		require.Equal(t, ord.Number, got.Number)
		require.Equal(t, domain.StatusConfirmed, got.Status)
		require.Equal(t, "txid123", got.TxRef)
	case <-time.After(time.Second):
		t.Fatal("no notification after confirmation")
	}

	// A repeated check must not notify again.
	_, err = f.mgr.CheckStatus(context.Background(), ord.Number)
	require.NoError(t, err)
	select {
	case <-notified:
		t.Fatal("confirmed order re-check must not notify")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMockOracle(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	oracle := NewMockOracle(2 * time.Minute)
	ord := &domain.Order{Number: uuid.New(), CreatedAt: base}

	oracle.Now = func() time.Time { return base.Add(time.Minute) }
	confirmed, _, err := oracle.Confirmed(context.Background(), ord)
	require.NoError(t, err)
	require.False(t, confirmed)

	oracle.Now = func() time.Time { return base.Add(3 * time.Minute) }
	confirmed, ref, err := oracle.Confirmed(context.Background(), ord)
	require.NoError(t, err)
	require.True(t, confirmed)
	require.NotEmpty(t, ref)

	// The fabricated reference is stable across checks.
	_, ref2, err := oracle.Confirmed(context.Background(), ord)
	require.NoError(t, err)
	require.Equal(t, ref, ref2)
}
