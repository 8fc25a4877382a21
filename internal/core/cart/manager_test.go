package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/oniongate/satstore/internal/adapter/storage"
	"github.com/oniongate/satstore/internal/core/domain"
)

func newTestClient() *domain.Client {
	return &domain.Client{ID: uuid.New(), SessionToken: "anon_test", IPHash: "deadbeef"}
}

func seedProduct(store *storage.MemoryStore, price, priceBTC string, stock, maxPerOrder int) domain.Product {
	p := domain.Product{
		ID:            uuid.New(),
		Name:          "Product A",
		Price:         decimal.RequireFromString(price),
		PriceBTC:      decimal.RequireFromString(priceBTC),
		StockQuantity: stock,
		MaxPerOrder:   maxPerOrder,
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
	store.SeedProduct(p)
	return p
}

func TestAddItemWithinLimits(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, store)
	product := seedProduct(store, "25.00", "0.001", 10, 5)

	totals, err := m.AddItem(context.Background(), newTestClient(), product.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 3, totals.ItemCount)
	require.True(t, totals.Total.Equal(decimal.RequireFromString("75.00")), "got %s", totals.Total)
	require.True(t, totals.TotalBTC.Equal(decimal.RequireFromString("0.003")), "got %s", totals.TotalBTC)
}

func TestAddItemRejectsOverStock(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, store)
	client := newTestClient()
	product := seedProduct(store, "25.00", "0.001", 10, 20)

	_, err := m.AddItem(context.Background(), client, product.ID, 11)
	require.True(t, domain.IsValidation(err), "want ValidationError, got %v", err)

	// Cart unchanged after the failure.
	totals, err := m.Totals(context.Background(), client)
	require.NoError(t, err)
	require.Zero(t, totals.ItemCount)
}

func TestAddItemRejectsOverPerOrderCap(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, store)
	client := newTestClient()
	product := seedProduct(store, "25.00", "0.001", 10, 5)

	_, err := m.AddItem(context.Background(), client, product.ID, 6)
	require.True(t, domain.IsValidation(err), "want ValidationError, got %v", err)

	totals, err := m.Totals(context.Background(), client)
	require.NoError(t, err)
	require.Zero(t, totals.ItemCount)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, store)
	product := seedProduct(store, "25.00", "0.001", 10, 5)

	for _, qty := range []int{0, -1} {
		_, err := m.AddItem(context.Background(), newTestClient(), product.ID, qty)
		require.True(t, domain.IsValidation(err))
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, store)

	_, err := m.AddItem(context.Background(), newTestClient(), uuid.New(), 1)
	require.True(t, domain.IsNotFound(err))
}

func TestAddItemAccumulatesSingleEntry(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, store)
	client := newTestClient()
	product := seedProduct(store, "25.00", "0.001", 10, 5)

	_, err := m.AddItem(context.Background(), client, product.ID, 3)
	require.NoError(t, err)

	// The cap applies per call: another 3 is fine even though the entry
	// grows past 5.
	totals, err := m.AddItem(context.Background(), client, product.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 6, totals.ItemCount)

	activeCart, err := store.EnsureActiveCart(context.Background(), client.ID)
	require.NoError(t, err)
	lines, err := store.Lines(context.Background(), activeCart.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1, "same product must stay a single entry")
	require.Equal(t, 6, lines[0].Quantity)
}

func TestRemoveItem(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, store)
	client := newTestClient()
	product := seedProduct(store, "25.00", "0.001", 10, 5)

	_, err := m.AddItem(context.Background(), client, product.ID, 2)
	require.NoError(t, err)

	totals, err := m.RemoveItem(context.Background(), client, product.ID)
	require.NoError(t, err)
	require.Zero(t, totals.ItemCount)
	require.True(t, totals.Total.IsZero())
}

func TestRemoveThenReAddStaysSingleEntry(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, store)
	client := newTestClient()
	product := seedProduct(store, "25.00", "0.001", 10, 5)

	_, err := m.AddItem(context.Background(), client, product.ID, 2)
	require.NoError(t, err)
	_, err = m.RemoveItem(context.Background(), client, product.ID)
	require.NoError(t, err)

	totals, err := m.AddItem(context.Background(), client, product.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 3, totals.ItemCount)
	require.True(t, totals.Total.Equal(decimal.RequireFromString("75.00")), "got %s", totals.Total)

	activeCart, err := store.EnsureActiveCart(context.Background(), client.ID)
	require.NoError(t, err)
	lines, err := store.Lines(context.Background(), activeCart.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1, "a removed product must not leave a ghost entry behind")
	require.Equal(t, 3, lines[0].Quantity)
}

func TestRemoveItemAbsentEntry(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, store)

	_, err := m.RemoveItem(context.Background(), newTestClient(), uuid.New())
	require.True(t, domain.IsNotFound(err), "want NotFoundError, got %v", err)
}

func TestTotalsEmptyCart(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, store)

	totals, err := m.Totals(context.Background(), newTestClient())
	require.NoError(t, err)
	require.Zero(t, totals.ItemCount)
	require.True(t, totals.Total.IsZero())
	require.True(t, totals.TotalBTC.IsZero())
}

func TestTotalsAcrossProducts(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, store)
	client := newTestClient()
	a := seedProduct(store, "10.50", "0.0004", 10, 5)
	b := seedProduct(store, "3.25", "0.00013", 10, 5)

	_, err := m.AddItem(context.Background(), client, a.ID, 2)
	require.NoError(t, err)
	totals, err := m.AddItem(context.Background(), client, b.ID, 3)
	require.NoError(t, err)

	require.Equal(t, 5, totals.ItemCount)
	require.True(t, totals.Total.Equal(decimal.RequireFromString("30.75")), "got %s", totals.Total)
	require.True(t, totals.TotalBTC.Equal(decimal.RequireFromString("0.00119")), "got %s", totals.TotalBTC)
}
