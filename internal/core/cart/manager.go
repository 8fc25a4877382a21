// Package cart implements add-item, remove-item and totals over the single
// active cart of a client.
package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/oniongate/satstore/internal/core/domain"
	"github.com/oniongate/satstore/internal/core/ports"
)

type Manager struct {
	carts    ports.CartRepository
	products ports.ProductRepository
}

func NewManager(carts ports.CartRepository, products ports.ProductRepository) *Manager {
	return &Manager{carts: carts, products: products}
}

// AddItem validates quantity against stock and the per-order cap, then
// merges the quantity into the client's active cart. The cap applies to
// the quantity of this call; accumulation across calls is allowed.
// Returns the updated totals.
func (m *Manager) AddItem(ctx context.Context, client *domain.Client, productID uuid.UUID, quantity int) (*domain.CartTotals, error) {
	if quantity <= 0 {
		return nil, domain.Validationf("quantity must be positive")
	}

	product, err := m.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, domain.NotFound("product")
	}
	if quantity > product.StockQuantity {
		return nil, domain.Validationf("Not enough stock: %d available", product.StockQuantity)
	}
	if quantity > product.MaxPerOrder {
		return nil, domain.Validationf("quantity exceeds limit of %d per order", product.MaxPerOrder)
	}

	activeCart, err := m.carts.EnsureActiveCart(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	if err := m.carts.AddItem(ctx, activeCart.ID, productID, quantity); err != nil {
		return nil, err
	}
	return m.totals(ctx, activeCart.ID)
}

// RemoveItem deletes the cart entry for the product, failing with
// NotFoundError if no such entry exists.
func (m *Manager) RemoveItem(ctx context.Context, client *domain.Client, productID uuid.UUID) (*domain.CartTotals, error) {
	activeCart, err := m.carts.EnsureActiveCart(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	if err := m.carts.RemoveItem(ctx, activeCart.ID, productID); err != nil {
		return nil, err
	}
	return m.totals(ctx, activeCart.ID)
}

// Totals is the pure read: item count plus exact fiat and BTC sums, all
// zero for an empty cart.
func (m *Manager) Totals(ctx context.Context, client *domain.Client) (*domain.CartTotals, error) {
	activeCart, err := m.carts.EnsureActiveCart(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	return m.totals(ctx, activeCart.ID)
}

func (m *Manager) totals(ctx context.Context, cartID uuid.UUID) (*domain.CartTotals, error) {
	lines, err := m.carts.Lines(ctx, cartID)
	if err != nil {
		return nil, err
	}
	totals := domain.SumLines(lines)
	return &totals, nil
}
