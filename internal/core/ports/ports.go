// Package ports declares the interfaces between the core services and
// their collaborators: persistence, address provisioning and payment
// confirmation. Storage adapters implement the repositories; the in-memory
// store backs the tests.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oniongate/satstore/internal/core/domain"
)

// ClientRepository persists anonymous client records.
type ClientRepository interface {
	GetBySessionToken(ctx context.Context, token string) (*domain.Client, error)
	GetByIPHash(ctx context.Context, ipHash string) (*domain.Client, error)
	Create(ctx context.Context, client *domain.Client) error
	TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ProductRepository reads the catalog. The core never writes products;
// stock mutation happens inside order transactions.
type ProductRepository interface {
	ListActive(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

// CartRepository manages the single active cart per client and its items.
type CartRepository interface {
	// EnsureActiveCart returns the client's active cart, creating one if
	// none exists. The active-cart-per-client uniqueness constraint is the
	// backstop against concurrent creation.
	EnsureActiveCart(ctx context.Context, clientID uuid.UUID) (*domain.Cart, error)
	Lines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error)
	// AddItem sums quantities into an existing entry for the product or
	// appends a new one, atomically.
	AddItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error
	// RemoveItem deletes the entry, returning NotFoundError if absent.
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error
}

// OrderRepository persists orders and drives the transactional cart swap.
type OrderRepository interface {
	// CreateFromCart atomically inserts the order with its items, decrements
	// product stock with an oversell guard, deactivates the source cart and
	// provisions a fresh active cart for the client. A failed stock guard
	// surfaces as ValidationError and rolls everything back.
	CreateFromCart(ctx context.Context, order *domain.Order, items []domain.OrderItem, cartID uuid.UUID) error
	GetByNumber(ctx context.Context, number uuid.UUID) (*domain.Order, []domain.OrderItem, error)
	// MarkConfirmed transitions a pending order to confirmed with its
	// transaction reference. A non-pending order is left untouched.
	MarkConfirmed(ctx context.Context, id uuid.UUID, txRef string, at time.Time) error
	// Cancel transitions a pending order to cancelled and restores the
	// stock it had reserved.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) error
	ListPending(ctx context.Context, limit int) ([]domain.Order, error)
	CountByClient(ctx context.Context, clientID uuid.UUID) (int, error)
}

// MessageRepository persists ephemeral encrypted messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.EncryptedMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EncryptedMessage, error)
}

// PaymentOracle decides whether an order's payment has settled. Confirmed
// returns the transaction reference alongside the verdict. Implementations
// must be safe to call repeatedly for the same order.
type PaymentOracle interface {
	Confirmed(ctx context.Context, order *domain.Order) (bool, string, error)
}

// AddressProvider hands out the payment destination for new orders. The
// core records whatever address it is given.
type AddressProvider interface {
	PaymentAddress(ctx context.Context) (string, error)
}
