// Package order converts carts into immutable orders and advances them
// through the payment state machine.
package order

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oniongate/satstore/internal/core/domain"
	"github.com/oniongate/satstore/internal/core/ports"
)

// Manager owns the order lifecycle: creation with the atomic cart swap,
// the idempotent payment-confirmation check, and cancellation.
type Manager struct {
	orders ports.OrderRepository
	carts  ports.CartRepository
	wallet ports.AddressProvider
	oracle ports.PaymentOracle
	expiry time.Duration
	now    func() time.Time
	notify func(*domain.Order)
	log    *slog.Logger
}

func NewManager(orders ports.OrderRepository, carts ports.CartRepository, wallet ports.AddressProvider, oracle ports.PaymentOracle, expiry time.Duration, log *slog.Logger) *Manager {
	return &Manager{
		orders: orders,
		carts:  carts,
		wallet: wallet,
		oracle: oracle,
		expiry: expiry,
		now:    time.Now,
		log:    log,
	}
}

// WithClock overrides the clock, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithNotifier registers a hook fired once per pending -> confirmed
// transition, no matter whether a status request or the background sweep
// performed the check. The hook runs on its own goroutine with a snapshot
// of the order.
func (m *Manager) WithNotifier(notify func(*domain.Order)) *Manager {
	m.notify = notify
	return m
}

// Create snapshots the client's active cart into a new pending order:
// line items capture price at the moment of order, totals are exact
// decimal sums, the payment address comes from the wallet provider, and
// the cart swap plus stock reservation happen in one transaction with the
// inserts. An empty cart fails with ValidationError and changes nothing.
func (m *Manager) Create(ctx context.Context, client *domain.Client, deliveryOption string) (*domain.Order, []domain.OrderItem, error) {
	activeCart, err := m.carts.EnsureActiveCart(ctx, client.ID)
	if err != nil {
		return nil, nil, err
	}
	lines, err := m.carts.Lines(ctx, activeCart.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, domain.Validationf("cart is empty")
	}

	address, err := m.wallet.PaymentAddress(ctx)
	if err != nil {
		return nil, nil, err
	}

	if deliveryOption == "" {
		deliveryOption = "digital"
	}

	now := m.now()
	totals := domain.SumLines(lines)
	ord := &domain.Order{
		ID:             uuid.New(),
		Number:         uuid.New(),
		ClientID:       client.ID,
		Status:         domain.StatusPending,
		DeliveryOption: deliveryOption,
		Total:          totals.Total,
		TotalBTC:       totals.TotalBTC,
		AmountSats:     domain.BTCToSats(totals.TotalBTC),
		BitcoinAddress: address,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(m.expiry),
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			ID:          uuid.New(),
			OrderID:     ord.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			UnitBTC:     line.UnitBTC,
		})
	}

	if err := m.orders.CreateFromCart(ctx, ord, items, activeCart.ID); err != nil {
		return nil, nil, err
	}

	m.log.Info("order created",
		"order_number", ord.Number,
		"items", len(items),
		"amount_sats", ord.AmountSats,
	)
	return ord, items, nil
}

// StatusResult is what a status check reports back.
type StatusResult struct {
	Order   *domain.Order
	Items   []domain.OrderItem
	Expired bool
}

// CheckStatus is the side-effecting read: for a pending order it consults
// the payment oracle and, on confirmation, transitions to confirmed with
// the transaction reference. Non-pending orders are reported as-is, so
// repeated calls after confirmation return the same status and reference
// without re-triggering side effects. The expired flag is advisory and
// only meaningful while the order is still pending.
func (m *Manager) CheckStatus(ctx context.Context, number uuid.UUID) (*StatusResult, error) {
	ord, items, err := m.orders.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	if ord.Status == domain.StatusPending {
		confirmed, txRef, err := m.oracle.Confirmed(ctx, ord)
		if err != nil {
			return nil, err
		}
		if confirmed {
			now := m.now()
			if err := m.orders.MarkConfirmed(ctx, ord.ID, txRef, now); err != nil {
				return nil, err
			}
			ord.Status = domain.StatusConfirmed
			ord.TxRef = txRef
			ord.PaymentConfirmed = true
			ord.UpdatedAt = now
			m.log.Info("payment confirmed", "order_number", ord.Number, "tx_ref", txRef)
			if m.notify != nil {
				confirmed := *ord
				go m.notify(&confirmed)
			}
		}
	}

	return &StatusResult{
		Order:   ord,
		Items:   items,
		Expired: ord.Status == domain.StatusPending && ord.Expired(m.now()),
	}, nil
}

// Get fetches a full order by number. The order number is the capability:
// it is unguessable, so possession authorizes the read.
func (m *Manager) Get(ctx context.Context, number uuid.UUID) (*domain.Order, []domain.OrderItem, error) {
	return m.orders.GetByNumber(ctx, number)
}

// Cancel moves a pending order of the requesting client to cancelled and
// releases its stock reservation. Any other state fails with
// ValidationError; a foreign client fails with AuthorizationError.
func (m *Manager) Cancel(ctx context.Context, client *domain.Client, number uuid.UUID) (*domain.Order, error) {
	ord, _, err := m.orders.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if ord.ClientID != client.ID {
		return nil, domain.Unauthorized("order belongs to another client")
	}
	if ord.Status != domain.StatusPending {
		return nil, domain.Validationf("only pending orders can be cancelled")
	}
	now := m.now()
	if err := m.orders.Cancel(ctx, ord.ID, now); err != nil {
		return nil, err
	}
	ord.Status = domain.StatusCancelled
	ord.UpdatedAt = now
	m.log.Info("order cancelled", "order_number", ord.Number)
	return ord, nil
}
