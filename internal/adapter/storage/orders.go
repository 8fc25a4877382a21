package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oniongate/satstore/internal/core/domain"
)

type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, order_number, client_id, status, delivery_option,
	total_amount, bitcoin_amount, amount_sats, bitcoin_address, tx_ref,
	payment_confirmed, created_at, updated_at, expires_at`

// CreateFromCart runs the whole order creation in one transaction: lock
// and consume the cart, snapshot items, reserve stock with an oversell
// guard, and provision the replacement cart. A crash anywhere rolls the
// lot back, leaving the client with exactly one active cart.
func (r *OrderRepository) CreateFromCart(ctx context.Context, order *domain.Order, items []domain.OrderItem, cartID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var active bool
	err = tx.QueryRow(ctx, `SELECT is_active FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound("cart")
	}
	if err != nil {
		return err
	}
	if !active {
		// A concurrent create already consumed this cart.
		return domain.Validationf("cart has already been checked out")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, client_id, status, delivery_option,
			total_amount, bitcoin_amount, amount_sats, bitcoin_address,
			payment_confirmed, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11, $12)
	`, order.ID, order.Number, order.ClientID, order.Status, order.DeliveryOption,
		order.Total, order.TotalBTC, order.AmountSats, order.BitcoinAddress,
		order.CreatedAt, order.UpdatedAt, order.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range items {
		tag, err := tx.Exec(ctx, `
			UPDATE products SET stock_quantity = stock_quantity - $1
			WHERE id = $2 AND stock_quantity >= $1
		`, item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to reserve stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.Validationf("Not enough stock for %s", item.ProductName)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, unit_price_btc)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.UnitBTC)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE carts SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO carts (id, client_id, is_active) VALUES ($1, $2, TRUE)`, uuid.New(), order.ClientID); err != nil {
		return fmt.Errorf("failed to provision replacement cart: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *OrderRepository) GetByNumber(ctx context.Context, number uuid.UUID) (*domain.Order, []domain.OrderItem, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	var o domain.Order
	err := r.db.QueryRow(ctx, query, number).Scan(
		&o.ID, &o.Number, &o.ClientID, &o.Status, &o.DeliveryOption,
		&o.Total, &o.TotalBTC, &o.AmountSats, &o.BitcoinAddress, &o.TxRef,
		&o.PaymentConfirmed, &o.CreatedAt, &o.UpdatedAt, &o.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.NotFound("order")
	}
	if err != nil {
		return nil, nil, err
	}

	items, err := r.items(ctx, o.ID)
	if err != nil {
		return nil, nil, err
	}
	return &o, items, nil
}

func (r *OrderRepository) items(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, unit_price_btc
		FROM order_items WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.UnitBTC); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkConfirmed transitions pending -> confirmed. The status guard in the
// WHERE clause keeps repeated calls from rewriting the reference.
func (r *OrderRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, txRef string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $2, tx_ref = $3, payment_confirmed = TRUE, updated_at = $4
		WHERE id = $1 AND status = $5
	`, id, domain.StatusConfirmed, txRef, at, domain.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to confirm order: %w", err)
	}
	return nil
}

// Cancel transitions pending -> cancelled and restores the reserved stock.
func (r *OrderRepository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
	`, id, domain.StatusCancelled, at, domain.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Validationf("only pending orders can be cancelled")
	}

	_, err = tx.Exec(ctx, `
		UPDATE products p SET stock_quantity = p.stock_quantity + oi.quantity
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id
	`, id)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *OrderRepository) ListPending(ctx context.Context, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := r.db.Query(ctx, query, domain.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.Number, &o.ClientID, &o.Status, &o.DeliveryOption,
			&o.Total, &o.TotalBTC, &o.AmountSats, &o.BitcoinAddress, &o.TxRef,
			&o.PaymentConfirmed, &o.CreatedAt, &o.UpdatedAt, &o.ExpiresAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *OrderRepository) CountByClient(ctx context.Context, clientID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE client_id = $1`, clientID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
