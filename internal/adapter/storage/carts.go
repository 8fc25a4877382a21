package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oniongate/satstore/internal/core/domain"
)

type CartRepository struct {
	db *pgxpool.Pool
}

func NewCartRepository(db *pgxpool.Pool) *CartRepository {
	return &CartRepository{db: db}
}

// EnsureActiveCart returns the client's active cart, creating one if
// missing. The partial unique index carts(client_id) WHERE is_active makes
// concurrent creation collapse to a single row.
func (r *CartRepository) EnsureActiveCart(ctx context.Context, clientID uuid.UUID) (*domain.Cart, error) {
	insert := `
		INSERT INTO carts (id, client_id, is_active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (client_id) WHERE is_active DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert, uuid.New(), clientID); err != nil {
		return nil, fmt.Errorf("failed to ensure active cart: %w", err)
	}

	query := `
		SELECT id, client_id, is_active, created_at, updated_at
		FROM carts WHERE client_id = $1 AND is_active
	`
	var c domain.Cart
	err := r.db.QueryRow(ctx, query, clientID).Scan(
		&c.ID, &c.ClientID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load active cart: %w", err)
	}
	return &c, nil
}

func (r *CartRepository) Lines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error) {
	query := `
		SELECT ci.product_id, p.name, ci.quantity, p.price, p.price_btc
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`
	rows, err := r.db.Query(ctx, query, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice, &line.UnitBTC); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// AddItem merges the quantity into an existing entry or appends a new one,
// inside one transaction holding the cart row so two concurrent adds
// serialize instead of corrupting the entry.
func (r *CartRepository) AddItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
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
		return domain.Validationf("cart is no longer active")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, uuid.New(), cartID, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RemoveItem deletes the entry atomically, reporting NotFoundError when
// the product has no entry in the cart.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("cart entry")
	}

	if _, err := tx.Exec(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
