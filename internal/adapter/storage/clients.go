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

type ClientRepository struct {
	db *pgxpool.Pool
}

func NewClientRepository(db *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = `id, session_token, ip_hash, user_agent, created_at, last_active`

func (r *ClientRepository) GetBySessionToken(ctx context.Context, token string) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE session_token = $1`
	return r.scanClient(r.db.QueryRow(ctx, query, token))
}

func (r *ClientRepository) GetByIPHash(ctx context.Context, ipHash string) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE ip_hash = $1`
	return r.scanClient(r.db.QueryRow(ctx, query, ipHash))
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	query := `
		INSERT INTO clients (id, session_token, ip_hash, user_agent, created_at, last_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		client.ID, client.SessionToken, client.IPHash, client.UserAgent,
		client.CreatedAt, client.LastActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (r *ClientRepository) TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE clients SET last_active = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last_active: %w", err)
	}
	return nil
}

func (r *ClientRepository) scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.ID, &c.SessionToken, &c.IPHash, &c.UserAgent, &c.CreatedAt, &c.LastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("client")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
