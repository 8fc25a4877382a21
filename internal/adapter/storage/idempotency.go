package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oniongate/satstore/internal/core/domain"
)

type IdempotencyRepository struct {
	db *pgxpool.Pool
}

func NewIdempotencyRepository(db *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) LookupResponse(ctx context.Context, clientID uuid.UUID, key string) (int, []byte, error) {
	var status int
	var body []byte
	err := r.db.QueryRow(ctx,
		`SELECT response_status, response_body FROM idempotency_keys WHERE client_id = $1 AND key_id = $2`,
		clientID, key).Scan(&status, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, domain.NotFound("idempotency key")
	}
	if err != nil {
		return 0, nil, err
	}
	return status, body, nil
}

func (r *IdempotencyRepository) SaveResponse(ctx context.Context, clientID uuid.UUID, key string, status int, body []byte) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO idempotency_keys (client_id, key_id, response_status, response_body)
		 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		clientID, key, status, body)
	return err
}
