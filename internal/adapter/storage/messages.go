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

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *domain.EncryptedMessage) error {
	query := `
		INSERT INTO encrypted_messages (id, order_id, client_id, message_type, ciphertext, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.OrderID, msg.ClientID, msg.MessageType,
		msg.Ciphertext, msg.CreatedAt, msg.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.EncryptedMessage, error) {
	query := `
		SELECT id, order_id, client_id, message_type, ciphertext, created_at, expires_at
		FROM encrypted_messages WHERE id = $1
	`
	var m domain.EncryptedMessage
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.OrderID, &m.ClientID, &m.MessageType,
		&m.Ciphertext, &m.CreatedAt, &m.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("message")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
