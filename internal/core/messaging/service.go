// Package messaging stores time-limited encrypted notes attached to an
// order and its owning client.
package messaging

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oniongate/satstore/internal/core/domain"
	"github.com/oniongate/satstore/internal/core/ports"
)

// MessageTTL is the fixed advisory validity window for every message.
const MessageTTL = 7 * 24 * time.Hour

// Service seals message content with AES-256-GCM under a key derived per
// order from the service secret. Expiry is metadata only; it is reported
// on reads, never enforced.
type Service struct {
	messages ports.MessageRepository
	orders   ports.OrderRepository
	secret   []byte
	now      func() time.Time
}

func NewService(messages ports.MessageRepository, orders ports.OrderRepository, secret string) *Service {
	return &Service{
		messages: messages,
		orders:   orders,
		secret:   []byte(secret),
		now:      time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Attach encrypts and stores a note on the order. Fails with
// AuthorizationError unless the requesting client owns the order; nothing
// is persisted in that case.
func (s *Service) Attach(ctx context.Context, client *domain.Client, orderNumber uuid.UUID, messageType, content string) (*domain.EncryptedMessage, error) {
	ord, _, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if ord.ClientID != client.ID {
		return nil, domain.Unauthorized("order belongs to another client")
	}
	if content == "" {
		return nil, domain.Validationf("message content is required")
	}
	if messageType == "" {
		messageType = "order_update"
	}

	ciphertext, err := s.seal(ord.ID, content)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg := &domain.EncryptedMessage{
		ID:          uuid.New(),
		OrderID:     ord.ID,
		ClientID:    client.ID,
		MessageType: messageType,
		Ciphertext:  ciphertext,
		CreatedAt:   now,
		ExpiresAt:   now.Add(MessageTTL),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Get is the direct lookup: the message decrypted for its owning client,
// with the advisory expired flag. A foreign client gets AuthorizationError.
func (s *Service) Get(ctx context.Context, client *domain.Client, id uuid.UUID) (*domain.EncryptedMessage, string, bool, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, "", false, err
	}
	if msg.ClientID != client.ID {
		return nil, "", false, domain.Unauthorized("message belongs to another client")
	}
	content, err := s.open(msg.OrderID, msg.Ciphertext)
	if err != nil {
		return nil, "", false, err
	}
	return msg, content, msg.Expired(s.now()), nil
}

// key derives the per-order AES-256 key from the service secret and the
// order's internal id.
func (s *Service) key(orderID uuid.UUID) []byte {
	sum := sha256.Sum256(append(append([]byte{}, s.secret...), orderID[:]...))
	return sum[:]
}

func (s *Service) seal(orderID uuid.UUID, content string) (string, error) {
	block, err := aes.NewCipher(s.key(orderID))
	if err != nil {
		return "", fmt.Errorf("failed to build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to build gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(content), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Service) open(orderID uuid.UUID, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", err)
	}
	block, err := aes.NewCipher(s.key(orderID))
	if err != nil {
		return "", fmt.Errorf("failed to build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to build gcm: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("malformed ciphertext: too short")
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt message: %w", err)
	}
	return string(plain), nil
}
