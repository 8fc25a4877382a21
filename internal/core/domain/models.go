package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client is a durable pseudonymous record for an anonymous visitor.
// The session token is the canonical identity key; the IP fingerprint is a
// unique secondary lookup for tokenless first contacts.
type Client struct {
	ID           uuid.UUID
	SessionToken string
	IPHash       string
	UserAgent    string
	CreatedAt    time.Time
	LastActive   time.Time
}

// AnonymousID is the opaque identifier shown back to the client. It never
// exposes the session token or the full fingerprint.
func (c *Client) AnonymousID() string {
	hash := c.IPHash
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return fmt.Sprintf("client_%s_%s", c.ID.String()[:8], hash)
}

// MaskedFingerprint returns the leading bytes of the IP hash for display.
func (c *Client) MaskedFingerprint() string {
	if len(c.IPHash) <= 8 {
		return c.IPHash
	}
	return c.IPHash[:8] + "..."
}

// Product is immutable from the core's perspective except for stock,
// which order creation decrements and cancellation restores.
type Product struct {
	ID            uuid.UUID
	Name          string
	Description   string
	Price         decimal.Decimal
	PriceBTC      decimal.Decimal
	StockQuantity int
	MaxPerOrder   int
	IsActive      bool
	CreatedAt     time.Time
}

// Cart is the single active item container for a client. At most one cart
// per client has IsActive set; order creation deactivates it and provisions
// a replacement, it is never reactivated.
type Cart struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine is a cart entry joined with the product fields needed for
// totals and order snapshots.
type CartLine struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	UnitBTC     decimal.Decimal
}

// CartTotals carries the exact decimal totals of a cart. ItemCount is the
// sum of quantities across entries, zero for an empty cart.
type CartTotals struct {
	ItemCount int
	Total     decimal.Decimal
	TotalBTC  decimal.Decimal
}

// OrderStatus is the fixed order state machine:
// pending -> confirmed -> shipped -> delivered, cancelled from pending.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Order is created atomically from a non-empty cart. Identifying fields
// and line items are immutable after creation; only status and the payment
// fields change.
type Order struct {
	ID               uuid.UUID
	Number           uuid.UUID
	ClientID         uuid.UUID
	Status           OrderStatus
	DeliveryOption   string
	Total            decimal.Decimal
	TotalBTC         decimal.Decimal
	AmountSats       int64
	BitcoinAddress   string
	TxRef            string
	PaymentConfirmed bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ExpiresAt        time.Time
}

// PaymentURI renders the BIP21 payment URI for the order.
func (o *Order) PaymentURI() string {
	return fmt.Sprintf("bitcoin:%s?amount=%s", o.BitcoinAddress, o.TotalBTC.String())
}

// Expired reports whether the advisory payment window has passed. It is
// checked lazily on status reads, never enforced by a sweeper.
func (o *Order) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// OrderItem snapshots one cart entry with the prices at the moment of
// order, independent of later product price changes.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	UnitBTC     decimal.Decimal
}

// Total is the exact fiat line total.
func (i *OrderItem) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TotalBTC is the exact Bitcoin line total.
func (i *OrderItem) TotalBTC() decimal.Decimal {
	return i.UnitBTC.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// EncryptedMessage is a time-limited note attached to exactly one order
// and its owning client. Ciphertext holds the AES-GCM sealed content;
// expiry is advisory metadata.
type EncryptedMessage struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ClientID    uuid.UUID
	MessageType string
	Ciphertext  string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the message's advisory validity window passed.
func (m *EncryptedMessage) Expired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}
