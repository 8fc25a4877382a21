package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oniongate/satstore/internal/core/domain"
	"github.com/oniongate/satstore/internal/core/ports"
)

// MemoryStore is an in-memory implementation of every repository port,
// mirroring the transactional semantics of the Postgres adapter under a
// single mutex. It backs the service tests; nothing in production wires it.
type MemoryStore struct {
	mu        sync.Mutex
	clients   map[uuid.UUID]*domain.Client
	products  map[uuid.UUID]*domain.Product
	carts     map[uuid.UUID]*domain.Cart
	cartItems map[uuid.UUID]map[uuid.UUID]int // cart id -> product id -> quantity
	cartOrder map[uuid.UUID][]uuid.UUID       // cart id -> product insertion order
	orders    map[uuid.UUID]*domain.Order
	items     map[uuid.UUID][]domain.OrderItem // order id -> items
	messages  map[uuid.UUID]*domain.EncryptedMessage
	responses map[idemKey]idemResponse
}

type idemKey struct {
	clientID uuid.UUID
	key      string
}

type idemResponse struct {
	status int
	body   []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:   make(map[uuid.UUID]*domain.Client),
		products:  make(map[uuid.UUID]*domain.Product),
		carts:     make(map[uuid.UUID]*domain.Cart),
		cartItems: make(map[uuid.UUID]map[uuid.UUID]int),
		cartOrder: make(map[uuid.UUID][]uuid.UUID),
		orders:    make(map[uuid.UUID]*domain.Order),
		items:     make(map[uuid.UUID][]domain.OrderItem),
		messages:  make(map[uuid.UUID]*domain.EncryptedMessage),
		responses: make(map[idemKey]idemResponse),
	}
}

// SeedProduct inserts a catalog entry, for tests.
func (s *MemoryStore) SeedProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := p
	s.products[p.ID] = &copied
}

// ProductStock reports current stock, for test assertions.
func (s *MemoryStore) ProductStock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		return p.StockQuantity
	}
	return 0
}

// MessageCount reports how many messages are stored, for test assertions.
func (s *MemoryStore) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// OrderCount reports how many orders exist, for test assertions.
func (s *MemoryStore) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// ActiveCarts returns the ids of the client's active carts, for test
// assertions on the one-active-cart invariant.
func (s *MemoryStore) ActiveCarts(clientID uuid.UUID) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, c := range s.carts {
		if c.ClientID == clientID && c.IsActive {
			ids = append(ids, id)
		}
	}
	return ids
}

// --- ClientRepository ---

func (s *MemoryStore) GetBySessionToken(_ context.Context, token string) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.SessionToken == token {
			copied := *c
			return &copied, nil
		}
	}
	return nil, domain.NotFound("client")
}

func (s *MemoryStore) GetByIPHash(_ context.Context, ipHash string) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.IPHash == ipHash {
			copied := *c
			return &copied, nil
		}
	}
	return nil, domain.NotFound("client")
}

func (s *MemoryStore) Create(_ context.Context, client *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *client
	s.clients[client.ID] = &copied
	return nil
}

func (s *MemoryStore) TouchLastActive(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[id]; ok {
		c.LastActive = at
	}
	return nil
}

// --- ProductRepository ---

func (s *MemoryStore) ListActive(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var products []domain.Product
	for _, p := range s.products {
		if p.IsActive {
			products = append(products, *p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.NotFound("product")
	}
	copied := *p
	return &copied, nil
}

// --- CartRepository ---

func (s *MemoryStore) EnsureActiveCart(_ context.Context, clientID uuid.UUID) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureActiveCartLocked(clientID), nil
}

func (s *MemoryStore) ensureActiveCartLocked(clientID uuid.UUID) *domain.Cart {
	for _, c := range s.carts {
		if c.ClientID == clientID && c.IsActive {
			copied := *c
			return &copied
		}
	}
	now := time.Now()
	c := &domain.Cart{
		ID:        uuid.New(),
		ClientID:  clientID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.carts[c.ID] = c
	s.cartItems[c.ID] = make(map[uuid.UUID]int)
	copied := *c
	return &copied
}

func (s *MemoryStore) Lines(_ context.Context, cartID uuid.UUID) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesLocked(cartID), nil
}

func (s *MemoryStore) linesLocked(cartID uuid.UUID) []domain.CartLine {
	var lines []domain.CartLine
	for _, productID := range s.cartOrder[cartID] {
		qty, ok := s.cartItems[cartID][productID]
		if !ok {
			continue
		}
		p := s.products[productID]
		lines = append(lines, domain.CartLine{
			ProductID:   productID,
			ProductName: p.Name,
			Quantity:    qty,
			UnitPrice:   p.Price,
			UnitBTC:     p.PriceBTC,
		})
	}
	return lines
}

func (s *MemoryStore) AddItem(_ context.Context, cartID, productID uuid.UUID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[cartID]
	if !ok {
		return domain.NotFound("cart")
	}
	if !c.IsActive {
		return domain.Validationf("cart is no longer active")
	}
	if _, exists := s.cartItems[cartID][productID]; !exists {
		s.cartOrder[cartID] = append(s.cartOrder[cartID], productID)
	}
	s.cartItems[cartID][productID] += quantity
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) RemoveItem(_ context.Context, cartID, productID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cartItems[cartID][productID]; !exists {
		return domain.NotFound("cart entry")
	}
	delete(s.cartItems[cartID], productID)
	// Drop the id from the insertion order too, or a later AddItem of the
	// same product would append a second entry.
	order := s.cartOrder[cartID]
	for i, id := range order {
		if id == productID {
			s.cartOrder[cartID] = append(order[:i], order[i+1:]...)
			break
		}
	}
	return nil
}

// --- OrderRepository ---

func (s *MemoryStore) CreateFromCart(_ context.Context, order *domain.Order, items []domain.OrderItem, cartID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[cartID]
	if !ok {
		return domain.NotFound("cart")
	}
	if !c.IsActive {
		return domain.Validationf("cart has already been checked out")
	}

	// Stock guard before any mutation so a failure leaves everything
	// untouched, matching the SQL transaction rollback.
	for _, item := range items {
		p, ok := s.products[item.ProductID]
		if !ok || p.StockQuantity < item.Quantity {
			name := item.ProductName
			return domain.Validationf("Not enough stock for %s", name)
		}
	}
	for _, item := range items {
		s.products[item.ProductID].StockQuantity -= item.Quantity
	}

	copied := *order
	s.orders[order.ID] = &copied
	s.items[order.ID] = append([]domain.OrderItem(nil), items...)

	c.IsActive = false
	s.ensureActiveCartLocked(order.ClientID)
	return nil
}

func (s *MemoryStore) GetByNumber(_ context.Context, number uuid.UUID) (*domain.Order, []domain.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.Number == number {
			copied := *o
			items := append([]domain.OrderItem(nil), s.items[o.ID]...)
			return &copied, items, nil
		}
	}
	return nil, nil, domain.NotFound("order")
}

func (s *MemoryStore) MarkConfirmed(_ context.Context, id uuid.UUID, txRef string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.NotFound("order")
	}
	if o.Status != domain.StatusPending {
		return nil
	}
	o.Status = domain.StatusConfirmed
	o.TxRef = txRef
	o.PaymentConfirmed = true
	o.UpdatedAt = at
	return nil
}

func (s *MemoryStore) Cancel(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.NotFound("order")
	}
	if o.Status != domain.StatusPending {
		return domain.Validationf("only pending orders can be cancelled")
	}
	o.Status = domain.StatusCancelled
	o.UpdatedAt = at
	for _, item := range s.items[id] {
		if p, ok := s.products[item.ProductID]; ok {
			p.StockQuantity += item.Quantity
		}
	}
	return nil
}

func (s *MemoryStore) ListPending(_ context.Context, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []domain.Order
	for _, o := range s.orders {
		if o.Status == domain.StatusPending {
			pending = append(pending, *o)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *MemoryStore) CountByClient(_ context.Context, clientID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, o := range s.orders {
		if o.ClientID == clientID {
			count++
		}
	}
	return count, nil
}

// --- MessageRepository ---

// Messages returns the MessageRepository view of the store. A separate
// view type because Create and GetByID would otherwise collide with the
// client and product methods.
func (s *MemoryStore) Messages() ports.MessageRepository {
	return memMessages{s: s}
}

type memMessages struct {
	s *MemoryStore
}

func (v memMessages) Create(ctx context.Context, msg *domain.EncryptedMessage) error {
	return v.s.CreateMessage(ctx, msg)
}

func (v memMessages) GetByID(ctx context.Context, id uuid.UUID) (*domain.EncryptedMessage, error) {
	return v.s.GetMessageByID(ctx, id)
}

func (s *MemoryStore) CreateMessage(_ context.Context, msg *domain.EncryptedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *msg
	s.messages[msg.ID] = &copied
	return nil
}

func (s *MemoryStore) GetMessageByID(_ context.Context, id uuid.UUID) (*domain.EncryptedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, domain.NotFound("message")
	}
	copied := *m
	return &copied, nil
}

// --- IdempotencyStore ---

func (s *MemoryStore) LookupResponse(_ context.Context, clientID uuid.UUID, key string) (int, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[idemKey{clientID, key}]
	if !ok {
		return 0, nil, domain.NotFound("idempotency key")
	}
	return r.status, append([]byte(nil), r.body...), nil
}

func (s *MemoryStore) SaveResponse(_ context.Context, clientID uuid.UUID, key string, status int, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey{clientID, key}
	if _, exists := s.responses[k]; exists {
		return nil
	}
	s.responses[k] = idemResponse{status: status, body: append([]byte(nil), body...)}
	return nil
}
