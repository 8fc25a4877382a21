// Package identity maps inbound requests to durable pseudonymous client
// records without ever storing a raw IP address.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oniongate/satstore/internal/core/domain"
	"github.com/oniongate/satstore/internal/core/ports"
)

// ReverseLookup resolves PTR records for an IP. Injected so tests can stub
// the network.
type ReverseLookup func(ctx context.Context, ip string) ([]string, error)

// Resolver implements the anonymous identity contract: session token
// first, IP fingerprint second, lazy creation on first contact.
type Resolver struct {
	clients ports.ClientRepository
	lookup  ReverseLookup
	now     func() time.Time
}

func NewResolver(clients ports.ClientRepository) *Resolver {
	return &Resolver{
		clients: clients,
		lookup: func(ctx context.Context, ip string) ([]string, error) {
			return net.DefaultResolver.LookupAddr(ctx, ip)
		},
		now: time.Now,
	}
}

// WithLookup overrides the reverse-DNS lookup, for tests.
func (r *Resolver) WithLookup(lookup ReverseLookup) *Resolver {
	r.lookup = lookup
	return r
}

// WithClock overrides the clock, for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// HashIP derives the one-way fingerprint used as a lookup key in place of
// the raw address.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

// NewSessionToken generates an unguessable session token.
func NewSessionToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

// Resolve returns the client for the request, creating one on first
// contact. Lookup order: session token, then IP fingerprint, then a new
// record with a freshly generated token. Every successful resolution bumps
// last-active. Persistence failures propagate untranslated.
func (r *Resolver) Resolve(ctx context.Context, token, ip, userAgent string) (*domain.Client, error) {
	if token != "" {
		client, err := r.clients.GetBySessionToken(ctx, token)
		if err == nil {
			return r.touch(ctx, client)
		}
		if !domain.IsNotFound(err) {
			return nil, err
		}
	}

	ipHash := HashIP(ip)
	client, err := r.clients.GetByIPHash(ctx, ipHash)
	if err == nil {
		return r.touch(ctx, client)
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	freshToken, err := NewSessionToken()
	if err != nil {
		return nil, err
	}
	now := r.now()
	client = &domain.Client{
		ID:           uuid.New(),
		SessionToken: freshToken,
		IPHash:       ipHash,
		UserAgent:    userAgent,
		CreatedAt:    now,
		LastActive:   now,
	}
	if createErr := r.clients.Create(ctx, client); createErr != nil {
		// Two first contacts from the same IP can race past the miss; the
		// loser trips the ip_hash unique constraint. Re-check the
		// fingerprint and adopt the winner's record.
		client, err = r.clients.GetByIPHash(ctx, ipHash)
		if err != nil {
			return nil, createErr
		}
		return r.touch(ctx, client)
	}
	return client, nil
}

func (r *Resolver) touch(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	now := r.now()
	if err := r.clients.TouchLastActive(ctx, client.ID, now); err != nil {
		return nil, err
	}
	client.LastActive = now
	return client, nil
}

// TorExitLikely is a best-effort reverse-DNS heuristic for whether the IP
// looks like a Tor exit node. Not authoritative; failures read as false.
func (r *Resolver) TorExitLikely(ctx context.Context, ip string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	names, err := r.lookup(ctx, ip)
	if err != nil {
		return false
	}
	for _, name := range names {
		host := strings.ToLower(name)
		if strings.Contains(host, "tor-exit") || strings.Contains(host, "torexit") ||
			strings.Contains(host, ".tor.") || strings.Contains(host, "exit-node") {
			return true
		}
	}
	return false
}
