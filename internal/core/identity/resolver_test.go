package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oniongate/satstore/internal/adapter/storage"
	"github.com/oniongate/satstore/internal/core/domain"
)

func TestResolveCreatesClientOnFirstContact(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewResolver(store)

	client, err := r.Resolve(context.Background(), "", "203.0.113.7", "curl/8.0")
	require.NoError(t, err)
	require.NotEmpty(t, client.SessionToken)
	require.Equal(t, HashIP("203.0.113.7"), client.IPHash)
	require.Equal(t, "curl/8.0", client.UserAgent)
}

func TestResolveByToken(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewResolver(store)

	first, err := r.Resolve(context.Background(), "", "203.0.113.7", "")
	require.NoError(t, err)

	// Same token from a different IP must return the same client.
	second, err := r.Resolve(context.Background(), first.SessionToken, "198.51.100.1", "")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestResolveByIPHashWithoutToken(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewResolver(store)

	first, err := r.Resolve(context.Background(), "", "203.0.113.7", "")
	require.NoError(t, err)

	// No token, same IP: the fingerprint is the secondary key.
	second, err := r.Resolve(context.Background(), "", "203.0.113.7", "")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	// An unknown token with a known IP also falls back to the fingerprint.
	third, err := r.Resolve(context.Background(), "anon_unknown", "203.0.113.7", "")
	require.NoError(t, err)
	require.Equal(t, first.ID, third.ID)
}

func TestResolveBumpsLastActive(t *testing.T) {
	store := storage.NewMemoryStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	r := NewResolver(store).WithClock(func() time.Time { return current })

	client, err := r.Resolve(context.Background(), "", "203.0.113.7", "")
	require.NoError(t, err)
	require.Equal(t, base, client.LastActive)

	current = base.Add(time.Hour)
	client, err = r.Resolve(context.Background(), client.SessionToken, "203.0.113.7", "")
	require.NoError(t, err)
	require.Equal(t, base.Add(time.Hour), client.LastActive)
}

// racingClientRepo simulates a concurrent first contact: by the time this
// request's insert lands, another request has already created the record
// for the same IP and the insert trips the unique constraint.
type racingClientRepo struct {
	*storage.MemoryStore
	winner *domain.Client
}

func (r *racingClientRepo) Create(ctx context.Context, _ *domain.Client) error {
	_ = r.MemoryStore.Create(ctx, r.winner)
	return errors.New(`duplicate key value violates unique constraint "clients_ip_hash_key"`)
}

func TestResolveFirstContactRace(t *testing.T) {
	store := storage.NewMemoryStore()
	winner := &domain.Client{
		ID:           uuid.New(),
		SessionToken: "anon_winner",
		IPHash:       HashIP("203.0.113.7"),
	}
	r := NewResolver(&racingClientRepo{MemoryStore: store, winner: winner})

	// The loser of the race must adopt the winner's record, not 500.
	client, err := r.Resolve(context.Background(), "", "203.0.113.7", "")
	require.NoError(t, err)
	require.Equal(t, winner.ID, client.ID)
}

func TestSessionTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := NewSessionToken()
		require.NoError(t, err)
		require.False(t, seen[token])
		seen[token] = true
	}
}

func TestTorExitHeuristic(t *testing.T) {
	store := storage.NewMemoryStore()

	r := NewResolver(store).WithLookup(func(_ context.Context, _ string) ([]string, error) {
		return []string{"tor-exit-4.example.org."}, nil
	})
	require.True(t, r.TorExitLikely(context.Background(), "203.0.113.7"))

	r = NewResolver(store).WithLookup(func(_ context.Context, _ string) ([]string, error) {
		return []string{"dsl-customer.example.net."}, nil
	})
	require.False(t, r.TorExitLikely(context.Background(), "203.0.113.7"))

	r = NewResolver(store).WithLookup(func(_ context.Context, _ string) ([]string, error) {
		return nil, context.DeadlineExceeded
	})
	require.False(t, r.TorExitLikely(context.Background(), "203.0.113.7"))
}
