package order

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oniongate/satstore/internal/core/domain"
)

// MockOracle confirms payment once a fixed duration has elapsed since
// order creation. It stands in for on-chain verification in development
// and tests; the reference it fabricates is derived from the order number
// so repeated checks agree.
type MockOracle struct {
	ConfirmAfter time.Duration
	Now          func() time.Time
}

func NewMockOracle(confirmAfter time.Duration) *MockOracle {
	return &MockOracle{ConfirmAfter: confirmAfter, Now: time.Now}
}

func (o *MockOracle) Confirmed(_ context.Context, ord *domain.Order) (bool, string, error) {
	now := o.Now
	if now == nil {
		now = time.Now
	}
	if now().Sub(ord.CreatedAt) < o.ConfirmAfter {
		return false, "", nil
	}
	sum := sha256.Sum256(ord.Number[:])
	return true, "mock_tx_" + hex.EncodeToString(sum[:16]), nil
}
