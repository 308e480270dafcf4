// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
)

// TransactionSource returns a read-only snapshot of a customer's wallet
// transactions. Implementations should apply the filter server-side when
// they can; callers may re-apply it.
type TransactionSource interface {
	ListTransactions(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error)
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Invalidator drops derived state for a customer when their transactions change.
type Invalidator interface {
	Invalidate(customerID string)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
