// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the engine from
// concrete persistence and caching implementations.
package port

import "context"

// Collection names understood by the persistence collaborator. All
// collections are keyed by entity id except budgets (keyed by category id)
// and system entries (keyed by name).
const (
	ColAccounts     = "accounts"
	ColCategories   = "categories"
	ColTransactions = "transactions"
	ColGoals        = "goals"
	ColBudgets      = "budgets"
	ColSystem       = "system"
)

// Persistence is the durable document store behind the entity store. Items
// travel as raw JSON so the adapter stays schema-agnostic. Implementations
// must make Put/Delete durable before returning: the engine only mutates
// its in-memory state after the write succeeds.
type Persistence interface {
	// GetAll returns every item in a collection.
	GetAll(ctx context.Context, collection string) ([][]byte, error)
	// Get returns one item by key, or (nil, nil) when absent.
	Get(ctx context.Context, collection, key string) ([]byte, error)
	// Put inserts or replaces the item under key.
	Put(ctx context.Context, collection, key string, item []byte) error
	// Delete removes the item under key. Deleting an absent key is not an error.
	Delete(ctx context.Context, collection, key string) error
	// Clear removes every item in a collection.
	Clear(ctx context.Context, collection string) error
	// ReplaceAll atomically swaps a collection's contents. keys[i] is the
	// key for items[i].
	ReplaceAll(ctx context.Context, collection string, items [][]byte, keys []string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Flush()
}
