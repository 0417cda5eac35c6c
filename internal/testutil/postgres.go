package testutil

import (
	"context"
	"sync"

	"github.com/packlane/packlane/internal/postgres"
)

// MockPostgresClient satisfies postgres.IClient without a database.
// The in-memory stores are individually atomic, so the transaction is
// just the function call.
type MockPostgresClient struct{}

var _ postgres.IClient = (*MockPostgresClient)(nil)

func NewMockPostgresClient() *MockPostgresClient {
	return &MockPostgresClient{}
}

func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// RollbackPostgresClient satisfies postgres.IClient on top of the
// in-memory package store and restores it when the closure fails.
// Nested calls join the outermost transaction, matching the savepoint
// behaviour of the real client closely enough for rollback assertions.
type RollbackPostgresClient struct {
	packages *InMemoryPackageStore

	mu    sync.Mutex
	depth int
	state *packageStoreState
}

var _ postgres.IClient = (*RollbackPostgresClient)(nil)

func NewRollbackPostgresClient(packages *InMemoryPackageStore) *RollbackPostgresClient {
	return &RollbackPostgresClient{packages: packages}
}

func (c *RollbackPostgresClient) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	c.mu.Lock()
	if c.depth == 0 {
		c.state = c.packages.snapshot()
	}
	c.depth++
	c.mu.Unlock()

	err := fn(ctx)

	c.mu.Lock()
	c.depth--
	if c.depth == 0 {
		if err != nil {
			c.packages.restore(c.state)
		}
		c.state = nil
	}
	c.mu.Unlock()
	return err
}
