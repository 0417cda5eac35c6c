package client

import (
	"context"

	"github.com/packlane/packlane/internal/types"
)

// Repository defines the interface for client lookups
type Repository interface {
	Create(ctx context.Context, c *Client) error
	Get(ctx context.Context, id string) (*Client, error)
	List(ctx context.Context, filter *types.QueryFilter) ([]*Client, error)
	Update(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id string) error
}
