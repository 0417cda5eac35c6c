package testutil

import (
	"context"

	"github.com/packlane/packlane/internal/types"
)

// SetupContext returns a context carrying the default tenant and user,
// the way the request middleware would populate it.
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, types.CtxTenantID, types.DefaultTenantID)
	ctx = context.WithValue(ctx, types.CtxUserID, types.DefaultUserID)
	return ctx
}
