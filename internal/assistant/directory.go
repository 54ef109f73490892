// ABOUTME: Admin user directory listing every user and their uploaded PDFs
// ABOUTME: Results are cached per admin with go-cache and invalidated by uploads and logout

package assistant

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/2389/bank-assistant/internal/api"
)

// ListUsers returns the managed users. Admin only. A cached list is reused
// unless refresh is set.
func (o *Orchestrator) ListUsers(ctx context.Context, refresh bool) ([]api.ManagedUser, error) {
	o.mu.Lock()
	id, gen, ok := o.currentLocked()
	o.mu.Unlock()

	if !ok {
		return nil, ErrNotAuthenticated
	}
	if !id.IsPrivileged {
		return nil, ErrNotPrivileged
	}

	if !refresh {
		if v, found := o.directory.Get(id.Username); found {
			return v.([]api.ManagedUser), nil
		}
	}

	users, err := o.backend.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	o.mu.Lock()
	if o.generation == gen {
		o.directory.Set(id.Username, users, cache.DefaultExpiration)
	}
	o.mu.Unlock()

	return users, nil
}
