// Package admin provides administrative operations on the record store.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/qbank/internal/core"
	"github.com/JonMunkholm/qbank/internal/logging"
)

// ResetTimeout is the maximum duration for a store reset.
const ResetTimeout = 30 * time.Second

// ResetResult reports how many records a reset removed.
type ResetResult struct {
	Before int64 `json:"before"`
	After  int64 `json:"after"`
}

// Resetter empties the configured collection.
type Resetter struct {
	Store   core.Store
	Timeout time.Duration
}

// ResetAll deletes every record of the collection and counts what is left.
// This is a destructive operation.
func (r *Resetter) ResetAll(ctx context.Context) (ResetResult, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = ResetTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res ResetResult
	for _, step := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"count before reset", func(ctx context.Context) (err error) {
			res.Before, err = r.Store.Count(ctx)
			return err
		}},
		{"reset", r.Store.Reset},
		{"count after reset", func(ctx context.Context) (err error) {
			res.After, err = r.Store.Count(ctx)
			return err
		}},
	} {
		if err := step.fn(ctx); err != nil {
			return res, fmt.Errorf("%s: %w", step.name, err)
		}
	}

	logging.FromContext(ctx).Warn("store reset", "removed", res.Before-res.After, "remaining", res.After)
	return res, nil
}
