// Package guard keeps an organization to one generation batch at a time.
package guard

import (
	"context"

	"plantshot/internal/infra"
)

// ActiveJobLookup reports whether an organization has a batch in progress.
type ActiveJobLookup interface {
	HasActiveJob(ctx context.Context, organizationID string) (bool, error)
}

// Check is the outcome of a guard lookup. When Err is set the lookup failed and
// Active is false so the caller proceeds.
type Check struct {
	Active bool
	Err    error
}

// FailedOpen reports whether the check permitted the request because the
// lookup failed.
func (c Check) FailedOpen() bool {
	return c.Err != nil
}

type Guard struct {
	lookup ActiveJobLookup
	logger *infra.Logger
}

func New(lookup ActiveJobLookup, logger *infra.Logger) *Guard {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Guard{lookup: lookup, logger: logger}
}

func (g *Guard) Check(ctx context.Context, organizationID string) Check {
	active, err := g.lookup.HasActiveJob(ctx, organizationID)
	if err != nil {
		g.logger.Error().
			Err(err).
			Str("organization_id", organizationID).
			Msg("guard: active batch lookup failed; allowing request")
		return Check{Err: err}
	}
	return Check{Active: active}
}

// HasActiveBatch is Check reduced to a boolean.
func (g *Guard) HasActiveBatch(ctx context.Context, organizationID string) bool {
	return g.Check(ctx, organizationID).Active
}
