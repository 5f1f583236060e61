// Package usage meters generated images against an organization's monthly
// photo limit.
package usage

import (
	"context"
	"time"

	"plantshot/internal/infra"
)

// Outcome classifies a reservation.
type Outcome string

const (
	OutcomeGranted    Outcome = "granted"
	OutcomeDenied     Outcome = "denied"
	OutcomeFailedOpen Outcome = "failed-open"
)

// Reservation is the result of Reserve. A nil Limit means unlimited.
type Reservation struct {
	Allowed   bool
	Used      int
	Limit     *int
	Remaining *int
	Outcome   Outcome
	// Err holds the backend error when the reservation failed open.
	Err error
}

// BackendResult is what a Backend reports for an atomic reservation.
type BackendResult struct {
	Allowed bool
	Used    int
	Limit   *int
}

// Backend owns the counter. Reserve must increment and compare in one atomic
// step so concurrent callers never exceed the limit.
type Backend interface {
	Reserve(ctx context.Context, organizationID, period string, n int) (BackendResult, error)
	Release(ctx context.Context, organizationID, period string, n int) error
	TrackUsage(ctx context.Context, organizationID, period string, succeeded, failed int) error
}

// Ledger wraps a Backend with fail-open semantics and period bookkeeping.
type Ledger struct {
	backend Backend
	logger  *infra.Logger
	now     func() time.Time
}

// NewLedger constructs a Ledger. A nil logger discards output.
func NewLedger(backend Backend, logger *infra.Logger) *Ledger {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Ledger{backend: backend, logger: logger, now: time.Now}
}

// Period returns the billing period key for t.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Reserve claims n units for the current period. When the backend fails the
// reservation is allowed and tagged OutcomeFailedOpen.
func (l *Ledger) Reserve(ctx context.Context, organizationID string, n int) Reservation {
	if n <= 0 {
		return Reservation{Allowed: true, Outcome: OutcomeGranted}
	}
	res, err := l.backend.Reserve(ctx, organizationID, Period(l.now()), n)
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("organization_id", organizationID).
			Int("requested", n).
			Msg("usage: reserve failed; allowing request")
		return Reservation{Allowed: true, Outcome: OutcomeFailedOpen, Err: err}
	}

	out := Reservation{Allowed: res.Allowed, Used: res.Used, Limit: res.Limit, Outcome: OutcomeGranted}
	if !res.Allowed {
		out.Outcome = OutcomeDenied
	}
	if res.Limit != nil {
		remaining := *res.Limit - res.Used
		if remaining < 0 {
			remaining = 0
		}
		out.Remaining = &remaining
	}
	return out
}

// Release returns n previously reserved units. Errors are logged only.
func (l *Ledger) Release(ctx context.Context, organizationID string, n int) {
	if n <= 0 {
		return
	}
	if err := l.backend.Release(ctx, organizationID, Period(l.now()), n); err != nil {
		l.logger.Error().
			Err(err).
			Str("organization_id", organizationID).
			Int("released", n).
			Msg("usage: release failed")
	}
}

// Track records the billing outcome of a batch. Errors are logged only.
func (l *Ledger) Track(ctx context.Context, organizationID string, succeeded, failed int) {
	if succeeded <= 0 && failed <= 0 {
		return
	}
	if err := l.backend.TrackUsage(ctx, organizationID, Period(l.now()), succeeded, failed); err != nil {
		l.logger.Error().
			Err(err).
			Str("organization_id", organizationID).
			Int("succeeded", succeeded).
			Int("failed", failed).
			Msg("usage: track failed")
	}
}
