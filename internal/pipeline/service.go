package pipeline

import (
	"context"
	"fmt"

	"plantshot/internal/domain"
	"plantshot/internal/guard"
	"plantshot/internal/infra"
	"plantshot/internal/usage"
)

// Admission is a granted batch slot. Settle must be called once the batch
// has run so unused units return to the quota.
type Admission struct {
	OrganizationID string
	Units          int
	Reservation    usage.Reservation
}

// Service puts the guard and the usage ledger in front of the orchestrator.
type Service struct {
	orchestrator *Orchestrator
	guard        *guard.Guard
	ledger       *usage.Ledger
	logger       *infra.Logger
}

func NewService(o *Orchestrator, g *guard.Guard, l *usage.Ledger, logger *infra.Logger) *Service {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Service{orchestrator: o, guard: g, ledger: l, logger: logger}
}

// Admit checks for an active batch and then reserves units. A busy
// organization is rejected before the ledger is touched.
func (s *Service) Admit(ctx context.Context, organizationID string, units int) (*Admission, error) {
	if s.guard.Check(ctx, organizationID).Active {
		return nil, domain.ErrBatchActive
	}
	return s.reserve(ctx, organizationID, units)
}

func (s *Service) reserve(ctx context.Context, organizationID string, units int) (*Admission, error) {
	res := s.ledger.Reserve(ctx, organizationID, units)
	if !res.Allowed {
		remaining := 0
		if res.Remaining != nil {
			remaining = *res.Remaining
		}
		return nil, fmt.Errorf("%w: %d requested, %d remaining this period", domain.ErrQuotaExceeded, units, remaining)
	}
	if res.Outcome == usage.OutcomeFailedOpen {
		s.logger.Warn().Str("organization_id", organizationID).Msg("pipeline: admitted without usage reservation")
	}
	return &Admission{OrganizationID: organizationID, Units: units, Reservation: res}, nil
}

// Settle releases the units that did not produce an image. Nothing is
// released when the reservation failed open since nothing was reserved.
func (s *Service) Settle(ctx context.Context, a *Admission, succeeded int) {
	if a == nil || a.Reservation.Outcome != usage.OutcomeGranted {
		return
	}
	if shortfall := a.Units - succeeded; shortfall > 0 {
		s.ledger.Release(ctx, a.OrganizationID, shortfall)
	}
}

// Validate exposes request validation so callers can reject early.
func (s *Service) Validate(req Request) error {
	return s.orchestrator.Validate(req)
}

// Generate validates, admits, runs and settles a batch in one call.
func (s *Service) Generate(ctx context.Context, req Request) ([]Job, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	a, err := s.Admit(ctx, req.OrganizationID, len(req.ImageTypes))
	if err != nil {
		return nil, err
	}
	return s.RunAdmitted(ctx, a, req)
}

// RunAdmitted runs a batch that already holds an Admission.
func (s *Service) RunAdmitted(ctx context.Context, a *Admission, req Request) ([]Job, error) {
	jobs, err := s.orchestrator.Run(ctx, req)
	succeeded, _ := Tally(jobs)
	s.Settle(ctx, a, succeeded)
	return jobs, err
}

// Regenerate reserves one unit and runs a single-image job. It does not take
// the organization's batch slot, so it runs alongside an active batch and does
// not block the next one.
func (s *Service) Regenerate(ctx context.Context, req RegenerateRequest) (Job, error) {
	if err := s.orchestrator.validateRegenerate(req); err != nil {
		return Job{}, err
	}
	a, err := s.reserve(ctx, req.OrganizationID, 1)
	if err != nil {
		return Job{}, err
	}
	job, err := s.orchestrator.Regenerate(ctx, req)
	succeeded := 0
	if job.Status == JobCompleted {
		succeeded = 1
	}
	s.Settle(ctx, a, succeeded)
	return job, err
}
