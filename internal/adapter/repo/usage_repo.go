package repo

import (
	"context"
	"fmt"

	"plantshot/internal/infra"
	"plantshot/internal/sqlinline"
	"plantshot/internal/usage"
)

// UsageRepositoryPG implements usage.Backend on the usage_periods table.
type UsageRepositoryPG struct {
	db infra.SQLExecutor
}

var _ usage.Backend = (*UsageRepositoryPG)(nil)

func NewUsageRepository(db infra.SQLExecutor) *UsageRepositoryPG {
	return &UsageRepositoryPG{db: db}
}

// Reserve runs the conditional upsert. The counter only moves when the new
// total stays within the organization's limit.
func (r *UsageRepositoryPG) Reserve(ctx context.Context, organizationID, period string, n int) (usage.BackendResult, error) {
	var (
		res   usage.BackendResult
		limit *int32
	)
	if err := r.db.QueryRow(ctx, sqlinline.QReserveUsage, organizationID, period, n).Scan(&res.Allowed, &res.Used, &limit); err != nil {
		return usage.BackendResult{}, fmt.Errorf("reserve usage: %w", err)
	}
	if limit != nil {
		v := int(*limit)
		res.Limit = &v
	}
	return res, nil
}

func (r *UsageRepositoryPG) Release(ctx context.Context, organizationID, period string, n int) error {
	if _, err := r.db.Exec(ctx, sqlinline.QReleaseUsage, organizationID, period, n); err != nil {
		return fmt.Errorf("release usage: %w", err)
	}
	return nil
}

func (r *UsageRepositoryPG) TrackUsage(ctx context.Context, organizationID, period string, succeeded, failed int) error {
	if _, err := r.db.Exec(ctx, sqlinline.QTrackUsage, organizationID, period, succeeded, failed); err != nil {
		return fmt.Errorf("track usage: %w", err)
	}
	return nil
}
