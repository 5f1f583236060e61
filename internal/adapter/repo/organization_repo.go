package repo

import (
	"context"
	"fmt"

	"plantshot/internal/domain"
	"plantshot/internal/infra"
	"plantshot/internal/sqlinline"
)

// OrganizationRepositoryPG implements domain.OrganizationRepository.
type OrganizationRepositoryPG struct {
	db infra.SQLExecutor
}

var _ domain.OrganizationRepository = (*OrganizationRepositoryPG)(nil)

func NewOrganizationRepository(db infra.SQLExecutor) *OrganizationRepositoryPG {
	return &OrganizationRepositoryPG{db: db}
}

func (r *OrganizationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	var (
		org   domain.Organization
		limit *int32
	)
	err := r.db.QueryRow(ctx, sqlinline.QSelectOrganization, id).Scan(
		&org.ID,
		&org.Name,
		&limit,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	if limit != nil {
		v := int(*limit)
		org.PhotoLimit = &v
	}
	return &org, nil
}

// SetPhotoLimit updates the monthly ceiling. nil removes it.
func (r *OrganizationRepositoryPG) SetPhotoLimit(ctx context.Context, id string, limit *int) error {
	if limit != nil && *limit < 0 {
		return fmt.Errorf("set photo limit: %w", domain.ErrInvalidRequest)
	}
	tag, err := r.db.Exec(ctx, sqlinline.QUpdateOrganizationPhotoLimit, id, limit)
	if err != nil {
		return fmt.Errorf("set photo limit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
