package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"plantshot/internal/domain"
	"plantshot/internal/sqlinline"
)

func TestUsageReserveScansLimit(t *testing.T) {
	limit := int32(10)
	db := &stubExecutor{rows: []stubRow{{values: []any{true, 6, &limit}}}}
	res, err := NewUsageRepository(db).Reserve(context.Background(), "org", "2026-05", 6)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !res.Allowed || res.Used != 6 || res.Limit == nil || *res.Limit != 10 {
		t.Fatalf("result = %+v", res)
	}
	call := db.calls[0]
	if call.query != sqlinline.QReserveUsage || call.args[0] != "org" || call.args[1] != "2026-05" || call.args[2] != 6 {
		t.Fatalf("call = %+v", call)
	}
}

func TestUsageReserveUnlimited(t *testing.T) {
	db := &stubExecutor{rows: []stubRow{{values: []any{true, 40, nil}}}}
	res, err := NewUsageRepository(db).Reserve(context.Background(), "org", "2026-05", 4)
	if err != nil || res.Limit != nil {
		t.Fatalf("result = %+v err = %v", res, err)
	}
}

func TestUsageReserveWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	db := &stubExecutor{rows: []stubRow{{err: boom}}}
	if _, err := NewUsageRepository(db).Reserve(context.Background(), "org", "2026-05", 1); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestUsageReleaseAndTrack(t *testing.T) {
	db := &stubExecutor{}
	repo := NewUsageRepository(db)
	if err := repo.Release(context.Background(), "org", "2026-05", 2); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := repo.TrackUsage(context.Background(), "org", "2026-05", 3, 1); err != nil {
		t.Fatalf("TrackUsage: %v", err)
	}
	if db.calls[0].query != sqlinline.QReleaseUsage || db.calls[1].query != sqlinline.QTrackUsage {
		t.Fatalf("unexpected queries")
	}
	if db.calls[1].args[2] != 3 || db.calls[1].args[3] != 1 {
		t.Fatalf("track args = %v", db.calls[1].args)
	}
}

func TestOrganizationSetPhotoLimit(t *testing.T) {
	tests := []struct {
		name    string
		limit   *int
		tag     pgconn.CommandTag
		wantErr error
	}{
		{name: "limited", limit: intPtr(50), tag: pgconn.NewCommandTag("UPDATE 1")},
		{name: "unlimited", limit: nil, tag: pgconn.NewCommandTag("UPDATE 1")},
		{name: "missing org", limit: intPtr(5), tag: pgconn.NewCommandTag("UPDATE 0"), wantErr: domain.ErrNotFound},
		{name: "negative", limit: intPtr(-1), wantErr: domain.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &stubExecutor{tag: tt.tag}
			err := NewOrganizationRepository(db).SetPhotoLimit(context.Background(), "org", tt.limit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetPhotoLimit: %v", err)
			}
		})
	}
}

func TestOrganizationGetByID(t *testing.T) {
	db := &stubExecutor{}
	if _, err := NewOrganizationRepository(db).GetByID(context.Background(), "org"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func intPtr(v int) *int { return &v }
