package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"plantshot/internal/adapter/repo"
	"plantshot/internal/infra"
)

func main() {
	var (
		idFlag        string
		limitFlag     int
		unlimitedFlag bool
	)

	flag.StringVar(&idFlag, "id", "", "organization ID to update (UUID)")
	flag.IntVar(&limitFlag, "limit", -1, "monthly photo limit to enforce")
	flag.BoolVar(&unlimitedFlag, "unlimited", false, "remove the monthly photo limit")
	flag.Parse()

	orgID := strings.TrimSpace(idFlag)
	if _, err := uuid.Parse(orgID); err != nil {
		exitWithError(errors.New("-id must be a valid UUID"))
	}
	if unlimitedFlag == (limitFlag >= 0) {
		exitWithError(errors.New("exactly one of -limit or -unlimited must be provided"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "orgplan").Logger()
	orgs := repo.NewOrganizationRepository(infra.NewSQLRunner(pool, logger))

	before, err := orgs.GetByID(ctx, orgID)
	if err != nil {
		exitWithError(fmt.Errorf("failed to load organization: %w", err))
	}

	var limit *int
	if !unlimitedFlag {
		limit = &limitFlag
	}
	if err := orgs.SetPhotoLimit(ctx, orgID, limit); err != nil {
		exitWithError(fmt.Errorf("failed to update photo limit: %w", err))
	}

	fmt.Printf("Organization %s (%s)\n", before.ID, before.Name)
	fmt.Printf("photo_limit: %s -> %s\n", describeLimit(before.PhotoLimit), describeLimit(limit))
}

func describeLimit(limit *int) string {
	if limit == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%d per month", *limit)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
