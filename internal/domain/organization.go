package domain

import "time"

// Organization is the tenant that owns products, jobs and the monthly photo quota.
type Organization struct {
	ID         string
	Name       string
	PhotoLimit *int // nil means unlimited
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Unlimited reports whether the organization has no monthly photo ceiling.
func (o Organization) Unlimited() bool {
	return o.PhotoLimit == nil
}
