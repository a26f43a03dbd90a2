package domain

import "context"

type ReviewRepository interface {
	// Write paths
	InsertReviews(ctx context.Context, tenantID string, rows []ReviewInput) (int, error)
	UpdateScores(ctx context.Context, tenantID string, scores []ReviewScore) error
	DeleteReviews(ctx context.Context, tenantID string) (int64, error)

	// Read paths; every query is scoped to tenantID.
	GetReviews(ctx context.Context, tenantID string) ([]Review, error)
	ListReviews(ctx context.Context, tenantID string, limit int) (ReviewsPage, error)
}

type TenantRepository interface {
	CreateTenant(ctx context.Context, t Tenant) error
	GetTenant(ctx context.Context, businessID string) (Tenant, error)
}

// ReviewSource is a remote provider of public reviews for a place.
type ReviewSource interface {
	FetchReviews(ctx context.Context, placeID string, limit int) ([]map[string]any, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, keys ...string) error
}
