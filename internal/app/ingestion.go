package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"review_action/internal/adapters/csvio"
	"review_action/internal/adapters/observability"
	"review_action/internal/domain"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
	// DefaultImportLimit caps one provider import when the caller passes 0.
	DefaultImportLimit = 200
)

// IngestReport tells the caller what an ingestion actually wrote.
type IngestReport struct {
	Inserted int                `json:"inserted"`
	Skipped  []csvio.SkippedRow `json:"skipped"`
}

type IngestionService struct {
	repo   domain.ReviewRepository
	source domain.ReviewSource
	cache  domain.Cache
}

// NewIngestionService wires the store; source and cache may be nil.
func NewIngestionService(r domain.ReviewRepository, src domain.ReviewSource, cache domain.Cache) *IngestionService {
	return &IngestionService{repo: r, source: src, cache: cache}
}

// IngestCSV parses an upload and stores every row with text. A malformed file
// writes nothing.
func (s *IngestionService) IngestCSV(ctx context.Context, tenant string, r io.Reader) (IngestReport, error) {
	if err := requireTenant(tenant); err != nil {
		return IngestReport{}, err
	}
	rows, skipped, err := csvio.ParseReviews(r)
	if err != nil {
		return IngestReport{}, err
	}
	rep := IngestReport{Skipped: skipped}
	if rep.Skipped == nil {
		rep.Skipped = []csvio.SkippedRow{}
	}
	rep.Inserted, err = s.store(ctx, tenant, "csv", rows)
	if err != nil {
		return IngestReport{}, err
	}
	log.Info().Str("tenant", tenant).Int("reviews", rep.Inserted).Int("skipped", len(skipped)).Msg("csv ingested")
	return rep, nil
}

// IngestText stores one review per non-blank line.
func (s *IngestionService) IngestText(ctx context.Context, tenant, text string) (IngestReport, error) {
	if err := requireTenant(tenant); err != nil {
		return IngestReport{}, err
	}
	rows := csvio.ParseText(text)
	if len(rows) == 0 {
		return IngestReport{}, fmt.Errorf("%w: no review text", domain.ErrInvalidInput)
	}
	n, err := s.store(ctx, tenant, "text", rows)
	if err != nil {
		return IngestReport{}, err
	}
	log.Info().Str("tenant", tenant).Int("reviews", n).Msg("text ingested")
	return IngestReport{Inserted: n, Skipped: []csvio.SkippedRow{}}, nil
}

// ImportPlace pulls public reviews of a place from the provider. Reviews the
// tenant already holds (same source id) are not inserted again.
func (s *IngestionService) ImportPlace(ctx context.Context, tenant, placeID string, limit int) (IngestReport, error) {
	if err := requireTenant(tenant); err != nil {
		return IngestReport{}, err
	}
	if s.source == nil {
		return IngestReport{}, fmt.Errorf("%w: review provider not configured", domain.ErrInvalidInput)
	}
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return IngestReport{}, fmt.Errorf("%w: empty place id", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultImportLimit
	}

	raw, err := s.source.FetchReviews(ctx, placeID, limit)
	if err != nil {
		return IngestReport{}, fmt.Errorf("fetch reviews for %s: %w", placeID, err)
	}
	rows, dropped := mapProviderReviews(placeID, raw)
	n, err := s.store(ctx, tenant, "serpapi", rows)
	if err != nil {
		return IngestReport{}, err
	}
	rep := IngestReport{Inserted: n, Skipped: []csvio.SkippedRow{}}
	if dropped > 0 {
		log.Warn().Str("tenant", tenant).Str("place", placeID).Int("dropped", dropped).Msg("provider reviews without text")
	}
	log.Info().Str("tenant", tenant).Str("place", placeID).
		Int("fetched", len(raw)).Int("reviews", n).Msg("place imported")
	return rep, nil
}

// DeleteAll removes every review of the tenant.
func (s *IngestionService) DeleteAll(ctx context.Context, tenant string) (int64, error) {
	if err := requireTenant(tenant); err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteReviews(ctx, tenant)
	if err != nil {
		return 0, fmt.Errorf("delete reviews: %w", err)
	}
	s.invalidate(ctx, tenant)
	log.Info().Str("tenant", tenant).Int64("reviews", n).Msg("reviews deleted")
	return n, nil
}

// ListReviews returns stored reviews, newest first. limit 0 means the default.
func (s *IngestionService) ListReviews(ctx context.Context, tenant string, limit int) (domain.ReviewsPage, error) {
	if err := requireTenant(tenant); err != nil {
		return domain.ReviewsPage{}, err
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit < 1 || limit > MaxListLimit {
		return domain.ReviewsPage{}, fmt.Errorf("%w: limit must be 1..%d", domain.ErrInvalidInput, MaxListLimit)
	}
	return s.repo.ListReviews(ctx, tenant, limit)
}

func (s *IngestionService) store(ctx context.Context, tenant, source string, rows []domain.ReviewInput) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := s.repo.InsertReviews(ctx, tenant, rows)
	if err != nil {
		return 0, fmt.Errorf("insert reviews: %w", err)
	}
	observability.ObserveIngest(source, n)
	if n > 0 {
		s.invalidate(ctx, tenant)
	}
	return n, nil
}

// invalidate drops cached analyses so the next view recomputes.
func (s *IngestionService) invalidate(ctx context.Context, tenant string) {
	if s.cache == nil {
		return
	}
	if err := bumpGeneration(ctx, s.cache, tenant); err != nil {
		log.Warn().Err(err).Str("tenant", tenant).Msg("analysis cache invalidation failed")
	}
}

func requireTenant(tenant string) error {
	if strings.TrimSpace(tenant) == "" {
		return fmt.Errorf("%w: missing tenant", domain.ErrUnauthorized)
	}
	return nil
}
