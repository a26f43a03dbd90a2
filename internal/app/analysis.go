package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"review_action/internal/adapters/observability"
	"review_action/internal/analysis/kmeans"
	"review_action/internal/analysis/priority"
	"review_action/internal/analysis/sentiment"
	"review_action/internal/analysis/textvec"
	"review_action/internal/domain"
)

const (
	DefaultClusters  = 6
	keywordsPerIssue = 8
	labelKeywords    = 3
	samplesPerIssue  = 3
)

// Options configures the issue pipeline.
type Options struct {
	K           int
	Seed        int64
	MaxFeatures int
	Weights     priority.Weights
	Actions     priority.ActionTable
}

func DefaultOptions() Options {
	return Options{
		K:           DefaultClusters,
		Seed:        kmeans.DefaultSeed,
		MaxFeatures: textvec.DefaultMaxFeatures,
		Weights:     priority.DefaultWeights(),
		Actions:     priority.DefaultActionTable(),
	}
}

// AnalysisService turns a tenant's stored reviews into a ranked issue list.
type AnalysisService struct {
	repo   domain.ReviewRepository
	cache  domain.Cache
	ttl    time.Duration
	opts   Options
	ranker *priority.Ranker
	scorer *sentiment.Scorer
	group  singleflight.Group
}

// NewAnalysisService validates opts. cache may be nil; ttl <= 0 disables
// result caching.
func NewAnalysisService(repo domain.ReviewRepository, cache domain.Cache, ttl time.Duration, opts Options) (*AnalysisService, error) {
	if opts.K == 0 {
		opts.K = DefaultClusters
	}
	if opts.K < 1 || opts.K > MaxClusters {
		return nil, fmt.Errorf("%w: clusters must be 1..%d", domain.ErrInvalidInput, MaxClusters)
	}
	ranker, err := priority.NewRanker(opts.Weights, opts.Actions)
	if err != nil {
		return nil, err
	}
	return &AnalysisService{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		opts:   opts,
		ranker: ranker,
		scorer: sentiment.New(),
	}, nil
}

// Analyze returns the ranked issues of tenant. k = 0 uses the configured
// default. Results are cached until the tenant's next write and concurrent
// identical calls share one pipeline run.
func (s *AnalysisService) Analyze(ctx context.Context, tenant string, k int) (domain.Analysis, error) {
	if err := requireTenant(tenant); err != nil {
		return domain.Analysis{}, err
	}
	if k == 0 {
		k = s.opts.K
	}
	if k < 1 || k > MaxClusters {
		return domain.Analysis{}, fmt.Errorf("%w: k must be 1..%d", domain.ErrInvalidInput, MaxClusters)
	}

	if !s.cacheEnabled() {
		v, err, _ := s.group.Do(analysisKey(tenant, "", k), func() (any, error) {
			return s.Run(ctx, tenant, k)
		})
		if err != nil {
			return domain.Analysis{}, err
		}
		return v.(domain.Analysis), nil
	}

	// The generation is read before the rows, so a write racing this run
	// leaves its result under a stale key.
	gen, err := generation(ctx, s.cache, tenant)
	if err != nil {
		log.Warn().Err(err).Str("tenant", tenant).Msg("analysis cache read failed")
		return s.Run(ctx, tenant, k)
	}
	key := analysisKey(tenant, gen, k)
	var cached domain.Analysis
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Warn().Err(err).Str("tenant", tenant).Msg("analysis cache read failed")
	} else if ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		a, err := s.Run(ctx, tenant, k)
		if err != nil {
			return domain.Analysis{}, err
		}
		if err := s.cache.Set(ctx, key, a, int(s.ttl.Seconds())); err != nil {
			log.Warn().Err(err).Str("tenant", tenant).Msg("analysis cache write failed")
		}
		return a, nil
	})
	if err != nil {
		return domain.Analysis{}, err
	}
	return v.(domain.Analysis), nil
}

func (s *AnalysisService) cacheEnabled() bool {
	return s.cache != nil && s.ttl >= time.Second
}

// Run executes the pipeline without the cache and writes sentiment and
// cluster ids back to the tenant's rows.
func (s *AnalysisService) Run(ctx context.Context, tenant string, k int) (a domain.Analysis, err error) {
	start := time.Now()
	defer func() {
		observability.ObservePipeline(observability.Outcome(err, a.Summary.Reviews == 0), time.Since(start))
	}()

	reviews, err := s.repo.GetReviews(ctx, tenant)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("load reviews: %w", err)
	}
	a = domain.Analysis{
		TenantID:    tenant,
		K:           k,
		Clusters:    []domain.IssueCluster{},
		Assignments: map[int64]int{},
	}
	if len(reviews) == 0 {
		return a, nil
	}

	texts := make([]string, len(reviews))
	scores := make([]float64, len(reviews))
	for i, r := range reviews {
		texts[i] = r.Text
		scores[i] = s.scorer.Score(r.Text)
	}

	m := textvec.New(textvec.Config{
		MaxFeatures: s.opts.MaxFeatures,
		NGramMax:    2,
		StopWords:   textvec.EnglishStopWords,
	}).FitTransform(texts)
	res := kmeans.New(kmeans.Config{K: k, Seed: s.opts.Seed}).Fit(m.Rows, m.Dim())

	members := make([][]int, len(res.Sizes))
	for i, c := range res.Assignments {
		members[c] = append(members[c], i)
	}
	clusters := make([]domain.IssueCluster, 0, len(members))
	for id, idx := range members {
		clusters = append(clusters, summarize(id, idx, reviews, scores, m))
	}
	a.Clusters = s.ranker.Rank(clusters)
	for i := range a.Clusters {
		// only needed for ranking; keeps cached and fresh results identical
		a.Clusters[i].NegativeKeywords = nil
	}

	upd := make([]domain.ReviewScore, len(reviews))
	neg, sum := 0, 0.0
	for i, r := range reviews {
		c := res.Assignments[i]
		upd[i] = domain.ReviewScore{ReviewID: r.ID, Sentiment: scores[i], ClusterID: c}
		a.Assignments[r.ID] = c
		sum += scores[i]
		if sentiment.LabelFor(scores[i]) == sentiment.Negative {
			neg++
		}
	}
	if err := s.repo.UpdateScores(ctx, tenant, upd); err != nil {
		return domain.Analysis{}, fmt.Errorf("store scores: %w", err)
	}

	n := float64(len(reviews))
	a.Summary = domain.Summary{
		Reviews:      len(reviews),
		NegativePct:  round(100*float64(neg)/n, 1),
		AvgSentiment: round(sum/n, 3),
	}
	log.Info().Str("tenant", tenant).Int("reviews", len(reviews)).
		Int("clusters", len(a.Clusters)).Dur("took", time.Since(start)).Msg("issues analyzed")
	return a, nil
}

// summarize builds the unranked view of one cluster from its member rows.
func summarize(id int, idx []int, reviews []domain.Review, scores []float64, m *textvec.Matrix) domain.IssueCluster {
	c := domain.IssueCluster{ClusterID: id, Size: len(idx), Keywords: []string{}, SampleReviews: []string{}}
	if len(idx) == 0 {
		return c
	}

	var negIdx []int
	sum, ratingSum, rated := 0.0, 0, 0
	for _, i := range idx {
		sum += scores[i]
		if sentiment.LabelFor(scores[i]) == sentiment.Negative {
			negIdx = append(negIdx, i)
		}
		if r := reviews[i].Rating; r != nil {
			ratingSum += *r
			rated++
		}
	}
	c.MeanSentiment = sum / float64(len(idx))
	c.FrequencyPct = round(100*float64(len(idx))/float64(len(reviews)), 1)
	if rated > 0 {
		mr := float64(ratingSum) / float64(rated)
		c.MeanRating = &mr
	}

	if kw := m.TopTerms(idx, keywordsPerIssue); len(kw) > 0 {
		c.Keywords = kw
	}
	c.Label = issueLabel(c.Keywords)
	if len(negIdx) > 0 {
		c.NegativeKeywords = m.TopTerms(negIdx, keywordsPerIssue)
	}

	// most negative first; input order breaks ties
	order := append([]int(nil), idx...)
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })
	for _, i := range order[:min(samplesPerIssue, len(order))] {
		c.SampleReviews = append(c.SampleReviews, reviews[i].Text)
	}
	return c
}

func issueLabel(keywords []string) string {
	if len(keywords) == 0 {
		return "General"
	}
	return strings.Join(keywords[:min(labelKeywords, len(keywords))], ", ")
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
