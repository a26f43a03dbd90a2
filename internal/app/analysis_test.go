package app_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"review_action/internal/app"
	"review_action/internal/domain"
)

func newServices(t *testing.T, ttl time.Duration) (*app.IngestionService, *app.AnalysisService, *memRepo, *memCache) {
	t.Helper()
	repo, cache := newMemRepo(), newMemCache()
	an, err := app.NewAnalysisService(repo, cache, ttl, app.DefaultOptions())
	require.NoError(t, err)
	return app.NewIngestionService(repo, nil, cache), an, repo, cache
}

func loadSample(t *testing.T, ing *app.IngestionService, tenant string) {
	t.Helper()
	f, err := os.Open("testdata/sample_reviews.csv")
	require.NoError(t, err)
	defer f.Close()
	rep, err := ing.IngestCSV(context.Background(), tenant, f)
	require.NoError(t, err)
	require.Equal(t, 8, rep.Inserted)
	require.Empty(t, rep.Skipped)
}

func clusterOf(t *testing.T, a domain.Analysis, id int) domain.IssueCluster {
	t.Helper()
	for _, c := range a.Clusters {
		if c.ClusterID == id {
			return c
		}
	}
	t.Fatalf("cluster %d not in ranked output", id)
	return domain.IssueCluster{}
}

func TestAnalyze_QueueComplaintsOutrankPraise(t *testing.T) {
	ing, an, _, _ := newServices(t, 10*time.Minute)
	loadSample(t, ing, "cafe")

	a, err := an.Analyze(context.Background(), "cafe", 4)
	require.NoError(t, err)
	require.Len(t, a.Assignments, 8)

	// ids follow CSV order: 1-3 queue, 4-5 cleaning, 6-7 price, 8 praise
	queue := a.Assignments[1]
	assert.Equal(t, queue, a.Assignments[2])
	assert.Equal(t, queue, a.Assignments[3])
	assert.Equal(t, a.Assignments[4], a.Assignments[5])
	assert.Equal(t, a.Assignments[6], a.Assignments[7])
	assert.Len(t, a.Clusters, 4)

	qc := clusterOf(t, a, queue)
	vc := clusterOf(t, a, a.Assignments[8])
	assert.Equal(t, 3, qc.Size)
	assert.InDelta(t, 37.5, qc.FrequencyPct, 1e-9)
	assert.True(t, strings.HasPrefix(qc.RecommendedAction, "Reduce queue time"), qc.RecommendedAction)
	assert.Greater(t, qc.PriorityScore, vc.PriorityScore)
	assert.Less(t, qc.MeanSentiment, 0.0)
	require.NotNil(t, qc.MeanRating)
	assert.InDelta(t, 5.0/3.0, *qc.MeanRating, 1e-9)
	assert.Len(t, qc.SampleReviews, 3)
	assert.NotEmpty(t, qc.Label)

	assert.Equal(t, 1, vc.Size)
	assert.Greater(t, vc.MeanSentiment, 0.0)
	assert.Equal(t, []string{"Great vibe!"}, vc.SampleReviews)

	for i := 1; i < len(a.Clusters); i++ {
		assert.GreaterOrEqual(t, a.Clusters[i-1].PriorityScore, a.Clusters[i].PriorityScore)
	}
	assert.Equal(t, 8, a.Summary.Reviews)
	assert.Greater(t, a.Summary.NegativePct, 50.0)
}

func TestAnalyze_PartitionsAllReviewsAndWritesBack(t *testing.T) {
	ing, an, repo, _ := newServices(t, 0)
	loadSample(t, ing, "cafe")

	a, err := an.Analyze(context.Background(), "cafe", 0)
	require.NoError(t, err)
	assert.Equal(t, app.DefaultClusters, a.K)

	total := 0
	seen := map[int]bool{}
	for _, c := range a.Clusters {
		assert.Positive(t, c.Size)
		assert.False(t, seen[c.ClusterID], "cluster ids are unique")
		seen[c.ClusterID] = true
		total += c.Size
	}
	assert.Equal(t, 8, total)

	rows, err := repo.GetReviews(context.Background(), "cafe")
	require.NoError(t, err)
	for _, r := range rows {
		require.NotNil(t, r.ClusterID)
		require.NotNil(t, r.Sentiment)
		assert.Equal(t, a.Assignments[r.ID], *r.ClusterID)
		assert.True(t, seen[*r.ClusterID])
	}
}

func TestAnalyze_SingleReview(t *testing.T) {
	ing, an, _, _ := newServices(t, 0)
	_, err := ing.IngestText(context.Background(), "gym", "The lockers were dirty")
	require.NoError(t, err)

	a, err := an.Analyze(context.Background(), "gym", 0)
	require.NoError(t, err)
	require.Len(t, a.Clusters, 1)
	c := a.Clusters[0]
	assert.Equal(t, 1, c.Size)
	assert.InDelta(t, 100.0, c.FrequencyPct, 1e-9)
	assert.Greater(t, c.PriorityScore, 0.0)
	assert.LessOrEqual(t, c.PriorityScore, 1.0)
	assert.Nil(t, c.MeanRating)
	assert.True(t, strings.HasPrefix(c.RecommendedAction, "Review cleaning protocol"), c.RecommendedAction)
}

func TestAnalyze_EmptyCorpus(t *testing.T) {
	_, an, _, _ := newServices(t, 0)
	a, err := an.Analyze(context.Background(), "new-shop", 0)
	require.NoError(t, err)
	assert.Empty(t, a.Clusters)
	assert.Empty(t, a.Assignments)
	assert.Equal(t, 0, a.Summary.Reviews)
}

func TestAnalyze_RejectsBadInput(t *testing.T) {
	_, an, _, _ := newServices(t, 0)
	_, err := an.Analyze(context.Background(), "cafe", app.MaxClusters+1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = an.Analyze(context.Background(), "cafe", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = an.Analyze(context.Background(), "", 3)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = app.NewAnalysisService(newMemRepo(), nil, 0, app.Options{K: 40, Weights: app.DefaultOptions().Weights})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAnalyze_StorageFailure(t *testing.T) {
	_, an, repo, _ := newServices(t, 0)
	boom := errors.New("database is locked")
	repo.failGet = boom

	_, err := an.Analyze(context.Background(), "cafe", 3)
	assert.ErrorIs(t, err, boom)
}

func TestAnalyze_TenantsDoNotMix(t *testing.T) {
	ing, an, _, _ := newServices(t, 0)
	loadSample(t, ing, "cafe")
	_, err := ing.IngestText(context.Background(), "gym", "Lockers broken\nShowers cold")
	require.NoError(t, err)

	a, err := an.Analyze(context.Background(), "gym", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Summary.Reviews)
	for id := range a.Assignments {
		assert.Greater(t, id, int64(8), "cafe review leaked into gym analysis")
	}
}

func TestAnalyze_CachedUntilNextWrite(t *testing.T) {
	ing, an, repo, cache := newServices(t, 10*time.Minute)
	ctx := context.Background()
	loadSample(t, ing, "cafe")

	first, err := an.Analyze(ctx, "cafe", 4)
	require.NoError(t, err)
	ttl, ok := cache.analysisTTL("cafe", 4)
	assert.True(t, ok)
	assert.Equal(t, 600, ttl)

	second, err := an.Analyze(ctx, "cafe", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.getCount(), "second view served from cache")
	assert.Equal(t, first.Clusters, second.Clusters)

	_, err = ing.IngestText(ctx, "cafe", "Another long wait in line")
	require.NoError(t, err)
	assert.False(t, cache.hasAnalysis("cafe", 4))

	third, err := an.Analyze(ctx, "cafe", 4)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.getCount())
	assert.Equal(t, 9, third.Summary.Reviews)

	_, err = ing.DeleteAll(ctx, "cafe")
	require.NoError(t, err)
	assert.False(t, cache.hasAnalysis("cafe", 4))
}

func TestAnalyze_WriteDuringRunIsNotServedStale(t *testing.T) {
	repo, cache := newGatedRepo(), newMemCache()
	an, err := app.NewAnalysisService(repo, cache, 10*time.Minute, app.DefaultOptions())
	require.NoError(t, err)
	ing := app.NewIngestionService(repo, nil, cache)
	ctx := context.Background()
	loadSample(t, ing, "cafe")

	type result struct {
		a   domain.Analysis
		err error
	}
	done := make(chan result, 1)
	go func() {
		a, err := an.Analyze(ctx, "cafe", 4)
		done <- result{a, err}
	}()

	// the run has read 8 rows; a write lands before it finishes
	<-repo.loaded
	_, err = ing.IngestText(ctx, "cafe", "Waited forever in line again")
	require.NoError(t, err)
	close(repo.release)

	racing := <-done
	require.NoError(t, racing.err)
	assert.Equal(t, 8, racing.a.Summary.Reviews)

	fresh, err := an.Analyze(ctx, "cafe", 4)
	require.NoError(t, err)
	assert.Equal(t, 9, fresh.Summary.Reviews)

	again, err := an.Analyze(ctx, "cafe", 4)
	require.NoError(t, err)
	assert.Equal(t, 9, again.Summary.Reviews)
}

func TestAnalyze_ZeroTTLDisablesCache(t *testing.T) {
	ing, an, repo, cache := newServices(t, 0)
	loadSample(t, ing, "cafe")
	for i := 0; i < 2; i++ {
		_, err := an.Analyze(context.Background(), "cafe", 2)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, repo.getCount())
	assert.False(t, cache.hasAnalysis("cafe", 2))
}

func TestAnalyze_DefaultClusterCount(t *testing.T) {
	ing, an, _, _ := newServices(t, 10*time.Minute)
	loadSample(t, ing, "cafe")

	// k = 0 means the configured default (6), below the 8 reviews
	a, err := an.Analyze(context.Background(), "cafe", 0)
	require.NoError(t, err)
	assert.Equal(t, app.DefaultClusters, a.K)
	assert.LessOrEqual(t, len(a.Clusters), app.DefaultClusters)

	queue := a.Assignments[1]
	assert.Equal(t, queue, a.Assignments[2])
	assert.Equal(t, queue, a.Assignments[3])

	qc := clusterOf(t, a, queue)
	vc := clusterOf(t, a, a.Assignments[8])
	assert.Equal(t, 3, qc.Size)
	assert.True(t, strings.HasPrefix(qc.RecommendedAction, "Reduce queue time"), qc.RecommendedAction)
	assert.Greater(t, qc.PriorityScore, vc.PriorityScore)
}

func TestAnalyze_DeterministicAndConcurrent(t *testing.T) {
	ing, an, _, _ := newServices(t, 0)
	loadSample(t, ing, "cafe")

	results := make([]domain.Analysis, 8)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			a, err := an.Analyze(context.Background(), "cafe", 3)
			results[i] = a
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, r := range results[1:] {
		assert.Equal(t, results[0].Assignments, r.Assignments)
		assert.Equal(t, results[0].Clusters, r.Clusters)
	}
}
