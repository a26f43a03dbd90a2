package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"review_action/internal/domain"
)

// ---- fakes ----

type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	rows    []domain.Review
	tenants map[string]domain.Tenant
	gets    int
	failGet error
}

func newMemRepo() *memRepo { return &memRepo{tenants: map[string]domain.Tenant{}} }

func (f *memRepo) InsertReviews(ctx context.Context, tenant string, in []domain.ReviewInput) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range in {
		if r.SourceID != nil && f.hasSource(tenant, *r.SourceID) {
			continue
		}
		f.nextID++
		src := r.Source
		f.rows = append(f.rows, domain.Review{
			ID: f.nextID, TenantID: tenant, Text: r.Text, Rating: r.Rating, Date: r.Date,
			Source: &src, SourceID: r.SourceID,
		})
		n++
	}
	return n, nil
}

func (f *memRepo) hasSource(tenant, id string) bool {
	for _, r := range f.rows {
		if r.TenantID == tenant && r.SourceID != nil && *r.SourceID == id {
			return true
		}
	}
	return false
}

func (f *memRepo) UpdateScores(ctx context.Context, tenant string, scores []domain.ReviewScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range scores {
		for i := range f.rows {
			if f.rows[i].ID == s.ReviewID && f.rows[i].TenantID == tenant {
				sent, c := s.Sentiment, s.ClusterID
				f.rows[i].Sentiment, f.rows[i].ClusterID = &sent, &c
			}
		}
	}
	return nil
}

func (f *memRepo) DeleteReviews(ctx context.Context, tenant string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var n int64
	for _, r := range f.rows {
		if r.TenantID == tenant {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return n, nil
}

func (f *memRepo) GetReviews(ctx context.Context, tenant string) ([]domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGet != nil {
		return nil, f.failGet
	}
	var out []domain.Review
	for _, r := range f.rows {
		if r.TenantID == tenant {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *memRepo) ListReviews(ctx context.Context, tenant string, limit int) (domain.ReviewsPage, error) {
	all, _ := f.GetReviews(ctx, tenant)
	page := domain.ReviewsPage{}
	for i := len(all) - 1; i >= 0 && len(page.Items) < limit; i-- {
		page.Items = append(page.Items, all[i])
	}
	return page, nil
}

func (f *memRepo) CreateTenant(ctx context.Context, t domain.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tenants[t.BusinessID]; ok {
		return domain.ErrTenantExists
	}
	f.tenants[t.BusinessID] = t
	return nil
}

func (f *memRepo) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *memRepo) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

// memCache round-trips through JSON like the redis adapter does.
type memCache struct {
	mu    sync.Mutex
	store map[string][]byte
	ttls  map[string]int
}

func newMemCache() *memCache { return &memCache{store: map[string][]byte{}, ttls: map[string]int{}} }

func (c *memCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = b
	c.ttls[key] = ttlSec
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.store, k)
	}
	return nil
}

// analysisTTL reports the TTL of the cached k-variant of tenant's analysis
// in any generation, and whether one is cached at all.
func (c *memCache) analysisTTL(tenant string, k int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix, suffix := "analysis:"+tenant+":", fmt.Sprintf(":%d", k)
	for key := range c.store {
		if strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix) {
			return c.ttls[key], true
		}
	}
	return 0, false
}

func (c *memCache) hasAnalysis(tenant string, k int) bool {
	_, ok := c.analysisTTL(tenant, k)
	return ok
}

// gatedRepo parks the first GetReviews after it has read the rows, until
// release is closed.
type gatedRepo struct {
	*memRepo
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func newGatedRepo() *gatedRepo {
	return &gatedRepo{memRepo: newMemRepo(), loaded: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedRepo) GetReviews(ctx context.Context, tenant string) ([]domain.Review, error) {
	rows, err := g.memRepo.GetReviews(ctx, tenant)
	g.once.Do(func() {
		close(g.loaded)
		<-g.release
	})
	return rows, err
}

type fakeSource struct {
	payload []map[string]any
	err     error
	calls   int
}

func (s *fakeSource) FetchReviews(ctx context.Context, placeID string, limit int) ([]map[string]any, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.payload) > limit {
		return s.payload[:limit], nil
	}
	return s.payload, nil
}
