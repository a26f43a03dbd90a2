package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"review_action/internal/domain"
)

// MaxClusters bounds the k override accepted by Analyze.
const MaxClusters = 12

// initialGeneration names a tenant's analyses before its first write.
const initialGeneration = "0"

// Cached analyses are keyed by the tenant's write generation. A write moves
// the generation on, so a result computed from rows read before the write can
// only land under a key nobody reads any more.
func analysisKey(tenant, gen string, k int) string {
	return fmt.Sprintf("analysis:%s:%s:%d", tenant, gen, k)
}

// analysisKeys lists every cached analysis variant of one generation.
func analysisKeys(tenant, gen string) []string {
	keys := make([]string, 0, MaxClusters)
	for k := 1; k <= MaxClusters; k++ {
		keys = append(keys, analysisKey(tenant, gen, k))
	}
	return keys
}

func generationKey(tenant string) string {
	return "analysis-gen:" + tenant
}

// generation reads the tenant's current write generation.
func generation(ctx context.Context, c domain.Cache, tenant string) (string, error) {
	var gen string
	ok, err := c.Get(ctx, generationKey(tenant), &gen)
	if err != nil {
		return "", err
	}
	if !ok || gen == "" {
		return initialGeneration, nil
	}
	return gen, nil
}

// bumpGeneration starts a new generation and drops the previous one's results.
func bumpGeneration(ctx context.Context, c domain.Cache, tenant string) error {
	old, err := generation(ctx, c, tenant)
	if err != nil {
		return err
	}
	if err := c.Set(ctx, generationKey(tenant), uuid.NewString(), 0); err != nil {
		return err
	}
	return c.Del(ctx, analysisKeys(tenant, old)...)
}

func sessionKey(token string) string {
	return "session:" + token
}
