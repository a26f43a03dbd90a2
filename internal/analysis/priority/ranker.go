// Package priority scores issue clusters and orders them for action.
package priority

import (
	"fmt"
	"math"
	"sort"

	"review_action/internal/domain"
)

// Weights must sum to 1.
type Weights struct {
	Size       float64 `koanf:"size"`
	Negativity float64 `koanf:"negativity"`
	Rating     float64 `koanf:"rating"`
}

func DefaultWeights() Weights { return Weights{Size: 0.4, Negativity: 0.4, Rating: 0.2} }

func (w Weights) Validate() error {
	if w.Size < 0 || w.Negativity < 0 || w.Rating < 0 {
		return fmt.Errorf("priority weights must be non-negative: %+v", w)
	}
	if math.Abs(w.Size+w.Negativity+w.Rating-1) > 1e-9 {
		return fmt.Errorf("priority weights must sum to 1, got %.4f", w.Size+w.Negativity+w.Rating)
	}
	return nil
}

type Ranker struct {
	weights Weights
	actions ActionTable
}

func NewRanker(w Weights, actions ActionTable) (*Ranker, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Ranker{weights: w, actions: actions}, nil
}

// Score computes the priority of one cluster out of total reviews.
//
//	size·(size/total) + negativity·(1−meanSentiment)/2 [+ rating·(5−meanRating)/4]
//
// Without ratings the rating weight is shared proportionally by the other two.
func (r *Ranker) Score(c domain.IssueCluster, total int) float64 {
	if total <= 0 || c.Size <= 0 {
		return 0
	}
	share := float64(c.Size) / float64(total)
	negativity := (1 - clamp(c.MeanSentiment, -1, 1)) / 2

	ws, wn := r.weights.Size, r.weights.Negativity
	if c.MeanRating == nil {
		if base := ws + wn; base > 0 {
			ws, wn = ws/base, wn/base
		}
		return ws*share + wn*negativity
	}
	ratingPain := (5 - clamp(*c.MeanRating, 1, 5)) / 4
	return ws*share + wn*negativity + r.weights.Rating*ratingPain
}

// Rank drops empty clusters, fills PriorityScore and RecommendedAction and
// sorts by priority desc, size desc, cluster id asc.
func (r *Ranker) Rank(clusters []domain.IssueCluster) []domain.IssueCluster {
	total := 0
	for _, c := range clusters {
		total += c.Size
	}
	out := make([]domain.IssueCluster, 0, len(clusters))
	for _, c := range clusters {
		if c.Size <= 0 {
			continue
		}
		c.PriorityScore = r.Score(c, total)
		kws := c.NegativeKeywords
		if len(kws) == 0 {
			kws = c.Keywords
		}
		c.RecommendedAction, _ = r.actions.Match(kws)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		return a.ClusterID < b.ClusterID
	})
	return out
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
