// Package kmeans partitions sparse TF-IDF rows into K groups with seeded
// k-means++ and Lloyd iterations.
package kmeans

import (
	"math"
	"math/rand"

	"review_action/internal/analysis/textvec"
)

const (
	DefaultSeed    = 42
	DefaultMaxIter = 300
	DefaultNInit   = 10
)

type Config struct {
	K       int
	Seed    int64 // fixes centroid initialisation so runs are reproducible
	MaxIter int
	NInit   int
}

// Result holds one cluster id per input row and the size of every cluster.
// Sizes may contain zeros; such clusters received no point.
type Result struct {
	Assignments []int
	Sizes       []int
	Inertia     float64
	Iterations  int
}

type Clusterer struct{ cfg Config }

func New(cfg Config) *Clusterer {
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = DefaultMaxIter
	}
	if cfg.NInit <= 0 {
		cfg.NInit = DefaultNInit
	}
	return &Clusterer{cfg: cfg}
}

// Fit clusters rows of dimension dim. K is clamped to len(rows); fewer than two
// rows (or an empty vocabulary) yield a single cluster.
func (c *Clusterer) Fit(rows []textvec.Vector, dim int) Result {
	n := len(rows)
	k := c.cfg.K
	if k > n {
		k = n
	}
	if n < 2 || k <= 1 || dim == 0 {
		return single(n)
	}

	norms := make([]float64, n)
	for i, r := range rows {
		norms[i] = r.SquaredNorm()
	}

	rng := rand.New(rand.NewSource(c.cfg.Seed))
	var best Result
	for run := 0; run < c.cfg.NInit; run++ {
		res := c.lloyd(rows, norms, dim, k, rng)
		if run == 0 || res.Inertia < best.Inertia {
			best = res
		}
	}
	return relabel(best, k)
}

func single(n int) Result {
	res := Result{Assignments: make([]int, n)}
	if n > 0 {
		res.Sizes = []int{n}
	}
	return res
}

func (c *Clusterer) lloyd(rows []textvec.Vector, norms []float64, dim, k int, rng *rand.Rand) Result {
	centroids := seedPlusPlus(rows, norms, dim, k, rng)
	assign := make([]int, len(rows))
	for i := range assign {
		assign[i] = -1
	}

	var iter int
	for iter = 1; iter <= c.cfg.MaxIter; iter++ {
		changed := false
		cn := centroidNorms(centroids)
		for i, r := range rows {
			j, _ := nearest(r, norms[i], centroids, cn)
			if j != assign[i] {
				assign[i] = j
				changed = true
			}
		}
		if !changed {
			break
		}
		recompute(rows, assign, centroids)
	}

	sizes := make([]int, k)
	cn := centroidNorms(centroids)
	var inertia float64
	for i, r := range rows {
		sizes[assign[i]]++
		inertia += sqDist(r, norms[i], centroids[assign[i]], cn[assign[i]])
	}
	return Result{Assignments: assign, Sizes: sizes, Inertia: inertia, Iterations: iter}
}

// seedPlusPlus runs greedy k-means++: the first centroid is uniform, then
// each step samples a few candidates with probability proportional to their
// squared distance from the chosen set and keeps the one that lowers the
// total distance most.
func seedPlusPlus(rows []textvec.Vector, norms []float64, dim, k int, rng *rand.Rand) [][]float64 {
	trials := 2 + int(math.Log(float64(k)))
	first := dense(rows[rng.Intn(len(rows))], dim)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, first)
	closest := distancesTo(rows, norms, first)

	for len(centroids) < k {
		var total float64
		for _, d := range closest {
			total += d
		}
		var bestC, bestD []float64
		bestPot := math.Inf(1)
		for t := 0; t < trials; t++ {
			cand := dense(rows[sample(closest, total, rng)], dim)
			d := distancesTo(rows, norms, cand)
			var pot float64
			for i := range d {
				d[i] = math.Min(d[i], closest[i])
				pot += d[i]
			}
			if pot < bestPot {
				bestC, bestD, bestPot = cand, d, pot
			}
		}
		centroids = append(centroids, bestC)
		closest = bestD
	}
	return centroids
}

func sample(weights []float64, total float64, rng *rand.Rand) int {
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	target := rng.Float64() * total
	for i, w := range weights {
		target -= w
		if target < 0 {
			return i
		}
	}
	return len(weights) - 1
}

func distancesTo(rows []textvec.Vector, norms []float64, c []float64) []float64 {
	var cc float64
	for _, x := range c {
		cc += x * x
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = sqDist(r, norms[i], c, cc)
	}
	return out
}

// recompute moves every centroid to the mean of its points. A centroid with
// no points keeps its previous position.
func recompute(rows []textvec.Vector, assign []int, centroids [][]float64) {
	counts := make([]int, len(centroids))
	sums := make([][]float64, len(centroids))
	for i, r := range rows {
		j := assign[i]
		if sums[j] == nil {
			sums[j] = make([]float64, len(centroids[j]))
		}
		for p, idx := range r.Idx {
			sums[j][idx] += r.Val[p]
		}
		counts[j]++
	}
	for j := range centroids {
		if counts[j] == 0 {
			continue
		}
		for d := range centroids[j] {
			centroids[j][d] = sums[j][d] / float64(counts[j])
		}
	}
}

// nearest returns the closest centroid by Euclidean distance; ties go to the
// lowest index.
func nearest(r textvec.Vector, norm float64, centroids [][]float64, cn []float64) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for j, c := range centroids {
		if d := sqDist(r, norm, c, cn[j]); d < bestD {
			best, bestD = j, d
		}
	}
	return best, bestD
}

func sqDist(r textvec.Vector, norm float64, c []float64, cc float64) float64 {
	d := norm - 2*r.Dot(c) + cc
	if d < 0 {
		return 0
	}
	return d
}

func centroidNorms(centroids [][]float64) []float64 {
	out := make([]float64, len(centroids))
	for j, c := range centroids {
		for _, x := range c {
			out[j] += x * x
		}
	}
	return out
}

func dense(r textvec.Vector, dim int) []float64 {
	out := make([]float64, dim)
	for p, j := range r.Idx {
		out[j] = r.Val[p]
	}
	return out
}

// relabel numbers clusters by first appearance in input order; empty clusters
// take the remaining ids.
func relabel(res Result, k int) Result {
	mapping := make([]int, k)
	for j := range mapping {
		mapping[j] = -1
	}
	next := 0
	for _, a := range res.Assignments {
		if mapping[a] < 0 {
			mapping[a] = next
			next++
		}
	}
	for j := range mapping {
		if mapping[j] < 0 {
			mapping[j] = next
			next++
		}
	}
	out := Result{
		Assignments: make([]int, len(res.Assignments)),
		Sizes:       make([]int, k),
		Inertia:     res.Inertia,
		Iterations:  res.Iterations,
	}
	for i, a := range res.Assignments {
		out.Assignments[i] = mapping[a]
	}
	for j, s := range res.Sizes {
		out.Sizes[mapping[j]] = s
	}
	return out
}
