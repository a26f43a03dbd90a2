// Package textvec turns a tenant's review texts into TF-IDF weighted sparse
// vectors.
package textvec

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const DefaultMaxFeatures = 4000

// tokens are runs of at least two letters, digits or underscores
var tokenRE = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Vector is a sparse row: Idx is strictly increasing, Val holds the weights.
type Vector struct {
	Idx []int
	Val []float64
}

// Dot returns the dot product of v with a dense vector.
func (v Vector) Dot(dense []float64) float64 {
	var s float64
	for i, j := range v.Idx {
		s += v.Val[i] * dense[j]
	}
	return s
}

// SquaredNorm returns ||v||².
func (v Vector) SquaredNorm() float64 {
	var s float64
	for _, x := range v.Val {
		s += x * x
	}
	return s
}

type Config struct {
	MaxFeatures int // vocabulary cap; <= 0 means DefaultMaxFeatures
	NGramMax    int // 1 = unigrams only, 2 = unigrams + bigrams
	StopWords   map[string]struct{}
}

func DefaultConfig() Config {
	return Config{MaxFeatures: DefaultMaxFeatures, NGramMax: 2, StopWords: EnglishStopWords}
}

type Vectorizer struct{ cfg Config }

func New(cfg Config) *Vectorizer {
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = DefaultMaxFeatures
	}
	if cfg.NGramMax < 1 {
		cfg.NGramMax = 1
	}
	return &Vectorizer{cfg: cfg}
}

// Matrix is the fitted corpus: Terms are sorted, Rows[i] belongs to texts[i].
type Matrix struct {
	Terms []string
	IDF   []float64
	Rows  []Vector
}

// Dim is the number of features D.
func (m *Matrix) Dim() int { return len(m.Terms) }

// Tokenize lower-cases text and returns its terms (stop words removed, n-grams
// appended after unigrams).
func (v *Vectorizer) Tokenize(text string) []string {
	words := tokenRE.FindAllString(strings.ToLower(text), -1)
	kept := words[:0]
	for _, w := range words {
		if _, stop := v.cfg.StopWords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	out := make([]string, 0, len(kept)*v.cfg.NGramMax)
	out = append(out, kept...)
	for n := 2; n <= v.cfg.NGramMax; n++ {
		for i := 0; i+n <= len(kept); i++ {
			out = append(out, strings.Join(kept[i:i+n], " "))
		}
	}
	return out
}

// FitTransform learns the vocabulary and idf weights from texts and returns
// their L2-normalised TF-IDF rows. Only this corpus is consulted.
func (v *Vectorizer) FitTransform(texts []string) *Matrix {
	n := len(texts)
	counts := make([]map[string]int, n)
	df := map[string]int{}
	total := map[string]int{}
	for i, t := range texts {
		c := map[string]int{}
		for _, term := range v.Tokenize(t) {
			c[term]++
		}
		for term, k := range c {
			df[term]++
			total[term] += k
		}
		counts[i] = c
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	if len(terms) > v.cfg.MaxFeatures {
		sort.Slice(terms, func(a, b int) bool {
			if total[terms[a]] != total[terms[b]] {
				return total[terms[a]] > total[terms[b]]
			}
			return terms[a] < terms[b]
		})
		terms = terms[:v.cfg.MaxFeatures]
	}
	sort.Strings(terms)

	index := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for j, term := range terms {
		index[term] = j
		idf[j] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	rows := make([]Vector, n)
	for i, c := range counts {
		var row Vector
		for term := range c {
			j, ok := index[term]
			if !ok {
				continue
			}
			row.Idx = append(row.Idx, j)
		}
		sort.Ints(row.Idx)
		row.Val = make([]float64, len(row.Idx))
		var norm float64
		for p, j := range row.Idx {
			w := float64(c[terms[j]]) * idf[j]
			row.Val[p] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for p := range row.Val {
				row.Val[p] /= norm
			}
		}
		rows[i] = row
	}
	return &Matrix{Terms: terms, IDF: idf, Rows: rows}
}

// TopTerms returns up to limit terms with the highest mean weight over the
// given rows. Ties are broken by term order.
func (m *Matrix) TopTerms(rows []int, limit int) []string {
	if len(rows) == 0 || limit <= 0 {
		return nil
	}
	sum := map[int]float64{}
	for _, r := range rows {
		vec := m.Rows[r]
		for p, j := range vec.Idx {
			sum[j] += vec.Val[p]
		}
	}
	idx := make([]int, 0, len(sum))
	for j, s := range sum {
		if s > 0 {
			idx = append(idx, j)
		}
	}
	sort.Slice(idx, func(a, b int) bool {
		if sum[idx[a]] != sum[idx[b]] {
			return sum[idx[a]] > sum[idx[b]]
		}
		return idx[a] < idx[b]
	})
	if len(idx) > limit {
		idx = idx[:limit]
	}
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = m.Terms[j]
	}
	return out
}
