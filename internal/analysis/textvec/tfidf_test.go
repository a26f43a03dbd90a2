package textvec_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_action/internal/analysis/textvec"
)

func TestTokenize_DropsStopWordsAndAddsBigrams(t *testing.T) {
	v := textvec.New(textvec.DefaultConfig())
	got := v.Tokenize("The LINE was long, a 25 minute wait!")
	assert.Equal(t, []string{"line", "long", "25", "minute", "wait", "line long", "long 25", "25 minute", "minute wait"}, got)
}

func TestFitTransform_RowsAreUnitLength(t *testing.T) {
	v := textvec.New(textvec.DefaultConfig())
	m := v.FitTransform([]string{"slow service", "dirty bathroom", "slow slow line"})
	require.Len(t, m.Rows, 3)
	for i, r := range m.Rows {
		assert.InDelta(t, 1.0, r.SquaredNorm(), 1e-9, "row %d", i)
		for p := 1; p < len(r.Idx); p++ {
			assert.Less(t, r.Idx[p-1], r.Idx[p])
		}
	}
	assert.IsIncreasing(t, m.Terms)
}

func TestFitTransform_IDFDownweightsCommonTerms(t *testing.T) {
	v := textvec.New(textvec.Config{NGramMax: 1})
	m := v.FitTransform([]string{"coffee cold", "coffee hot", "coffee great"})
	idx := map[string]int{}
	for j, term := range m.Terms {
		idx[term] = j
	}
	assert.InDelta(t, 1.0, m.IDF[idx["coffee"]], 1e-12)
	assert.InDelta(t, math.Log(4.0/2.0)+1, m.IDF[idx["cold"]], 1e-12)
}

func TestFitTransform_MaxFeaturesKeepsMostFrequent(t *testing.T) {
	v := textvec.New(textvec.Config{MaxFeatures: 2, NGramMax: 1})
	m := v.FitTransform([]string{"wait wait wait line", "wait line dirty", "smell"})
	assert.Equal(t, []string{"line", "wait"}, m.Terms)
	assert.Empty(t, m.Rows[2].Idx, "text with no kept terms is a zero row")
}

func TestFitTransform_OnlyStopWords(t *testing.T) {
	v := textvec.New(textvec.DefaultConfig())
	m := v.FitTransform([]string{"it was the", "and so on"})
	assert.Zero(t, m.Dim())
	assert.Len(t, m.Rows, 2)
}

func TestTopTerms(t *testing.T) {
	v := textvec.New(textvec.Config{NGramMax: 1})
	m := v.FitTransform([]string{"wait wait line", "wait slow", "dirty bathroom"})
	top := m.TopTerms([]int{0, 1}, 1)
	assert.Equal(t, []string{"wait"}, top)
	assert.Nil(t, m.TopTerms(nil, 3))
}
