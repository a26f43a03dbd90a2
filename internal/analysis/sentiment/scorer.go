// Package sentiment scores review text with a fixed polarity lexicon and a
// handful of rules (negation, intensifiers, caps, "but", punctuation). The
// compound score is always in [-1, 1].
package sentiment

import (
	"math"
	"strings"
	"unicode"
)

const (
	boosterIncr  = 0.293
	capsIncr     = 0.733
	negScalar    = -0.74
	exclaimIncr  = 0.292
	maxExclaims  = 4
	questionIncr = 0.18
	normAlpha    = 15.0

	NegativeThreshold = -0.05
	PositiveThreshold = 0.05
)

type Label string

const (
	Negative Label = "negative"
	Neutral  Label = "neutral"
	Positive Label = "positive"
)

// LabelFor buckets a compound score.
func LabelFor(compound float64) Label {
	switch {
	case compound < NegativeThreshold:
		return Negative
	case compound > PositiveThreshold:
		return Positive
	default:
		return Neutral
	}
}

// Scorer is safe for concurrent use; it never mutates its tables.
type Scorer struct {
	lexicon  map[string]float64
	boosters map[string]float64
	negators map[string]struct{}
}

// New returns a scorer over the built-in lexicon.
func New() *Scorer {
	return &Scorer{lexicon: defaultLexicon, boosters: defaultBoosters, negators: defaultNegators}
}

// NewWithLexicon replaces the polarity lexicon; the rule tables stay the same.
func NewWithLexicon(lex map[string]float64) *Scorer {
	s := New()
	s.lexicon = lex
	return s
}

type token struct {
	raw   string
	lower string
}

// Score returns the compound sentiment of text.
func (s *Scorer) Score(text string) float64 {
	toks := tokenize(text)
	if len(toks) == 0 {
		return 0
	}
	capsDiff := mixedCaps(toks)

	vals := make([]float64, len(toks))
	for i, t := range toks {
		if _, ok := s.boosters[t.lower]; ok {
			continue
		}
		v, ok := s.lexicon[t.lower]
		if !ok {
			continue
		}
		if capsDiff && isUpper(t.raw) {
			v += sign(v) * capsIncr
		}
		for dist := 1; dist <= 3 && i-dist >= 0; dist++ {
			prev := toks[i-dist]
			if b, ok := s.boosters[prev.lower]; ok {
				scalar := b
				if capsDiff && isUpper(prev.raw) {
					scalar += sign(b) * capsIncr
				}
				switch dist {
				case 2:
					scalar *= 0.95
				case 3:
					scalar *= 0.9
				}
				v += sign(v) * scalar
			}
			if s.negated(prev.lower) {
				v *= negScalar
			}
		}
		vals[i] = v
	}

	for i, t := range toks {
		if t.lower != "but" {
			continue
		}
		for j := range vals {
			switch {
			case j < i:
				vals[j] *= 0.5
			case j > i:
				vals[j] *= 1.5
			}
		}
		break
	}

	var sum float64
	for _, v := range vals {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	emph := punctuationEmphasis(text)
	if sum > 0 {
		sum += emph
	} else {
		sum -= emph
	}
	return normalize(sum)
}

func (s *Scorer) negated(word string) bool {
	if _, ok := s.negators[word]; ok {
		return true
	}
	return strings.HasSuffix(word, "n't")
}

func punctuationEmphasis(text string) float64 {
	ep := float64(min(strings.Count(text, "!"), maxExclaims)) * exclaimIncr
	var qm float64
	if q := strings.Count(text, "?"); q > 1 {
		if q <= 3 {
			qm = float64(q) * questionIncr
		} else {
			qm = 0.96
		}
	}
	return ep + qm
}

func normalize(score float64) float64 {
	n := score / math.Sqrt(score*score+normAlpha)
	return math.Max(-1, math.Min(1, n))
}

func tokenize(text string) []token {
	fields := strings.Fields(text)
	out := make([]token, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
		})
		w = strings.Trim(w, "'")
		if w == "" {
			continue
		}
		lower := strings.ReplaceAll(strings.ToLower(w), "’", "'")
		out = append(out, token{raw: w, lower: lower})
	}
	return out
}

func isUpper(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 1
}

// mixedCaps is true when some but not all tokens are ALL CAPS.
func mixedCaps(toks []token) bool {
	upper := 0
	for _, t := range toks {
		if isUpper(t.raw) {
			upper++
		}
	}
	return upper > 0 && upper < len(toks)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
