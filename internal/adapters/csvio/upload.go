// Package csvio reads review uploads and writes/reads the ranked issue export.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"review_action/internal/domain"
)

// textAliases are accepted in place of review_text, in order of preference.
var textAliases = []string{"review_text", "text", "review", "comment", "content"}

// SkippedRow reports an upload row that was not ingested. Line is the 1-based
// line of the record in the file (the header is line 1).
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ParseReviews validates an uploaded CSV. It fails with
// domain.ErrMalformedUpload when the file cannot be read or has no text column;
// individual bad rows are reported as skipped.
func ParseReviews(r io.Reader) ([]domain.ReviewInput, []SkippedRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: file is empty", domain.ErrMalformedUpload)
		}
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrMalformedUpload, err)
	}
	cols := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	textCol := -1
	for _, a := range textAliases {
		if i, ok := cols[a]; ok {
			textCol = i
			break
		}
	}
	if textCol < 0 {
		return nil, nil, fmt.Errorf("%w: CSV must contain a 'review_text' column (or text/review/comment/content)", domain.ErrMalformedUpload)
	}
	ratingCol, hasRating := cols["rating"]
	dateCol, hasDate := cols["date"]

	var (
		rows    []domain.ReviewInput
		skipped []SkippedRow
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrMalformedUpload, err)
		}
		line, _ := cr.FieldPos(0)

		text := strings.TrimSpace(field(rec, textCol))
		if text == "" {
			skipped = append(skipped, SkippedRow{Line: line, Reason: "empty review_text"})
			continue
		}
		in := domain.ReviewInput{Text: text, Source: "csv"}
		if hasRating {
			in.Rating = ParseRating(field(rec, ratingCol))
		}
		if hasDate {
			in.Date = ParseDate(field(rec, dateCol))
		}
		rows = append(rows, in)
	}
	return rows, skipped, nil
}

// ParseText turns pasted text into reviews, one per non-blank line.
func ParseText(text string) []domain.ReviewInput {
	var out []domain.ReviewInput
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, domain.ReviewInput{Text: l, Source: "text"})
		}
	}
	return out
}

// ParseRating accepts integer ratings 1..5 (also "4.0"); anything else is absent.
func ParseRating(s string) *int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) || !domain.ValidRating(int(f)) {
		return nil
	}
	n := int(f)
	return &n
}

// ParseDate accepts ISO-8601 dates and RFC 3339 timestamps; anything else is absent.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
