package app

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"review_action/internal/adapters/csvio"
	"review_action/internal/domain"
)

/********** alias registry (single source of truth) **********/

var reviewAliases = map[string][]string{
	"text":      {"snippet", "extracted_snippet.original", "text", "content", "review_text", "comment"},
	"rating":    {"rating", "rating.value", "score", "stars"},
	"date":      {"iso_date", "date", "time", "published_at"},
	"source_id": {"review_id", "reviewId", "id"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, key string) *string {
	for _, p := range reviewAliases[key] {
		if s := lookupStr(m, p); s != "" {
			return &s
		}
	}
	return nil
}

// getFloatFlexible: number from several paths (float64/int/string like "4,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

/********** provider review mapper **********/

// mapProviderReviews turns raw provider objects into rows for one place.
// Objects without text are dropped and counted.
func mapProviderReviews(placeID string, in []map[string]any) ([]domain.ReviewInput, int) {
	out := make([]domain.ReviewInput, 0, len(in))
	dropped := 0
	for _, r := range in {
		text := firstNonEmptyAlias(r, "text")
		if text == nil {
			dropped++
			continue
		}
		rv := domain.ReviewInput{Text: *text, Source: "serpapi"}

		if f := getFloatFlexible(r, reviewAliases["rating"]...); f != nil {
			if n := int(*f); float64(n) == *f && domain.ValidRating(n) {
				rv.Rating = &n
			}
		}
		if s := firstNonEmptyAlias(r, "date"); s != nil {
			rv.Date = csvio.ParseDate(*s)
		}

		// SourceID → prefer explicit; else synthesize stable hash.
		if s := firstNonEmptyAlias(r, "source_id"); s != nil {
			rv.SourceID = s
		} else {
			rating := ""
			if rv.Rating != nil {
				rating = strconv.Itoa(*rv.Rating)
			}
			date := ""
			if d := firstNonEmptyAlias(r, "date"); d != nil {
				date = *d
			}
			sig := strings.Join([]string{placeID, rv.Text, rating, date}, "|")
			sum := sha1.Sum([]byte(sig))
			id := fmt.Sprintf("sha1:%s", hex.EncodeToString(sum[:]))
			rv.SourceID = &id
		}
		out = append(out, rv)
	}
	return out, dropped
}
