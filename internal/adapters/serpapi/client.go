// internal/adapters/serpapi/client.go
package serpapi

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"review_action/internal/adapters/observability"
)

const DefaultBaseURL = "https://serpapi.com"

// pageSize is what google_maps_reviews returns per page after the first.
const pageSize = 20

type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if base == "" {
		base = DefaultBaseURL
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 60 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Place is one candidate returned by SearchPlaces.
type Place struct {
	Title   string   `json:"title"`
	Address string   `json:"address"`
	Rating  *float64 `json:"rating,omitempty"`
	Reviews *int     `json:"reviews,omitempty"`
	PlaceID string   `json:"place_id"`
	DataID  string   `json:"data_id,omitempty"`
}

type reviewsPage struct {
	Reviews        []map[string]any `json:"reviews"`
	ReviewsResults []map[string]any `json:"reviews_results"`
	Pagination     struct {
		NextPageToken string `json:"next_page_token"`
	} `json:"serpapi_pagination"`
}

// FetchReviews returns up to limit raw review objects for a Google Maps
// place, following next_page_token until the limit or the last page.
func (c *Client) FetchReviews(ctx context.Context, placeID string, limit int) ([]map[string]any, error) {
	if placeID == "" {
		return nil, fmt.Errorf("place id is required")
	}
	if limit <= 0 {
		limit = 200
	}
	var out []map[string]any
	token := ""
	for len(out) < limit {
		q := url.Values{}
		q.Set("engine", "google_maps_reviews")
		q.Set("place_id", placeID)
		q.Set("hl", "en")
		if token != "" {
			q.Set("next_page_token", token)
			q.Set("num", strconv.Itoa(pageSize))
		}
		var page reviewsPage
		if err := c.get(ctx, q, &page); err != nil {
			return out, err
		}
		batch := page.Reviews
		if len(batch) == 0 {
			batch = page.ReviewsResults
		}
		if len(batch) == 0 {
			break
		}
		for _, rv := range batch {
			if len(out) == limit {
				break
			}
			out = append(out, rv)
		}
		token = page.Pagination.NextPageToken
		if token == "" {
			break
		}
	}
	return out, nil
}

// SearchPlaces looks a business up by name, returning at most ten candidates.
func (c *Client) SearchPlaces(ctx context.Context, query, location string) ([]Place, error) {
	q := url.Values{}
	q.Set("engine", "google_maps")
	q.Set("q", query)
	q.Set("hl", "en")
	if location != "" {
		q.Set("location", location)
	}
	var data struct {
		LocalResults []map[string]any `json:"local_results"`
		PlaceResults map[string]any   `json:"place_results"`
	}
	if err := c.get(ctx, q, &data); err != nil {
		return nil, err
	}
	var places []Place
	for _, item := range data.LocalResults {
		if len(places) == 10 {
			break
		}
		places = append(places, toPlace(item))
	}
	if len(places) == 0 && len(data.PlaceResults) > 0 {
		places = append(places, toPlace(data.PlaceResults))
	}
	return places, nil
}

func toPlace(m map[string]any) Place {
	p := Place{
		Title:   firstString(m, "title", "name"),
		Address: firstString(m, "address", "formatted_address"),
		PlaceID: firstString(m, "place_id", "data_id", "id"),
		DataID:  firstString(m, "data_id"),
	}
	if p.Title == "" {
		p.Title = "Unknown"
	}
	if f, ok := m["rating"].(float64); ok {
		p.Rating = &f
	}
	for _, k := range []string{"reviews", "reviews_count"} {
		if f, ok := m[k].(float64); ok {
			n := int(f)
			p.Reviews = &n
			break
		}
	}
	return p
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ---- Internals ----

var (
	ErrNotFound     = errors.New("serpapi: not found")
	ErrUnauthorized = errors.New("serpapi: unauthorized")
	ErrForbidden    = errors.New("serpapi: forbidden")
)

// get performs a GET on /search.json with client-side rate limiting, retries,
// and JSON decode into out. Retries on 429 and transient 5xx, honoring
// Retry-After when provided.
func (c *Client) get(ctx context.Context, q url.Values, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	q.Set("api_key", c.key)
	u := c.base + "/search.json?" + q.Encode()
	engine := q.Get("engine")

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "review-action/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("serpapi", engine, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("serpapi", engine, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode %s response: %w", engine, err)
			}
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return lastErr
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent or invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
