package serpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"review_action/internal/adapters/serpapi"
)

func reviewsOf(n, offset int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"review_id": "r" + strconv.Itoa(offset+i), "snippet": "text", "rating": 4.0}
	}
	return out
}

func TestClient_FetchReviews_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"reviews": reviewsOf(3, 0)})
		}
	}))
	defer ts.Close()

	cl, err := serpapi.New(ts.URL, "test-key", 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got, err := cl.FetchReviews(ctx, "ChIJ123", 10)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 reviews, got %d", len(got))
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 calls due to retries, got %d", hits)
	}
}

func TestClient_FetchReviews_PaginatesUpToLimit(t *testing.T) {
	var pages int32
	var sawKey, sawEngine atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/search.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		sawKey.Store(q.Get("api_key") == "test-key")
		sawEngine.Store(q.Get("engine") == "google_maps_reviews")
		n := atomic.AddInt32(&pages, 1)
		body := map[string]any{"reviews": reviewsOf(8, int(n)*100)}
		if q.Get("next_page_token") == "" || q.Get("next_page_token") == "p2" {
			body["serpapi_pagination"] = map[string]any{"next_page_token": "p" + strconv.Itoa(int(n)+1)}
		}
		if q.Get("next_page_token") != "" && q.Get("num") != "20" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer ts.Close()

	cl, err := serpapi.New(ts.URL, "test-key", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got, err := cl.FetchReviews(context.Background(), "ChIJ123", 20)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("want 20 reviews, got %d", len(got))
	}
	if atomic.LoadInt32(&pages) != 3 {
		t.Fatalf("want 3 pages, got %d", pages)
	}
	if !sawKey.Load() || !sawEngine.Load() {
		t.Fatalf("api_key or engine param missing")
	}
}

func TestClient_FetchReviews_StopsWithoutToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"reviews_results": reviewsOf(2, 0)})
	}))
	defer ts.Close()

	cl, _ := serpapi.New(ts.URL, "test-key", 100)
	got, err := cl.FetchReviews(context.Background(), "ChIJ123", 50)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 reviews, got %d", len(got))
	}
}

func TestClient_Unauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	cl, _ := serpapi.New(ts.URL, "bad", 100)
	_, err := cl.FetchReviews(context.Background(), "ChIJ123", 5)
	if !errors.Is(err, serpapi.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestClient_404(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	cl, _ := serpapi.New(ts.URL, "test-key", 100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := cl.FetchReviews(ctx, "ChIJ123", 5)
	if !errors.Is(err, serpapi.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestClient_New_RequiresKey(t *testing.T) {
	if _, err := serpapi.New("", "", 1); err == nil {
		t.Fatalf("expected error without key")
	}
}

func TestClient_SearchPlaces(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("engine") != "google_maps" || q.Get("q") != "cafe" || q.Get("location") != "Austin" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		local := make([]map[string]any, 12)
		for i := range local {
			local[i] = map[string]any{"title": "Cafe " + strconv.Itoa(i), "place_id": "p" + strconv.Itoa(i), "rating": 4.5, "reviews": 120.0}
		}
		local[0]["title"] = ""
		_ = json.NewEncoder(w).Encode(map[string]any{"local_results": local})
	}))
	defer ts.Close()

	cl, _ := serpapi.New(ts.URL, "test-key", 100)
	got, err := cl.SearchPlaces(context.Background(), "cafe", "Austin")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("want 10 places, got %d", len(got))
	}
	if got[0].Title != "Unknown" || got[1].PlaceID != "p1" {
		t.Fatalf("unexpected places: %+v", got[:2])
	}
	if got[1].Rating == nil || *got[1].Rating != 4.5 || got[1].Reviews == nil || *got[1].Reviews != 120 {
		t.Fatalf("rating/reviews not mapped: %+v", got[1])
	}
}

func TestClient_SearchPlaces_SinglePlaceResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"place_results": map[string]any{"name": "Only Cafe", "data_id": "0x1:0x2", "address": "1 Main St"},
		})
	}))
	defer ts.Close()

	cl, _ := serpapi.New(ts.URL, "test-key", 100)
	got, err := cl.SearchPlaces(context.Background(), "only cafe", "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Only Cafe" || got[0].PlaceID != "0x1:0x2" {
		t.Fatalf("unexpected places: %+v", got)
	}
}
