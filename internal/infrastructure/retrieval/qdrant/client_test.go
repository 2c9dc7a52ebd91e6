package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

type staticEmbedder struct {
	vector []float32
	err    error
}

func (s *staticEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return s.vector, s.err
}

func TestSearchVectorDecodesListingPayload(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/listings/points/search" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.87,"payload":{"listing_id":"l-1","seller_id":"s-1","property_type":"condo","district":"Orchard","city":"Singapore","bedrooms":2,"price":500000,"image_count":5,"description_length":380,"verified":true,"listed_at":"2026-02-01T00:00:00Z"}},
			{"score":0.61,"payload":{"listing_id":"l-2","district":"Orchard"}}
		]}`))
	}))
	defer server.Close()

	index := New(server.URL, "listings", &staticEmbedder{vector: []float32{0.1, 0.2}})
	hits, err := index.SearchVector(context.Background(), "quiet condo near mrt", 5)
	if err != nil {
		t.Fatalf("SearchVector() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "l-1" || hits[0].RawScore != 0.87 {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
	if hits[0].Listing == nil || hits[0].Listing.Price != 500000 || !hits[0].Listing.Verified {
		t.Fatalf("payload must decode into a listing snapshot: %+v", hits[0].Listing)
	}
	if hits[0].Listing.ListedAt.IsZero() {
		t.Fatalf("listed_at must parse from payload")
	}
	if captured["limit"].(float64) != 5 {
		t.Fatalf("limit must pass through, got %v", captured["limit"])
	}
}

func TestSearchVectorSkipsPointsWithoutListingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"score":0.5,"payload":{}}]}`))
	}))
	defer server.Close()

	index := New(server.URL, "listings", &staticEmbedder{vector: []float32{0.1}})
	hits, err := index.SearchVector(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("SearchVector() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("unidentifiable points must be dropped, got %d hits", len(hits))
	}
}

func TestSearchVectorWrapsEmbedderFailure(t *testing.T) {
	index := New("http://127.0.0.1:1", "listings", &staticEmbedder{
		err: domain.WrapError(domain.ErrUnavailable, "embed query", context.DeadlineExceeded),
	})
	_, err := index.SearchVector(context.Background(), "anything", 5)
	if !domain.IsKind(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSearchVectorWrapsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection missing", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	index := New(server.URL, "listings", &staticEmbedder{vector: []float32{0.1}})
	_, err := index.SearchVector(context.Background(), "anything", 5)
	if !domain.IsKind(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
