package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

func extractionServer(t *testing.T, response string, capture *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if capture != nil {
			*capture, _ = payload["prompt"].(string)
		}
		body, _ := json.Marshal(map[string]string{"response": response})
		_, _ = w.Write(body)
	}))
}

func TestExtractParsesStructuredRequirement(t *testing.T) {
	server := extractionServer(t,
		`{"property_type":"Condo","transaction_type":"buy","district":"Orchard","city":"Singapore","bedrooms_min":2,"bedrooms_max":2,"price_min":null,"price_max":800000,"qualifiers":["near mrt"]}`,
		nil)
	defer server.Close()

	extractor := NewExtractor(New(server.URL, "gen", "embed"))
	req, err := extractor.Extract(context.Background(), "2 bedroom condo in Orchard under 800k near mrt", nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if req.PropertyType != "condo" {
		t.Fatalf("property type must be lowercased, got %q", req.PropertyType)
	}
	if req.TransactionType != domain.TransactionBuy {
		t.Fatalf("unexpected transaction type %q", req.TransactionType)
	}
	if req.District != "Orchard" || req.City != "Singapore" {
		t.Fatalf("unexpected location %q / %q", req.District, req.City)
	}
	if req.BedroomsMin == nil || *req.BedroomsMin != 2 {
		t.Fatalf("unexpected bedrooms: %+v", req)
	}
	if req.PriceMax == nil || *req.PriceMax != 800000 {
		t.Fatalf("unexpected price cap: %+v", req)
	}
	if len(req.Qualifiers) != 1 || req.Qualifiers[0] != "near mrt" {
		t.Fatalf("unexpected qualifiers: %v", req.Qualifiers)
	}
}

func TestExtractIncludesPriorFiltersInPrompt(t *testing.T) {
	var capturedPrompt string
	server := extractionServer(t, `{"price_max":450000}`, &capturedPrompt)
	defer server.Close()

	extractor := NewExtractor(New(server.URL, "gen", "embed"))
	prior := &domain.Requirement{District: "Orchard"}
	if _, err := extractor.Extract(context.Background(), "anything cheaper", prior); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(capturedPrompt, "Orchard") {
		t.Fatalf("prompt must carry prior filters, got: %s", capturedPrompt)
	}
	if !strings.Contains(capturedPrompt, "anything cheaper") {
		t.Fatalf("prompt must carry the user message, got: %s", capturedPrompt)
	}
}

func TestExtractRejectsMalformedJSON(t *testing.T) {
	server := extractionServer(t, `not json at all`, nil)
	defer server.Close()

	extractor := NewExtractor(New(server.URL, "gen", "embed"))
	_, err := extractor.Extract(context.Background(), "condo in Orchard", nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtractRejectsUnknownTransactionType(t *testing.T) {
	server := extractionServer(t, `{"transaction_type":"lease-to-own"}`, nil)
	defer server.Close()

	extractor := NewExtractor(New(server.URL, "gen", "embed"))
	_, err := extractor.Extract(context.Background(), "lease to own flat", nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtractNormalizesInvertedBounds(t *testing.T) {
	server := extractionServer(t, `{"price_min":900000,"price_max":600000}`, nil)
	defer server.Close()

	extractor := NewExtractor(New(server.URL, "gen", "embed"))
	req, err := extractor.Extract(context.Background(), "600k to 900k", nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if *req.PriceMin != 600000 || *req.PriceMax != 900000 {
		t.Fatalf("bounds must be ordered, got %+v", req)
	}
}

func TestExtractWrapsServerErrorsAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	extractor := NewExtractor(New(server.URL, "gen", "embed"))
	_, err := extractor.Extract(context.Background(), "condo in Orchard", nil)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestEmbedQueryReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"))
	vector, err := embedder.EmbedQuery(context.Background(), "quiet condo")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vector) != 3 {
		t.Fatalf("expected 3 dims, got %d", len(vector))
	}
}
