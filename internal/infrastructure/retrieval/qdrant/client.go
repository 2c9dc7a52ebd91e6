package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

// QueryEmbedder turns a free-text query into a vector for similarity search.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ListingIndex is the semantic retrieval backend: cosine search over listing
// description embeddings stored in one Qdrant collection.
type ListingIndex struct {
	baseURL    string
	collection string
	embedder   QueryEmbedder
	httpClient *http.Client
}

func New(baseURL, collection string, embedder QueryEmbedder) *ListingIndex {
	return &ListingIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *ListingIndex) SearchVector(ctx context.Context, query string, limit int) ([]domain.Hit, error) {
	vector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "vector search", err)
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "vector search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("qdrant search status: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
		return nil, domain.WrapError(domain.ErrUnavailable, "vector search", err)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]domain.Hit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		id := payloadString(r.Payload, "listing_id")
		if id == "" {
			continue
		}
		hits = append(hits, domain.Hit{
			ID:       id,
			RawScore: r.Score,
			Listing:  payloadListing(r.Payload),
		})
	}
	return hits, nil
}

func payloadListing(payload map[string]any) *domain.ListingSnapshot {
	listing := &domain.ListingSnapshot{
		SellerID:          payloadString(payload, "seller_id"),
		PropertyType:      payloadString(payload, "property_type"),
		District:          payloadString(payload, "district"),
		City:              payloadString(payload, "city"),
		Bedrooms:          int(payloadFloat(payload, "bedrooms")),
		Price:             payloadFloat(payload, "price"),
		ImageCount:        int(payloadFloat(payload, "image_count")),
		DescriptionLength: int(payloadFloat(payload, "description_length")),
		Verified:          payloadBool(payload, "verified"),
	}
	if ts := payloadString(payload, "listed_at"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			listing.ListedAt = parsed
		}
	}
	if ts := payloadString(payload, "edited_at"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			listing.EditedAt = parsed
		}
	}
	return listing
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadFloat(payload map[string]any, key string) float64 {
	if v, ok := payload[key].(float64); ok {
		return v
	}
	return 0
}

func payloadBool(payload map[string]any, key string) bool {
	if v, ok := payload[key].(bool); ok {
		return v
	}
	return false
}
