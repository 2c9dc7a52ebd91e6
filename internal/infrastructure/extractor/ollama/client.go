package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Extractor turns a free-text property query into a structured requirement
// via a JSON-constrained generation call.
type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

// requirementPayload mirrors the JSON the model is asked to emit. Pointers
// distinguish "not mentioned" from zero values.
type requirementPayload struct {
	PropertyType    string   `json:"property_type"`
	TransactionType string   `json:"transaction_type"`
	District        string   `json:"district"`
	City            string   `json:"city"`
	BedroomsMin     *int     `json:"bedrooms_min"`
	BedroomsMax     *int     `json:"bedrooms_max"`
	PriceMin        *float64 `json:"price_min"`
	PriceMax        *float64 `json:"price_max"`
	Qualifiers      []string `json:"qualifiers"`
}

func (e *Extractor) Extract(ctx context.Context, query string, prior *domain.Requirement) (domain.Requirement, error) {
	respText, err := e.client.generateJSON(ctx, buildExtractionPrompt(query, prior))
	if err != nil {
		return domain.Requirement{}, wrapTemporaryIfNeeded("extract requirement", err)
	}

	var payload requirementPayload
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &payload); err != nil {
		return domain.Requirement{}, domain.WrapError(domain.ErrInvalidInput, "extract requirement",
			fmt.Errorf("parse requirement json: %w", err))
	}
	return payload.toRequirement()
}

func (p requirementPayload) toRequirement() (domain.Requirement, error) {
	transaction := domain.TransactionType(strings.ToLower(strings.TrimSpace(p.TransactionType)))
	switch transaction {
	case "", domain.TransactionBuy, domain.TransactionRent:
	default:
		return domain.Requirement{}, domain.WrapError(domain.ErrInvalidInput, "extract requirement",
			fmt.Errorf("unknown transaction type %q", p.TransactionType))
	}
	if p.BedroomsMin != nil && *p.BedroomsMin < 0 || p.BedroomsMax != nil && *p.BedroomsMax < 0 {
		return domain.Requirement{}, domain.WrapError(domain.ErrInvalidInput, "extract requirement",
			fmt.Errorf("negative bedroom bound"))
	}
	if p.PriceMin != nil && *p.PriceMin < 0 || p.PriceMax != nil && *p.PriceMax < 0 {
		return domain.Requirement{}, domain.WrapError(domain.ErrInvalidInput, "extract requirement",
			fmt.Errorf("negative price bound"))
	}
	if p.BedroomsMin != nil && p.BedroomsMax != nil && *p.BedroomsMin > *p.BedroomsMax {
		p.BedroomsMin, p.BedroomsMax = p.BedroomsMax, p.BedroomsMin
	}
	if p.PriceMin != nil && p.PriceMax != nil && *p.PriceMin > *p.PriceMax {
		p.PriceMin, p.PriceMax = p.PriceMax, p.PriceMin
	}

	qualifiers := make([]string, 0, len(p.Qualifiers))
	for _, q := range p.Qualifiers {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			qualifiers = append(qualifiers, trimmed)
		}
	}

	return domain.Requirement{
		PropertyType:    strings.ToLower(strings.TrimSpace(p.PropertyType)),
		TransactionType: transaction,
		District:        strings.TrimSpace(p.District),
		City:            strings.TrimSpace(p.City),
		BedroomsMin:     p.BedroomsMin,
		BedroomsMax:     p.BedroomsMax,
		PriceMin:        p.PriceMin,
		PriceMax:        p.PriceMax,
		Qualifiers:      qualifiers,
	}, nil
}

// Embedder produces query vectors for the semantic retrieval backend.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, wrapTemporaryIfNeeded("embed query", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
