package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
	"github.com/kirillkom/property-search-assistant/internal/core/ports"
	"github.com/kirillkom/property-search-assistant/internal/observability/metrics"
)

type Router struct {
	search  ports.SearchService
	metrics *metrics.HTTPServerMetrics
	service string

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	queueWait      time.Duration
}

type RouterOptions struct {
	Metrics        *metrics.HTTPServerMetrics
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	QueueWait      time.Duration
}

func NewRouter(search ports.SearchService, options RouterOptions) *Router {
	if options.Service == "" {
		options.Service = "api"
	}
	if options.QueueWait <= 0 {
		options.QueueWait = 100 * time.Millisecond
	}
	return &Router{
		search:         search,
		metrics:        options.Metrics,
		service:        options.Service,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxInFlight:    options.MaxInFlight,
		queueWait:      options.QueueWait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.searchTurn)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.maxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.maxInFlight, rt.queueWait)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequestBody struct {
	Query            string              `json:"query"`
	UserID           string              `json:"user_id"`
	ConversationID   string              `json:"conversation_id"`
	PriorRequirement *domain.Requirement `json:"prior_requirement"`
	Limit            int                 `json:"limit"`
}

type searchResponseBody struct {
	Candidates    []candidateView              `json:"candidates"`
	Clarification *domain.ClarificationRequest `json:"clarification,omitempty"`
	Requirement   domain.Requirement           `json:"requirement"`
	Iterations    int                          `json:"iterations"`
	Stage         string                       `json:"stage"`
	Degradations  []string                     `json:"degradations,omitempty"`
}

type candidateView struct {
	ID             string                  `json:"id"`
	FinalScore     float64                 `json:"final_score"`
	HybridScore    float64                 `json:"hybrid_score"`
	RerankScore    float64                 `json:"rerank_score"`
	MatchedReasons []string                `json:"matched_reasons,omitempty"`
	Listing        *domain.ListingSnapshot `json:"listing,omitempty"`
}

func (rt *Router) searchTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	result, err := rt.search.Search(r.Context(), domain.SearchRequest{
		Query:            body.Query,
		UserID:           body.UserID,
		ConversationID:   body.ConversationID,
		PriorRequirement: body.PriorRequirement,
		Limit:            body.Limit,
	})
	if err != nil {
		rt.recordTurn("error", "", 0, 0, time.Since(start), nil)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	outcome := "results"
	if result.Clarification != nil {
		outcome = "clarification"
	}
	rt.recordTurn(outcome, result.Stage.String(), result.Iterations, len(result.Candidates), time.Since(start), result.Degradations)

	writeJSON(w, http.StatusOK, buildSearchResponse(result))
}

func buildSearchResponse(result *domain.TurnResult) searchResponseBody {
	candidates := make([]candidateView, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		candidates = append(candidates, candidateView{
			ID:             c.ID,
			FinalScore:     c.FinalScore,
			HybridScore:    c.HybridScore,
			RerankScore:    c.RerankScore,
			MatchedReasons: c.MatchedReasons,
			Listing:        c.Listing,
		})
	}
	return searchResponseBody{
		Candidates:    candidates,
		Clarification: result.Clarification,
		Requirement:   result.Requirement,
		Iterations:    result.Iterations,
		Stage:         result.Stage.String(),
		Degradations:  result.Degradations,
	}
}

func (rt *Router) recordTurn(outcome, stage string, iterations, candidates int, duration time.Duration, degradations []string) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordSearchTurn(rt.service, outcome, stage, iterations, candidates, duration)
	for _, reason := range degradations {
		rt.metrics.RecordDegradation(rt.service, reason)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
