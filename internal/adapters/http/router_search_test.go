package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

type stubSearchService struct {
	result  *domain.TurnResult
	err     error
	lastReq domain.SearchRequest
}

func (s *stubSearchService) Search(_ context.Context, req domain.SearchRequest) (*domain.TurnResult, error) {
	s.lastReq = req
	return s.result, s.err
}

func newTestRouter(service *stubSearchService) http.Handler {
	return NewRouter(service, RouterOptions{}).Handler()
}

func TestSearchTurnReturnsCandidates(t *testing.T) {
	service := &stubSearchService{result: &domain.TurnResult{
		Candidates: []domain.Candidate{
			{ID: "l-1", FinalScore: 0.8, HybridScore: 0.7, RerankScore: 0.9, MatchedReasons: []string{"district match"}},
		},
		Requirement: domain.Requirement{District: "Orchard"},
		Iterations:  1,
	}}
	handler := newTestRouter(service)

	body := `{"query":"condo in Orchard","user_id":"u-1","limit":5}`
	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if service.lastReq.UserID != "u-1" || service.lastReq.Limit != 5 {
		t.Fatalf("request fields must pass through: %+v", service.lastReq)
	}

	var resp searchResponseBody
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Candidates) != 1 || resp.Candidates[0].ID != "l-1" {
		t.Fatalf("unexpected candidates: %+v", resp.Candidates)
	}
	if resp.Iterations != 1 {
		t.Fatalf("unexpected iterations %d", resp.Iterations)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestSearchTurnReturnsClarification(t *testing.T) {
	service := &stubSearchService{result: &domain.TurnResult{
		Clarification: &domain.ClarificationRequest{
			Issues:          []string{"no candidates found"},
			TriedStrategies: []string{"refine"},
		},
		Iterations: 2,
		Stage:      domain.StageGiveUp,
	}}
	handler := newTestRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"a unicorn penthouse"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("clarification is a normal answer, got %d", res.Code)
	}
	var resp searchResponseBody
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Clarification == nil || len(resp.Clarification.Issues) != 1 {
		t.Fatalf("expected clarification payload: %+v", resp)
	}
	if resp.Stage != "give_up" {
		t.Fatalf("unexpected stage %q", resp.Stage)
	}
}

func TestSearchTurnRejectsMissingQuery(t *testing.T) {
	handler := newTestRouter(&stubSearchService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"  "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchTurnRejectsInvalidJSON(t *testing.T) {
	handler := newTestRouter(&stubSearchService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchTurnMapsDomainErrors(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          domain.WrapError(domain.ErrInvalidInput, "search turn", errors.New("bad")),
		http.StatusServiceUnavailable:  domain.WrapError(domain.ErrTemporary, "search turn", errors.New("flaky")),
		http.StatusInternalServerError: errors.New("unexpected"),
	}
	for wantStatus, serviceErr := range cases {
		handler := newTestRouter(&stubSearchService{err: serviceErr})

		req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"condo"}`))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)

		if res.Code != wantStatus {
			t.Fatalf("error %v: expected %d, got %d", serviceErr, wantStatus, res.Code)
		}
	}
}

func TestSearchTurnRejectsGet(t *testing.T) {
	handler := newTestRouter(&stubSearchService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(&stubSearchService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
