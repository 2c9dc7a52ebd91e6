package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
	"github.com/kirillkom/property-search-assistant/internal/core/ports"
)

const (
	degradationExtractor = "extractor_degraded"
	degradationLexical   = "lexical_backend_degraded"
	degradationVector    = "vector_backend_degraded"
	degradationDeadline  = "deadline_exceeded"
)

// SearchLimits bounds one user turn. Zero values fall back to defaults in
// NewSearchTurnUseCase.
type SearchLimits struct {
	MaxIterations    int
	TurnTimeout      time.Duration
	ExtractorTimeout time.Duration
	RetrievalTimeout time.Duration
	CandidateLimit   int
}

// WeightsSource yields the current rerank weights. Implementations may hot
// reload between requests but must return a stable value per call.
type WeightsSource interface {
	Current() domain.RerankWeights
}

// SearchTurnUseCase owns the REASONING -> ACTING -> EVALUATING loop for one
// user turn and hands the final candidate list (or a clarification) to the
// caller. IterationState is turn-local; turns share no mutable state.
type SearchTurnUseCase struct {
	extractor ports.RequirementExtractor
	lexical   ports.LexicalSearcher
	vector    ports.VectorSearcher
	reranker  *Reranker
	weights   WeightsSource
	limits    SearchLimits
}

func NewSearchTurnUseCase(
	extractor ports.RequirementExtractor,
	lexical ports.LexicalSearcher,
	vector ports.VectorSearcher,
	reranker *Reranker,
	weights WeightsSource,
	limits SearchLimits,
) *SearchTurnUseCase {
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = 2
	}
	if limits.TurnTimeout <= 0 {
		limits.TurnTimeout = 20 * time.Second
	}
	if limits.ExtractorTimeout <= 0 {
		limits.ExtractorTimeout = 5 * time.Second
	}
	if limits.RetrievalTimeout <= 0 {
		limits.RetrievalTimeout = 5 * time.Second
	}
	if limits.CandidateLimit <= 0 {
		limits.CandidateLimit = defaultCandidateLimit
	}
	return &SearchTurnUseCase{
		extractor: extractor,
		lexical:   lexical,
		vector:    vector,
		reranker:  reranker,
		weights:   weights,
		limits:    limits,
	}
}

func (uc *SearchTurnUseCase) Search(ctx context.Context, req domain.SearchRequest) (*domain.TurnResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search turn", errors.New("query is required"))
	}
	limit := req.Limit
	if limit <= 0 || limit > uc.limits.CandidateLimit {
		limit = uc.limits.CandidateLimit
	}

	turnCtx, cancel := context.WithTimeout(ctx, uc.limits.TurnTimeout)
	defer cancel()

	state := domain.IterationState{
		OriginalQuery: query,
		Query:         query,
		Stage:         domain.StageRefine,
	}
	degradations := make([]string, 0, 2)
	semanticOnly := false
	relaxed := false

	var lastEval *domain.EvaluationResult
	var lastCandidates []domain.Candidate

	for i := 1; i <= uc.limits.MaxIterations; i++ {
		state.Iteration = i

		// REASONING: derive the requirement for this iteration. Relaxed
		// iterations reuse the planner's requirement instead of re-extracting.
		switch {
		case semanticOnly:
			state.Requirement = domain.Requirement{}
		case relaxed:
			// planner already rewrote state.Requirement
		default:
			requirement, degraded := uc.extractRequirement(turnCtx, state.Query, req.PriorRequirement)
			if degraded {
				degradations = appendOnce(degradations, degradationExtractor)
			}
			if req.PriorRequirement != nil && looksLikeFollowUp(state.Query) {
				requirement = requirement.MergeMissingFrom(*req.PriorRequirement)
			}
			state.Requirement = requirement
		}

		if turnCtx.Err() != nil {
			break
		}

		// ACTING: pick alpha from query shape and fan out to both backends.
		_, alpha := classifyQueryMode(state.Query, state.Requirement)
		if semanticOnly {
			alpha = 0
		}
		lexHits, vecHits, retrievalDegradations := uc.retrieve(turnCtx, state.Query, state.Requirement, limit, semanticOnly)
		for _, d := range retrievalDegradations {
			degradations = appendOnce(degradations, d)
			// One dead backend forces the blend onto the surviving side.
			if d == degradationLexical {
				alpha = 0
			}
			if d == degradationVector {
				alpha = 1
			}
		}
		if turnCtx.Err() != nil {
			break
		}
		candidates := scoreHybrid(lexHits, vecHits, alpha, limit)

		// EVALUATING
		eval := evaluateCandidates(candidates, state.Requirement)
		lastEval = &eval
		lastCandidates = candidates

		if eval.Satisfied {
			ranked, rerankDegradations := uc.rerank(turnCtx, candidates, state, req)
			for _, d := range rerankDegradations {
				degradations = appendOnce(degradations, d)
			}
			return &domain.TurnResult{
				Candidates:   ranked,
				Requirement:  state.Requirement,
				Iterations:   i,
				Stage:        state.Stage,
				Degradations: degradations,
			}, nil
		}

		state.ConsecutiveFailures++
		decision := planRelaxation(state, eval, i >= uc.limits.MaxIterations)
		if decision.Stage == domain.StageGiveUp {
			state.Stage = domain.StageGiveUp
			break
		}
		state.Stage = decision.Stage
		state.Query = decision.Query
		state.Requirement = decision.Requirement
		state.RecordStrategy(decision.Stage.String())
		semanticOnly = decision.SemanticOnly
		relaxed = decision.Stage != domain.StageRefine
	}

	if lastEval == nil {
		// REASONING never completed once; this is the only case where the
		// deadline aborts the user-visible response.
		err := turnCtx.Err()
		if err == nil {
			err = errors.New("no iteration completed")
		}
		return nil, domain.WrapError(domain.ErrTemporary, "search turn", err)
	}

	if turnCtx.Err() != nil {
		// Best-effort partial answer from the last completed evaluation.
		return &domain.TurnResult{
			Candidates:   lastCandidates,
			Requirement:  state.Requirement,
			Iterations:   state.Iteration,
			Stage:        state.Stage,
			Degradations: appendOnce(degradations, degradationDeadline),
		}, nil
	}

	// Budget exhausted without a satisfying result: ask the user instead of
	// inventing substitute data.
	return &domain.TurnResult{
		Clarification: &domain.ClarificationRequest{
			Issues:          lastEval.Issues,
			TriedStrategies: state.TriedStrategies,
		},
		Requirement:  state.Requirement,
		Iterations:   state.Iteration,
		Stage:        domain.StageGiveUp,
		Degradations: degradations,
	}, nil
}

// extractRequirement calls the extractor with one retry; a second failure
// degrades to an unfiltered requirement built from the raw query text so the
// retry does not count against the iteration budget.
func (uc *SearchTurnUseCase) extractRequirement(ctx context.Context, query string, prior *domain.Requirement) (domain.Requirement, bool) {
	for attempt := 0; attempt < 2; attempt++ {
		extractCtx, cancel := context.WithTimeout(ctx, uc.limits.ExtractorTimeout)
		requirement, err := uc.extractor.Extract(extractCtx, query, prior)
		cancel()
		if err == nil {
			return requirement, false
		}
		if ctx.Err() != nil {
			break
		}
	}
	return domain.Requirement{}, true
}

func (uc *SearchTurnUseCase) retrieve(ctx context.Context, query string, filters domain.Requirement, limit int, semanticOnly bool) ([]domain.Hit, []domain.Hit, []string) {
	var (
		lexHits, vecHits []domain.Hit
		lexErr, vecErr   error
		wg               sync.WaitGroup
	)

	if !semanticOnly {
		wg.Add(1)
		go func() {
			defer wg.Done()
			searchCtx, cancel := context.WithTimeout(ctx, uc.limits.RetrievalTimeout)
			defer cancel()
			lexHits, lexErr = uc.lexical.SearchLexical(searchCtx, query, filters, limit)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		searchCtx, cancel := context.WithTimeout(ctx, uc.limits.RetrievalTimeout)
		defer cancel()
		vecHits, vecErr = uc.vector.SearchVector(searchCtx, query, limit)
	}()
	wg.Wait()

	degradations := make([]string, 0, 2)
	if lexErr != nil {
		lexHits = nil
		degradations = append(degradations, degradationLexical)
	}
	if vecErr != nil {
		vecHits = nil
		degradations = append(degradations, degradationVector)
	}
	return lexHits, vecHits, degradations
}

func (uc *SearchTurnUseCase) rerank(ctx context.Context, candidates []domain.Candidate, state domain.IterationState, req domain.SearchRequest) ([]domain.Candidate, []string) {
	if uc.reranker == nil {
		return candidates, nil
	}
	weights := domain.DefaultRerankWeights()
	if uc.weights != nil {
		weights = uc.weights.Current()
	}
	return uc.reranker.Rerank(ctx, candidates, RerankContext{
		Query:       state.OriginalQuery,
		UserID:      req.UserID,
		Requirement: state.Requirement,
		Weights:     weights,
	})
}

func appendOnce(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}
