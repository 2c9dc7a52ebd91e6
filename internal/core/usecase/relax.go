package usecase

import (
	"strings"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

// relaxationDecision is the planner's instruction for the next iteration.
type relaxationDecision struct {
	Stage       domain.RelaxationStage
	Query       string
	Requirement domain.Requirement
	// SemanticOnly forces a pure vector search over the original query.
	SemanticOnly bool
}

// planRelaxation decides the next strategy after a failed evaluation.
// Transitions run strictly forward: REFINE -> LOCATION_ONLY ->
// SEMANTIC_FALLBACK -> GIVE_UP. Constraint relaxation only engages after two
// consecutive failures or once the iteration budget is spent; a single bad
// iteration retries in place via REFINE.
func planRelaxation(state domain.IterationState, eval domain.EvaluationResult, budgetExhausted bool) relaxationDecision {
	if state.Stage == domain.StageGiveUp {
		return giveUp(state)
	}
	if budgetExhausted {
		return giveUp(state)
	}

	if state.ConsecutiveFailures < 2 && state.Stage == domain.StageRefine && state.Iteration <= 1 {
		return relaxationDecision{
			Stage:       domain.StageRefine,
			Query:       refineQuery(state.Query, state.Requirement, eval.Issues),
			Requirement: state.Requirement.DropLastQualifier(),
		}
	}

	switch state.Stage {
	case domain.StageRefine:
		return relaxationDecision{
			Stage:       domain.StageLocationOnly,
			Query:       state.OriginalQuery,
			Requirement: state.Requirement.LocationOnly(),
		}
	case domain.StageLocationOnly:
		return relaxationDecision{
			Stage:        domain.StageSemanticFallback,
			Query:        state.OriginalQuery,
			Requirement:  domain.Requirement{},
			SemanticOnly: true,
		}
	default:
		return giveUp(state)
	}
}

func giveUp(state domain.IterationState) relaxationDecision {
	return relaxationDecision{
		Stage:       domain.StageGiveUp,
		Query:       state.OriginalQuery,
		Requirement: state.Requirement,
	}
}

// refineQuery rewrites the query text deterministically from the diagnosed
// issues: drop the most specific qualifier, then anchor the query on the
// requested location so retrieval leans on what the user was explicit about.
func refineQuery(query string, req domain.Requirement, issues []string) string {
	refined := query
	if len(req.Qualifiers) > 0 {
		last := req.Qualifiers[len(req.Qualifiers)-1]
		refined = strings.TrimSpace(strings.ReplaceAll(refined, last, ""))
	}
	refined = strings.Join(strings.Fields(refined), " ")

	location := strings.TrimSpace(req.District)
	if location == "" {
		location = strings.TrimSpace(req.City)
	}
	if location != "" && !strings.Contains(strings.ToLower(refined), strings.ToLower(location)) {
		refined = strings.TrimSpace(refined + " " + location)
	}
	if refined == "" {
		refined = query
	}
	return refined
}
