package domain

// RelaxationStage is the relaxation planner's position in its forward-only
// state machine.
type RelaxationStage int

const (
	StageRefine RelaxationStage = iota
	StageLocationOnly
	StageSemanticFallback
	StageGiveUp
)

func (s RelaxationStage) String() string {
	switch s {
	case StageRefine:
		return "refine"
	case StageLocationOnly:
		return "location_only"
	case StageSemanticFallback:
		return "semantic_fallback"
	case StageGiveUp:
		return "give_up"
	default:
		return "unknown"
	}
}

// IterationState is the ReAct loop's working memory for one user turn.
// Owned exclusively by the controller and discarded when the turn ends.
type IterationState struct {
	Iteration           int
	OriginalQuery       string
	Query               string
	Requirement         Requirement
	ConsecutiveFailures int
	Stage               RelaxationStage
	TriedStrategies     []string
}

// RecordStrategy appends a strategy name once.
func (s *IterationState) RecordStrategy(name string) {
	for _, tried := range s.TriedStrategies {
		if tried == name {
			return
		}
	}
	s.TriedStrategies = append(s.TriedStrategies, name)
}
