package lifecycle

import (
	"strings"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// CompletionInput is what a completion predicate may inspect. Task already
// contains the interactions appended for Response; PriorInteractions is the
// count recorded before this submission.
type CompletionInput struct {
	Task              *domain.Task
	Response          domain.Response
	PriorInteractions int
}

// CompletionPredicate decides whether a submission finishes a task.
type CompletionPredicate interface {
	Complete(in CompletionInput) bool
}

// CompletionFunc adapts a function to CompletionPredicate.
type CompletionFunc func(in CompletionInput) bool

func (f CompletionFunc) Complete(in CompletionInput) bool { return f(in) }

// ExplicitFlag completes when the learner marks the response as final.
func ExplicitFlag() CompletionPredicate {
	return CompletionFunc(func(in CompletionInput) bool {
		return in.Response.Complete
	})
}

// InteractionThreshold completes once the task holds at least n interactions.
func InteractionThreshold(n int) CompletionPredicate {
	return CompletionFunc(func(in CompletionInput) bool {
		return len(in.Task.Interactions) >= n
	})
}

// PriorInteractions completes when at least n interactions were already
// recorded before this submission.
func PriorInteractions(n int) CompletionPredicate {
	return CompletionFunc(func(in CompletionInput) bool {
		return in.PriorInteractions >= n
	})
}

// SolutionProvided completes when the response carries a solution.
func SolutionProvided() CompletionPredicate {
	return CompletionFunc(func(in CompletionInput) bool {
		return in.Response.Solution != ""
	})
}

// KeywordCoverage completes when the serialized response mentions every
// keyword, ignoring case. This is a placeholder heuristic; swap it for a
// graded predicate without touching the lifecycle.
func KeywordCoverage(keywords ...string) CompletionPredicate {
	return CompletionFunc(func(in CompletionInput) bool {
		text := strings.ToLower(in.Response.Serialized())
		for _, kw := range keywords {
			if !strings.Contains(text, strings.ToLower(kw)) {
				return false
			}
		}
		return len(keywords) > 0
	})
}

// AnyOf completes when any predicate does.
func AnyOf(preds ...CompletionPredicate) CompletionPredicate {
	return CompletionFunc(func(in CompletionInput) bool {
		for _, p := range preds {
			if p.Complete(in) {
				return true
			}
		}
		return false
	})
}

// DefaultProjectCompletion finishes a project task on an explicit flag, after
// three learner turns and three replies, or when the response covers
// problem, solution and implementation.
func DefaultProjectCompletion() CompletionPredicate {
	return AnyOf(
		ExplicitFlag(),
		InteractionThreshold(6),
		KeywordCoverage("problem", "solution", "implementation"),
	)
}

// DefaultDiscoveryCompletion finishes a discovery task on an explicit flag,
// a supplied solution, or once three interactions were already recorded.
func DefaultDiscoveryCompletion() CompletionPredicate {
	return AnyOf(
		ExplicitFlag(),
		SolutionProvided(),
		PriorInteractions(3),
	)
}
