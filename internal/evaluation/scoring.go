package evaluation

import (
	"math"
	"strconv"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// Project dimension weights applied to the dialogue-depth proxy.
const (
	KnowledgeWeight = 0.9
	SkillsWeight    = 0.85
	AttitudesWeight = 0.95

	// projectDepthInputs is the number of learner turns that earns full depth.
	projectDepthInputs = 5
)

// Project activity score components.
const (
	interactionPointsMax = 40.0
	interactionsForMax   = 6.0
	timePointsMax        = 30.0
	timePointsOvertime   = 20.0
	completionPoints     = 30.0
	minFocusMinutes      = 20.0
	maxFocusMinutes      = 60.0
)

// evaluateAssessmentTask scores the share of correctly answered questions.
// A question answered more than once counts with its latest answer. Each
// answer is paired with its question through the recorded question id, or
// by position when no id was recorded.
func evaluateAssessmentTask(task *domain.Task, ev *domain.Evaluation) {
	type answer struct {
		correct bool
		domain  string
	}
	answers := map[string]answer{}
	var order []string

	pos := 0
	for _, in := range task.Interactions {
		if in.Type != domain.InteractionUserInput || in.Correct == nil {
			continue
		}
		key := in.QuestionID()
		var q domain.Question
		found := false
		if key != "" {
			q, found = task.Content.Question(key)
		} else if pos < len(task.Content.Questions) {
			q, found = task.Content.Questions[pos], true
			key = q.ID
		}
		if key == "" {
			key = "#" + strconv.Itoa(pos)
		}
		pos++

		a := answer{correct: *in.Correct}
		if found {
			a.domain = q.Domain
		}
		if _, seen := answers[key]; !seen {
			order = append(order, key)
		}
		answers[key] = a
	}

	correct := 0
	domainTotal := map[string]int{}
	domainCorrect := map[string]int{}
	for _, key := range order {
		a := answers[key]
		if a.correct {
			correct++
		}
		if a.domain == "" {
			continue
		}
		domainTotal[a.domain]++
		if a.correct {
			domainCorrect[a.domain]++
		}
	}

	total := len(task.Content.QuestionIDs)
	if total == 0 {
		total = len(order)
	}
	if total > 0 {
		ev.Score = math.Round(float64(correct) / float64(total) * 100)
	}
	for d, n := range domainTotal {
		ev.DomainScores[d] = math.Round(float64(domainCorrect[d]) / float64(n) * 100)
	}
	ev.Metadata.CorrectAnswers = correct
	ev.Metadata.TotalQuestions = total
}

// evaluateProjectTask scores knowledge, skills and attitudes from dialogue
// depth and the task score from activity.
func evaluateProjectTask(task *domain.Task, ev *domain.Evaluation) {
	inputs := task.CountInteractions(domain.InteractionUserInput)
	depth := math.Min(float64(inputs)/projectDepthInputs, 1) * 100

	ev.DomainScores["knowledge"] = round2(depth * KnowledgeWeight)
	ev.DomainScores["skills"] = round2(depth * SkillsWeight)
	ev.DomainScores["attitudes"] = round2(depth * AttitudesWeight)
	ev.Score = ProjectTaskScore(task)
	ev.Metadata.KSACodes = append([]string(nil), task.Content.KSACodes...)
}

// ProjectTaskScore returns the activity score of a project task: up to 40
// points for interactions, up to 30 for time on task and 30 for completion.
func ProjectTaskScore(task *domain.Task) float64 {
	interactionPoints := math.Min(float64(len(task.Interactions))/interactionsForMax, 1) * interactionPointsMax

	minutes := float64(task.TimeSpentSeconds) / 60
	var timePoints float64
	switch {
	case minutes < minFocusMinutes:
		timePoints = timePointsMax * minutes / minFocusMinutes
	case minutes <= maxFocusMinutes:
		timePoints = timePointsMax
	default:
		timePoints = timePointsOvertime
	}

	var done float64
	if task.Status == domain.TaskCompleted {
		done = completionPoints
	}
	return math.Round(interactionPoints + timePoints + done)
}

// evaluateDiscoveryTask scores engagement: the share of learner input among
// all interactions, boosted by half and capped at 1.
func evaluateDiscoveryTask(task *domain.Task, ev *domain.Evaluation) {
	total := len(task.Interactions)
	if total > 0 {
		rate := float64(task.CountInteractions(domain.InteractionUserInput)) / float64(total)
		ev.Score = math.Round(math.Min(rate*1.5, 1) * 100)
	}
	if task.Status == domain.TaskCompleted {
		ev.Metadata.XPEarned = task.Extension.XPReward
		ev.Metadata.SkillsImproved = append([]string(nil), task.Extension.Skills...)
	}
}
