package evaluation

import (
	"fmt"
	"strconv"
)

// Tier is a coarse score band used in feedback text.
type Tier string

const (
	TierExcellent        Tier = "excellent"
	TierVeryGood         Tier = "very_good"
	TierGood             Tier = "good"
	TierSatisfactory     Tier = "satisfactory"
	TierNeedsImprovement Tier = "needs_improvement"
)

// TierFor maps a 0-100 score onto its tier.
func TierFor(score float64) Tier {
	switch {
	case score >= 90:
		return TierExcellent
	case score >= 80:
		return TierVeryGood
	case score >= 70:
		return TierGood
	case score >= 60:
		return TierSatisfactory
	default:
		return TierNeedsImprovement
	}
}

var tierWords = map[string]map[Tier]string{
	"en": {
		TierExcellent:        "excellent",
		TierVeryGood:         "very good",
		TierGood:             "good",
		TierSatisfactory:     "satisfactory",
		TierNeedsImprovement: "needs improvement",
	},
	"zh": {
		TierExcellent:        "优秀",
		TierVeryGood:         "非常好",
		TierGood:             "良好",
		TierSatisfactory:     "合格",
		TierNeedsImprovement: "需要改进",
	},
	"es": {
		TierExcellent:        "excelente",
		TierVeryGood:         "muy bueno",
		TierGood:             "bueno",
		TierSatisfactory:     "satisfactorio",
		TierNeedsImprovement: "necesita mejorar",
	},
}

var programTemplates = map[string]string{
	"en": "Overall performance: %s (%s%%). You completed %d of %d tasks.",
	"zh": "整体表现：%s（%s%%）。你完成了 %d/%d 个任务。",
	"es": "Desempeño general: %s (%s%%). Completaste %d de %d tareas.",
}

var taskTemplates = map[string]string{
	"en": "Task performance: %s (%s%%).",
	"zh": "任务表现：%s（%s%%）。",
	"es": "Desempeño en la tarea: %s (%s%%).",
}

var languageNames = map[string]string{
	"en": "English",
	"zh": "Chinese",
	"es": "Spanish",
}

// TierWord returns the localized adjective for tier.
func TierWord(lang string, tier Tier) string {
	words, ok := tierWords[lang]
	if !ok {
		words = tierWords["en"]
	}
	return words[tier]
}

func programFeedback(lang string, tier Tier, score float64, completed, total int) string {
	return fmt.Sprintf(programTemplates[lang], TierWord(lang, tier), formatScore(score), completed, total)
}

func taskFeedback(lang string, score float64) string {
	return fmt.Sprintf(taskTemplates[lang], TierWord(lang, TierFor(score)), formatScore(score))
}

// formatScore renders a score at its stored two-decimal precision without
// trailing zeros: 85 -> "85", 36.5 -> "36.5".
func formatScore(score float64) string {
	return strconv.FormatFloat(round2(score), 'f', -1, 64)
}
