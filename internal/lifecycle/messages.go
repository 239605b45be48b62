package lifecycle

import (
	"fmt"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

var phaseMessages = map[string]map[string]string{
	"en": {
		domain.PhaseUnderstanding: "Good start. What do you already know about this problem, and what is still unclear?",
		domain.PhaseExploring:     "Nice exploration. Which options did you compare, and why does one stand out?",
		domain.PhaseCreating:      "Great progress. How will you build and test your solution?",
	},
	"zh": {
		domain.PhaseUnderstanding: "很好的开始。关于这个问题你已经了解了什么？还有哪些不清楚？",
		domain.PhaseExploring:     "探索得不错。你比较了哪些方案？为什么其中一个更突出？",
		domain.PhaseCreating:      "进展很棒。你打算如何实现并测试你的方案？",
	},
	"es": {
		domain.PhaseUnderstanding: "Buen comienzo. ¿Qué sabes ya de este problema y qué sigue sin estar claro?",
		domain.PhaseExploring:     "Buena exploración. ¿Qué opciones comparaste y por qué destaca una?",
		domain.PhaseCreating:      "Gran avance. ¿Cómo construirás y probarás tu solución?",
	},
}

// phaseMessage returns the canned reply for a project phase. Unknown phases
// are treated as understanding.
func phaseMessage(lang, phase string) string {
	msgs := phaseMessages[domain.NormalizeLanguage(lang)]
	if m, ok := msgs[phase]; ok {
		return m
	}
	return msgs[domain.PhaseUnderstanding]
}

var discoveryMessages = map[string][2]string{
	"en": {"Interesting approach! Keep going and tell me what you would try next.", "Challenge complete! You earned %d XP."},
	"zh": {"有意思的思路！继续说说你下一步会尝试什么。", "挑战完成！你获得了 %d 经验值。"},
	"es": {"¡Enfoque interesante! Sigue y cuéntame qué probarías después.", "¡Desafío completado! Ganaste %d XP."},
}

func discoveryMessage(lang string, completed bool, xp int) string {
	msgs := discoveryMessages[domain.NormalizeLanguage(lang)]
	if completed {
		return fmt.Sprintf(msgs[1], xp)
	}
	return msgs[0]
}
