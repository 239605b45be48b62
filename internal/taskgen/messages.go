package taskgen

import (
	"fmt"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

type messageKey int

const (
	msgAssessmentInstructions messageKey = iota
	msgWelcomeTitle
	msgWelcomeInstructions
	msgSkillInstructions
)

var messages = map[string]map[messageKey]string{
	"en": {
		msgAssessmentInstructions: "Answer all %d questions before the time runs out.",
		msgWelcomeTitle:           "Welcome, explorer",
		msgWelcomeInstructions:    "Look around and introduce yourself. %s",
		msgSkillInstructions:      "Take on a challenge to practise %s.",
	},
	"zh": {
		msgAssessmentInstructions: "请在时间结束前回答全部 %d 道题目。",
		msgWelcomeTitle:           "欢迎你，探索者",
		msgWelcomeInstructions:    "四处看看并介绍你自己。%s",
		msgSkillInstructions:      "接受挑战来练习%s。",
	},
	"es": {
		msgAssessmentInstructions: "Responde las %d preguntas antes de que termine el tiempo.",
		msgWelcomeTitle:           "Bienvenido, explorador",
		msgWelcomeInstructions:    "Explora el entorno y preséntate. %s",
		msgSkillInstructions:      "Acepta un desafío para practicar %s.",
	},
}

func message(lang string, key messageKey, args ...any) string {
	tmpl := messages[domain.NormalizeLanguage(lang)][key]
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
