package domain

import (
	"fmt"
	"strings"
)

// Mode identifies one of the learning modalities a Scenario can be played in.
type Mode string

const (
	ModeAssessment Mode = "assessment"
	ModePBL        Mode = "pbl"
	ModeDiscovery  Mode = "discovery"
)

// Modes lists every supported mode in router registration order.
var Modes = []Mode{ModeAssessment, ModePBL, ModeDiscovery}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeAssessment, ModePBL, ModeDiscovery:
		return true
	}
	return false
}

// ParseMode converts a caller-supplied mode tag into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// ProgramStatus is the lifecycle state of a Program.
type ProgramStatus string

const (
	ProgramPending   ProgramStatus = "pending"
	ProgramActive    ProgramStatus = "active"
	ProgramCompleted ProgramStatus = "completed"
	ProgramAbandoned ProgramStatus = "abandoned"
)

// External returns the status as reported to callers. Abandoned programs
// surface as "expired".
func (s ProgramStatus) External() string {
	if s == ProgramAbandoned {
		return "expired"
	}
	return string(s)
}

// Terminal reports whether no further transitions are possible.
func (s ProgramStatus) Terminal() bool {
	return s == ProgramCompleted || s == ProgramAbandoned
}

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
)

// InteractionType distinguishes learner input from generated replies.
type InteractionType string

const (
	InteractionUserInput  InteractionType = "user_input"
	InteractionAIResponse InteractionType = "ai_response"
)

// EvaluationType describes what an Evaluation judges.
type EvaluationType string

const (
	EvaluationTask      EvaluationType = "task"
	EvaluationProgram   EvaluationType = "program"
	EvaluationFormative EvaluationType = "formative"
	EvaluationSummative EvaluationType = "summative"
)

// DefaultLanguage is used whenever a requested language has no templates.
const DefaultLanguage = "en"

var supportedLanguages = map[string]bool{
	"en": true,
	"zh": true,
	"es": true,
}

// SupportedLanguage reports whether feedback templates exist for lang.
func SupportedLanguage(lang string) bool {
	return supportedLanguages[lang]
}

// NormalizeLanguage maps a caller-supplied language code onto one of the
// template languages. Region suffixes are dropped ("zh-TW" -> "zh") and
// anything unrecognized falls back to DefaultLanguage.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if supportedLanguages[lang] {
		return lang
	}
	return DefaultLanguage
}
