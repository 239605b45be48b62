package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LocalizedText maps a language code to text in that language.
type LocalizedText map[string]string

// Get returns the text for lang, falling back to DefaultLanguage and then to
// any available translation.
func (t LocalizedText) Get(lang string) string {
	if v, ok := t[lang]; ok && v != "" {
		return v
	}
	if v, ok := t[DefaultLanguage]; ok && v != "" {
		return v
	}
	for _, v := range t {
		if v != "" {
			return v
		}
	}
	return ""
}

// TextField is an authored text value that may be written either as a plain
// string or as a language-keyed map.
type TextField struct {
	Single    string
	Localized LocalizedText
}

// Text builds a single-string TextField.
func Text(s string) TextField {
	return TextField{Single: s}
}

// Localized builds a language-keyed TextField.
func Localized(m map[string]string) TextField {
	return TextField{Localized: LocalizedText(m)}
}

// IsZero reports whether no text was authored.
func (f TextField) IsZero() bool {
	return f.Single == "" && len(f.Localized) == 0
}

// Normalize converts the field to its language-keyed form. A plain string is
// keyed under lang; an absent value yields an empty string under lang.
func (f TextField) Normalize(lang string) LocalizedText {
	if len(f.Localized) > 0 {
		out := make(LocalizedText, len(f.Localized))
		for k, v := range f.Localized {
			out[k] = v
		}
		return out
	}
	return LocalizedText{lang: f.Single}
}

func (f TextField) MarshalJSON() ([]byte, error) {
	if len(f.Localized) > 0 {
		return json.Marshal(map[string]string(f.Localized))
	}
	return json.Marshal(f.Single)
}

func (f *TextField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = TextField{Single: s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("text field must be a string or a language map: %w", err)
	}
	*f = TextField{Localized: m}
	return nil
}

func (f TextField) MarshalYAML() (interface{}, error) {
	if len(f.Localized) > 0 {
		return map[string]string(f.Localized), nil
	}
	return f.Single, nil
}

func (f *TextField) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*f = TextField{Single: value.Value}
		return nil
	case yaml.MappingNode:
		var m map[string]string
		if err := value.Decode(&m); err != nil {
			return err
		}
		*f = TextField{Localized: m}
		return nil
	}
	return fmt.Errorf("line %d: text field must be a string or a language map", value.Line)
}

// Scenario is an authored, read-only learning template.
type Scenario struct {
	ID            string         `json:"id" yaml:"id"`
	Mode          Mode           `json:"mode" yaml:"mode"`
	Title         TextField      `json:"title" yaml:"title"`
	Description   TextField      `json:"description,omitempty" yaml:"description,omitempty"`
	TaskTemplates []TaskTemplate `json:"task_templates,omitempty" yaml:"task_templates,omitempty"`

	Assessment *AssessmentConfig `json:"assessment,omitempty" yaml:"assessment,omitempty"`
	Project    *ProjectConfig    `json:"project,omitempty" yaml:"project,omitempty"`
	Discovery  *DiscoveryConfig  `json:"discovery,omitempty" yaml:"discovery,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// TaskTemplate describes one project-mode task.
type TaskTemplate struct {
	ID          string    `json:"id" yaml:"id"`
	Title       TextField `json:"title" yaml:"title"`
	Description TextField `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string    `json:"type,omitempty" yaml:"type,omitempty"`
	KSACodes    []string  `json:"ksa_codes,omitempty" yaml:"ksa_codes,omitempty"`
}

// AssessmentConfig holds the timed multiple-choice settings.
type AssessmentConfig struct {
	TimeLimitMinutes int                   `json:"time_limit_minutes" yaml:"time_limit_minutes"`
	PassingScore     int                   `json:"passing_score" yaml:"passing_score"`
	QuestionCount    int                   `json:"question_count" yaml:"question_count"`
	DefaultLanguage  string                `json:"default_language,omitempty" yaml:"default_language,omitempty"`
	QuestionBanks    map[string][]Question `json:"question_banks" yaml:"question_banks"`
}

// DefaultPassingScore applies when an assessment omits its threshold.
const DefaultPassingScore = 70

// Passing returns the configured passing threshold.
func (c *AssessmentConfig) Passing() int {
	if c.PassingScore <= 0 {
		return DefaultPassingScore
	}
	return c.PassingScore
}

// BankLanguage returns the fallback language for the question bank.
func (c *AssessmentConfig) BankLanguage() string {
	if c.DefaultLanguage != "" {
		return c.DefaultLanguage
	}
	return DefaultLanguage
}

// Question is one multiple-choice item.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	Text          string   `json:"text" yaml:"text"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer string   `json:"correct_answer" yaml:"correct_answer"`
	Domain        string   `json:"domain,omitempty" yaml:"domain,omitempty"`
	Explanation   string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// ProjectConfig holds project-mode competency mappings.
type ProjectConfig struct {
	KSAMapping KSAMapping `json:"ksa_mapping" yaml:"ksa_mapping"`
}

// KSAMapping groups the scenario's competency codes by dimension.
type KSAMapping struct {
	Knowledge []string `json:"knowledge,omitempty" yaml:"knowledge,omitempty"`
	Skills    []string `json:"skills,omitempty" yaml:"skills,omitempty"`
	Attitudes []string `json:"attitudes,omitempty" yaml:"attitudes,omitempty"`
}

// DiscoveryConfig holds the gamified exploration world.
type DiscoveryConfig struct {
	CareerType   string    `json:"career_type,omitempty" yaml:"career_type,omitempty"`
	WorldSetting TextField `json:"world_setting,omitempty" yaml:"world_setting,omitempty"`
	SkillTree    SkillTree `json:"skill_tree" yaml:"skill_tree"`
}

// SkillTree lists the skills a learner can work through.
type SkillTree struct {
	CoreSkills     []Skill `json:"core_skills" yaml:"core_skills"`
	AdvancedSkills []Skill `json:"advanced_skills,omitempty" yaml:"advanced_skills,omitempty"`
}

// IsAdvanced reports whether skillID belongs to the advanced list.
func (t SkillTree) IsAdvanced(skillID string) bool {
	for _, s := range t.AdvancedSkills {
		if s.ID == skillID {
			return true
		}
	}
	return false
}

// Unlocked reports whether every prerequisite of skill that names a skill in
// the tree is in done. Prerequisites outside the tree never block.
func (t SkillTree) Unlocked(skill Skill, done map[string]bool) bool {
	for _, pre := range skill.Prerequisites {
		if t.contains(pre) && !done[pre] {
			return false
		}
	}
	return true
}

func (t SkillTree) contains(skillID string) bool {
	for _, s := range t.CoreSkills {
		if s.ID == skillID {
			return true
		}
	}
	return t.IsAdvanced(skillID)
}

// Skill is a node of the skill tree.
type Skill struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
}

// CheckModeData verifies the scenario carries the data block its mode needs.
func (s *Scenario) CheckModeData() error {
	switch s.Mode {
	case ModeAssessment:
		if s.Assessment == nil || len(s.Assessment.QuestionBanks) == 0 {
			return fmt.Errorf("%w: assessment question bank", ErrScenarioDataMissing)
		}
	case ModePBL:
		if s.Project == nil || len(s.TaskTemplates) == 0 {
			return fmt.Errorf("%w: project task templates", ErrScenarioDataMissing)
		}
	case ModeDiscovery:
		if s.Discovery == nil || len(s.Discovery.SkillTree.CoreSkills) == 0 {
			return fmt.Errorf("%w: discovery skill tree", ErrScenarioDataMissing)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, s.Mode)
	}
	return nil
}

// Validate checks authored fields before a scenario is stored.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: scenario id is required", ErrInvalidInput)
	}
	if s.Title.IsZero() {
		return fmt.Errorf("%w: scenario %s has no title", ErrInvalidInput, s.ID)
	}
	if err := s.CheckModeData(); err != nil {
		return err
	}
	if s.Mode == ModeAssessment {
		for lang, bank := range s.Assessment.QuestionBanks {
			seen := make(map[string]bool, len(bank))
			for _, q := range bank {
				if q.ID == "" {
					return fmt.Errorf("%w: question without id in %s bank", ErrInvalidInput, lang)
				}
				if seen[q.ID] {
					return fmt.Errorf("%w: duplicate question %s in %s bank", ErrInvalidInput, q.ID, lang)
				}
				seen[q.ID] = true
			}
		}
	}
	return nil
}
