package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// AssessmentTemplate is a reusable test definition assigned to jobs.
type AssessmentTemplate struct {
	ID               string `json:"id" gorm:"primaryKey;size:36"`
	Title            string `json:"title" gorm:"not null;size:200"`
	IsActive         bool   `json:"is_active" gorm:"default:true;index"`
	AllowRetry       bool   `json:"allow_retry" gorm:"default:false"`
	MaxAttempts      int    `json:"max_attempts" gorm:"default:1"`
	TimeLimit        *int   `json:"time_limit"` // minutes, nil means unlimited
	ShuffleQuestions bool   `json:"shuffle_questions" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Questions []AssessmentQuestion `json:"questions,omitempty" gorm:"foreignKey:TemplateID"`
}

func (AssessmentTemplate) TableName() string {
	return "assessment_templates"
}

// Deadline returns now+timeLimit, or nil for unlimited templates.
func (t *AssessmentTemplate) Deadline(now time.Time) *time.Time {
	if t.TimeLimit == nil || *t.TimeLimit <= 0 {
		return nil
	}
	deadline := now.Add(time.Duration(*t.TimeLimit) * time.Minute)
	return &deadline
}

// AssessmentQuestion belongs to a template. Options is a JSON array of opaque objects.
type AssessmentQuestion struct {
	ID            string         `json:"id" gorm:"primaryKey;size:36"`
	TemplateID    string         `json:"template_id" gorm:"not null;index;size:36"`
	IsActive      bool           `json:"is_active" gorm:"default:true"`
	Position      int            `json:"position" gorm:"not null;default:0"`
	Section       string         `json:"section" gorm:"size:100"`
	Difficulty    string         `json:"difficulty" gorm:"size:20"`
	QuestionText  string         `json:"question_text" gorm:"type:text;not null"`
	CodeSnippet   *string        `json:"code_snippet" gorm:"type:text"`
	AllowMultiple bool           `json:"allow_multiple" gorm:"default:false"`
	Options       datatypes.JSON `json:"options" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AssessmentQuestion) TableName() string {
	return "assessment_questions"
}

// QuestionOption is a single option record. Its keys are not fixed.
type QuestionOption map[string]any

// DecodeOptions parses the options blob. An empty blob yields no options.
func (q *AssessmentQuestion) DecodeOptions() ([]QuestionOption, error) {
	if len(q.Options) == 0 || string(q.Options) == "null" {
		return []QuestionOption{}, nil
	}
	var options []QuestionOption
	if err := json.Unmarshal(q.Options, &options); err != nil {
		return nil, fmt.Errorf("invalid options for question %s: %w", q.ID, err)
	}
	return options, nil
}
