package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "NOT_STARTED"
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
	AttemptEvaluated  AttemptStatus = "EVALUATED"
	AttemptCompleted  AttemptStatus = "COMPLETED"
)

// FinalAttemptStatuses count against a template's retry limit.
var FinalAttemptStatuses = []AttemptStatus{AttemptSubmitted, AttemptEvaluated, AttemptCompleted}

func (s AttemptStatus) IsFinal() bool {
	switch s {
	case AttemptSubmitted, AttemptEvaluated, AttemptCompleted:
		return true
	}
	return false
}

type AssessmentAttempt struct {
	ID            string        `json:"id" gorm:"primaryKey;size:36"`
	CandidateID   string        `json:"candidate_id" gorm:"not null;index:idx_attempts_candidate_template;size:255"`
	TemplateID    string        `json:"template_id" gorm:"not null;index:idx_attempts_candidate_template;size:36"`
	ApplicationID *string       `json:"application_id" gorm:"size:36"`
	InviteID      *string       `json:"invite_id" gorm:"uniqueIndex:idx_attempts_invite_id;size:36"`
	Status        AttemptStatus `json:"status" gorm:"not null;default:NOT_STARTED;size:20;index"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;default:1"`

	// Timing
	StartedAt *time.Time `json:"started_at"`
	ExpiresAt *time.Time `json:"expires_at"`

	// Metadata
	IPAddress *string        `json:"ip_address" gorm:"size:45"`
	UserAgent *string        `json:"user_agent" gorm:"type:text"`
	FlagsJSON datatypes.JSON `json:"-" gorm:"column:flags_json;type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Answers []AttemptAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (AssessmentAttempt) TableName() string {
	return "assessment_attempts"
}

// AttemptAnswer is written by the answer submission subsystem.
type AttemptAnswer struct {
	ID              string         `json:"id" gorm:"primaryKey;size:36"`
	AttemptID       string         `json:"attempt_id" gorm:"not null;uniqueIndex:idx_answers_attempt_question;size:36"`
	QuestionID      string         `json:"question_id" gorm:"not null;uniqueIndex:idx_answers_attempt_question;size:36"`
	SelectedOptions datatypes.JSON `json:"selected_options" gorm:"type:jsonb"`
	TimeSpent       int            `json:"time_spent"` // seconds

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}

// AttemptMeta is the randomized ordering persisted in flags_json.
type AttemptMeta struct {
	QuestionOrder         []string            `json:"questionOrder"`
	OptionOrderByQuestion map[string][]string `json:"optionOrderByQuestion"`
}
