package models

import "time"

// ===== ATTEMPT START DTOS =====

// StartAttemptRequest is the body of the start endpoint. Every field is optional.
type StartAttemptRequest struct {
	ApplicationID string `json:"applicationId" validate:"omitempty,max=64"`
	Token         string `json:"token" validate:"omitempty,max=128"`
	AttemptID     string `json:"attemptId" validate:"omitempty,max=64"`
}

// QuestionView is the sanitized, ordered question shape returned to candidates.
type QuestionView struct {
	ID            string           `json:"id"`
	Section       string           `json:"section"`
	Difficulty    string           `json:"difficulty"`
	QuestionText  string           `json:"questionText"`
	CodeSnippet   *string          `json:"codeSnippet,omitempty"`
	Options       []QuestionOption `json:"options"`
	AllowMultiple bool             `json:"allowMultiple"`
}

type StartAttemptResponse struct {
	AttemptID      string              `json:"attemptId"`
	Questions      []QuestionView      `json:"questions"`
	ExpiresAt      *time.Time          `json:"expiresAt"`
	TimeLimit      *int                `json:"timeLimit"`
	Reused         bool                `json:"reused"`
	SavedAnswers   map[string][]string `json:"savedAnswers"`
	SavedTimeSpent map[string]int      `json:"savedTimeSpent"`
}

// ===== COMMON RESPONSES =====

type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}
