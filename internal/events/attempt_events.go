package events

import "time"

const (
	AttemptStarted    = "attempt.started"
	AttemptResumed    = "attempt.resumed"
	AttemptSuperseded = "attempt.superseded"
)

// AttemptEventData is the payload of every attempt lifecycle event
type AttemptEventData struct {
	AttemptID           string     `json:"attempt_id"`
	CandidateID         string     `json:"candidate_id"`
	TemplateID          string     `json:"template_id"`
	ApplicationID       *string    `json:"application_id,omitempty"`
	InviteID            *string    `json:"invite_id,omitempty"`
	AttemptNumber       int        `json:"attempt_number"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	SupersededAttemptID string     `json:"superseded_attempt_id,omitempty"`
}
