package models

import "time"

type InviteStatus string

const (
	InviteSent      InviteStatus = "SENT"
	InviteStarted   InviteStatus = "STARTED"
	InviteSubmitted InviteStatus = "SUBMITTED"
	InviteEvaluated InviteStatus = "EVALUATED"
	InviteCompleted InviteStatus = "COMPLETED"
	InviteCancelled InviteStatus = "CANCELLED"
)

// IsFinal reports whether the invite has been used up by a finished attempt.
func (s InviteStatus) IsFinal() bool {
	switch s {
	case InviteSubmitted, InviteEvaluated, InviteCompleted:
		return true
	}
	return false
}

// AssessmentInvite is an employer-issued token granting a candidate one template for one application.
type AssessmentInvite struct {
	ID            string       `json:"id" gorm:"primaryKey;size:36"`
	Token         string       `json:"-" gorm:"uniqueIndex;not null;size:128"`
	CandidateID   string       `json:"candidate_id" gorm:"not null;index;size:255"`
	JobID         string       `json:"job_id" gorm:"not null;size:36"`
	ApplicationID string       `json:"application_id" gorm:"not null;size:36"`
	TemplateID    string       `json:"template_id" gorm:"not null;index;size:36"`
	Status        InviteStatus `json:"status" gorm:"not null;default:SENT;size:20"`
	ExpiresAt     *time.Time   `json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AssessmentInvite) TableName() string {
	return "assessment_invites"
}
