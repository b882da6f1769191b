package models

import "time"

// JobApplication is owned by the applications subsystem; this service only reads it.
type JobApplication struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	JobID       string    `json:"job_id" gorm:"not null;index;size:36"`
	CandidateID string    `json:"candidate_id" gorm:"not null;index;size:255"`
	Status      string    `json:"status" gorm:"size:30"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (JobApplication) TableName() string {
	return "job_applications"
}

// JobAssessment assigns a template to a job.
type JobAssessment struct {
	JobID      string    `json:"job_id" gorm:"primaryKey;size:36"`
	TemplateID string    `json:"template_id" gorm:"primaryKey;size:36"`
	CreatedAt  time.Time `json:"created_at"`
}

func (JobAssessment) TableName() string {
	return "job_assessments"
}
