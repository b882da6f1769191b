package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
)

// AnswerProjector folds saved answers into per-question maps
type AnswerProjector struct {
	logger *slog.Logger
}

func NewAnswerProjector(logger *slog.Logger) *AnswerProjector {
	return &AnswerProjector{logger: logger}
}

// Project never returns nil maps
func (p *AnswerProjector) Project(ctx context.Context, repo repositories.AnswerRepository, attemptID string) (map[string][]string, map[string]int, error) {
	selected := map[string][]string{}
	timeSpent := map[string]int{}

	answers, err := repo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}

	for _, answer := range answers {
		timeSpent[answer.QuestionID] = answer.TimeSpent

		options := []string{}
		if len(answer.SelectedOptions) > 0 {
			if err := json.Unmarshal(answer.SelectedOptions, &options); err != nil {
				// malformed rows project as an empty selection
				p.logger.WarnContext(ctx, "Skipping malformed saved answer",
					"attempt_id", attemptID,
					"question_id", answer.QuestionID,
					"error", err)
				options = []string{}
			}
		}
		selected[answer.QuestionID] = options
	}

	return selected, timeSpent, nil
}

// Empty is the projection of an attempt that has no answers yet
func (p *AnswerProjector) Empty() (map[string][]string, map[string]int) {
	return map[string][]string{}, map[string]int{}
}
