package services

import (
	"strings"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
)

// answerKeyMarkers are matched case-insensitively as substrings; "iscorrect" is covered by "correct"
var answerKeyMarkers = []string{"correct", "iscorrect", "answer", "score", "points"}

func isAnswerKeyField(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range answerKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// SanitizeOption returns a copy of opt without answer-key fields at any depth
func SanitizeOption(opt models.QuestionOption) models.QuestionOption {
	return models.QuestionOption(sanitizeObject(opt))
}

func sanitizeObject(obj map[string]any) map[string]any {
	clean := make(map[string]any, len(obj))
	for k, v := range obj {
		if !isAnswerKeyField(k) {
			clean[k] = sanitizeValue(v)
		}
	}
	return clean
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return sanitizeObject(val)
	case models.QuestionOption:
		return SanitizeOption(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = sanitizeObject(item)
		}
		return out
	default:
		return v
	}
}

// BuildQuestionViews sanitizes the active question set and orders it by meta.
// Questions or options unknown to meta are appended in authoring order.
func BuildQuestionViews(questions []models.AssessmentQuestion, meta models.AttemptMeta) ([]models.QuestionView, error) {
	byID := make(map[string]*models.AssessmentQuestion, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	ordered := make([]*models.AssessmentQuestion, 0, len(questions))
	placed := make(map[string]bool, len(questions))
	for _, id := range meta.QuestionOrder {
		if q, ok := byID[id]; ok && !placed[id] {
			ordered = append(ordered, q)
			placed[id] = true
		}
	}
	for i := range questions {
		if !placed[questions[i].ID] {
			ordered = append(ordered, &questions[i])
		}
	}

	views := make([]models.QuestionView, 0, len(ordered))
	for _, q := range ordered {
		options, err := orderedOptions(q, meta.OptionOrderByQuestion[q.ID])
		if err != nil {
			return nil, err
		}
		views = append(views, models.QuestionView{
			ID:            q.ID,
			Section:       q.Section,
			Difficulty:    q.Difficulty,
			QuestionText:  q.QuestionText,
			CodeSnippet:   q.CodeSnippet,
			Options:       options,
			AllowMultiple: q.AllowMultiple,
		})
	}
	return views, nil
}

// orderedOptions keys raw options before stripping so content hashes match the Randomizer's
func orderedOptions(q *models.AssessmentQuestion, order []string) ([]models.QuestionOption, error) {
	raw, err := q.DecodeOptions()
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(raw))
	byKey := make(map[string]int, len(raw))
	for i, opt := range raw {
		key, err := OptionKey(opt)
		if err != nil {
			return nil, err
		}
		keys[i] = key
		if _, exists := byKey[key]; !exists {
			byKey[key] = i
		}
	}

	result := make([]models.QuestionOption, 0, len(raw))
	used := make([]bool, len(raw))
	for _, key := range order {
		if i, ok := byKey[key]; ok && !used[i] {
			result = append(result, SanitizeOption(raw[i]))
			used[i] = true
		}
	}
	for i := range raw {
		if !used[i] {
			result = append(result, SanitizeOption(raw[i]))
		}
	}
	return result, nil
}
