package services

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
)

// MetaCache reads and writes the ordering stored in an attempt's flags_json
type MetaCache struct {
	randomizer Randomizer
}

func NewMetaCache(randomizer Randomizer) *MetaCache {
	return &MetaCache{randomizer: randomizer}
}

// HasOrder reports whether meta carries a usable question order
func HasOrder(meta models.AttemptMeta) bool {
	return len(meta.QuestionOrder) > 0
}

// Decode parses raw flags. ok is false for absent or malformed blobs.
func (m *MetaCache) Decode(raw datatypes.JSON) (models.AttemptMeta, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return models.AttemptMeta{}, false
	}

	var meta models.AttemptMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return models.AttemptMeta{}, false
	}
	if !validMeta(meta) {
		return models.AttemptMeta{}, false
	}
	if meta.OptionOrderByQuestion == nil {
		meta.OptionOrderByQuestion = map[string][]string{}
	}
	return meta, true
}

func validMeta(meta models.AttemptMeta) bool {
	if !HasOrder(meta) {
		return false
	}
	seen := make(map[string]struct{}, len(meta.QuestionOrder))
	for _, id := range meta.QuestionOrder {
		if id == "" {
			return false
		}
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	for qid, keys := range meta.OptionOrderByQuestion {
		if qid == "" {
			return false
		}
		for _, key := range keys {
			if key == "" {
				return false
			}
		}
	}
	return true
}

// EnsureResult is the outcome of Ensure. Computed is true when Raw must be persisted.
type EnsureResult struct {
	Meta     models.AttemptMeta
	Raw      datatypes.JSON
	Computed bool
}

// Ensure returns the cached meta untouched when valid, otherwise a fresh ordering
func (m *MetaCache) Ensure(raw datatypes.JSON, questions []models.AssessmentQuestion, shuffleQuestions bool) (EnsureResult, error) {
	if meta, ok := m.Decode(raw); ok {
		return EnsureResult{Meta: meta, Raw: raw}, nil
	}

	meta, err := m.randomizer.Order(questions, shuffleQuestions)
	if err != nil {
		return EnsureResult{}, err
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return EnsureResult{}, fmt.Errorf("failed to encode attempt meta: %w", err)
	}
	return EnsureResult{Meta: meta, Raw: datatypes.JSON(encoded), Computed: true}, nil
}
