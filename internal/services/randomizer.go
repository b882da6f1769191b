package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
)

// Randomizer produces the per-attempt question and option ordering
type Randomizer interface {
	Order(questions []models.AssessmentQuestion, shuffleQuestions bool) (models.AttemptMeta, error)
}

type fisherYatesRandomizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomizer shuffles with src; a nil src is seeded from the clock
func NewRandomizer(src rand.Source) Randomizer {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &fisherYatesRandomizer{rng: rand.New(src)}
}

// Order keeps authoring order unless shuffleQuestions is set. Options are always shuffled.
func (r *fisherYatesRandomizer) Order(questions []models.AssessmentQuestion, shuffleQuestions bool) (models.AttemptMeta, error) {
	meta := models.AttemptMeta{
		QuestionOrder:         make([]string, 0, len(questions)),
		OptionOrderByQuestion: make(map[string][]string, len(questions)),
	}

	optionKeys := make(map[string][]string, len(questions))
	for i := range questions {
		q := &questions[i]
		options, err := q.DecodeOptions()
		if err != nil {
			return models.AttemptMeta{}, err
		}
		keys := make([]string, 0, len(options))
		for _, opt := range options {
			key, err := OptionKey(opt)
			if err != nil {
				return models.AttemptMeta{}, fmt.Errorf("question %s: %w", q.ID, err)
			}
			keys = append(keys, key)
		}
		meta.QuestionOrder = append(meta.QuestionOrder, q.ID)
		optionKeys[q.ID] = keys
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if shuffleQuestions {
		r.shuffle(meta.QuestionOrder)
	}
	// iterate in question order so a seeded source is reproducible
	for _, id := range meta.QuestionOrder {
		keys := optionKeys[id]
		r.shuffle(keys)
		meta.OptionOrderByQuestion[id] = keys
	}

	return meta, nil
}

// shuffle is an in-place Fisher-Yates; callers hold r.mu
func (r *fisherYatesRandomizer) shuffle(items []string) {
	for i := len(items) - 1; i > 0; i-- {
		j := r.rng.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// OptionKey identifies an option by id, then value, then a hash of its content
func OptionKey(opt models.QuestionOption) (string, error) {
	for _, field := range []string{"id", "value"} {
		if v, ok := opt[field]; ok && v != nil {
			if s := scalarString(v); s != "" {
				return s, nil
			}
		}
	}

	// encoding/json sorts map keys, so equal content hashes equally
	canonical, err := json.Marshal(opt)
	if err != nil {
		return "", fmt.Errorf("failed to hash option: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64, bool, json.Number:
		return fmt.Sprint(val)
	default:
		return ""
	}
}
