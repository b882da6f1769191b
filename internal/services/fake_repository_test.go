package services

import (
	"context"
	"sync"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
)

// memStore is an in-memory Repository. Transactions are serialized and roll
// back by restoring a snapshot, which stands in for the pair advisory lock.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	templates    map[string]models.AssessmentTemplate
	questions    map[string][]models.AssessmentQuestion
	invites      map[string]models.AssessmentInvite
	applications map[string]models.JobApplication
	jobTemplates map[string]bool
	attempts     map[string]models.AssessmentAttempt
	attemptSeq   map[string]int
	answers      map[string][]models.AttemptAnswer
	seq          int

	// beforeCreate runs ahead of every insert; a non-nil error aborts it
	beforeCreate func(attempt *models.AssessmentAttempt) error
	creates      int
	locks        int
}

func newMemStore() *memStore {
	return &memStore{
		templates:    map[string]models.AssessmentTemplate{},
		questions:    map[string][]models.AssessmentQuestion{},
		invites:      map[string]models.AssessmentInvite{},
		applications: map[string]models.JobApplication{},
		jobTemplates: map[string]bool{},
		attempts:     map[string]models.AssessmentAttempt{},
		attemptSeq:   map[string]int{},
		answers:      map[string][]models.AttemptAnswer{},
	}
}

func (s *memStore) repo() repositories.Repository {
	return &memRepo{s: s}
}

// ===== SEEDING =====

func (s *memStore) addTemplate(t models.AssessmentTemplate, questions ...models.AssessmentQuestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
	s.questions[t.ID] = questions
}

func (s *memStore) addInvite(inv models.AssessmentInvite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[inv.ID] = inv
}

func (s *memStore) addApplication(app models.JobApplication, templateIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications[app.ID] = app
	for _, id := range templateIDs {
		s.jobTemplates[app.JobID+"|"+id] = true
	}
}

func (s *memStore) addAttempt(a models.AssessmentAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.attempts[a.ID] = a
	s.attemptSeq[a.ID] = s.seq
}

func (s *memStore) addAnswer(a models.AttemptAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[a.AttemptID] = append(s.answers[a.AttemptID], a)
}

// ===== INSPECTION =====

func (s *memStore) attempt(id string) (models.AssessmentAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	return a, ok
}

func (s *memStore) invite(id string) models.AssessmentInvite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invites[id]
}

func (s *memStore) attemptsFor(candidateID, templateID string) []models.AssessmentAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.AssessmentAttempt
	for _, a := range s.attempts {
		if a.CandidateID == candidateID && a.TemplateID == templateID {
			result = append(result, a)
		}
	}
	return result
}

func (s *memStore) setStatus(attemptID string, status models.AttemptStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.attempts[attemptID]
	a.Status = status
	s.attempts[attemptID] = a
}

type memSnapshot struct {
	invites    map[string]models.AssessmentInvite
	attempts   map[string]models.AssessmentAttempt
	attemptSeq map[string]int
	seq        int
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		invites:    make(map[string]models.AssessmentInvite, len(s.invites)),
		attempts:   make(map[string]models.AssessmentAttempt, len(s.attempts)),
		attemptSeq: make(map[string]int, len(s.attemptSeq)),
		seq:        s.seq,
	}
	for k, v := range s.invites {
		snap.invites[k] = v
	}
	for k, v := range s.attempts {
		snap.attempts[k] = v
	}
	for k, v := range s.attemptSeq {
		snap.attemptSeq[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites = snap.invites
	s.attempts = snap.attempts
	s.attemptSeq = snap.attemptSeq
	s.seq = snap.seq
}

// ===== REPOSITORY =====

type memRepo struct {
	s *memStore
}

func (r *memRepo) Template() repositories.TemplateRepository       { return memTemplates{r.s} }
func (r *memRepo) Invite() repositories.InviteRepository           { return memInvites{r.s} }
func (r *memRepo) Application() repositories.ApplicationRepository { return memApplications{r.s} }
func (r *memRepo) Attempt() repositories.AttemptRepository         { return memAttempts{r.s} }
func (r *memRepo) Answer() repositories.AnswerRepository           { return memAnswers{r.s} }
func (r *memRepo) User() repositories.UserRepository               { return nil }
func (r *memRepo) Ping(ctx context.Context) error                  { return nil }
func (r *memRepo) Close() error                                    { return nil }

func (r *memRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()

	snap := r.s.snapshot()
	if err := fn(r); err != nil {
		r.s.restore(snap)
		return err
	}
	return nil
}

type memTemplates struct{ s *memStore }

func (m memTemplates) GetByID(ctx context.Context, id string) (*models.AssessmentTemplate, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.templates[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &t, nil
}

func (m memTemplates) GetActiveQuestions(ctx context.Context, templateID string) ([]models.AssessmentQuestion, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var active []models.AssessmentQuestion
	for _, q := range m.s.questions[templateID] {
		if q.IsActive {
			active = append(active, q)
		}
	}
	return active, nil
}

func (m memTemplates) IsAssignedToJob(ctx context.Context, templateID, jobID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.jobTemplates[jobID+"|"+templateID], nil
}

type memInvites struct{ s *memStore }

func (m memInvites) GetByToken(ctx context.Context, token string) (*models.AssessmentInvite, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, inv := range m.s.invites {
		if inv.Token == token {
			return &inv, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m memInvites) GetByID(ctx context.Context, id string) (*models.AssessmentInvite, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	inv, ok := m.s.invites[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &inv, nil
}

func (m memInvites) MarkStarted(ctx context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	inv, ok := m.s.invites[id]
	if ok && (inv.Status == models.InviteSent || inv.Status == models.InviteStarted) {
		inv.Status = models.InviteStarted
		m.s.invites[id] = inv
	}
	return nil
}

type memApplications struct{ s *memStore }

func (m memApplications) GetByID(ctx context.Context, id string) (*models.JobApplication, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	app, ok := m.s.applications[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &app, nil
}

type memAttempts struct{ s *memStore }

func (m memAttempts) GetByID(ctx context.Context, id string) (*models.AssessmentAttempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (m memAttempts) GetByInvite(ctx context.Context, inviteID, candidateID, templateID string) (*models.AssessmentAttempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, a := range m.s.attempts {
		if a.InviteID != nil && *a.InviteID == inviteID && a.CandidateID == candidateID && a.TemplateID == templateID {
			return &a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m memAttempts) GetLatestOpen(ctx context.Context, candidateID, templateID string) (*models.AssessmentAttempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var latest *models.AssessmentAttempt
	latestSeq := -1
	for id, a := range m.s.attempts {
		if a.CandidateID != candidateID || a.TemplateID != templateID || a.Status.IsFinal() {
			continue
		}
		if seq := m.s.attemptSeq[id]; seq > latestSeq {
			found := a
			latest, latestSeq = &found, seq
		}
	}
	if latest == nil {
		return nil, repositories.ErrNotFound
	}
	return latest, nil
}

func (m memAttempts) CountFinal(ctx context.Context, candidateID, templateID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var count int64
	for _, a := range m.s.attempts {
		if a.CandidateID == candidateID && a.TemplateID == templateID && a.Status.IsFinal() {
			count++
		}
	}
	return count, nil
}

func (m memAttempts) LockCandidateTemplate(ctx context.Context, candidateID, templateID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.locks++
	return nil
}

func (m memAttempts) Create(ctx context.Context, attempt *models.AssessmentAttempt) error {
	m.s.mu.Lock()
	hook := m.s.beforeCreate
	m.s.creates++
	m.s.mu.Unlock()

	if hook != nil {
		if err := hook(attempt); err != nil {
			return err
		}
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, exists := m.s.attempts[attempt.ID]; exists {
		return repositories.ErrDuplicateKey
	}
	if attempt.InviteID != nil {
		for _, a := range m.s.attempts {
			if a.InviteID != nil && *a.InviteID == *attempt.InviteID {
				return repositories.ErrDuplicateKey
			}
		}
	}
	m.s.seq++
	m.s.attempts[attempt.ID] = *attempt
	m.s.attemptSeq[attempt.ID] = m.s.seq
	return nil
}

func (m memAttempts) Patch(ctx context.Context, id string, patch repositories.AttemptPatch) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.attempts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if patch.ApplicationID != nil {
		a.ApplicationID = patch.ApplicationID
	}
	if patch.ExpiresAt != nil && a.ExpiresAt == nil {
		a.ExpiresAt = patch.ExpiresAt
	}
	if len(patch.FlagsJSON) > 0 {
		a.FlagsJSON = append(datatypes.JSON(nil), patch.FlagsJSON...)
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.StartedAt != nil {
		a.StartedAt = patch.StartedAt
	}
	if patch.IPAddress != nil {
		a.IPAddress = patch.IPAddress
	}
	if patch.UserAgent != nil {
		a.UserAgent = patch.UserAgent
	}
	m.s.attempts[id] = a
	return nil
}

func (m memAttempts) ReleaseInvite(ctx context.Context, attemptID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.attempts[attemptID]
	if !ok {
		return repositories.ErrNotFound
	}
	a.InviteID = nil
	m.s.attempts[attemptID] = a
	return nil
}

type memAnswers struct{ s *memStore }

func (m memAnswers) ListByAttempt(ctx context.Context, attemptID string) ([]models.AttemptAnswer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]models.AttemptAnswer(nil), m.s.answers[attemptID]...), nil
}
