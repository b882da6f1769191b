package services

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/events"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/validator"
)

type engineFixture struct {
	store     *memStore
	engine    AttemptLifecycleEngine
	publisher *events.MockEventPublisher
	metrics   *metrics.Metrics

	mu  sync.Mutex
	now time.Time
}

func (f *engineFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *engineFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func intPtr(v int) *int { return &v }

func defaultTemplate() models.AssessmentTemplate {
	return models.AssessmentTemplate{
		ID:               "tmpl-1",
		Title:            "Backend screening",
		IsActive:         true,
		AllowRetry:       true,
		MaxAttempts:      3,
		TimeLimit:        intPtr(60),
		ShuffleQuestions: true,
	}
}

// newEngineFixture seeds one template with three active questions, one
// invite and one application for cand-1
func newEngineFixture(t *testing.T, template models.AssessmentTemplate) *engineFixture {
	t.Helper()

	store := newMemStore()
	inactive := question("q4", "a")
	inactive.IsActive = false
	store.addTemplate(template,
		question("q1", "a", "b", "c"),
		question("q2", "a", "b"),
		question("q3", "a", "b", "c", "d"),
		inactive,
	)
	store.addInvite(models.AssessmentInvite{
		ID:            "inv-1",
		Token:         "tok-1",
		CandidateID:   "cand-1",
		JobID:         "job-1",
		ApplicationID: "app-1",
		TemplateID:    template.ID,
		Status:        models.InviteSent,
		ExpiresAt:     timePtr(testNow.Add(7 * 24 * time.Hour)),
	})
	store.addApplication(models.JobApplication{ID: "app-1", JobID: "job-1", CandidateID: "cand-1"}, template.ID)

	f := &engineFixture{
		store:     store,
		publisher: events.NewMockEventPublisher(discardLogger()),
		metrics:   metrics.New(),
		now:       testNow,
	}
	f.engine = NewAttemptLifecycleEngine(
		store.repo(),
		NewRandomizer(rand.NewSource(99)),
		f.publisher,
		f.metrics,
		discardLogger(),
		EngineConfig{MaxStartRetries: 3, Clock: f.clock},
	)
	return f
}

func (f *engineFixture) start(t *testing.T, in StartAttemptInput) *models.StartAttemptResponse {
	t.Helper()
	if in.TemplateID == "" {
		in.TemplateID = "tmpl-1"
	}
	if in.CandidateID == "" {
		in.CandidateID = "cand-1"
	}
	resp, err := f.engine.Start(context.Background(), in)
	if err != nil {
		t.Fatalf("Start(%+v) error = %v", in, err)
	}
	return resp
}

func (f *engineFixture) eventTypes() []string {
	var types []string
	for _, e := range f.publisher.GetPublishedEvents() {
		types = append(types, e.Type)
	}
	return types
}

func viewOrder(resp *models.StartAttemptResponse) ([]string, map[string][]string) {
	questions := make([]string, 0, len(resp.Questions))
	options := make(map[string][]string, len(resp.Questions))
	for _, q := range resp.Questions {
		questions = append(questions, q.ID)
		for _, opt := range q.Options {
			id, _ := opt["id"].(string)
			options[q.ID] = append(options[q.ID], id)
		}
	}
	return questions, options
}

func TestAttemptLifecycle_StartWithToken(t *testing.T) {
	f := newEngineFixture(t, defaultTemplate())

	resp := f.start(t, StartAttemptInput{Token: "tok-1", IPAddress: "10.0.0.1", UserAgent: "test-agent"})

	if resp.AttemptID == "" || resp.Reused {
		t.Fatalf("response = %+v, want a fresh attempt", resp)
	}
	if resp.TimeLimit == nil || *resp.TimeLimit != 60 {
		t.Errorf("TimeLimit = %v, want 60", resp.TimeLimit)
	}
	if want := testNow.Add(60 * time.Minute); resp.ExpiresAt == nil || !resp.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", resp.ExpiresAt, want)
	}
	if len(resp.Questions) != 3 {
		t.Fatalf("got %d questions, want the 3 active ones", len(resp.Questions))
	}
	for _, q := range resp.Questions {
		for _, opt := range q.Options {
			if _, leaked := opt["isCorrect"]; leaked {
				t.Errorf("question %s leaks answer key", q.ID)
			}
		}
	}
	if resp.SavedAnswers == nil || len(resp.SavedAnswers) != 0 || resp.SavedTimeSpent == nil || len(resp.SavedTimeSpent) != 0 {
		t.Errorf("saved maps = %v / %v, want empty", resp.SavedAnswers, resp.SavedTimeSpent)
	}

	stored, ok := f.store.attempt(resp.AttemptID)
	if !ok {
		t.Fatal("attempt not persisted")
	}
	if stored.Status != models.AttemptInProgress || stored.AttemptNumber != 1 {
		t.Errorf("stored attempt = %+v", stored)
	}
	if stored.InviteID == nil || *stored.InviteID != "inv-1" {
		t.Errorf("InviteID = %v, want inv-1", stored.InviteID)
	}
	if stored.ApplicationID == nil || *stored.ApplicationID != "app-1" {
		t.Errorf("ApplicationID = %v, want the invite's application", stored.ApplicationID)
	}
	if stored.IPAddress == nil || *stored.IPAddress != "10.0.0.1" || stored.StartedAt == nil {
		t.Errorf("request metadata not recorded: %+v", stored)
	}
	if len(stored.FlagsJSON) == 0 {
		t.Error("ordering not persisted")
	}
	if got := f.store.invite("inv-1").Status; got != models.InviteStarted {
		t.Errorf("invite status = %s, want STARTED", got)
	}
	if got := f.eventTypes(); !reflect.DeepEqual(got, []string{events.AttemptStarted}) {
		t.Errorf("events = %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.AttemptDecisions.WithLabelValues("created")); got != 1 {
		t.Errorf("created decisions = %v", got)
	}
}

func TestAttemptLifecycle_ResumeIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, defaultTemplate())

	first := f.start(t, StartAttemptInput{Token: "tok-1"})
	f.store.addAnswer(models.AttemptAnswer{
		ID:              "ans-1",
		AttemptID:       first.AttemptID,
		QuestionID:      "q2",
		SelectedOptions: datatypes.JSON(`["b"]`),
		TimeSpent:       30,
	})
	f.advance(10 * time.Minute)

	tests := []struct {
		name string
		in   StartAttemptInput
	}{
		{name: "same token", in: StartAttemptInput{Token: "tok-1"}},
		{name: "token and application", in: StartAttemptInput{Token: "tok-1", ApplicationID: "app-1"}},
		{name: "attempt id", in: StartAttemptInput{AttemptID: first.AttemptID}},
		{name: "application only", in: StartAttemptInput{ApplicationID: "app-1"}},
	}

	firstQuestions, firstOptions := viewOrder(first)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.start(t, tt.in)
			if resp.AttemptID != first.AttemptID || !resp.Reused {
				t.Fatalf("got attempt %s reused=%v, want %s reused", resp.AttemptID, resp.Reused, first.AttemptID)
			}
			questions, options := viewOrder(resp)
			if !reflect.DeepEqual(questions, firstQuestions) || !reflect.DeepEqual(options, firstOptions) {
				t.Errorf("order changed on resume:\n%v %v\n%v %v", firstQuestions, firstOptions, questions, options)
			}
			if !resp.ExpiresAt.Equal(*first.ExpiresAt) {
				t.Errorf("ExpiresAt moved from %v to %v", first.ExpiresAt, resp.ExpiresAt)
			}
			if !reflect.DeepEqual(resp.SavedAnswers, map[string][]string{"q2": {"b"}}) {
				t.Errorf("SavedAnswers = %v", resp.SavedAnswers)
			}
			if resp.SavedTimeSpent["q2"] != 30 {
				t.Errorf("SavedTimeSpent = %v", resp.SavedTimeSpent)
			}
		})
	}

	if got := len(f.store.attemptsFor("cand-1", "tmpl-1")); got != 1 {
		t.Errorf("%d attempts stored, want 1", got)
	}
	if got := testutil.ToFloat64(f.metrics.AttemptDecisions.WithLabelValues("reused")); got != float64(len(tests)) {
		t.Errorf("reused decisions = %v", got)
	}
}

func TestAttemptLifecycle_ApplicationFallback(t *testing.T) {
	f := newEngineFixture(t, defaultTemplate())

	first := f.start(t, StartAttemptInput{ApplicationID: "app-1"})
	if first.Reused {
		t.Fatal("first start reported reuse")
	}
	stored, _ := f.store.attempt(first.AttemptID)
	if stored.InviteID != nil {
		t.Errorf("fallback attempt bound to invite %v", *stored.InviteID)
	}

	second := f.start(t, StartAttemptInput{ApplicationID: "app-1"})
	if second.AttemptID != first.AttemptID || !second.Reused {
		t.Errorf("fallback created a second live attempt: %s vs %s", second.AttemptID, first.AttemptID)
	}
}

func TestAttemptLifecycle_ConcurrentStartsShareOneAttempt(t *testing.T) {
	tests := []struct {
		name string
		in   StartAttemptInput
	}{
		{name: "token", in: StartAttemptInput{Token: "tok-1"}},
		{name: "application", in: StartAttemptInput{ApplicationID: "app-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, defaultTemplate())
			in := tt.in
			in.TemplateID = "tmpl-1"
			in.CandidateID = "cand-1"

			const workers = 16
			var wg sync.WaitGroup
			ids := make([]string, workers)
			errs := make([]error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					resp, err := f.engine.Start(context.Background(), in)
					errs[i] = err
					if resp != nil {
						ids[i] = resp.AttemptID
					}
				}(i)
			}
			wg.Wait()

			for i, err := range errs {
				if err != nil {
					t.Fatalf("worker %d: %v", i, err)
				}
				if ids[i] != ids[0] {
					t.Fatalf("worker %d got %s, worker 0 got %s", i, ids[i], ids[0])
				}
			}
			if got := len(f.store.attemptsFor("cand-1", "tmpl-1")); got != 1 {
				t.Errorf("%d attempts stored, want 1", got)
			}
		})
	}
}

func TestAttemptLifecycle_SupersedesExpiredAttempt(t *testing.T) {
	f := newEngineFixture(t, defaultTemplate())

	first := f.start(t, StartAttemptInput{Token: "tok-1"})
	f.store.addAnswer(models.AttemptAnswer{ID: "ans-1", AttemptID: first.AttemptID, QuestionID: "q1", SelectedOptions: datatypes.JSON(`["a"]`)})
	f.advance(61 * time.Minute)
	f.publisher.ClearEvents()

	second := f.start(t, StartAttemptInput{Token: "tok-1"})

	if second.AttemptID == first.AttemptID || second.Reused {
		t.Fatalf("expired attempt reused: %+v", second)
	}
	if len(second.SavedAnswers) != 0 || len(second.SavedTimeSpent) != 0 {
		t.Errorf("answers carried over: %v", second.SavedAnswers)
	}
	if want := f.clock().Add(60 * time.Minute); !second.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", second.ExpiresAt, want)
	}

	old, _ := f.store.attempt(first.AttemptID)
	if old.InviteID != nil {
		t.Errorf("superseded attempt still holds invite %s", *old.InviteID)
	}
	replacement, _ := f.store.attempt(second.AttemptID)
	if replacement.InviteID == nil || *replacement.InviteID != "inv-1" {
		t.Errorf("replacement InviteID = %v", replacement.InviteID)
	}
	if replacement.ApplicationID == nil || *replacement.ApplicationID != "app-1" {
		t.Errorf("replacement ApplicationID = %v", replacement.ApplicationID)
	}

	published := f.publisher.GetPublishedEvents()
	if len(published) != 1 || published[0].Type != events.AttemptSuperseded {
		t.Fatalf("events = %v", f.eventTypes())
	}
	data, ok := published[0].Data.(events.AttemptEventData)
	if !ok || data.SupersededAttemptID != first.AttemptID {
		t.Errorf("event data = %+v", published[0].Data)
	}
}

func TestAttemptLifecycle_ResumeFillsMissingState(t *testing.T) {
	f := newEngineFixture(t, defaultTemplate())
	f.store.addAttempt(models.AssessmentAttempt{
		ID:            "att-pending",
		CandidateID:   "cand-1",
		TemplateID:    "tmpl-1",
		Status:        models.AttemptNotStarted,
		AttemptNumber: 1,
		FlagsJSON:     datatypes.JSON(`{"broken"`),
	})

	resp := f.start(t, StartAttemptInput{AttemptID: "att-pending", ApplicationID: "app-1", UserAgent: "ua"})
	if resp.AttemptID != "att-pending" || !resp.Reused {
		t.Fatalf("response = %+v", resp)
	}

	stored, _ := f.store.attempt("att-pending")
	if stored.Status != models.AttemptInProgress || stored.StartedAt == nil {
		t.Errorf("attempt not started: %+v", stored)
	}
	if stored.ExpiresAt == nil || !stored.ExpiresAt.Equal(testNow.Add(60*time.Minute)) {
		t.Errorf("ExpiresAt = %v", stored.ExpiresAt)
	}
	if stored.ApplicationID == nil || *stored.ApplicationID != "app-1" {
		t.Errorf("ApplicationID = %v", stored.ApplicationID)
	}
	if _, ok := NewMetaCache(nil).Decode(stored.FlagsJSON); !ok {
		t.Errorf("corrupt ordering not replaced: %s", stored.FlagsJSON)
	}
}

func TestAttemptLifecycle_RetryLimits(t *testing.T) {
	finalAttempt := func(id string, n int) models.AssessmentAttempt {
		return models.AssessmentAttempt{
			ID:            id,
			CandidateID:   "cand-1",
			TemplateID:    "tmpl-1",
			Status:        models.AttemptSubmitted,
			AttemptNumber: n,
		}
	}
	paths := []struct {
		name string
		in   StartAttemptInput
	}{
		{name: "token", in: StartAttemptInput{Token: "tok-1"}},
		{name: "attempt id", in: StartAttemptInput{AttemptID: "final-1"}},
		{name: "application", in: StartAttemptInput{ApplicationID: "app-1"}},
	}

	tests := []struct {
		name        string
		allowRetry  bool
		maxAttempts int
		finals      int
		wantErr     error
	}{
		{name: "retry disabled", allowRetry: false, maxAttempts: 3, finals: 1, wantErr: ErrAlreadyCompleted},
		{name: "limit reached", allowRetry: true, maxAttempts: 2, finals: 2, wantErr: ErrAttemptLimitReached},
	}

	for _, tt := range tests {
		for _, path := range paths {
			t.Run(tt.name+"/"+path.name, func(t *testing.T) {
				template := defaultTemplate()
				template.AllowRetry = tt.allowRetry
				template.MaxAttempts = tt.maxAttempts
				f := newEngineFixture(t, template)
				for i := 1; i <= tt.finals; i++ {
					f.store.addAttempt(finalAttempt("final-"+string(rune('0'+i)), i))
				}

				in := path.in
				in.TemplateID = "tmpl-1"
				in.CandidateID = "cand-1"
				_, err := f.engine.Start(context.Background(), in)
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Start() error = %v, want %v", err, tt.wantErr)
				}
				if got := len(f.store.attemptsFor("cand-1", "tmpl-1")); got != tt.finals {
					t.Errorf("%d attempts stored, want %d", got, tt.finals)
				}
			})
		}
	}
}

func TestAttemptLifecycle_RetryAllowed(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		finals      int
		wantNumber  int
	}{
		{name: "under the limit", maxAttempts: 3, finals: 2, wantNumber: 3},
		{name: "no numeric cap", maxAttempts: 0, finals: 5, wantNumber: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			template := defaultTemplate()
			template.MaxAttempts = tt.maxAttempts
			f := newEngineFixture(t, template)
			for i := 1; i <= tt.finals; i++ {
				f.store.addAttempt(models.AssessmentAttempt{
					ID:            "final-" + string(rune('0'+i)),
					CandidateID:   "cand-1",
					TemplateID:    "tmpl-1",
					Status:        models.AttemptCompleted,
					AttemptNumber: i,
				})
			}

			resp := f.start(t, StartAttemptInput{Token: "tok-1"})
			stored, _ := f.store.attempt(resp.AttemptID)
			if stored.AttemptNumber != tt.wantNumber {
				t.Errorf("AttemptNumber = %d, want %d", stored.AttemptNumber, tt.wantNumber)
			}
		})
	}
}

func TestAttemptLifecycle_Rejections(t *testing.T) {
	f := newEngineFixture(t, defaultTemplate())
	f.store.addTemplate(models.AssessmentTemplate{ID: "tmpl-off", IsActive: false})
	f.store.addTemplate(models.AssessmentTemplate{ID: "tmpl-2", IsActive: true, AllowRetry: true, MaxAttempts: 5})
	f.store.addAttempt(models.AssessmentAttempt{ID: "att-other-cand", CandidateID: "cand-2", TemplateID: "tmpl-1", Status: models.AttemptInProgress})
	f.store.addAttempt(models.AssessmentAttempt{ID: "att-other-tmpl", CandidateID: "cand-1", TemplateID: "tmpl-2", Status: models.AttemptInProgress})
	f.store.addAttempt(models.AssessmentAttempt{ID: "att-done", CandidateID: "cand-1", TemplateID: "tmpl-1", Status: models.AttemptEvaluated})
	f.store.addApplication(models.JobApplication{ID: "app-foreign", JobID: "job-1", CandidateID: "cand-2"}, "tmpl-1")

	tests := []struct {
		name string
		in   StartAttemptInput
		want error
	}{
		{name: "no candidate", in: StartAttemptInput{TemplateID: "tmpl-1", Token: "tok-1"}, want: ErrUnauthenticated},
		{name: "no context", in: StartAttemptInput{TemplateID: "tmpl-1", CandidateID: "cand-1"}, want: ErrMissingContext},
		{name: "blank context", in: StartAttemptInput{TemplateID: "tmpl-1", CandidateID: "cand-1", Token: "  "}, want: ErrMissingContext},
		{name: "unknown template", in: StartAttemptInput{TemplateID: "tmpl-404", CandidateID: "cand-1", Token: "tok-1"}, want: ErrTemplateNotFound},
		{name: "inactive template", in: StartAttemptInput{TemplateID: "tmpl-off", CandidateID: "cand-1", Token: "tok-1"}, want: ErrTemplateNotFound},
		{name: "unknown token", in: StartAttemptInput{TemplateID: "tmpl-1", CandidateID: "cand-1", Token: "tok-404"}, want: ErrInvalidInvite},
		{name: "padded token", in: StartAttemptInput{TemplateID: "tmpl-1", CandidateID: "cand-1", Token: " tok-1 "}, want: ErrInvalidInvite},
		{name: "invite for another template", in: StartAttemptInput{TemplateID: "tmpl-2", CandidateID: "cand-1", Token: "tok-1"}, want: ErrInviteMismatch},
		{name: "someone else's invite", in: StartAttemptInput{TemplateID: "tmpl-1", CandidateID: "cand-2", Token: "tok-1"}, want: ErrInvalidInvite},
		{name: "unknown attempt", in: StartAttemptInput{TemplateID: "tmpl-1", CandidateID: "cand-1", AttemptID: "att-404"}, want: ErrAttemptNotFound},
		{name: "someone else's attempt", in: StartAttemptInput{TemplateID: "tmpl-1", CandidateID: "cand-1", AttemptID: "att-other-cand"}, want: ErrForbidden},
		{name: "attempt for another template", in: StartAttemptInput{TemplateID: "tmpl-1", CandidateID: "cand-1", AttemptID: "att-other-tmpl"}, want: ErrContextMismatch},
		{name: "finished attempt", in: StartAttemptInput{TemplateID: "tmpl-1", CandidateID: "cand-1", AttemptID: "att-done"}, want: ErrAlreadyCompleted},
		{name: "someone else's application", in: StartAttemptInput{TemplateID: "tmpl-1", CandidateID: "cand-1", ApplicationID: "app-foreign"}, want: ErrForbidden},
		{name: "application for another template", in: StartAttemptInput{TemplateID: "tmpl-2", CandidateID: "cand-1", ApplicationID: "app-1"}, want: ErrContextMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.engine.Start(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Start() error = %v, want %v", err, tt.want)
			}
			if resp != nil {
				t.Errorf("response returned alongside error: %+v", resp)
			}
		})
	}

	if got := len(f.publisher.GetPublishedEvents()); got != 0 {
		t.Errorf("%d events published for rejected starts", got)
	}
	if got := f.store.invite("inv-1").Status; got != models.InviteSent {
		t.Errorf("invite status changed to %s", got)
	}
}

func TestAttemptLifecycle_RetriesInviteConflict(t *testing.T) {
	f := newEngineFixture(t, defaultTemplate())
	conflicts := 1
	f.store.beforeCreate = func(*models.AssessmentAttempt) error {
		if conflicts > 0 {
			conflicts--
			return repositories.ErrDuplicateKey
		}
		return nil
	}

	resp := f.start(t, StartAttemptInput{Token: "tok-1"})
	if resp.AttemptID == "" {
		t.Fatal("no attempt after retry")
	}
	if f.store.creates != 2 {
		t.Errorf("Create called %d times, want 2", f.store.creates)
	}
	if got := testutil.ToFloat64(f.metrics.StartRetries); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
	if got := len(f.store.attemptsFor("cand-1", "tmpl-1")); got != 1 {
		t.Errorf("%d attempts stored, want 1", got)
	}
}

func TestAttemptLifecycle_RetryBudgetExhausted(t *testing.T) {
	f := newEngineFixture(t, defaultTemplate())
	f.store.beforeCreate = func(*models.AssessmentAttempt) error {
		return repositories.ErrDuplicateKey
	}

	_, err := f.engine.Start(context.Background(), StartAttemptInput{TemplateID: "tmpl-1", CandidateID: "cand-1", Token: "tok-1"})
	if KindOf(err) != KindUnexpected {
		t.Fatalf("Start() error = %v, want unexpected", err)
	}
	if f.store.creates != 3 {
		t.Errorf("Create called %d times, want 3", f.store.creates)
	}
	if got := f.store.invite("inv-1").Status; got != models.InviteSent {
		t.Errorf("invite status = %s after rollback", got)
	}
}

func TestAttemptLifecycle_ShuffleIsSeeded(t *testing.T) {
	orderFor := func(t *testing.T, template models.AssessmentTemplate) []string {
		f := newEngineFixture(t, template)
		questions, _ := viewOrder(f.start(t, StartAttemptInput{Token: "tok-1"}))
		return questions
	}

	shuffled := defaultTemplate()
	a := orderFor(t, shuffled)
	b := orderFor(t, shuffled)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed gave %v and %v", a, b)
	}
	if !reflect.DeepEqual(sortedCopy(a), []string{"q1", "q2", "q3"}) {
		t.Errorf("order %v is not a permutation of the active questions", a)
	}

	fixed := defaultTemplate()
	fixed.ShuffleQuestions = false
	if got := orderFor(t, fixed); !reflect.DeepEqual(got, []string{"q1", "q2", "q3"}) {
		t.Errorf("unshuffled order = %v", got)
	}
}

func TestAttemptLifecycle_UnlimitedTemplate(t *testing.T) {
	template := defaultTemplate()
	template.TimeLimit = nil
	f := newEngineFixture(t, template)

	resp := f.start(t, StartAttemptInput{Token: "tok-1"})
	if resp.ExpiresAt != nil || resp.TimeLimit != nil {
		t.Errorf("unlimited template got deadline %v / %v", resp.ExpiresAt, resp.TimeLimit)
	}

	f.advance(48 * time.Hour)
	again := f.start(t, StartAttemptInput{Token: "tok-1"})
	if again.AttemptID != resp.AttemptID {
		t.Error("attempt without deadline was superseded")
	}
}

func TestAttemptLifecycle_PublishFailureDoesNotFailStart(t *testing.T) {
	f := newEngineFixture(t, defaultTemplate())
	f.publisher.FailWith(errors.New("broker unavailable"))

	resp := f.start(t, StartAttemptInput{Token: "tok-1"})
	if _, ok := f.store.attempt(resp.AttemptID); !ok {
		t.Error("attempt not committed")
	}
}

func TestAttemptLifecycle_ValidatesTemplateID(t *testing.T) {
	f := newEngineFixture(t, defaultTemplate())
	engine := NewAttemptLifecycleEngine(
		f.store.repo(),
		NewRandomizer(rand.NewSource(99)),
		f.publisher,
		f.metrics,
		discardLogger(),
		EngineConfig{Clock: f.clock, Validator: validator.New()},
	)

	_, err := engine.Start(context.Background(), StartAttemptInput{
		TemplateID:  "tmpl/../1",
		CandidateID: "cand-1",
		Token:       "tok-1",
	})
	var attemptErr *AttemptError
	if !errors.As(err, &attemptErr) || attemptErr.Kind != KindValidation {
		t.Fatalf("Start() error = %v, want validation error", err)
	}
	if f.store.creates != 0 {
		t.Errorf("creates = %d, want 0", f.store.creates)
	}
}

func TestAttemptLifecycle_ApplicationAgainstBoundInvite(t *testing.T) {
	f := newEngineFixture(t, defaultTemplate())
	f.store.addApplication(models.JobApplication{ID: "app-2", JobID: "job-2", CandidateID: "cand-1"}, "tmpl-1")
	f.store.addApplication(models.JobApplication{ID: "app-3", JobID: "job-1", CandidateID: "cand-1"}, "tmpl-1")

	first := f.start(t, StartAttemptInput{Token: "tok-1"})

	tests := []struct {
		name string
		in   StartAttemptInput
		want error
	}{
		{name: "application alone, other job", in: StartAttemptInput{ApplicationID: "app-2"}, want: ErrContextMismatch},
		{name: "attempt id, other job", in: StartAttemptInput{AttemptID: first.AttemptID, ApplicationID: "app-2"}, want: ErrContextMismatch},
		{name: "application alone, same job", in: StartAttemptInput{ApplicationID: "app-3"}},
		{name: "attempt id, same job", in: StartAttemptInput{AttemptID: first.AttemptID, ApplicationID: "app-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			in.TemplateID = "tmpl-1"
			in.CandidateID = "cand-1"
			resp, err := f.engine.Start(context.Background(), in)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("Start() error = %v, want %v", err, tt.want)
				}
			} else {
				if err != nil {
					t.Fatalf("Start() error = %v", err)
				}
				if resp.AttemptID != first.AttemptID || !resp.Reused {
					t.Errorf("response = %+v, want reuse of %s", resp, first.AttemptID)
				}
			}

			stored, _ := f.store.attempt(first.AttemptID)
			if stored.ApplicationID == nil || *stored.ApplicationID != "app-1" {
				t.Errorf("ApplicationID = %v, want the invite's application", stored.ApplicationID)
			}
		})
	}
}
