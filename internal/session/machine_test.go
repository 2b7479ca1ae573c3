package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"devopsfarm-quiz/internal/domain"
	"devopsfarm-quiz/internal/infra/memory"
)

func testQuiz() domain.QuizDefinition {
	return domain.QuizDefinition{
		ID:    "quiz-1",
		Title: "General Knowledge",
		Categories: []domain.Category{
			{
				ID:       "c1",
				Category: "General",
				Questions: []domain.Question{
					{
						ID: "q1", Question: "First?", CorrectAnswer: "A", Value: 10,
						Options: []domain.OptionItem{{ID: "o1", Option: "A"}, {ID: "o2", Option: "B"}, {ID: "o3", Option: "C"}},
					},
					{
						ID: "q2", Question: "Second?", CorrectAnswer: "B", Value: 20,
						Options: []domain.OptionItem{{ID: "o1", Option: "A"}, {ID: "o2", Option: "B"}, {ID: "o3", Option: "C"}},
					},
				},
			},
		},
	}
}

func validIdentity() domain.Identity {
	return domain.Identity{Email: "alice@example.com", Name: "Alice", Phone: "9876543210"}
}

type fixture struct {
	clock    *fakeClock
	store    *memory.KVStore
	recorder *memory.ResponseRecorder
	machine  *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	store := memory.NewKVStore()
	recorder := memory.NewResponseRecorder()
	machine := NewMachine("s1", testQuiz(), store, recorder, Options{
		TermsWindow:  600 * time.Second,
		QuizDuration: 3600 * time.Second,
		Now:          clock.Now,
	})
	t.Cleanup(machine.Close)
	return &fixture{clock: clock, store: store, recorder: recorder, machine: machine}
}

func (f *fixture) register(t *testing.T) {
	t.Helper()
	if err := f.machine.Register(context.Background(), validIdentity()); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	f.register(t)
	if err := f.machine.AcceptTerms(context.Background()); err != nil {
		t.Fatalf("accept terms: %v", err)
	}
}

func TestRegisterRejectsInvalidIdentity(t *testing.T) {
	f := newFixture(t)

	err := f.machine.Register(context.Background(), domain.Identity{
		Email: "a@b.com", Name: "", Phone: "12345",
	})
	if err != domain.ErrNameRequired {
		t.Fatalf("expected name error first, got %v", err)
	}
	if f.machine.Phase() != domain.PhaseRegistration {
		t.Fatalf("expected to stay in registration, got %s", f.machine.Phase())
	}
}

func TestRegisterEntersTermsAndMirrorsIdentity(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	if f.machine.Phase() != domain.PhaseTerms {
		t.Fatalf("expected terms phase, got %s", f.machine.Phase())
	}
	ctx := context.Background()
	for key, want := range map[string]string{
		KeyEmail: "alice@example.com",
		KeyName:  "Alice",
		KeyPhone: "9876543210",
	} {
		value, ok, err := f.store.Get(ctx, "s1", key)
		if err != nil || !ok || value != want {
			t.Fatalf("store[%s] = %q, %v, %v; want %q", key, value, ok, err, want)
		}
	}
}

func TestTermsExpiryStartsQuizExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	f.machine.mu.Lock()
	timer := f.machine.termsTimer
	f.machine.mu.Unlock()

	f.clock.Advance(601 * time.Second)
	timer.step()
	timer.step() // late duplicate tick must be a no-op

	if f.machine.Phase() != domain.PhaseInProgress {
		t.Fatalf("expected in_progress after terms expiry, got %s", f.machine.Phase())
	}
	started := f.machine.StartedAt()
	if !started.Equal(f.clock.Now()) {
		t.Fatalf("start timestamp %v, want %v", started, f.clock.Now())
	}

	// The start timestamp is fixed once; a later explicit accept cannot move it.
	f.clock.Advance(30 * time.Second)
	if err := f.machine.AcceptTerms(context.Background()); err != nil {
		t.Fatalf("accept terms after expiry: %v", err)
	}
	if !f.machine.StartedAt().Equal(started) {
		t.Fatalf("start timestamp moved from %v to %v", started, f.machine.StartedAt())
	}
}

func TestAcceptTermsPersistsAbsoluteStart(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	value, ok, err := f.store.Get(context.Background(), "s1", KeyStart)
	if err != nil || !ok {
		t.Fatalf("expected persisted start, got ok=%v err=%v", ok, err)
	}
	if value != "1700000000" {
		t.Fatalf("persisted start = %q, want unix seconds of fixed clock", value)
	}
}

func TestAcceptTermsBeforeRegistrationFails(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.AcceptTerms(context.Background()); err != domain.ErrInvalidPhase {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
}

func TestSelectAnswerUpsertsAndMirrors(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	if err := f.machine.SelectAnswer(ctx, "q1", "A"); err != nil {
		t.Fatalf("select: %v", err)
	}
	// Idempotent upsert: re-selecting replaces, never duplicates.
	if err := f.machine.SelectAnswer(ctx, "q1", "B"); err != nil {
		t.Fatalf("reselect: %v", err)
	}

	snap := f.machine.Snapshot()
	if len(snap.Answers) != 1 || snap.Answers["q1"] != "B" {
		t.Fatalf("unexpected answers: %v", snap.Answers)
	}

	raw, ok, _ := f.store.Get(ctx, "s1", KeyAnswers)
	if !ok || raw != `{"q1":"B"}` {
		t.Fatalf("mirrored answers = %q (ok=%v)", raw, ok)
	}

	if err := f.machine.SelectAnswer(ctx, "nope", "A"); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	if err := f.machine.SelectAnswer(ctx, "q1", "Z"); err != domain.ErrOptionNotFound {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
}

func TestGoToClampsOutOfRange(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	for _, tc := range []struct{ request, want int }{
		{-5, 0},
		{0, 0},
		{1, 1},
		{99, 1},
	} {
		if got := f.machine.GoTo(ctx, tc.request); got != tc.want {
			t.Fatalf("GoTo(%d) = %d, want %d", tc.request, got, tc.want)
		}
	}

	f.machine.GoTo(ctx, 0)
	if got := f.machine.Next(ctx); got != 1 {
		t.Fatalf("Next = %d, want 1", got)
	}
	if got := f.machine.Next(ctx); got != 1 {
		t.Fatalf("Next past end = %d, want clamp at 1", got)
	}
	if got := f.machine.Previous(ctx); got != 0 {
		t.Fatalf("Previous = %d, want 0", got)
	}
	if got := f.machine.Previous(ctx); got != 0 {
		t.Fatalf("Previous past start = %d, want clamp at 0", got)
	}
}

func TestSubmitScoresAndClearsState(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	_ = f.machine.SelectAnswer(ctx, "q1", "A") // correct, 10
	_ = f.machine.SelectAnswer(ctx, "q2", "C") // incorrect

	result, err := f.machine.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.TotalScore != 10 || result.CategoryScores["General"] != 10 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if f.machine.Phase() != domain.PhaseSubmitted {
		t.Fatalf("expected submitted, got %s", f.machine.Phase())
	}

	responses := f.recorder.Responses()
	if len(responses) != 1 {
		t.Fatalf("expected one recorded response, got %d", len(responses))
	}
	rec := responses[0]
	if rec.Email != "alice@example.com" || rec.Phone != "9876543210" || rec.QuizID != "quiz-1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.SubmittedAt.IsZero() {
		t.Fatalf("expected server-assigned submission timestamp")
	}

	// All persisted keys, identity included, are cleared on submit.
	for _, key := range AllKeys {
		if _, ok, _ := f.store.Get(ctx, "s1", key); ok {
			t.Fatalf("expected %s cleared after submit", key)
		}
	}
}

func TestSubmittedSessionIsReadOnly(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	_ = f.machine.SelectAnswer(ctx, "q1", "A")
	before, err := f.machine.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := f.machine.SelectAnswer(ctx, "q2", "B"); err != domain.ErrAlreadySubmitted {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if got := f.machine.GoTo(ctx, 1); got != 0 {
		t.Fatalf("GoTo after submit moved index to %d", got)
	}

	// Late timer ticks must not emit events or mutate anything.
	events, cancel := f.machine.Subscribe()
	defer cancel()
	f.machine.publishTick(domain.PhaseInProgress, 5)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event after submit: %+v", ev)
	default:
	}

	after, err := f.machine.Submit(ctx)
	if err != domain.ErrAlreadySubmitted {
		t.Fatalf("expected ErrAlreadySubmitted on resubmit, got %v", err)
	}
	if after.TotalScore != before.TotalScore {
		t.Fatalf("score changed after submit: %d -> %d", before.TotalScore, after.TotalScore)
	}
	if len(f.recorder.Responses()) != 1 {
		t.Fatalf("expected exactly one recorded response")
	}
	snap := f.machine.Snapshot()
	if len(snap.Answers) != 1 || snap.Answers["q1"] != "A" {
		t.Fatalf("answer map mutated after submit: %v", snap.Answers)
	}
}

func TestSubmitFailureLeavesSessionRetryable(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()
	_ = f.machine.SelectAnswer(ctx, "q1", "A")

	f.recorder.FailWith = errors.New("storage failure")
	if _, err := f.machine.Submit(ctx); err == nil {
		t.Fatalf("expected submit failure")
	}
	if f.machine.Phase() != domain.PhaseInProgress {
		t.Fatalf("expected session to stay in progress, got %s", f.machine.Phase())
	}
	// Answers stay mirrored; nothing was cleared.
	if _, ok, _ := f.store.Get(ctx, "s1", KeyAnswers); !ok {
		t.Fatalf("expected answers still persisted after failed submit")
	}

	// The guard is released; an explicit retry succeeds.
	f.recorder.FailWith = nil
	if _, err := f.machine.Submit(ctx); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if f.machine.Phase() != domain.PhaseSubmitted {
		t.Fatalf("expected submitted after retry, got %s", f.machine.Phase())
	}
}

func TestQuizDeadlineSubmitsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	_ = f.machine.SelectAnswer(context.Background(), "q1", "A")

	f.machine.mu.Lock()
	timer := f.machine.quizTimer
	f.machine.mu.Unlock()

	f.clock.Advance(3601 * time.Second)
	// The tick handler may fire several times before the phase flips; only
	// one submission attempt may result.
	for i := 0; i < 3; i++ {
		timer.step()
	}

	if f.machine.Phase() != domain.PhaseSubmitted {
		t.Fatalf("expected auto-submit, got %s", f.machine.Phase())
	}
	if got := len(f.recorder.Responses()); got != 1 {
		t.Fatalf("expected exactly one submission, got %d", got)
	}
}

func TestRestoreReconstructsInProgressSession(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	store := memory.NewKVStore()
	recorder := memory.NewResponseRecorder()
	ctx := context.Background()

	// Persisted state from a previous process: started 30 minutes ago.
	started := clock.Now().Add(-30 * time.Minute)
	_ = store.Set(ctx, "s1", KeyEmail, "alice@example.com")
	_ = store.Set(ctx, "s1", KeyName, "Alice")
	_ = store.Set(ctx, "s1", KeyPhone, "9876543210")
	_ = store.Set(ctx, "s1", KeyAnswers, `{"q1":"A"}`)
	_ = store.Set(ctx, "s1", KeyIndex, "1")
	_ = store.Set(ctx, "s1", KeyStart, "1699998200")

	machine := NewMachine("s1", testQuiz(), store, recorder, Options{
		QuizDuration: 3600 * time.Second,
		Now:          clock.Now,
	})
	defer machine.Close()
	if err := machine.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	snap := machine.Snapshot()
	if snap.Phase != domain.PhaseInProgress {
		t.Fatalf("expected in_progress, got %s", snap.Phase)
	}
	if snap.Identity.Email != "alice@example.com" || snap.Answers["q1"] != "A" || snap.CurrentQuestionIndex != 1 {
		t.Fatalf("state not restored: %+v", snap)
	}
	// Remaining time comes from the stored absolute start, not a fresh window.
	if snap.Remaining != 1800 {
		t.Fatalf("remaining = %d, want 1800", snap.Remaining)
	}
	if !machine.StartedAt().Equal(started) {
		t.Fatalf("restored start %v, want %v", machine.StartedAt(), started)
	}
}

func TestRestoreDefaultsWhenNothingPersisted(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	snap := f.machine.Snapshot()
	if snap.Phase != domain.PhaseRegistration || len(snap.Answers) != 0 || snap.CurrentQuestionIndex != 0 {
		t.Fatalf("expected pristine registration state, got %+v", snap)
	}
}

func TestRestoreWithIdentityOnlyResumesTerms(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	store := memory.NewKVStore()
	ctx := context.Background()
	_ = store.Set(ctx, "s1", KeyEmail, "alice@example.com")
	_ = store.Set(ctx, "s1", KeyName, "Alice")
	_ = store.Set(ctx, "s1", KeyPhone, "9876543210")

	machine := NewMachine("s1", testQuiz(), store, memory.NewResponseRecorder(), Options{Now: clock.Now})
	defer machine.Close()
	if err := machine.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if machine.Phase() != domain.PhaseTerms {
		t.Fatalf("expected terms phase, got %s", machine.Phase())
	}
}

func TestRestorePastDeadlineAutoSubmits(t *testing.T) {
	store := memory.NewKVStore()
	recorder := memory.NewResponseRecorder()
	ctx := context.Background()
	_ = store.Set(ctx, "s1", KeyEmail, "alice@example.com")
	_ = store.Set(ctx, "s1", KeyName, "Alice")
	_ = store.Set(ctx, "s1", KeyPhone, "9876543210")
	_ = store.Set(ctx, "s1", KeyAnswers, `{"q1":"A"}`)
	// Started two hours ago against a one hour limit.
	_ = store.Set(ctx, "s1", KeyStart, "1699992800")

	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	machine := NewMachine("s1", testQuiz(), store, recorder, Options{
		QuizDuration: 3600 * time.Second,
		Now:          clock.Now,
	})
	defer machine.Close()
	if err := machine.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for machine.Phase() != domain.PhaseSubmitted {
		if time.Now().After(deadline) {
			t.Fatalf("expected expired session to auto-submit, phase=%s", machine.Phase())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(recorder.Responses()); got != 1 {
		t.Fatalf("expected one submission, got %d", got)
	}
}

func TestSubscribeReceivesPhaseEvents(t *testing.T) {
	f := newFixture(t)
	events, cancel := f.machine.Subscribe()
	defer cancel()

	f.register(t)
	ev := <-events
	if ev.Type != EventPhase || ev.Phase != domain.PhaseTerms {
		t.Fatalf("expected terms phase event, got %+v", ev)
	}

	if err := f.machine.AcceptTerms(context.Background()); err != nil {
		t.Fatalf("accept terms: %v", err)
	}
	ev = <-events
	if ev.Type != EventPhase || ev.Phase != domain.PhaseInProgress {
		t.Fatalf("expected in_progress phase event, got %+v", ev)
	}

	if _, err := f.machine.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ev = <-events
	if ev.Type != EventSubmitted || ev.Result == nil {
		t.Fatalf("expected submitted event with result, got %+v", ev)
	}
}
