package session

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"devopsfarm-quiz/internal/domain"
	"devopsfarm-quiz/internal/score"
)

// Event types published to subscribers.
const (
	EventPhase     = "phase"
	EventTick      = "tick"
	EventSubmitted = "submitted"
)

// Event is a session update pushed to transport subscribers.
type Event struct {
	Type      string              `json:"type"`
	Phase     domain.Phase        `json:"phase"`
	Remaining int                 `json:"remaining,omitempty"`
	Display   string              `json:"display,omitempty"`
	Result    *domain.ScoreResult `json:"result,omitempty"`
}

// Snapshot is a point-in-time view of a session for transports.
type Snapshot struct {
	SessionID            string              `json:"sessionId"`
	Phase                domain.Phase        `json:"phase"`
	Quiz                 domain.QuizDefinition `json:"quiz"`
	Identity             domain.Identity     `json:"identity"`
	Answers              domain.AnswerMap    `json:"answers"`
	CurrentQuestionIndex int                 `json:"currentQuestionIndex"`
	Remaining            int                 `json:"remaining"`
	Display              string              `json:"display"`
	Result               *domain.ScoreResult `json:"result,omitempty"`
}

// Options tunes a machine's clocks and windows. Zero values fall back to the
// production defaults (10 minute terms window, 1 hour quiz, 1 second ticks).
type Options struct {
	TermsWindow  time.Duration
	QuizDuration time.Duration
	TickInterval time.Duration
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TermsWindow <= 0 {
		o.TermsWindow = 10 * time.Minute
	}
	if o.QuizDuration <= 0 {
		o.QuizDuration = time.Hour
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Machine drives one user's quiz session through
// registration -> terms -> in_progress -> submitted. It owns the answer map
// and session state exclusively; the key-value store is a write-through
// mirror used only to restore after a reconnect.
type Machine struct {
	id       string
	quiz     domain.QuizDefinition
	store    KeyValueStore
	recorder ResponseRecorder
	opts     Options

	mu          sync.Mutex
	phase       domain.Phase
	identity    domain.Identity
	answers     domain.AnswerMap
	index       int
	startedAt   time.Time
	termsTimer  *Countdown
	quizTimer   *Countdown
	submitting  bool
	result      *domain.ScoreResult
	subscribers map[chan Event]struct{}
}

// NewMachine builds an unstarted machine for one session.
func NewMachine(id string, quiz domain.QuizDefinition, store KeyValueStore, recorder ResponseRecorder, opts Options) *Machine {
	return &Machine{
		id:          id,
		quiz:        quiz,
		store:       store,
		recorder:    recorder,
		opts:        opts.withDefaults(),
		phase:       domain.PhaseRegistration,
		answers:     make(domain.AnswerMap),
		subscribers: make(map[chan Event]struct{}),
	}
}

// Restore reconstructs session state from the key-value mirror and resumes
// the appropriate phase. Absent keys fall back to defaults: empty answers,
// empty identity, index 0, and no start timestamp (not yet started). A stored
// start timestamp anchors the quiz deadline to the original start, so time
// away from the session still counts; a deadline already elapsed triggers an
// immediate submission attempt.
func (m *Machine) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if raw, ok, err := m.store.Get(ctx, m.id, KeyAnswers); err != nil {
		return err
	} else if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.answers); err != nil {
			log.Printf("session %s: discarding corrupt stored answers: %v", m.id, err)
			m.answers = make(domain.AnswerMap)
		}
	}

	m.identity.Email, _, _ = m.getStored(ctx, KeyEmail)
	m.identity.Name, _, _ = m.getStored(ctx, KeyName)
	m.identity.Phone, _, _ = m.getStored(ctx, KeyPhone)

	if raw, ok, _ := m.store.Get(ctx, m.id, KeyIndex); ok {
		if i, err := strconv.Atoi(raw); err == nil {
			m.index = m.clampIndex(i)
		}
	}

	started := time.Time{}
	if raw, ok, _ := m.store.Get(ctx, m.id, KeyStart); ok {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			started = time.Unix(unix, 0)
		}
	}

	switch {
	case !started.IsZero():
		m.startedAt = started
		m.phase = domain.PhaseInProgress
		m.startQuizTimerLocked()
	case m.identity.Complete():
		// The terms window is not anchored; a reconnect restarts it.
		m.beginTermsLocked()
	default:
		m.phase = domain.PhaseRegistration
	}
	return nil
}

func (m *Machine) getStored(ctx context.Context, key string) (string, bool, error) {
	return m.store.Get(ctx, m.id, key)
}

// ID returns the session identifier.
func (m *Machine) ID() string {
	return m.id
}

// Phase returns the current lifecycle phase.
func (m *Machine) Phase() domain.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// StartedAt returns the fixed quiz start timestamp, zero until the session
// enters the in-progress phase.
func (m *Machine) StartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startedAt
}

// Snapshot returns a copy of the current session state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := 0
	switch m.phase {
	case domain.PhaseTerms:
		if m.termsTimer != nil {
			remaining = m.termsTimer.Remaining()
		}
	case domain.PhaseInProgress:
		if m.quizTimer != nil {
			remaining = m.quizTimer.Remaining()
		}
	}
	return Snapshot{
		SessionID:            m.id,
		Phase:                m.phase,
		Quiz:                 m.quiz,
		Identity:             m.identity,
		Answers:              m.answers.Clone(),
		CurrentQuestionIndex: m.index,
		Remaining:            remaining,
		Display:              FormatRemaining(remaining),
		Result:               m.result,
	}
}

// Register validates and captures the user's identity, then enters the terms
// phase. Validation surfaces one error at a time: email, then name, then phone.
func (m *Machine) Register(ctx context.Context, identity domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != domain.PhaseRegistration {
		return domain.ErrInvalidPhase
	}
	identity.Name = strings.TrimSpace(identity.Name)
	if err := identity.Validate(); err != nil {
		return err
	}

	m.identity = identity
	m.persist(ctx, KeyEmail, identity.Email)
	m.persist(ctx, KeyName, identity.Name)
	m.persist(ctx, KeyPhone, identity.Phone)
	m.beginTermsLocked()
	return nil
}

func (m *Machine) beginTermsLocked() {
	m.phase = domain.PhaseTerms
	deadline := m.opts.Now().Add(m.opts.TermsWindow)
	m.termsTimer = NewCountdown(deadline, m.opts.Now, m.opts.TickInterval,
		func(remaining int) { m.publishTick(domain.PhaseTerms, remaining) },
		func() { _ = m.startQuiz(context.Background()) },
	)
	m.termsTimer.Start()
	m.broadcastLocked(Event{Type: EventPhase, Phase: domain.PhaseTerms})
}

// AcceptTerms starts the quiz explicitly. It is equivalent to, and idempotent
// with, the terms countdown reaching zero.
func (m *Machine) AcceptTerms(ctx context.Context) error {
	return m.startQuiz(ctx)
}

func (m *Machine) startQuiz(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case domain.PhaseInProgress, domain.PhaseSubmitted:
		return nil
	case domain.PhaseRegistration:
		return domain.ErrInvalidPhase
	}

	if m.termsTimer != nil {
		m.termsTimer.Stop()
		m.termsTimer = nil
	}

	m.phase = domain.PhaseInProgress
	m.startedAt = m.opts.Now()
	m.persist(ctx, KeyStart, strconv.FormatInt(m.startedAt.Unix(), 10))
	m.startQuizTimerLocked()
	m.broadcastLocked(Event{Type: EventPhase, Phase: domain.PhaseInProgress})
	return nil
}

// startQuizTimerLocked arms the quiz countdown against the absolute deadline
// derived from the fixed start timestamp.
func (m *Machine) startQuizTimerLocked() {
	deadline := m.startedAt.Add(m.opts.QuizDuration)
	m.quizTimer = NewCountdown(deadline, m.opts.Now, m.opts.TickInterval,
		func(remaining int) { m.publishTick(domain.PhaseInProgress, remaining) },
		func() { m.autoSubmit() },
	)
	m.quizTimer.Start()
}

// SelectAnswer upserts the selection for a question. It is legal at any
// navigation position while the quiz is in progress.
func (m *Machine) SelectAnswer(ctx context.Context, questionID, option string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == domain.PhaseSubmitted {
		return domain.ErrAlreadySubmitted
	}
	if m.phase != domain.PhaseInProgress {
		return domain.ErrInvalidPhase
	}

	question, ok := m.findQuestion(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if !hasOption(question, option) {
		return domain.ErrOptionNotFound
	}

	m.answers[questionID] = option
	m.persistAnswers(ctx)
	return nil
}

// GoTo moves the current-question pointer, clamping out-of-range indices to
// the valid range. It returns the resulting index.
func (m *Machine) GoTo(ctx context.Context, index int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goToLocked(ctx, index)
}

// Next advances to the following question.
func (m *Machine) Next(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goToLocked(ctx, m.index+1)
}

// Previous moves back one question.
func (m *Machine) Previous(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goToLocked(ctx, m.index-1)
}

func (m *Machine) goToLocked(ctx context.Context, index int) int {
	if m.phase == domain.PhaseSubmitted {
		return m.index
	}
	next := m.clampIndex(index)
	if next != m.index {
		m.index = next
		m.persist(ctx, KeyIndex, strconv.Itoa(next))
	}
	return m.index
}

func (m *Machine) clampIndex(index int) int {
	if index < 0 {
		return 0
	}
	if max := m.quiz.QuestionCount() - 1; index > max {
		if max < 0 {
			return 0
		}
		return max
	}
	return index
}

// Submit scores the current answers and records the submission. At most one
// submission is in flight at a time; a failure leaves the session in progress
// with the guard released so the user can retry.
func (m *Machine) Submit(ctx context.Context) (domain.ScoreResult, error) {
	m.mu.Lock()
	if m.phase == domain.PhaseSubmitted {
		result := domain.ScoreResult{}
		if m.result != nil {
			result = *m.result
		}
		m.mu.Unlock()
		return result, domain.ErrAlreadySubmitted
	}
	if m.phase != domain.PhaseInProgress {
		m.mu.Unlock()
		return domain.ScoreResult{}, domain.ErrInvalidPhase
	}
	if m.submitting {
		m.mu.Unlock()
		return domain.ScoreResult{}, domain.ErrSubmissionInFlight
	}
	m.submitting = true

	answers := m.answers.Clone()
	result := score.Score(m.quiz, answers)
	record := domain.SubmissionRecord{
		Email:          m.identity.Email,
		Phone:          m.identity.Phone,
		Name:           m.identity.Name,
		QuizID:         m.quiz.ID,
		Answers:        answers,
		CategoryScores: result.CategoryScores,
		TotalScore:     result.TotalScore,
	}
	m.mu.Unlock()

	_, err := m.recorder.Record(ctx, record)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitting = false
	if err != nil {
		return domain.ScoreResult{}, err
	}
	if m.phase == domain.PhaseSubmitted {
		if m.result != nil {
			return *m.result, nil
		}
		return result, nil
	}

	m.phase = domain.PhaseSubmitted
	m.result = &result
	if m.quizTimer != nil {
		m.quizTimer.Stop()
		m.quizTimer = nil
	}
	if err := m.store.Clear(ctx, m.id, AllKeys...); err != nil {
		log.Printf("session %s: clear persisted state: %v", m.id, err)
	}
	m.broadcastLocked(Event{Type: EventSubmitted, Phase: domain.PhaseSubmitted, Result: &result})
	return result, nil
}

// autoSubmit runs when the quiz deadline elapses. The expiry fires once and
// the in-flight guard makes timer-driven and user-driven submits mutually
// exclusive: whichever wins, the other is a no-op.
func (m *Machine) autoSubmit() {
	if _, err := m.Submit(context.Background()); err != nil {
		switch err {
		case domain.ErrAlreadySubmitted, domain.ErrSubmissionInFlight:
		default:
			log.Printf("session %s: auto-submit failed: %v", m.id, err)
		}
	}
}

// Subscribe returns a channel receiving session events. The caller must
// invoke the returned cancel function to avoid leaks.
func (m *Machine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

func (m *Machine) publishTick(owner domain.Phase, remaining int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != owner {
		// Stale tick from a countdown whose phase already ended.
		return
	}
	m.broadcastLocked(Event{
		Type:      EventTick,
		Phase:     owner,
		Remaining: remaining,
		Display:   FormatRemaining(remaining),
	})
}

func (m *Machine) broadcastLocked(event Event) {
	for ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest pending event so a slow consumer cannot block.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

func (m *Machine) persist(ctx context.Context, key, value string) {
	if err := m.store.Set(ctx, m.id, key, value); err != nil {
		log.Printf("session %s: persist %s: %v", m.id, key, err)
	}
}

func (m *Machine) persistAnswers(ctx context.Context) {
	data, err := json.Marshal(m.answers)
	if err != nil {
		log.Printf("session %s: marshal answers: %v", m.id, err)
		return
	}
	m.persist(ctx, KeyAnswers, string(data))
}

// Close stops any running countdown without changing the session phase.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.termsTimer != nil {
		m.termsTimer.Stop()
		m.termsTimer = nil
	}
	if m.quizTimer != nil {
		m.quizTimer.Stop()
		m.quizTimer = nil
	}
}

func (m *Machine) findQuestion(questionID string) (domain.Question, bool) {
	for _, cat := range m.quiz.Categories {
		for _, q := range cat.Questions {
			if q.ID == questionID {
				return q, true
			}
		}
	}
	return domain.Question{}, false
}

func hasOption(q domain.Question, label string) bool {
	for _, opt := range q.Options {
		if opt.Option == label {
			return true
		}
	}
	return false
}
