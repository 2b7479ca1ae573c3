package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"devopsfarm-quiz/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ContentLoader fetches quiz content from a backing store (e.g., document DB).
type ContentLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizDefinition, error)
}

// ContentRepository caches quiz definitions with TTL to avoid repeated
// backing-store hits.
type ContentRepository struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.QuizDefinition
	expiresAt time.Time
}

func NewContentRepository(loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *ContentRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.quiz, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.quiz, nil
		}
		r.mu.RUnlock()

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizDefinition{}, err
		}

		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return result.(domain.QuizDefinition), nil
}

// ListQuizzes goes straight to the loader; listings are cheap and must not
// serve stale membership.
func (r *ContentRepository) ListQuizzes(ctx context.Context) ([]domain.QuizDefinition, error) {
	return r.loader.ListQuizzes(ctx)
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticContentLoader is a loader backed by an in-memory map (tests/demos).
type StaticContentLoader struct {
	quizzes []domain.QuizDefinition
}

func NewStaticContentLoader(quizzes ...domain.QuizDefinition) *StaticContentLoader {
	return &StaticContentLoader{quizzes: quizzes}
}

func (l *StaticContentLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizDefinition, error) {
	for _, quiz := range l.quizzes {
		if quiz.ID == quizID {
			return quiz, nil
		}
	}
	return domain.QuizDefinition{}, domain.ErrQuizNotFound
}

func (l *StaticContentLoader) ListQuizzes(_ context.Context) ([]domain.QuizDefinition, error) {
	out := make([]domain.QuizDefinition, len(l.quizzes))
	copy(out, l.quizzes)
	return out, nil
}
