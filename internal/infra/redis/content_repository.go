package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"devopsfarm-quiz/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ContentLoader fetches quiz content from a backing store (e.g., document DB).
type ContentLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizDefinition, error)
}

// ContentRepository caches full quiz definitions in Redis as JSON
// (SET quiz:{quizID}:def) and falls back to the loader on cache miss.
// Definitions are cached whole because sessions need prompts, categories,
// and option labels, not just the answer key.
type ContentRepository struct {
	client *redis.Client
	loader ContentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewContentRepository(client *redis.Client, loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ContentRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizDefinition{}, err
		}

		if data, err := json.Marshal(quiz); err == nil {
			// Cache fill is best-effort; a miss next time just reloads.
			_ = r.client.Set(ctx, r.key(quizID), data, r.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return result.(domain.QuizDefinition), nil
}

// ListQuizzes goes straight to the loader; listings must not serve stale
// membership.
func (r *ContentRepository) ListQuizzes(ctx context.Context) ([]domain.QuizDefinition, error) {
	return r.loader.ListQuizzes(ctx)
}

func (r *ContentRepository) cached(ctx context.Context, quizID string) (domain.QuizDefinition, bool) {
	data, err := r.client.Get(ctx, r.key(quizID)).Bytes()
	if err != nil || len(data) == 0 {
		return domain.QuizDefinition{}, false
	}
	var quiz domain.QuizDefinition
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.QuizDefinition{}, false
	}
	return quiz, true
}

func (r *ContentRepository) key(quizID string) string {
	return "quiz:" + quizID + ":def"
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
