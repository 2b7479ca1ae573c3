package session

import (
	"context"

	"devopsfarm-quiz/internal/domain"
)

// Persisted key names for the per-session key-value mirror. They match the
// keys the browser client used for local storage.
const (
	KeyAnswers = "quizAnswers"
	KeyEmail   = "userEmail"
	KeyName    = "userName"
	KeyPhone   = "userPhone"
	KeyIndex   = "currentQuestionIndex"
	KeyStart   = "quizStartTime"
)

// AllKeys lists every persisted session key, used when clearing a finished session.
var AllKeys = []string{KeyAnswers, KeyEmail, KeyName, KeyPhone, KeyIndex, KeyStart}

// ContentRepository loads quiz content (from cache/backing store).
type ContentRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizDefinition, error)
}

// KeyValueStore mirrors in-progress session state so a session survives
// reconnects. It is write-through and never the source of truth while a
// machine is live; concurrent writers are last-write-wins.
type KeyValueStore interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Clear(ctx context.Context, sessionID string, keys ...string) error
}

// ResponseRecorder persists a finished session's submission record. The
// implementation assigns the submission timestamp.
type ResponseRecorder interface {
	Record(ctx context.Context, rec domain.SubmissionRecord) (domain.StoredResponse, error)
}
