package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"devopsfarm-quiz/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ContentLoader loads quiz JSONB from Postgres.
type ContentLoader struct {
	pool *pgxpool.Pool
}

func NewContentLoader(pool *pgxpool.Pool) *ContentLoader {
	return &ContentLoader{pool: pool}
}

func (l *ContentLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return domain.QuizDefinition{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizDefinition{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.QuizDefinition
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.QuizDefinition{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

func (l *ContentLoader) ListQuizzes(ctx context.Context) ([]domain.QuizDefinition, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []domain.QuizDefinition
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		var quiz domain.QuizDefinition
		if err := json.Unmarshal(raw, &quiz); err != nil {
			return nil, fmt.Errorf("unmarshal quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

// SaveQuiz upserts a definition; used by the seed command.
func (l *ContentLoader) SaveQuiz(ctx context.Context, quiz domain.QuizDefinition) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO quizzes (id, data) VALUES ($1, $2::jsonb)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		quiz.ID, string(data))
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}
