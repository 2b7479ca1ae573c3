package mongodb

import (
	"context"
	"errors"
	"fmt"

	"devopsfarm-quiz/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ContentStore loads quiz definitions from the quizzes collection. Documents
// carry the authored content shape (categories -> questions -> options).
type ContentStore struct {
	collection *mongo.Collection
}

func NewContentStore(client *mongo.Client, database string) *ContentStore {
	return &ContentStore{
		collection: client.Database(database).Collection("quizzes"),
	}
}

func (s *ContentStore) LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	var quiz domain.QuizDefinition
	err := s.collection.FindOne(ctx, bson.M{"id": quizID}).Decode(&quiz)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.QuizDefinition{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizDefinition{}, fmt.Errorf("load quiz: %w", err)
	}
	return quiz, nil
}

func (s *ContentStore) ListQuizzes(ctx context.Context) ([]domain.QuizDefinition, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer cursor.Close(ctx)

	var quizzes []domain.QuizDefinition
	if err := cursor.All(ctx, &quizzes); err != nil {
		return nil, fmt.Errorf("decode quizzes: %w", err)
	}
	return quizzes, nil
}

// SaveQuiz upserts a definition; used by the seed command.
func (s *ContentStore) SaveQuiz(ctx context.Context, quiz domain.QuizDefinition) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"id": quiz.ID},
		bson.M{"$set": quiz},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}
