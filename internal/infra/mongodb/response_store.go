package mongodb

import (
	"context"
	"fmt"
	"time"

	"devopsfarm-quiz/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ResponseStore persists submission records in the quizResponses collection
// and serves the generic document-browse queries.
type ResponseStore struct {
	database *mongo.Database
	clock    func() time.Time
}

func NewResponseStore(client *mongo.Client, database string) *ResponseStore {
	return &ResponseStore{
		database: client.Database(database),
		clock:    time.Now,
	}
}

// Record stores the submission with a server-assigned timestamp and returns
// the created document.
func (s *ResponseStore) Record(ctx context.Context, rec domain.SubmissionRecord) (domain.StoredResponse, error) {
	rec.SubmittedAt = s.clock().UTC()

	result, err := s.database.Collection("quizResponses").InsertOne(ctx, rec)
	if err != nil {
		return domain.StoredResponse{}, fmt.Errorf("record response: %w", err)
	}

	stored := domain.StoredResponse{SubmissionRecord: rec}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		stored.ID = oid.Hex()
	}
	return stored, nil
}

// ResponsesByEmail returns everything a registrant submitted, newest first.
func (s *ResponseStore) ResponsesByEmail(ctx context.Context, email string) ([]domain.StoredResponse, error) {
	cursor, err := s.database.Collection("quizResponses").Find(ctx,
		bson.M{"email": email},
		options.Find().SetSort(bson.M{"submittedAt": -1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find responses: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domain.StoredResponse
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	return out, nil
}

// Browse runs a caller-supplied filter against the named collection,
// returning at most limit raw documents.
func (s *ResponseStore) Browse(ctx context.Context, collection string, filter map[string]interface{}, limit int64) ([]map[string]interface{}, error) {
	if filter == nil {
		filter = map[string]interface{}{}
	}
	cursor, err := s.database.Collection(collection).Find(ctx, bson.M(filter), options.Find().SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("browse %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []map[string]interface{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s documents: %w", collection, err)
	}
	return docs, nil
}
