package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"devopsfarm-quiz/internal/domain"
)

// ResponseRecorder keeps submissions in memory. Tests use it to observe the
// records a session produced and to inject persistence failures.
type ResponseRecorder struct {
	mu        sync.Mutex
	responses []domain.StoredResponse
	clock     func() time.Time

	// FailWith, when set, makes Record return the error without storing.
	FailWith error
}

func NewResponseRecorder() *ResponseRecorder {
	return &ResponseRecorder{clock: time.Now}
}

func (r *ResponseRecorder) Record(_ context.Context, rec domain.SubmissionRecord) (domain.StoredResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return domain.StoredResponse{}, r.FailWith
	}
	rec.SubmittedAt = r.clock()
	stored := domain.StoredResponse{
		ID:               fmt.Sprintf("resp-%d", len(r.responses)+1),
		SubmissionRecord: rec,
	}
	r.responses = append(r.responses, stored)
	return stored, nil
}

// Responses returns a copy of everything recorded so far.
func (r *ResponseRecorder) Responses() []domain.StoredResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.StoredResponse, len(r.responses))
	copy(out, r.responses)
	return out
}
