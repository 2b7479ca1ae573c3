// Package api holds clients for remote deployments of this service's own API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"devopsfarm-quiz/internal/domain"
)

// Recorder posts submission records to a remote response-persistence
// endpoint (the POST /api/quiz surface of another deployment). Used when the
// session engine runs separately from the persistence service.
type Recorder struct {
	endpoint string
	client   *http.Client
}

func NewRecorder(endpoint string) *Recorder {
	return &Recorder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *Recorder) Record(ctx context.Context, rec domain.SubmissionRecord) (domain.StoredResponse, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return domain.StoredResponse{}, fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.StoredResponse{}, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.StoredResponse{}, fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return domain.StoredResponse{}, fmt.Errorf("post submission: unexpected status %d", resp.StatusCode)
	}

	var stored domain.StoredResponse
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return domain.StoredResponse{}, fmt.Errorf("decode submission response: %w", err)
	}
	return stored, nil
}
