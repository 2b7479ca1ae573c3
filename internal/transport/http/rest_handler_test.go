package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"devopsfarm-quiz/internal/domain"
	"devopsfarm-quiz/internal/infra/memory"
)

func sampleQuiz() domain.QuizDefinition {
	return domain.QuizDefinition{
		ID:    "quiz-1",
		Title: "General Knowledge",
		Categories: []domain.Category{
			{
				ID:       "c1",
				Category: "General",
				Questions: []domain.Question{
					{
						ID: "q1", Question: "What is 2 + 2?", CorrectAnswer: "4", Value: 10,
						Options: []domain.OptionItem{{ID: "o1", Option: "3"}, {ID: "o2", Option: "4"}},
					},
				},
			},
		},
	}
}

type fakeBrowser struct {
	collection string
	filter     map[string]interface{}
	docs       []map[string]interface{}
	err        error
}

func (b *fakeBrowser) Browse(_ context.Context, collection string, filter map[string]interface{}, _ int64) ([]map[string]interface{}, error) {
	b.collection = collection
	b.filter = filter
	return b.docs, b.err
}

func newTestServer(t *testing.T, recorder *memory.ResponseRecorder, browser DocumentBrowser) *httptest.Server {
	t.Helper()
	content := memory.NewContentRepository(memory.NewStaticContentLoader(sampleQuiz()), 5*time.Minute)
	rest := NewRESTHandler(content, recorder, browser, "pages")
	server := httptest.NewServer(NewRouter(rest, nil))
	t.Cleanup(server.Close)
	return server
}

func TestListQuizzes(t *testing.T) {
	server := newTestServer(t, memory.NewResponseRecorder(), nil)

	resp, err := http.Get(server.URL + "/api/quiz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var quizzes []domain.QuizDefinition
	if err := json.NewDecoder(resp.Body).Decode(&quizzes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(quizzes) != 1 || quizzes[0].ID != "quiz-1" {
		t.Fatalf("unexpected quizzes: %+v", quizzes)
	}
}

func validSubmission() string {
	return `{
		"email": "a@b.com",
		"pnumber": "9876543210",
		"name": "Alice",
		"quizId": "quiz-1",
		"answers": {"q1": "4"},
		"categoryScores": {"General": 10},
		"totalScore": 10
	}`
}

func postSubmission(t *testing.T, server *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+"/api/quiz", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestSubmitResponseCreatesRecord(t *testing.T) {
	recorder := memory.NewResponseRecorder()
	server := newTestServer(t, recorder, nil)

	resp := postSubmission(t, server, validSubmission())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var stored domain.StoredResponse
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stored.ID == "" || stored.TotalScore != 10 {
		t.Fatalf("unexpected stored response: %+v", stored)
	}

	responses := recorder.Responses()
	if len(responses) != 1 || responses[0].SubmittedAt.IsZero() {
		t.Fatalf("expected one record with server timestamp, got %+v", responses)
	}
}

func TestSubmitResponseRejectsMalformedPayloads(t *testing.T) {
	server := newTestServer(t, memory.NewResponseRecorder(), nil)

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{`},
		{"missing pnumber", `{"email":"a@b.com","name":"Alice","quizId":"quiz-1","answers":{},"categoryScores":{},"totalScore":0}`},
		{"empty email", `{"email":"","pnumber":"9876543210","name":"Alice","quizId":"quiz-1","answers":{},"categoryScores":{},"totalScore":0}`},
		{"missing totalScore", `{"email":"a@b.com","pnumber":"9876543210","name":"Alice","quizId":"quiz-1","answers":{},"categoryScores":{}}`},
		{"totalScore wrong type", `{"email":"a@b.com","pnumber":"9876543210","name":"Alice","quizId":"quiz-1","answers":{},"categoryScores":{},"totalScore":"ten"}`},
		{"categoryScores wrong type", `{"email":"a@b.com","pnumber":"9876543210","name":"Alice","quizId":"quiz-1","answers":{},"categoryScores":"none","totalScore":0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postSubmission(t, server, tc.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestSubmitResponseStorageFailure(t *testing.T) {
	recorder := memory.NewResponseRecorder()
	recorder.FailWith = errors.New("db down")
	server := newTestServer(t, recorder, nil)

	resp := postSubmission(t, server, validSubmission())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestBrowseDocuments(t *testing.T) {
	browser := &fakeBrowser{docs: []map[string]interface{}{{"slug": "home"}}}
	server := newTestServer(t, memory.NewResponseRecorder(), browser)

	resp, err := http.Get(server.URL + `/api/data?query={"slug":{"equals":"home"}}`)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if browser.collection != "pages" {
		t.Fatalf("browsed collection %q, want pages", browser.collection)
	}
	if _, ok := browser.filter["slug"]; !ok {
		t.Fatalf("filter not passed through: %v", browser.filter)
	}

	var docs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(docs) != 1 || docs[0]["slug"] != "home" {
		t.Fatalf("unexpected docs: %v", docs)
	}
}

func TestBrowseDocumentsBadQuery(t *testing.T) {
	server := newTestServer(t, memory.NewResponseRecorder(), &fakeBrowser{})

	resp, err := http.Get(server.URL + `/api/data?query=not-json`)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}
