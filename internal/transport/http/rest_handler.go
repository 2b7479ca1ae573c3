package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"devopsfarm-quiz/internal/domain"
	"devopsfarm-quiz/internal/session"
	"github.com/gorilla/mux"
)

const browseLimit = 200

// DocumentBrowser serves the generic content-browse queries.
type DocumentBrowser interface {
	Browse(ctx context.Context, collection string, filter map[string]interface{}, limit int64) ([]map[string]interface{}, error)
}

// RESTHandler exposes quiz content, response submission, and document browsing.
type RESTHandler struct {
	content          session.ContentRepository
	recorder         session.ResponseRecorder
	browser          DocumentBrowser
	browseCollection string
}

func NewRESTHandler(content session.ContentRepository, recorder session.ResponseRecorder, browser DocumentBrowser, browseCollection string) *RESTHandler {
	if browseCollection == "" {
		browseCollection = "pages"
	}
	return &RESTHandler{
		content:          content,
		recorder:         recorder,
		browser:          browser,
		browseCollection: browseCollection,
	}
}

// NewRouter wires the REST surface and the websocket session transport.
func NewRouter(rest *RESTHandler, ws *WSHandler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/quiz", rest.ListQuizzes).Methods(http.MethodGet)
	router.HandleFunc("/api/quiz", rest.SubmitResponse).Methods(http.MethodPost)
	router.HandleFunc("/api/data", rest.BrowseDocuments).Methods(http.MethodGet)
	if ws != nil {
		router.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)
	}
	return router
}

// ListQuizzes returns every quiz definition as a JSON array.
func (h *RESTHandler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.content.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch quiz data")
		return
	}
	if quizzes == nil {
		quizzes = []domain.QuizDefinition{}
	}
	writeJSON(w, http.StatusOK, quizzes)
}

// submissionPayload mirrors the response collection schema. Pointer fields
// distinguish absent values from zero values so missing required fields can
// be rejected.
type submissionPayload struct {
	Email          *string           `json:"email"`
	Phone          *string           `json:"pnumber"`
	Name           *string           `json:"name"`
	QuizID         *string           `json:"quizId"`
	Answers        map[string]string `json:"answers"`
	CategoryScores map[string]int    `json:"categoryScores"`
	TotalScore     *float64          `json:"totalScore"`
}

func (p submissionPayload) toRecord() domain.SubmissionRecord {
	return domain.SubmissionRecord{
		Email:          *p.Email,
		Phone:          *p.Phone,
		Name:           *p.Name,
		QuizID:         *p.QuizID,
		Answers:        p.Answers,
		CategoryScores: p.CategoryScores,
		TotalScore:     int(*p.TotalScore),
	}
}

func (p submissionPayload) validate() bool {
	required := []*string{p.Email, p.Phone, p.Name, p.QuizID}
	for _, field := range required {
		if field == nil || *field == "" {
			return false
		}
	}
	return p.Answers != nil && p.CategoryScores != nil && p.TotalScore != nil
}

// SubmitResponse validates and persists a submission record, replying 201
// with the stored document. Malformed payloads (missing fields or wrong types
// for totalScore/categoryScores) get 400; storage failures get 500.
func (h *RESTHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	var payload submissionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid data format")
		return
	}
	if !payload.validate() {
		writeError(w, http.StatusBadRequest, "Invalid data format")
		return
	}

	stored, err := h.recorder.Record(r.Context(), payload.toRecord())
	if err != nil {
		log.Printf("quiz submission failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to submit quiz")
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// BrowseDocuments serves the generic filtered content query. The filter is a
// JSON object in the query string; up to 200 documents are returned.
func (h *RESTHandler) BrowseDocuments(w http.ResponseWriter, r *http.Request) {
	if h.browser == nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch data")
		return
	}

	filter := map[string]interface{}{}
	if raw := r.URL.Query().Get("query"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to fetch data")
			return
		}
	}

	docs, err := h.browser.Browse(r.Context(), h.browseCollection, filter, browseLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch data")
		return
	}
	if docs == nil {
		docs = []map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
