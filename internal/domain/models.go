package domain

import "time"

// Phase is one discrete state of the quiz session lifecycle.
type Phase string

const (
	PhaseRegistration Phase = "registration"
	PhaseTerms        Phase = "terms"
	PhaseInProgress   Phase = "in_progress"
	PhaseSubmitted    Phase = "submitted"
)

// OptionItem is a selectable answer. The label doubles as the answer value,
// so labels must be unique within a question.
type OptionItem struct {
	ID     string `json:"id" bson:"id"`
	Option string `json:"option" bson:"option"`
}

// Question is a scored multiple-choice question.
type Question struct {
	ID            string       `json:"id" bson:"id"`
	Question      string       `json:"question" bson:"question"`
	CorrectAnswer string       `json:"correctAnswer" bson:"correctAnswer"`
	Value         int          `json:"value" bson:"value"`
	Options       []OptionItem `json:"options" bson:"options"`
}

// Category groups questions under a label.
type Category struct {
	ID        string     `json:"id" bson:"id"`
	Category  string     `json:"category" bson:"category"`
	Questions []Question `json:"questions" bson:"questions"`
}

// QuizDefinition is the authored quiz content. It is immutable once fetched
// for a session.
type QuizDefinition struct {
	ID         string     `json:"id" bson:"id"`
	Title      string     `json:"title" bson:"title"`
	Categories []Category `json:"categories" bson:"categories"`
}

// Questions flattens the category structure into one ordered question list.
func (q QuizDefinition) Questions() []Question {
	var all []Question
	for _, cat := range q.Categories {
		all = append(all, cat.Questions...)
	}
	return all
}

// QuestionCount returns the total number of questions across all categories.
func (q QuizDefinition) QuestionCount() int {
	n := 0
	for _, cat := range q.Categories {
		n += len(cat.Questions)
	}
	return n
}

// AnswerMap records the user's selections, keyed by question ID. Keys are a
// subset of the quiz's question IDs; entries are upserted, never removed while
// the session is live.
type AnswerMap map[string]string

// Clone returns an independent copy so snapshots cannot alias live state.
func (a AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Identity holds the registrant's contact fields, captured once before the
// terms phase and immutable afterward.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Complete reports whether all identity fields pass validation.
func (i Identity) Complete() bool {
	return i.Validate() == nil
}

// ScoreResult is the graded outcome of an answer map.
type ScoreResult struct {
	CategoryScores map[string]int `json:"categoryScores" bson:"categoryScores"`
	TotalScore     int            `json:"totalScore" bson:"totalScore"`
}

// SubmissionRecord is the write-once payload persisted for a finished session.
// Field names match the response collection schema (phone travels as pnumber).
type SubmissionRecord struct {
	Email          string         `json:"email" bson:"email"`
	Phone          string         `json:"pnumber" bson:"pnumber"`
	Name           string         `json:"name" bson:"name"`
	QuizID         string         `json:"quizId" bson:"quizId"`
	Answers        AnswerMap      `json:"answers" bson:"answers"`
	CategoryScores map[string]int `json:"categoryScores" bson:"categoryScores"`
	TotalScore     int            `json:"totalScore" bson:"totalScore"`
	SubmittedAt    time.Time      `json:"submittedAt" bson:"submittedAt"`
}

// StoredResponse is a SubmissionRecord after persistence assigned it an ID
// and a submission timestamp.
type StoredResponse struct {
	ID               string `json:"id" bson:"-"`
	SubmissionRecord `bson:",inline"`
}
