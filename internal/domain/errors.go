package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is not part of the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a selected option label does not exist on the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrSessionNotFound is returned when a quiz session has not been initialized.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrInvalidPhase is returned for operations issued outside their owning phase.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")
	// ErrAlreadySubmitted is returned when a terminal session receives a submit.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrSubmissionInFlight suppresses concurrent duplicate submissions.
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// Identity validation errors. Exactly one is surfaced at a time; see
// Identity.Validate for the ordering.
var (
	ErrEmailInvalid = errors.New("enter a valid email address")
	ErrNameRequired = errors.New("enter your name")
	ErrPhoneInvalid = errors.New("enter a valid 10-digit phone number")
)
