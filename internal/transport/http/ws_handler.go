package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"devopsfarm-quiz/internal/domain"
	"devopsfarm-quiz/internal/session"
	"github.com/gorilla/websocket"
)

var (
	errInvalidPayload     = errors.New("invalid message payload")
	errUnsupportedMessage = errors.New("unsupported message type")
)

// WSHandler drives the quiz wizard over a websocket. The client sends
// commands (register, acceptTerms, answer, goto, next, previous, submit) and
// receives the session snapshot, countdown ticks, phase changes, and the
// final result.
type WSHandler struct {
	sessions *session.Manager
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions *session.Manager) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type registerPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Option     string `json:"option"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type positionPayload struct {
	CurrentQuestionIndex int `json:"currentQuestionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and wires the connection into the session
// machine identified by the session query parameter.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	machine, err := h.sessions.GetOrCreate(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := machine.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: event.Type, Payload: event}:
				case <-closeSignals:
					return
				}
				if event.Type == session.EventSubmitted {
					h.sessions.Release(sessionID)
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: machine.Snapshot()}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handleMessage(r, machine, send, inbound)
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleMessage(r *http.Request, machine *session.Machine, send chan outboundMessage[any], inbound inboundMessage) {
	ctx := r.Context()
	fail := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}

	switch inbound.Type {
	case "register":
		var payload registerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(errInvalidPayload)
			return
		}
		if err := machine.Register(ctx, domain.Identity{
			Email: payload.Email,
			Name:  payload.Name,
			Phone: payload.Phone,
		}); err != nil {
			fail(err)
		}
	case "acceptTerms":
		if err := machine.AcceptTerms(ctx); err != nil {
			fail(err)
		}
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(errInvalidPayload)
			return
		}
		if err := machine.SelectAnswer(ctx, payload.QuestionID, payload.Option); err != nil {
			fail(err)
		}
	case "goto":
		var payload gotoPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(errInvalidPayload)
			return
		}
		index := machine.GoTo(ctx, payload.Index)
		send <- outboundMessage[any]{Type: "position", Payload: positionPayload{CurrentQuestionIndex: index}}
	case "next":
		index := machine.Next(ctx)
		send <- outboundMessage[any]{Type: "position", Payload: positionPayload{CurrentQuestionIndex: index}}
	case "previous":
		index := machine.Previous(ctx)
		send <- outboundMessage[any]{Type: "position", Payload: positionPayload{CurrentQuestionIndex: index}}
	case "submit":
		// Success is announced through the subscription; only failures are
		// reported here so the client can offer a retry.
		if _, err := machine.Submit(ctx); err != nil && err != domain.ErrAlreadySubmitted {
			fail(err)
		}
	default:
		fail(errUnsupportedMessage)
	}
}
