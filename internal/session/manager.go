package session

import (
	"context"
	"sync"

	"devopsfarm-quiz/internal/domain"
)

// Manager is the registry of live session machines, keyed by session ID.
// Each machine is bound to the first available quiz definition, matching the
// single-quiz behavior of the content service.
type Manager struct {
	content  ContentRepository
	store    KeyValueStore
	recorder ResponseRecorder
	opts     Options

	mu       sync.Mutex
	machines map[string]*Machine
}

// NewManager wires a session registry over the given collaborators.
func NewManager(content ContentRepository, store KeyValueStore, recorder ResponseRecorder, opts Options) *Manager {
	return &Manager{
		content:  content,
		store:    store,
		recorder: recorder,
		opts:     opts,
		machines: make(map[string]*Machine),
	}
}

// GetOrCreate returns the live machine for sessionID, restoring persisted
// state when the machine is not already resident.
func (mgr *Manager) GetOrCreate(ctx context.Context, sessionID string) (*Machine, error) {
	mgr.mu.Lock()
	if machine, ok := mgr.machines[sessionID]; ok {
		mgr.mu.Unlock()
		return machine, nil
	}
	mgr.mu.Unlock()

	quizzes, err := mgr.content.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	if len(quizzes) == 0 {
		return nil, domain.ErrQuizNotFound
	}

	machine := NewMachine(sessionID, quizzes[0], mgr.store, mgr.recorder, mgr.opts)
	if err := machine.Restore(ctx); err != nil {
		machine.Close()
		return nil, err
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if existing, ok := mgr.machines[sessionID]; ok {
		// Another caller won the race; discard ours.
		machine.Close()
		return existing, nil
	}
	mgr.machines[sessionID] = machine
	return machine, nil
}

// Get returns the resident machine for sessionID, if any.
func (mgr *Manager) Get(sessionID string) (*Machine, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	machine, ok := mgr.machines[sessionID]
	return machine, ok
}

// Release drops a machine that reached its terminal phase. Machines still in
// flight are kept so their countdowns survive transport disconnects.
func (mgr *Manager) Release(sessionID string) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	machine, ok := mgr.machines[sessionID]
	if !ok {
		return
	}
	if machine.Phase() == domain.PhaseSubmitted {
		machine.Close()
		delete(mgr.machines, sessionID)
	}
}
