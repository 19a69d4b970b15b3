package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/talgya/ascension/internal/engine"
	apperrors "github.com/talgya/ascension/internal/errors"
)

// Memory is an in-process store. Game states are kept encoded so callers
// never share pointers with the store.
type Memory struct {
	mu             sync.RWMutex
	states         map[string][]byte
	investigations map[string]string // investigation id → game state id
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		states:         make(map[string][]byte),
		investigations: make(map[string]string),
	}
}

// Save stores a copy of the game state.
func (m *Memory) Save(_ context.Context, gs *engine.GameState) error {
	data, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("encode game state %s: %w", gs.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range investigationIDs(gs) {
		if owner, ok := m.investigations[id]; ok && owner != gs.ID {
			return duplicateInvestigation(id, owner)
		}
	}
	m.states[gs.ID] = data
	for invID, gameID := range m.investigations {
		if gameID == gs.ID {
			delete(m.investigations, invID)
		}
	}
	for id := range gs.Investigations {
		m.investigations[id] = gs.ID
	}
	for id := range gs.Completed {
		m.investigations[id] = gs.ID
	}
	return nil
}

// Load returns a copy of the game state.
func (m *Memory) Load(_ context.Context, id string) (*engine.GameState, error) {
	m.mu.RLock()
	data, ok := m.states[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("game state", id)
	}

	var gs engine.GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("decode game state %s: %w", id, err)
	}
	return &gs, nil
}

// List returns every game state id in order.
func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// FindInvestigation returns the id of the game state holding an
// investigation.
func (m *Memory) FindInvestigation(_ context.Context, investigationID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.investigations[investigationID]
	if !ok {
		return "", apperrors.NotFound("investigation", investigationID)
	}
	return id, nil
}
