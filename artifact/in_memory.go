package artifact

import (
	"fmt"
	"slices"
	"sync"
)

// Options configure the in-memory store.
type Options struct {
	// MaxBytes limits a single artifact; 0 disables the check.
	MaxBytes int
}

// InMemoryStore keeps artifacts in a nested map guarded by an RWMutex. Data
// is copied on save / retrieval to avoid accidental external mutation of
// internal buffers.
//
// Layout: sessionID -> artifactID -> raw bytes
type InMemoryStore struct {
	mu        sync.RWMutex
	maxBytes  int
	artifacts map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &InMemoryStore{maxBytes: opts.MaxBytes, artifacts: make(map[string]map[string][]byte)}
}

// Save stores (or overwrites) the artifact bytes for the given session and id.
func (a *InMemoryStore) Save(sessionID, artifactID string, data []byte) error {
	if sessionID == "" || artifactID == "" {
		return fmt.Errorf("session and artifact id are required")
	}

	if a.maxBytes > 0 && len(data) > a.maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), a.maxBytes)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.artifacts[sessionID]; !exists {
		a.artifacts[sessionID] = make(map[string][]byte)
	}

	a.artifacts[sessionID][artifactID] = slices.Clone(data)

	return nil
}

// Get returns a copy of the stored artifact bytes or ErrNotFound.
func (a *InMemoryStore) Get(sessionID, artifactID string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, ok := a.artifacts[sessionID][artifactID]
	if !ok {
		return nil, ErrNotFound
	}

	return slices.Clone(data), nil
}

// List returns the sorted artifact ids stored for the session.
func (a *InMemoryStore) List(sessionID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	m := a.artifacts[sessionID]
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids, nil
}

// Delete removes the artifact if present or returns ErrNotFound.
func (a *InMemoryStore) Delete(sessionID, artifactID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.artifacts[sessionID]
	if !ok {
		return ErrNotFound
	}

	if _, ok := m[artifactID]; !ok {
		return ErrNotFound
	}

	delete(m, artifactID)

	if len(m) == 0 {
		delete(a.artifacts, sessionID)
	}

	return nil
}

// DeleteSession drops all artifacts of a session.
func (a *InMemoryStore) DeleteSession(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.artifacts, sessionID)

	return nil
}
