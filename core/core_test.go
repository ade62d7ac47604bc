package core

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	applied  map[string]map[string]any
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: map[string]*Session{}, applied: map[string]map[string]any{}}
}

func (m *mockSessionStore) Create(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := NewSession(id)
	m.sessions[id] = s
	return s, nil
}

func (m *mockSessionStore) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *mockSessionStore) AppendEvent(id string, ev Event) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.AddEvent(ev)
	return nil
}

func (m *mockSessionStore) ApplyDelta(id string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied[id] = maps.Clone(delta)
	if s, ok := m.sessions[id]; ok {
		s.ApplyStateDelta(delta)
	}
	return nil
}

func (m *mockSessionStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

type mockArtifactStore struct {
	data map[string]map[string][]byte
}

func (a *mockArtifactStore) Save(sid, aid string, b []byte) error {
	if a.data == nil {
		a.data = map[string]map[string][]byte{}
	}
	if _, ok := a.data[sid]; !ok {
		a.data[sid] = map[string][]byte{}
	}
	a.data[sid][aid] = append([]byte{}, b...)
	return nil
}

func (a *mockArtifactStore) Get(sid, aid string) ([]byte, error) {
	if b, ok := a.data[sid][aid]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("artifact %s not found", aid)
}

func (a *mockArtifactStore) List(sid string) ([]string, error) {
	res := []string{}
	for k := range a.data[sid] {
		res = append(res, k)
	}
	return res, nil
}

func (a *mockArtifactStore) Delete(sid, aid string) error {
	delete(a.data[sid], aid)
	return nil
}

func (a *mockArtifactStore) DeleteSession(sid string) error {
	delete(a.data, sid)
	return nil
}

func newRunContextForTest() (*RunContext, chan Event, *mockSessionStore) {
	store := newMockSessionStore()
	sess, _ := store.Create("test-session")
	emit := make(chan Event, 10)

	rc := NewRunContext(
		context.Background(),
		"test-session",
		"test-run",
		AgentInfo{Name: "stylist", Role: "photo_analysis"},
		NewUserContent("Test input"),
		func(o *RunContextOptions) {
			o.Emit = emit
			o.Session = sess
			o.SessionStore = store
			o.ArtifactStore = &mockArtifactStore{}
			o.MaxModelCalls = 2
		},
	)

	return rc, emit, store
}
