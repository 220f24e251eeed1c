package dialog

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Store holds open dialogs. Update is an atomic read-modify-write: fn sees the
// latest state and its changes are written back only if fn returns nil.
type Store interface {
	Create(ctx context.Context, st *State) error
	Get(ctx context.Context, id string) (*State, error)
	Update(ctx context.Context, id string, fn func(*State) error) (*State, error)
	Delete(ctx context.Context, id string) error

	// AcquireSubmit takes the per-dialog submission lock. It reports false
	// when another submission holds it.
	AcquireSubmit(ctx context.Context, id string, ttl time.Duration) (bool, error)
	ReleaseSubmit(ctx context.Context, id string) error
}

func encode(st *State) ([]byte, error) {
	return json.Marshal(persisted{Owner: st.Owner, State: st})
}

func decode(b []byte) (*State, error) {
	st := &State{}
	p := persisted{State: st}
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	st.Owner = p.Owner
	return st, nil
}

// MemoryStore keeps dialogs in process. Values are stored encoded so callers
// never share memory with the store.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	dialogs map[string]memEntry
	locks   map[string]time.Time
}

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		dialogs: map[string]memEntry{},
		locks:   map[string]time.Time{},
	}
}

func (m *MemoryStore) Create(_ context.Context, st *State) error {
	b, err := encode(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialogs[st.ID] = memEntry{data: b, expiresAt: m.now().Add(m.ttl)}
	return nil
}

// load returns the live entry for id; m.mu must be held.
func (m *MemoryStore) load(id string) (*State, error) {
	e, ok := m.dialogs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.dialogs, id)
		return nil, ErrNotFound
	}
	return decode(e.data)
}

func (m *MemoryStore) Get(_ context.Context, id string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(id)
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(*State) error) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.load(id)
	if err != nil {
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	b, err := encode(st)
	if err != nil {
		return nil, err
	}
	m.dialogs[id] = memEntry{data: b, expiresAt: m.now().Add(m.ttl)}
	return st, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dialogs, id)
	delete(m.locks, id)
	return nil
}

func (m *MemoryStore) AcquireSubmit(_ context.Context, id string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if until, held := m.locks[id]; held && now.Before(until) {
		return false, nil
	}
	m.locks[id] = now.Add(ttl)
	return true, nil
}

func (m *MemoryStore) ReleaseSubmit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, id)
	return nil
}
