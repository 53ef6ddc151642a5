package organizer

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrStorage        = errors.New("storage failure")
	ErrInvalidPack    = errors.New("invalid prompt pack")
	ErrNotImplemented = errors.New("not implemented")
)

// Scope identifies which of the two stores a key lives in. The sync scope is
// size-constrained and replicates across devices; the local scope is larger
// and stays on this machine.
type Scope string

const (
	ScopeSync  Scope = "sync"
	ScopeLocal Scope = "local"
)

// ChangeEvent describes a batch of keys that changed in one store, whether
// the write originated in this process or another one sharing the backend.
type ChangeEvent struct {
	Scope Scope    `json:"scope"`
	Keys  []string `json:"keys"`
}

// KV is an asynchronous, eventually-consistent key/value store. Two Sets
// racing on the same key resolve last-write-wins; no ordering is guaranteed
// between independent calls.
type KV interface {
	Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, entries map[string]json.RawMessage) error
	Subscribe(fn func(ChangeEvent)) (cancel func())
	Close() error
}

// Store pairs the two scopes the application persists into.
type Store struct {
	Sync  KV
	Local KV
}

func NewStore(syncKV, localKV KV) *Store {
	if syncKV == nil {
		syncKV = NewMemoryKV(ScopeSync)
	}
	if localKV == nil {
		localKV = NewMemoryKV(ScopeLocal)
	}
	return &Store{Sync: syncKV, Local: localKV}
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var first error
	if s.Sync != nil {
		if err := s.Sync.Close(); err != nil && first == nil {
			first = err
		}
	}
	if s.Local != nil {
		if err := s.Local.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// subscriberSet fans ChangeEvents out to registered callbacks. Callbacks run
// synchronously on the notifying goroutine and must not block.
type subscriberSet struct {
	mu   sync.Mutex
	next int
	subs map[int]func(ChangeEvent)
}

func (s *subscriberSet) add(fn func(ChangeEvent)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = map[int]func(ChangeEvent){}
	}
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *subscriberSet) notify(ev ChangeEvent) {
	if len(ev.Keys) == 0 {
		return
	}
	s.mu.Lock()
	fns := make([]func(ChangeEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// MemoryKV is the in-process backend used by tests and the memory profile.
type MemoryKV struct {
	scope Scope
	mu    sync.Mutex
	data  map[string]json.RawMessage
	subs  subscriberSet
}

func NewMemoryKV(scope Scope) *MemoryKV {
	return &MemoryKV{scope: scope, data: map[string]json.RawMessage{}}
}

func (m *MemoryKV) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	if m == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if value, ok := m.data[key]; ok {
			out[key] = append(json.RawMessage(nil), value...)
		}
	}
	return out, nil
}

func (m *MemoryKV) Set(ctx context.Context, entries map[string]json.RawMessage) error {
	if m == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	m.mu.Lock()
	keys := make([]string, 0, len(entries))
	for key, value := range entries {
		m.data[key] = append(json.RawMessage(nil), value...)
		keys = append(keys, key)
	}
	m.mu.Unlock()
	sort.Strings(keys)
	m.subs.notify(ChangeEvent{Scope: m.scope, Keys: keys})
	return nil
}

func (m *MemoryKV) Subscribe(fn func(ChangeEvent)) (cancel func()) {
	return m.subs.add(fn)
}

func (m *MemoryKV) Close() error {
	return nil
}

// getRaw reads a single key; absent keys come back as nil with no error.
func getRaw(ctx context.Context, kv KV, key string) (json.RawMessage, error) {
	values, err := kv.Get(ctx, []string{key})
	if err != nil {
		return nil, err
	}
	return values[key], nil
}

func setJSON(ctx context.Context, kv KV, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return kv.Set(ctx, map[string]json.RawMessage{key: data})
}
