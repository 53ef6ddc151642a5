package organizer

import "strings"

// Key prefixes that identify collection writes from any tab under any
// identity. Substring matching deliberately over-triggers rather than miss a
// write made under a differently-resolved identity; the refresh it drives is
// idempotent and cheap.
var crossTabKeyPrefixes = []string{
	"gemini_organizer_data",
	"gemini_organizer_prompts",
}

// RelevantChange reports whether a changed key set touches a folder or
// prompt collection.
func RelevantChange(keys []string) bool {
	for _, key := range keys {
		for _, prefix := range crossTabKeyPrefixes {
			if strings.Contains(key, prefix) {
				return true
			}
		}
	}
	return false
}

// CrossTabSynchronizer subscribes to the sync-scope change feed and invokes
// refresh whenever another writer (this process or a different one sharing
// the backend) touches a collection key.
type CrossTabSynchronizer struct {
	cancel func()
}

func NewCrossTabSynchronizer(store *Store, refresh func()) *CrossTabSynchronizer {
	s := &CrossTabSynchronizer{cancel: func() {}}
	if store == nil || store.Sync == nil || refresh == nil {
		return s
	}
	s.cancel = store.Sync.Subscribe(func(ev ChangeEvent) {
		if ev.Scope != ScopeSync {
			return
		}
		if !RelevantChange(ev.Keys) {
			return
		}
		refresh()
	})
	return s
}

func (s *CrossTabSynchronizer) Close() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}
