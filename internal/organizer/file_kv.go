package organizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileKV persists the key map as a single JSON document, written atomically
// via tmp-file + rename. An fsnotify watcher on the containing directory
// picks up writes made by other processes sharing the file and turns the
// key-level diff into ChangeEvents, so separate processes behave like
// browser tabs against the same store.
type FileKV struct {
	scope Scope
	path  string

	mu   sync.Mutex
	data map[string]json.RawMessage

	subs      subscriberSet
	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewFileKV(scope Scope, path string) (*FileKV, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidInput
	}
	kv := &FileKV{
		scope: scope,
		path:  path,
		data:  map[string]json.RawMessage{},
		done:  make(chan struct{}),
	}
	if err := kv.load(); err != nil {
		return nil, err
	}
	if err := kv.startWatcher(); err != nil {
		return nil, err
	}
	return kv, nil
}

func (kv *FileKV) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	if kv == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if value, ok := kv.data[key]; ok {
			out[key] = append(json.RawMessage(nil), value...)
		}
	}
	return out, nil
}

func (kv *FileKV) Set(ctx context.Context, entries map[string]json.RawMessage) error {
	if kv == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	kv.mu.Lock()
	keys := make([]string, 0, len(entries))
	for key, value := range entries {
		kv.data[key] = append(json.RawMessage(nil), value...)
		keys = append(keys, key)
	}
	err := kv.saveLocked()
	kv.mu.Unlock()
	if err != nil {
		return err
	}
	sort.Strings(keys)
	kv.subs.notify(ChangeEvent{Scope: kv.scope, Keys: keys})
	return nil
}

func (kv *FileKV) Subscribe(fn func(ChangeEvent)) (cancel func()) {
	return kv.subs.add(fn)
}

func (kv *FileKV) Close() error {
	if kv == nil {
		return nil
	}
	kv.closeOnce.Do(func() {
		close(kv.done)
		if kv.watcher != nil {
			_ = kv.watcher.Close()
		}
		kv.wg.Wait()
	})
	return nil
}

func (kv *FileKV) load() error {
	data, err := os.ReadFile(kv.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var snapshot map[string]json.RawMessage
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	if snapshot == nil {
		snapshot = map[string]json.RawMessage{}
	}
	kv.data = snapshot
	return nil
}

func (kv *FileKV) saveLocked() error {
	data, err := json.Marshal(kv.data)
	if err != nil {
		return err
	}
	dir := filepath.Dir(kv.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := kv.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, kv.path)
}

func (kv *FileKV) startWatcher() error {
	dir := filepath.Dir(kv.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}
	kv.watcher = watcher
	kv.wg.Add(1)
	go func() {
		defer kv.wg.Done()
		kv.watchLoop()
	}()
	return nil
}

func (kv *FileKV) watchLoop() {
	base := filepath.Base(kv.path)
	for {
		select {
		case <-kv.done:
			return
		case event, ok := <-kv.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			kv.reloadAndDiff()
		case _, ok := <-kv.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// reloadAndDiff re-reads the file and emits an event for keys whose bytes
// differ from the in-memory map. Our own renames pass through here too, but
// the in-memory map was already updated before the write, so they diff to
// nothing.
func (kv *FileKV) reloadAndDiff() {
	data, err := os.ReadFile(kv.path)
	if err != nil {
		return
	}
	var snapshot map[string]json.RawMessage
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return
	}
	if snapshot == nil {
		snapshot = map[string]json.RawMessage{}
	}

	kv.mu.Lock()
	changed := make([]string, 0)
	for key, value := range snapshot {
		if prev, ok := kv.data[key]; !ok || !bytes.Equal(prev, value) {
			changed = append(changed, key)
		}
	}
	for key := range kv.data {
		if _, ok := snapshot[key]; !ok {
			changed = append(changed, key)
		}
	}
	kv.data = snapshot
	kv.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	kv.subs.notify(ChangeEvent{Scope: kv.scope, Keys: changed})
}
