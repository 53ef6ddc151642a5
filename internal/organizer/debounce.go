package organizer

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CollectionKind names a debounced collection. Kinds debounce independently.
type CollectionKind string

const (
	CollectionFolders       CollectionKind = "folders"
	CollectionPromptFolders CollectionKind = "promptFolders"
)

const defaultDebounceDelay = time.Second

type DebouncedWriterOptions struct {
	// Delay before a scheduled payload is written; defaults to one second.
	Delay time.Duration
	// Save performs the durable write when the timer fires.
	Save func(kind CollectionKind, payload any) error
	// OnError receives failures from Save; nil drops them.
	OnError func(kind CollectionKind, err error)
}

// DebouncedWriter coalesces rapid mutations into a single trailing-edge
// write per collection kind. The in-memory structure is already
// authoritative when ScheduleWrite is called; only durability is delayed.
type DebouncedWriter struct {
	delay   time.Duration
	save    func(CollectionKind, any) error
	onError func(CollectionKind, error)

	mu      sync.Mutex
	pending map[CollectionKind]*pendingWrite
	closed  bool
}

type pendingWrite struct {
	timer   *time.Timer
	payload any
}

func NewDebouncedWriter(opts DebouncedWriterOptions) *DebouncedWriter {
	delay := opts.Delay
	if delay <= 0 {
		delay = defaultDebounceDelay
	}
	save := opts.Save
	if save == nil {
		save = func(CollectionKind, any) error { return nil }
	}
	return &DebouncedWriter{
		delay:   delay,
		save:    save,
		onError: opts.OnError,
		pending: map[CollectionKind]*pendingWrite{},
	}
}

// ScheduleWrite arms or re-arms the single-shot timer for kind. A call
// inside the window cancels the previous timer and keeps only the latest
// payload.
func (w *DebouncedWriter) ScheduleWrite(kind CollectionKind, payload any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if entry, ok := w.pending[kind]; ok {
		entry.timer.Stop()
		entry.payload = payload
		entry.timer.Reset(w.delay)
		return
	}
	entry := &pendingWrite{payload: payload}
	entry.timer = time.AfterFunc(w.delay, func() { w.fire(kind) })
	w.pending[kind] = entry
}

// Flush writes every pending payload immediately.
func (w *DebouncedWriter) Flush() {
	w.mu.Lock()
	kinds := make([]CollectionKind, 0, len(w.pending))
	for kind, entry := range w.pending {
		entry.timer.Stop()
		kinds = append(kinds, kind)
	}
	w.mu.Unlock()
	for _, kind := range kinds {
		w.fire(kind)
	}
}

// Close flushes pending writes and rejects further scheduling.
func (w *DebouncedWriter) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.Flush()
}

// CollectionSaver adapts a repository to the writer's save hook.
func CollectionSaver(repo *Repository) func(CollectionKind, any) error {
	return func(kind CollectionKind, payload any) error {
		ctx := context.Background()
		switch kind {
		case CollectionFolders:
			folders, ok := payload.([]Folder)
			if !ok {
				return fmt.Errorf("%w: unexpected payload for %s", ErrInvalidInput, kind)
			}
			return repo.SaveFolders(ctx, folders)
		case CollectionPromptFolders:
			folders, ok := payload.([]PromptFolder)
			if !ok {
				return fmt.Errorf("%w: unexpected payload for %s", ErrInvalidInput, kind)
			}
			return repo.SavePromptFolders(ctx, folders)
		}
		return fmt.Errorf("%w: unknown collection %s", ErrInvalidInput, kind)
	}
}

func (w *DebouncedWriter) fire(kind CollectionKind) {
	w.mu.Lock()
	entry, ok := w.pending[kind]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, kind)
	payload := entry.payload
	w.mu.Unlock()

	if err := w.save(kind, payload); err != nil && w.onError != nil {
		w.onError(kind, err)
	}
}
