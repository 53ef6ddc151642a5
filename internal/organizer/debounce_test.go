package organizer

import (
	"sync"
	"testing"
	"time"
)

type recordingSaver struct {
	mu    sync.Mutex
	calls []struct {
		kind    CollectionKind
		payload any
	}
}

func (s *recordingSaver) save(kind CollectionKind, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, struct {
		kind    CollectionKind
		payload any
	}{kind, payload})
	return nil
}

func (s *recordingSaver) snapshot() []struct {
	kind    CollectionKind
	payload any
} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(s.calls[:0:0], s.calls...)
}

func TestDebouncedWriterCoalescesBurst(t *testing.T) {
	saver := &recordingSaver{}
	writer := NewDebouncedWriter(DebouncedWriterOptions{
		Delay: 150 * time.Millisecond,
		Save:  saver.save,
	})
	defer writer.Close()

	for i := 0; i < 5; i++ {
		writer.ScheduleWrite(CollectionFolders, i)
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if calls := saver.snapshot(); len(calls) > 0 {
			if len(calls) != 1 {
				t.Fatalf("burst produced %d writes, want 1", len(calls))
			}
			if calls[0].kind != CollectionFolders || calls[0].payload != 4 {
				t.Fatalf("wrong write: %+v", calls[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("debounced write never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDebouncedWriterKindsAreIndependent(t *testing.T) {
	saver := &recordingSaver{}
	writer := NewDebouncedWriter(DebouncedWriterOptions{
		Delay: 20 * time.Millisecond,
		Save:  saver.save,
	})
	defer writer.Close()

	writer.ScheduleWrite(CollectionFolders, "f")
	writer.ScheduleWrite(CollectionPromptFolders, "p")

	deadline := time.Now().Add(2 * time.Second)
	for {
		calls := saver.snapshot()
		if len(calls) == 2 {
			seen := map[CollectionKind]any{}
			for _, call := range calls {
				seen[call.kind] = call.payload
			}
			if seen[CollectionFolders] != "f" || seen[CollectionPromptFolders] != "p" {
				t.Fatalf("wrong writes: %+v", calls)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 writes, got %d", len(calls))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDebouncedWriterFlushWritesImmediately(t *testing.T) {
	saver := &recordingSaver{}
	writer := NewDebouncedWriter(DebouncedWriterOptions{
		Delay: time.Hour,
		Save:  saver.save,
	})

	writer.ScheduleWrite(CollectionFolders, "pending")
	writer.Flush()

	calls := saver.snapshot()
	if len(calls) != 1 || calls[0].payload != "pending" {
		t.Fatalf("flush did not write: %+v", calls)
	}

	// Flushing again must not replay the write.
	writer.Flush()
	if calls := saver.snapshot(); len(calls) != 1 {
		t.Fatalf("flush replayed writes: %d", len(calls))
	}
}

func TestDebouncedWriterCloseRejectsNewWrites(t *testing.T) {
	saver := &recordingSaver{}
	writer := NewDebouncedWriter(DebouncedWriterOptions{
		Delay: time.Hour,
		Save:  saver.save,
	})

	writer.ScheduleWrite(CollectionFolders, "last")
	writer.Close()
	writer.ScheduleWrite(CollectionFolders, "late")

	time.Sleep(20 * time.Millisecond)
	calls := saver.snapshot()
	if len(calls) != 1 || calls[0].payload != "last" {
		t.Fatalf("close handling wrong: %+v", calls)
	}
}

func TestDebouncedWriterReportsSaveErrors(t *testing.T) {
	wantErr := errSentinel("save exploded")
	var got error
	var mu sync.Mutex
	writer := NewDebouncedWriter(DebouncedWriterOptions{
		Delay: 5 * time.Millisecond,
		Save:  func(CollectionKind, any) error { return wantErr },
		OnError: func(_ CollectionKind, err error) {
			mu.Lock()
			got = err
			mu.Unlock()
		},
	})
	defer writer.Close()

	writer.ScheduleWrite(CollectionFolders, "x")

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		err := got
		mu.Unlock()
		if err != nil {
			if err != wantErr {
				t.Fatalf("got error %v, want %v", err, wantErr)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("error never reported")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
