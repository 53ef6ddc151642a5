package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/guorganizer/organizer/internal/organizer"
)

func newTestServer(t *testing.T) (*Server, *organizer.Repository) {
	t.Helper()
	store := organizer.NewStore(nil, nil)
	resolver := organizer.NewIdentityResolver(store.Local, organizer.PageProbeFunc(func() string {
		return "alice@example.com"
	}))
	repo := organizer.NewRepository(store, resolver)
	backups := organizer.NewBackupManager(organizer.BackupManagerOptions{Repository: repo})
	writer := organizer.NewDebouncedWriter(organizer.DebouncedWriterOptions{
		Delay: 20 * time.Millisecond,
		Save:  organizer.CollectionSaver(repo),
	})
	t.Cleanup(writer.Close)
	server := NewServer(repo, backups, writer)
	t.Cleanup(server.Close)
	return server, repo
}

func doJSON(t *testing.T, server http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Correlation-Id", "corr_test")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}
}

func TestIdentityEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/v1/identity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("identity returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["user"] != "alice@example.com" {
		t.Fatalf("user %q", resp["user"])
	}
}

func TestFoldersRoundTrip(t *testing.T) {
	server, _ := newTestServer(t)

	folders := []organizer.Folder{{Name: "Work", Emoji: "💼", Chats: []organizer.Chat{{Title: "Standup", URL: "https://chat/abc"}}}}
	rec := doJSON(t, server, http.MethodPut, "/v1/folders", folders)
	if rec.Code != http.StatusOK {
		t.Fatalf("put folders returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, server, http.MethodGet, "/v1/folders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get folders returned %d", rec.Code)
	}
	var got []organizer.Folder
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode folders: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Work" || len(got[0].Chats) != 1 {
		t.Fatalf("unexpected folders: %+v", got)
	}
}

func TestLayoutEndpointPersistsThroughDebounce(t *testing.T) {
	server, repo := newTestServer(t)

	for i := 0; i < 3; i++ {
		folders := []organizer.Folder{{Name: "Reordered", Chats: make([]organizer.Chat, i)}}
		rec := doJSON(t, server, http.MethodPut, "/v1/folders/layout", folders)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("layout put returned %d: %s", rec.Code, rec.Body.String())
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		folders, err := repo.Folders(context.Background())
		if err != nil {
			t.Fatalf("read folders: %v", err)
		}
		if len(folders) == 1 && len(folders[0].Chats) == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("debounced layout write never landed: %+v", folders)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAddChatValidation(t *testing.T) {
	server, _ := newTestServer(t)
	if err := putFolders(server, []organizer.Folder{{Name: "Inbox"}}); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, server, http.MethodPost, "/v1/chats", map[string]any{
		"folderIndex": 0,
		"chat":        map[string]string{"title": "No URL"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing url returned %d", rec.Code)
	}

	rec = doJSON(t, server, http.MethodPost, "/v1/chats", map[string]any{
		"folderIndex": 7,
		"chat":        map[string]string{"title": "T", "url": "https://chat/x"},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("bad folder index returned %d", rec.Code)
	}

	rec = doJSON(t, server, http.MethodPost, "/v1/chats", map[string]any{
		"folderIndex": 0,
		"chat":        map[string]string{"title": "T", "url": "https://chat/x"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("valid add returned %d: %s", rec.Code, rec.Body.String())
	}
}

func putFolders(server http.Handler, folders []organizer.Folder) error {
	data, err := json.Marshal(folders)
	if err != nil {
		return err
	}
	req := httptest.NewRequest(http.MethodPut, "/v1/folders", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		return &httpError{code: rec.Code, body: rec.Body.String()}
	}
	return nil
}

type httpError struct {
	code int
	body string
}

func (e *httpError) Error() string { return e.body }

func TestArchivedQuery(t *testing.T) {
	server, _ := newTestServer(t)
	if err := putFolders(server, []organizer.Folder{{Name: "A", Chats: []organizer.Chat{{URL: "https://chat/x"}}}}); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, server, http.MethodGet, "/v1/archived?url=https%3A%2F%2Fchat%2Fx", nil)
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp["archived"] {
		t.Fatalf("archived url reported as not archived")
	}

	rec = doJSON(t, server, http.MethodGet, "/v1/archived?url=https%3A%2F%2Fchat%2Fother", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["archived"] {
		t.Fatalf("unknown url reported as archived")
	}

	rec = doJSON(t, server, http.MethodGet, "/v1/archived", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing url query returned %d", rec.Code)
	}
}

func TestNotesLifecycleOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/v1/notes/c_123", map[string]string{
		"text":  "quoted",
		"color": "yellow",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("append note returned %d: %s", rec.Code, rec.Body.String())
	}
	var created organizer.Highlight
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode note: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("note id missing")
	}

	rec = doJSON(t, server, http.MethodPost, "/v1/notes/c_123", map[string]string{
		"text":  "bad color",
		"color": "purple",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid color returned %d", rec.Code)
	}

	rec = doJSON(t, server, http.MethodPatch, "/v1/notes/c_123", map[string]string{
		"id":      created.ID,
		"comment": "important",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch note returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, server, http.MethodGet, "/v1/notes/c_123", nil)
	var notes []organizer.Highlight
	if err := json.Unmarshal(rec.Body.Bytes(), &notes); err != nil {
		t.Fatalf("decode notes: %v", err)
	}
	if len(notes) != 1 || notes[0].Comment != "important" {
		t.Fatalf("unexpected notes: %+v", notes)
	}

	rec = doJSON(t, server, http.MethodDelete, "/v1/notes/c_123?id="+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete note returned %d", rec.Code)
	}
	rec = doJSON(t, server, http.MethodGet, "/v1/notes/c_123", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &notes); err != nil {
		t.Fatalf("decode notes: %v", err)
	}
	if len(notes) != 0 {
		t.Fatalf("note not deleted: %+v", notes)
	}
}

func TestBackupEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	if err := putFolders(server, []organizer.Folder{{Name: "Before"}}); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, server, http.MethodPost, "/v1/backups", map[string]string{"kind": "manual"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create backup returned %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, server, http.MethodPost, "/v1/backups", map[string]string{"kind": "weekly"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid kind returned %d", rec.Code)
	}

	if err := putFolders(server, []organizer.Folder{{Name: "After"}}); err != nil {
		t.Fatal(err)
	}

	rec = doJSON(t, server, http.MethodGet, "/v1/backups", nil)
	var list organizer.BackupList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode backups: %v", err)
	}
	if len(list.Regular) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(list.Regular))
	}

	index := 0
	rec = doJSON(t, server, http.MethodPost, "/v1/backups/restore", map[string]any{"index": index})
	if rec.Code != http.StatusOK {
		t.Fatalf("restore returned %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, server, http.MethodGet, "/v1/folders", nil)
	var folders []organizer.Folder
	if err := json.Unmarshal(rec.Body.Bytes(), &folders); err != nil {
		t.Fatalf("decode folders: %v", err)
	}
	if len(folders) != 1 || folders[0].Name != "Before" {
		t.Fatalf("restore did not roll back: %+v", folders)
	}

	rec = doJSON(t, server, http.MethodPost, "/v1/backups/restore", map[string]any{"safety": true})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("restore with no safety slot returned %d", rec.Code)
	}
}

func TestPackImportExportOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	folders := []organizer.PromptFolder{{Name: "Writing", Prompts: []organizer.Prompt{{Name: "Essay", Content: "Write about {{Topic}}"}}}}
	rec := doJSON(t, server, http.MethodPut, "/v1/prompt-folders", folders)
	if rec.Code != http.StatusOK {
		t.Fatalf("put prompt folders returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, server, http.MethodGet, "/v1/prompt-folders/0/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export returned %d: %s", rec.Code, rec.Body.String())
	}
	if disposition := rec.Header().Get("Content-Disposition"); !strings.Contains(disposition, "writing.guop") {
		t.Fatalf("unexpected disposition: %q", disposition)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/prompt-folders/import", bytes.NewReader(rec.Body.Bytes()))
	importRec := httptest.NewRecorder()
	server.ServeHTTP(importRec, req)
	if importRec.Code != http.StatusOK {
		t.Fatalf("import returned %d: %s", importRec.Code, importRec.Body.String())
	}
	var imported organizer.PromptFolder
	if err := json.Unmarshal(importRec.Body.Bytes(), &imported); err != nil {
		t.Fatalf("decode imported folder: %v", err)
	}
	if imported.Name != "Writing (Imported)" {
		t.Fatalf("collision rename missing: %q", imported.Name)
	}

	rec = doJSON(t, server, http.MethodGet, "/v1/prompt-folders/9/export", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("export of missing folder returned %d", rec.Code)
	}
}

func TestPromptFillAndOptions(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/v1/prompts/fill", map[string]any{
		"content": "Write {{Tone:Formal,Casual}} about {{Topic}}",
		"values":  map[string]string{"Tone": "Casual", "Topic": "cats"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("fill returned %d: %s", rec.Code, rec.Body.String())
	}
	var fillResp struct {
		Filled string `json:"filled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &fillResp); err != nil {
		t.Fatalf("decode fill response: %v", err)
	}
	if fillResp.Filled != "Write Casual about cats" {
		t.Fatalf("filled %q", fillResp.Filled)
	}

	folders := []organizer.PromptFolder{{Name: "W", Prompts: []organizer.Prompt{{Name: "Essay", Content: "Write {{Tone:Formal,Casual}} about {{Topic}}"}}}}
	rec = doJSON(t, server, http.MethodPut, "/v1/prompt-folders", folders)
	if rec.Code != http.StatusOK {
		t.Fatalf("put prompt folders returned %d", rec.Code)
	}

	rec = doJSON(t, server, http.MethodPost, "/v1/prompts/options", map[string]any{
		"folderIndex": 0,
		"promptIndex": 0,
		"definition":  "Tone:Formal,Casual",
		"option":      "Sarcastic",
		"action":      "add",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add option returned %d: %s", rec.Code, rec.Body.String())
	}
	var optResp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &optResp); err != nil {
		t.Fatalf("decode option response: %v", err)
	}
	if optResp["content"] != "Write {{Tone:Formal,Casual,Sarcastic}} about {{Topic}}" {
		t.Fatalf("content %q", optResp["content"])
	}

	// The rewrite must be durable, not just returned.
	rec = doJSON(t, server, http.MethodGet, "/v1/prompt-folders", nil)
	var stored []organizer.PromptFolder
	if err := json.Unmarshal(rec.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode prompt folders: %v", err)
	}
	if stored[0].Prompts[0].Content != "Write {{Tone:Formal,Casual,Sarcastic}} about {{Topic}}" {
		t.Fatalf("option edit not persisted: %q", stored[0].Prompts[0].Content)
	}
}

func TestChangesWebsocketStreamsStoreEvents(t *testing.T) {
	server, repo := newTestServer(t)
	ts := httptest.NewServer(server)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/changes", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Give the connection a moment to register with the hub before writing.
	time.Sleep(50 * time.Millisecond)
	if err := repo.SaveFolders(context.Background(), []organizer.Folder{{Name: "Live"}}); err != nil {
		t.Fatalf("save folders: %v", err)
	}

	var msg struct {
		Type  string   `json:"type"`
		Scope string   `json:"scope"`
		Keys  []string `json:"keys"`
	}
	// The identity cache write may arrive first; wait for the folder event.
	for {
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if msg.Type != "change" {
			continue
		}
		for _, key := range msg.Keys {
			if strings.Contains(key, "gemini_organizer_data_v1_") {
				if msg.Scope != "sync" {
					t.Fatalf("folder change on wrong scope: %+v", msg)
				}
				return
			}
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/v1/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route returned %d", rec.Code)
	}
}
