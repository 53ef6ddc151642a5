package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/guorganizer/organizer/internal/organizer"
)

type ServerConfig struct {
	MaxBodyBytes int64
}

// nowFunc is swapped out by tests that need stable note ids.
var nowFunc = time.Now

// Server is the panel-facing JSON surface. Renderers read snapshots over
// HTTP, mutate through POST/PUT, and hold a websocket on /v1/changes to
// learn when to redraw.
type Server struct {
	repo    *organizer.Repository
	backups *organizer.BackupManager
	writer  *organizer.DebouncedWriter
	cfg     ServerConfig

	hub         *changeHub
	unsubscribe []func()
}

func NewServer(repo *organizer.Repository, backups *organizer.BackupManager, writer *organizer.DebouncedWriter) *Server {
	return NewServerWithConfig(repo, backups, writer, ServerConfig{})
}

func NewServerWithConfig(repo *organizer.Repository, backups *organizer.BackupManager, writer *organizer.DebouncedWriter, cfg ServerConfig) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		repo:    repo,
		backups: backups,
		writer:  writer,
		cfg:     cfg,
		hub:     newChangeHub(),
	}
	store := repo.Store()
	for _, kv := range []organizer.KV{store.Sync, store.Local} {
		if kv == nil {
			continue
		}
		cancel := kv.Subscribe(func(ev organizer.ChangeEvent) {
			s.hub.broadcast(changeMessage{Type: "change", Scope: ev.Scope, Keys: ev.Keys})
		})
		s.unsubscribe = append(s.unsubscribe, cancel)
	}
	return s
}

// NotifyRefresh pushes a redraw hint to every connected renderer. The
// cross-tab synchronizer drives this when another writer touches a
// collection.
func (s *Server) NotifyRefresh() {
	s.hub.broadcast(changeMessage{Type: "refresh"})
}

// Close detaches the server from the store's change feeds and disconnects
// websocket clients.
func (s *Server) Close() {
	for _, cancel := range s.unsubscribe {
		cancel()
	}
	s.unsubscribe = nil
	s.hub.closeAll()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "v1" {
		writeError(w, http.StatusNotFound, "not_found", "route not found", getCorrelationID(r))
		return
	}

	correlationID := getCorrelationID(r)
	switch {
	case len(parts) == 2 && parts[1] == "identity" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"user": s.repo.User(r.Context())})
	case len(parts) == 2 && parts[1] == "folders" && r.Method == http.MethodGet:
		s.handleGetFolders(w, r, correlationID)
	case len(parts) == 2 && parts[1] == "folders" && r.Method == http.MethodPut:
		s.handlePutFolders(w, r, correlationID)
	case len(parts) == 3 && parts[1] == "folders" && parts[2] == "layout" && r.Method == http.MethodPut:
		s.handlePutFoldersLayout(w, r, correlationID)
	case len(parts) == 3 && parts[1] == "folders" && parts[2] == "export" && r.Method == http.MethodGet:
		s.handleExportFolders(w, r, correlationID)
	case len(parts) == 3 && parts[1] == "folders" && parts[2] == "import" && r.Method == http.MethodPost:
		s.handleImportFolders(w, r, correlationID)
	case len(parts) == 2 && parts[1] == "chats" && r.Method == http.MethodPost:
		s.handleAddChat(w, r, correlationID)
	case len(parts) == 3 && parts[1] == "chats" && parts[2] == "move" && r.Method == http.MethodPost:
		s.handleMoveChat(w, r, correlationID)
	case len(parts) == 3 && parts[1] == "chats" && parts[2] == "pin" && r.Method == http.MethodPost:
		s.handleTogglePin(w, r, correlationID)
	case len(parts) == 3 && parts[1] == "chats" && parts[2] == "tags" && r.Method == http.MethodPost:
		s.handleAddChatTag(w, r, correlationID)
	case len(parts) == 4 && parts[1] == "chats" && parts[2] == "tags" && parts[3] == "remove" && r.Method == http.MethodPost:
		s.handleRemoveChatTag(w, r, correlationID)
	case len(parts) == 2 && parts[1] == "tags" && r.Method == http.MethodGet:
		s.handleTagLibrary(w, r, correlationID)
	case len(parts) == 2 && parts[1] == "archived" && r.Method == http.MethodGet:
		s.handleArchivedCheck(w, r, correlationID)
	case len(parts) == 2 && parts[1] == "prompt-folders" && r.Method == http.MethodGet:
		s.handleGetPromptFolders(w, r, correlationID)
	case len(parts) == 2 && parts[1] == "prompt-folders" && r.Method == http.MethodPut:
		s.handlePutPromptFolders(w, r, correlationID)
	case len(parts) == 3 && parts[1] == "prompt-folders" && parts[2] == "layout" && r.Method == http.MethodPut:
		s.handlePutPromptFoldersLayout(w, r, correlationID)
	case len(parts) == 3 && parts[1] == "prompt-folders" && parts[2] == "import" && r.Method == http.MethodPost:
		s.handleImportPack(w, r, correlationID)
	case len(parts) == 4 && parts[1] == "prompt-folders" && parts[3] == "export" && r.Method == http.MethodGet:
		s.handleExportPack(w, r, parts[2], correlationID)
	case len(parts) == 3 && parts[1] == "prompts" && parts[2] == "fill" && r.Method == http.MethodPost:
		s.handleFillPrompt(w, r, correlationID)
	case len(parts) == 3 && parts[1] == "prompts" && parts[2] == "options" && r.Method == http.MethodPost:
		s.handlePromptOptions(w, r, correlationID)
	case len(parts) == 3 && parts[1] == "notes" && r.Method == http.MethodGet:
		s.handleGetNotes(w, r, parts[2], correlationID)
	case len(parts) == 3 && parts[1] == "notes" && r.Method == http.MethodPost:
		s.handleAppendNote(w, r, parts[2], correlationID)
	case len(parts) == 3 && parts[1] == "notes" && r.Method == http.MethodPatch:
		s.handlePatchNote(w, r, parts[2], correlationID)
	case len(parts) == 3 && parts[1] == "notes" && r.Method == http.MethodDelete:
		s.handleDeleteNote(w, r, parts[2], correlationID)
	case len(parts) == 2 && parts[1] == "backups" && r.Method == http.MethodGet:
		s.handleListBackups(w, r, correlationID)
	case len(parts) == 2 && parts[1] == "backups" && r.Method == http.MethodPost:
		s.handleCreateBackup(w, r, correlationID)
	case len(parts) == 3 && parts[1] == "backups" && parts[2] == "restore" && r.Method == http.MethodPost:
		s.handleRestoreBackup(w, r, correlationID)
	case len(parts) == 2 && parts[1] == "changes" && r.Method == http.MethodGet:
		s.handleChanges(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", correlationID)
	}
}

func (s *Server) handleGetFolders(w http.ResponseWriter, r *http.Request, correlationID string) {
	folders, err := s.repo.Folders(r.Context())
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (s *Server) handlePutFolders(w http.ResponseWriter, r *http.Request, correlationID string) {
	var folders []organizer.Folder
	if !s.decodeJSONBody(w, r, correlationID, &folders) {
		return
	}
	if err := s.repo.SaveFolders(r.Context(), folders); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// handlePutFoldersLayout is the burst path: drag reorders and open/close
// toggles land here and coalesce through the debounced writer instead of
// hitting the store per interaction.
func (s *Server) handlePutFoldersLayout(w http.ResponseWriter, r *http.Request, correlationID string) {
	var folders []organizer.Folder
	if !s.decodeJSONBody(w, r, correlationID, &folders) {
		return
	}
	s.writer.ScheduleWrite(organizer.CollectionFolders, folders)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) handleExportFolders(w http.ResponseWriter, r *http.Request, correlationID string) {
	folders, err := s.repo.Folders(r.Context())
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="gemini_organizer_export.json"`)
	writeJSON(w, http.StatusOK, folders)
}

func (s *Server) handleImportFolders(w http.ResponseWriter, r *http.Request, correlationID string) {
	var folders []organizer.Folder
	if !s.decodeJSONBody(w, r, correlationID, &folders) {
		return
	}
	if err := s.backups.ImportFolders(r.Context(), folders); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "imported"})
}

func (s *Server) handleAddChat(w http.ResponseWriter, r *http.Request, correlationID string) {
	var body struct {
		FolderIndex int            `json:"folderIndex"`
		Chat        organizer.Chat `json:"chat"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	if strings.TrimSpace(body.Chat.URL) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "chat url is required", correlationID)
		return
	}
	if err := s.repo.AddChat(r.Context(), body.FolderIndex, body.Chat); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (s *Server) handleMoveChat(w http.ResponseWriter, r *http.Request, correlationID string) {
	var body struct {
		FromFolder int `json:"fromFolder"`
		ChatIndex  int `json:"chatIndex"`
		ToFolder   int `json:"toFolder"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	if err := s.repo.MoveChat(r.Context(), body.FromFolder, body.ChatIndex, body.ToFolder); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

func (s *Server) handleTogglePin(w http.ResponseWriter, r *http.Request, correlationID string) {
	var body struct {
		FolderIndex int `json:"folderIndex"`
		ChatIndex   int `json:"chatIndex"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	if err := s.repo.ToggleChatPin(r.Context(), body.FolderIndex, body.ChatIndex); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "toggled"})
}

func (s *Server) handleAddChatTag(w http.ResponseWriter, r *http.Request, correlationID string) {
	var body struct {
		FolderIndex int    `json:"folderIndex"`
		ChatIndex   int    `json:"chatIndex"`
		Text        string `json:"text"`
		Color       string `json:"color"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "tag text is required", correlationID)
		return
	}
	if err := s.repo.AddChatTag(r.Context(), body.FolderIndex, body.ChatIndex, organizer.NewTag(body.Text, body.Color)); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "tagged"})
}

func (s *Server) handleRemoveChatTag(w http.ResponseWriter, r *http.Request, correlationID string) {
	var body struct {
		FolderIndex int `json:"folderIndex"`
		ChatIndex   int `json:"chatIndex"`
		TagIndex    int `json:"tagIndex"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	if err := s.repo.RemoveChatTag(r.Context(), body.FolderIndex, body.ChatIndex, body.TagIndex); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "untagged"})
}

func (s *Server) handleTagLibrary(w http.ResponseWriter, r *http.Request, correlationID string) {
	library, err := s.repo.TagLibrary(r.Context())
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	type tagEntry struct {
		Text  string `json:"text"`
		Color string `json:"color"`
	}
	entries := make([]tagEntry, 0, len(library))
	for _, tag := range library {
		entries = append(entries, tagEntry{Text: tag.Text, Color: tag.DisplayColor()})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleArchivedCheck(w http.ResponseWriter, r *http.Request, correlationID string) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing url query", correlationID)
		return
	}
	archived, err := s.repo.IsArchived(r.Context(), url)
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"archived": archived})
}

func (s *Server) handleGetPromptFolders(w http.ResponseWriter, r *http.Request, correlationID string) {
	folders, err := s.repo.PromptFolders(r.Context())
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (s *Server) handlePutPromptFolders(w http.ResponseWriter, r *http.Request, correlationID string) {
	var folders []organizer.PromptFolder
	if !s.decodeJSONBody(w, r, correlationID, &folders) {
		return
	}
	if err := s.repo.SavePromptFolders(r.Context(), folders); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handlePutPromptFoldersLayout(w http.ResponseWriter, r *http.Request, correlationID string) {
	var folders []organizer.PromptFolder
	if !s.decodeJSONBody(w, r, correlationID, &folders) {
		return
	}
	s.writer.ScheduleWrite(organizer.CollectionPromptFolders, folders)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) handleImportPack(w http.ResponseWriter, r *http.Request, correlationID string) {
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return
	}
	folder, err := s.repo.ImportPack(r.Context(), body)
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (s *Server) handleExportPack(w http.ResponseWriter, r *http.Request, rawIndex, correlationID string) {
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid prompt folder index", correlationID)
		return
	}
	folders, err := s.repo.PromptFolders(r.Context())
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	if index < 0 || index >= len(folders) {
		writeError(w, http.StatusNotFound, "not_found", "prompt folder not found", correlationID)
		return
	}
	data, filename, err := organizer.ExportPack(folders[index])
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleFillPrompt(w http.ResponseWriter, r *http.Request, correlationID string) {
	var body struct {
		Content string            `json:"content"`
		Values  map[string]string `json:"values"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filled":       organizer.FillPlaceholders(body.Content, body.Values),
		"placeholders": organizer.ParsePlaceholders(body.Content),
	})
}

// handlePromptOptions edits a choice list inside a stored prompt: the token
// is rewritten in the prompt body and the body is persisted, so the edit
// outlives the current fill.
func (s *Server) handlePromptOptions(w http.ResponseWriter, r *http.Request, correlationID string) {
	var body struct {
		FolderIndex int    `json:"folderIndex"`
		PromptIndex int    `json:"promptIndex"`
		Definition  string `json:"definition"`
		Option      string `json:"option"`
		Action      string `json:"action"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}

	folders, err := s.repo.PromptFolders(r.Context())
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	if body.FolderIndex < 0 || body.FolderIndex >= len(folders) {
		writeError(w, http.StatusNotFound, "not_found", "prompt folder not found", correlationID)
		return
	}
	prompts := folders[body.FolderIndex].Prompts
	if body.PromptIndex < 0 || body.PromptIndex >= len(prompts) {
		writeError(w, http.StatusNotFound, "not_found", "prompt not found", correlationID)
		return
	}

	content := prompts[body.PromptIndex].Content
	switch body.Action {
	case "add":
		content = organizer.AddPlaceholderOption(content, body.Definition, body.Option)
	case "remove":
		content = organizer.RemovePlaceholderOption(content, body.Definition, body.Option)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "action must be add or remove", correlationID)
		return
	}
	if err := s.repo.UpdatePromptContent(r.Context(), body.FolderIndex, body.PromptIndex, content); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request, chatID, correlationID string) {
	notes, err := s.repo.Highlights(r.Context(), chatID)
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleAppendNote(w http.ResponseWriter, r *http.Request, chatID, correlationID string) {
	var body struct {
		Text    string                   `json:"text"`
		Color   organizer.HighlightColor `json:"color"`
		Comment string                   `json:"comment"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "note text is required", correlationID)
		return
	}
	if !body.Color.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", "color must be red, blue, green or yellow", correlationID)
		return
	}
	note := organizer.NewHighlight(nowFunc(), body.Text, body.Color)
	note.Comment = body.Comment
	if err := s.repo.AppendHighlight(r.Context(), chatID, note); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handlePatchNote(w http.ResponseWriter, r *http.Request, chatID, correlationID string) {
	var body struct {
		ID      string `json:"id"`
		Comment string `json:"comment"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	if err := s.repo.UpdateHighlightComment(r.Context(), chatID, body.ID, body.Comment); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request, chatID, correlationID string) {
	noteID := strings.TrimSpace(r.URL.Query().Get("id"))
	if noteID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing id query", correlationID)
		return
	}
	if err := s.repo.DeleteHighlight(r.Context(), chatID, noteID); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request, correlationID string) {
	list, err := s.backups.Backups(r.Context())
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request, correlationID string) {
	var body struct {
		Kind organizer.BackupKind `json:"kind"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	switch body.Kind {
	case organizer.BackupAuto, organizer.BackupSafety, organizer.BackupManual:
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "kind must be auto, safety or manual", correlationID)
		return
	}
	if err := s.backups.CreateBackup(r.Context(), body.Kind); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request, correlationID string) {
	var body struct {
		Safety bool `json:"safety"`
		Index  *int `json:"index"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	list, err := s.backups.Backups(r.Context())
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	var backup organizer.Backup
	switch {
	case body.Safety:
		if list.Safety == nil {
			writeError(w, http.StatusNotFound, "not_found", "no safety backup stored", correlationID)
			return
		}
		backup = *list.Safety
	case body.Index != nil:
		if *body.Index < 0 || *body.Index >= len(list.Regular) {
			writeError(w, http.StatusNotFound, "not_found", "backup not found", correlationID)
			return
		}
		backup = list.Regular[*body.Index]
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "specify index or safety", correlationID)
		return
	}
	if err := s.backups.RestoreBackup(r.Context(), backup); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error, correlationID string) {
	switch {
	case errors.Is(err, organizer.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), correlationID)
	case errors.Is(err, organizer.ErrInvalidInput), errors.Is(err, organizer.ErrInvalidPack):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error(), correlationID)
	case errors.Is(err, organizer.ErrNotImplemented):
		writeError(w, http.StatusNotImplemented, "not_implemented", err.Error(), correlationID)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), correlationID)
	}
}

func getCorrelationID(r *http.Request) string {
	return r.Header.Get("X-Correlation-Id")
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request, correlationID string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit", correlationID)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body", correlationID)
		return nil, false
	}
	return body, true
}

func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, correlationID string, dst any) bool {
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", correlationID)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeJSON(w, status, map[string]any{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	})
}
