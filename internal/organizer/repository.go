package organizer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Repository owns the canonical collections and derives every storage key
// from the identity resolved at call time, so an account switch redirects
// all subsequent reads and writes without touching the old account's data.
//
// Each read-modify-write cycle fetches the full list, mutates it in memory,
// and persists the full list; the store layer has no partial update. Cycles
// against the same collection are serialized through a per-collection mutex,
// which closes the lost-update window between two rapid mutations without
// changing the last-write-wins behavior of the store itself.
type Repository struct {
	store    *Store
	identity *IdentityResolver

	folderMu sync.Mutex
	promptMu sync.Mutex

	notesMu   sync.Mutex
	noteLocks map[string]*sync.Mutex
}

func NewRepository(store *Store, identity *IdentityResolver) *Repository {
	if store == nil {
		store = NewStore(nil, nil)
	}
	if identity == nil {
		identity = NewIdentityResolver(store.Local, nil)
	}
	return &Repository{
		store:     store,
		identity:  identity,
		noteLocks: map[string]*sync.Mutex{},
	}
}

func (r *Repository) Store() *Store {
	return r.store
}

// User returns the identity currently namespacing the repository's keys.
func (r *Repository) User(ctx context.Context) string {
	return r.identity.Resolve(ctx)
}

func (r *Repository) keys(ctx context.Context) keySet {
	return keysFor(r.identity.Resolve(ctx))
}

// Folders returns the chat folder list for the current identity, defaulting
// to an empty list when nothing is stored yet.
func (r *Repository) Folders(ctx context.Context) ([]Folder, error) {
	var folders []Folder
	if err := r.loadList(ctx, r.store.Sync, r.keys(ctx).folders, &folders); err != nil {
		return nil, err
	}
	if folders == nil {
		folders = []Folder{}
	}
	return folders, nil
}

func (r *Repository) SaveFolders(ctx context.Context, folders []Folder) error {
	if folders == nil {
		folders = []Folder{}
	}
	return r.saveList(ctx, r.store.Sync, r.keys(ctx).folders, folders)
}

// MutateFolders runs one serialized fetch-mutate-persist cycle.
func (r *Repository) MutateFolders(ctx context.Context, fn func([]Folder) ([]Folder, error)) error {
	r.folderMu.Lock()
	defer r.folderMu.Unlock()
	folders, err := r.Folders(ctx)
	if err != nil {
		return err
	}
	folders, err = fn(folders)
	if err != nil {
		return err
	}
	return r.SaveFolders(ctx, folders)
}

func (r *Repository) PromptFolders(ctx context.Context) ([]PromptFolder, error) {
	var folders []PromptFolder
	if err := r.loadList(ctx, r.store.Sync, r.keys(ctx).promptFolders, &folders); err != nil {
		return nil, err
	}
	if folders == nil {
		folders = []PromptFolder{}
	}
	return folders, nil
}

func (r *Repository) SavePromptFolders(ctx context.Context, folders []PromptFolder) error {
	if folders == nil {
		folders = []PromptFolder{}
	}
	return r.saveList(ctx, r.store.Sync, r.keys(ctx).promptFolders, folders)
}

func (r *Repository) MutatePromptFolders(ctx context.Context, fn func([]PromptFolder) ([]PromptFolder, error)) error {
	r.promptMu.Lock()
	defer r.promptMu.Unlock()
	folders, err := r.PromptFolders(ctx)
	if err != nil {
		return err
	}
	folders, err = fn(folders)
	if err != nil {
		return err
	}
	return r.SavePromptFolders(ctx, folders)
}

// Prompts is the flat prompt list the migration targets. The modern panel
// reads PromptFolders; this key survives for data migrated off the legacy
// fixed key.
func (r *Repository) Prompts(ctx context.Context) ([]Prompt, error) {
	var prompts []Prompt
	if err := r.loadList(ctx, r.store.Sync, r.keys(ctx).prompts, &prompts); err != nil {
		return nil, err
	}
	if prompts == nil {
		prompts = []Prompt{}
	}
	return prompts, nil
}

func (r *Repository) SavePrompts(ctx context.Context, prompts []Prompt) error {
	if prompts == nil {
		prompts = []Prompt{}
	}
	return r.saveList(ctx, r.store.Sync, r.keys(ctx).prompts, prompts)
}

// Migrate copies data from the fixed legacy keys into the identity-namespaced
// keys, once per collection. A namespaced key that already holds a value is
// left alone, so repeated runs are no-ops, and the legacy keys are preserved
// for rollback. onMigrated fires with "folders" or "prompts" per collection
// actually copied.
func (r *Repository) Migrate(ctx context.Context, onMigrated func(collection string)) error {
	k := r.keys(ctx)
	values, err := r.store.Sync.Get(ctx, []string{k.folders, k.prompts, legacyFolderKey, legacyPromptKey})
	if err != nil {
		return fmt.Errorf("%w: migration read: %v", ErrStorage, err)
	}

	if len(values[k.folders]) == 0 && nonEmptyArray(values[legacyFolderKey]) {
		if err := r.store.Sync.Set(ctx, map[string]json.RawMessage{k.folders: values[legacyFolderKey]}); err != nil {
			return fmt.Errorf("%w: migrate folders: %v", ErrStorage, err)
		}
		if onMigrated != nil {
			onMigrated("folders")
		}
	}
	if len(values[k.prompts]) == 0 && nonEmptyArray(values[legacyPromptKey]) {
		if err := r.store.Sync.Set(ctx, map[string]json.RawMessage{k.prompts: values[legacyPromptKey]}); err != nil {
			return fmt.Errorf("%w: migrate prompts: %v", ErrStorage, err)
		}
		if onMigrated != nil {
			onMigrated("prompts")
		}
	}
	return nil
}

// Highlights returns the notes recorded for one conversation id.
func (r *Repository) Highlights(ctx context.Context, chatID string) ([]Highlight, error) {
	var notes []Highlight
	if err := r.loadList(ctx, r.store.Local, notesKey(chatID), &notes); err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []Highlight{}
	}
	return notes, nil
}

func (r *Repository) AppendHighlight(ctx context.Context, chatID string, note Highlight) error {
	unlock := r.lockNotes(chatID)
	defer unlock()
	notes, err := r.Highlights(ctx, chatID)
	if err != nil {
		return err
	}
	notes = append(notes, note)
	return r.saveList(ctx, r.store.Local, notesKey(chatID), notes)
}

func (r *Repository) UpdateHighlightComment(ctx context.Context, chatID, noteID, comment string) error {
	unlock := r.lockNotes(chatID)
	defer unlock()
	notes, err := r.Highlights(ctx, chatID)
	if err != nil {
		return err
	}
	for i := range notes {
		if notes[i].ID == noteID {
			notes[i].Comment = comment
			return r.saveList(ctx, r.store.Local, notesKey(chatID), notes)
		}
	}
	return ErrNotFound
}

// DeleteHighlight filters by id; deleting an id that is already gone is not
// an error.
func (r *Repository) DeleteHighlight(ctx context.Context, chatID, noteID string) error {
	unlock := r.lockNotes(chatID)
	defer unlock()
	notes, err := r.Highlights(ctx, chatID)
	if err != nil {
		return err
	}
	kept := notes[:0]
	for _, note := range notes {
		if note.ID != noteID {
			kept = append(kept, note)
		}
	}
	return r.saveList(ctx, r.store.Local, notesKey(chatID), kept)
}

// AddChat appends a chat to the folder at folderIndex.
func (r *Repository) AddChat(ctx context.Context, folderIndex int, chat Chat) error {
	return r.MutateFolders(ctx, func(folders []Folder) ([]Folder, error) {
		if folderIndex < 0 || folderIndex >= len(folders) {
			return nil, ErrNotFound
		}
		folders[folderIndex].Chats = append(folders[folderIndex].Chats, chat)
		return folders, nil
	})
}

// MoveChat removes the chat from its source folder and appends it to the
// destination; a chat never belongs to two folders.
func (r *Repository) MoveChat(ctx context.Context, fromFolder, chatIndex, toFolder int) error {
	return r.MutateFolders(ctx, func(folders []Folder) ([]Folder, error) {
		if fromFolder < 0 || fromFolder >= len(folders) || toFolder < 0 || toFolder >= len(folders) {
			return nil, ErrNotFound
		}
		chats := folders[fromFolder].Chats
		if chatIndex < 0 || chatIndex >= len(chats) {
			return nil, ErrNotFound
		}
		chat := chats[chatIndex]
		folders[fromFolder].Chats = append(chats[:chatIndex], chats[chatIndex+1:]...)
		folders[toFolder].Chats = append(folders[toFolder].Chats, chat)
		return folders, nil
	})
}

func (r *Repository) ToggleChatPin(ctx context.Context, folderIndex, chatIndex int) error {
	return r.MutateFolders(ctx, func(folders []Folder) ([]Folder, error) {
		if folderIndex < 0 || folderIndex >= len(folders) {
			return nil, ErrNotFound
		}
		chats := folders[folderIndex].Chats
		if chatIndex < 0 || chatIndex >= len(chats) {
			return nil, ErrNotFound
		}
		chats[chatIndex].IsPinned = !chats[chatIndex].IsPinned
		return folders, nil
	})
}

func (r *Repository) AddChatTag(ctx context.Context, folderIndex, chatIndex int, tag Tag) error {
	return r.MutateFolders(ctx, func(folders []Folder) ([]Folder, error) {
		if folderIndex < 0 || folderIndex >= len(folders) {
			return nil, ErrNotFound
		}
		chats := folders[folderIndex].Chats
		if chatIndex < 0 || chatIndex >= len(chats) {
			return nil, ErrNotFound
		}
		chats[chatIndex].Tags = append(chats[chatIndex].Tags, tag)
		return folders, nil
	})
}

func (r *Repository) RemoveChatTag(ctx context.Context, folderIndex, chatIndex, tagIndex int) error {
	return r.MutateFolders(ctx, func(folders []Folder) ([]Folder, error) {
		if folderIndex < 0 || folderIndex >= len(folders) {
			return nil, ErrNotFound
		}
		chats := folders[folderIndex].Chats
		if chatIndex < 0 || chatIndex >= len(chats) {
			return nil, ErrNotFound
		}
		tags := chats[chatIndex].Tags
		if tagIndex < 0 || tagIndex >= len(tags) {
			return nil, ErrNotFound
		}
		chats[chatIndex].Tags = append(tags[:tagIndex], tags[tagIndex+1:]...)
		return folders, nil
	})
}

// UpdatePromptContent persists a rewritten prompt body; the placeholder
// modal calls this when a choice list is edited, making the edit durable for
// every future invocation, not just the current fill.
func (r *Repository) UpdatePromptContent(ctx context.Context, folderIndex, promptIndex int, content string) error {
	return r.MutatePromptFolders(ctx, func(folders []PromptFolder) ([]PromptFolder, error) {
		if folderIndex < 0 || folderIndex >= len(folders) {
			return nil, ErrNotFound
		}
		prompts := folders[folderIndex].Prompts
		if promptIndex < 0 || promptIndex >= len(prompts) {
			return nil, ErrNotFound
		}
		prompts[promptIndex].Content = content
		return folders, nil
	})
}

// ArchivedURLs reports every chat URL currently archived in some folder.
func (r *Repository) ArchivedURLs(ctx context.Context) (map[string]struct{}, error) {
	folders, err := r.Folders(ctx)
	if err != nil {
		return nil, err
	}
	return ArchivedURLs(folders), nil
}

func (r *Repository) IsArchived(ctx context.Context, url string) (bool, error) {
	urls, err := r.ArchivedURLs(ctx)
	if err != nil {
		return false, err
	}
	_, ok := urls[url]
	return ok, nil
}

// TagLibrary derives the autocomplete library from every tag on every
// archived chat.
func (r *Repository) TagLibrary(ctx context.Context) ([]Tag, error) {
	folders, err := r.Folders(ctx)
	if err != nil {
		return nil, err
	}
	return TagLibrary(folders), nil
}

func (r *Repository) lockNotes(chatID string) (unlock func()) {
	r.notesMu.Lock()
	lock, ok := r.noteLocks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		r.noteLocks[chatID] = lock
	}
	r.notesMu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (r *Repository) loadList(ctx context.Context, kv KV, key string, out any) error {
	raw, err := getRaw(ctx, kv, key)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrStorage, key, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Repository) saveList(ctx context.Context, kv KV, key string, value any) error {
	if err := setJSON(ctx, kv, key, value); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, key, err)
	}
	return nil
}

func nonEmptyArray(raw json.RawMessage) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return false
	}
	return len(items) > 0
}
