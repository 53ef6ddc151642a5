package organizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	autoBackupLimit       = 3
	autoBackupMinInterval = 24 * time.Hour
)

type BackupManagerOptions struct {
	Repository *Repository
	// Now overrides the wall clock; tests inject a fake.
	Now func() time.Time
}

// BackupManager snapshots the folder and prompt-folder collections into the
// local-scope store: a rotating ring of at most three general backups plus a
// single safety slot overwritten before destructive operations.
type BackupManager struct {
	repo *Repository
	now  func() time.Time
}

func NewBackupManager(opts BackupManagerOptions) *BackupManager {
	repo := opts.Repository
	if repo == nil {
		repo = NewRepository(nil, nil)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &BackupManager{repo: repo, now: now}
}

// CreateBackup captures a snapshot. Auto backups are skipped entirely for
// the default-identity sentinel and rate limited to one per 24h against the
// ring head; safety backups always overwrite their slot; manual backups
// enter the ring with no guard.
func (m *BackupManager) CreateBackup(ctx context.Context, kind BackupKind) error {
	if kind == BackupAuto && m.repo.User(ctx) == DefaultIdentity {
		return nil
	}

	local := m.repo.Store().Local
	var ring []Backup
	raw, err := getRaw(ctx, local, backupsKey)
	if err != nil {
		return fmt.Errorf("%w: read backups: %v", ErrStorage, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ring); err != nil {
			return fmt.Errorf("decode backups: %w", err)
		}
	}

	if kind == BackupAuto && len(ring) > 0 {
		if last, parseErr := time.Parse(time.RFC3339Nano, ring[0].Date); parseErr == nil {
			if m.now().Sub(last) < autoBackupMinInterval {
				return nil
			}
		}
	}

	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	backup := Backup{
		Date:        now.UTC().Format(time.RFC3339Nano),
		DisplayDate: now.Format("2006-01-02 15:04:05"),
		Data:        snapshot,
		Type:        kind,
	}

	if kind == BackupSafety {
		if err := setJSON(ctx, local, safetyBackupKey, backup); err != nil {
			return fmt.Errorf("%w: write safety backup: %v", ErrStorage, err)
		}
		return nil
	}

	ring = append([]Backup{backup}, ring...)
	if len(ring) > autoBackupLimit {
		ring = ring[:autoBackupLimit]
	}
	if err := setJSON(ctx, local, backupsKey, ring); err != nil {
		return fmt.Errorf("%w: write backups: %v", ErrStorage, err)
	}
	return nil
}

func (m *BackupManager) Backups(ctx context.Context) (BackupList, error) {
	local := m.repo.Store().Local
	values, err := local.Get(ctx, []string{backupsKey, safetyBackupKey})
	if err != nil {
		return BackupList{}, fmt.Errorf("%w: read backups: %v", ErrStorage, err)
	}
	list := BackupList{Regular: []Backup{}}
	if raw := values[backupsKey]; len(raw) > 0 {
		if err := json.Unmarshal(raw, &list.Regular); err != nil {
			return BackupList{}, fmt.Errorf("decode backups: %w", err)
		}
	}
	if raw := values[safetyBackupKey]; len(raw) > 0 {
		var safety Backup
		if err := json.Unmarshal(raw, &safety); err != nil {
			return BackupList{}, fmt.Errorf("decode safety backup: %w", err)
		}
		list.Safety = &safety
	}
	return list, nil
}

// RestoreBackup writes whichever collections the backup carries into the
// current identity's sync keys. A backup missing one collection leaves the
// live data for that collection untouched; this is a targeted overwrite, not
// a transaction.
func (m *BackupManager) RestoreBackup(ctx context.Context, backup Backup) error {
	if backup.Data.Folders == nil && backup.Data.PromptFolders == nil {
		return nil
	}
	if backup.Data.Folders != nil {
		if err := m.repo.SaveFolders(ctx, backup.Data.Folders); err != nil {
			return err
		}
	}
	if backup.Data.PromptFolders != nil {
		if err := m.repo.SavePromptFolders(ctx, backup.Data.PromptFolders); err != nil {
			return err
		}
	}
	return nil
}

// ImportFolders replaces the entire folder list from an exported plain JSON
// array, taking a safety backup of the current state first so a bad import
// stays recoverable.
func (m *BackupManager) ImportFolders(ctx context.Context, folders []Folder) error {
	if err := m.CreateBackup(ctx, BackupSafety); err != nil {
		return err
	}
	return m.repo.SaveFolders(ctx, folders)
}

func (m *BackupManager) snapshot(ctx context.Context) (BackupData, error) {
	folders, err := m.repo.Folders(ctx)
	if err != nil {
		return BackupData{}, err
	}
	promptFolders, err := m.repo.PromptFolders(ctx)
	if err != nil {
		return BackupData{}, err
	}
	return BackupData{Folders: folders, PromptFolders: promptFolders}, nil
}
