package organizer

// Storage key bases. The per-identity keys are derived by suffixing the
// resolved identity; the legacy keys predate identity namespacing and are
// read-only after migration.
const (
	baseFolderKey = "gemini_organizer_data_v1"
	basePromptKey = "gemini_organizer_prompts_v1"

	legacyFolderKey = "gemini_organizer_sync_v1"
	legacyPromptKey = "gemini_prompts_data_v1"

	backupsKey      = "gu_backups"
	safetyBackupKey = "gu_backup_safety"
	notesKeyPrefix  = "gu_notes_"

	identityCacheKey = "gu_cached_email"
)

type keySet struct {
	user          string
	folders       string
	prompts       string
	promptFolders string
}

func keysFor(user string) keySet {
	return keySet{
		user:          user,
		folders:       baseFolderKey + "_" + user,
		prompts:       basePromptKey + "_" + user,
		promptFolders: basePromptKey + "_folders_" + user,
	}
}

func notesKey(chatID string) string {
	return notesKeyPrefix + chatID
}
