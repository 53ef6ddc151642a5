package organizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Folder groups archived chat references. Names are not structurally unique;
// callers address folders by position.
type Folder struct {
	Name   string `json:"name"`
	Emoji  string `json:"emoji"`
	Color  string `json:"color"`
	IsOpen bool   `json:"isOpen"`
	Chats  []Chat `json:"chats"`
}

// Chat is an archived reference to a remote conversation. A chat belongs to
// exactly one folder at a time; its URL is its identity for archived-set
// membership checks.
type Chat struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	IsPinned bool   `json:"isPinned,omitempty"`
	Tags     []Tag  `json:"tags,omitempty"`
}

// Tag is a tagged union: persisted data holds either a bare string (legacy)
// or a {text,color} object. The shape observed on read is preserved on
// write; normalization happens only at the display boundary.
type Tag struct {
	Text   string
	Color  string
	legacy bool
}

func NewTag(text, color string) Tag {
	return Tag{Text: text, Color: color}
}

// BareTag constructs a legacy string-shaped tag. New tags are always written
// in the object shape; this exists for data that predates it.
func BareTag(text string) Tag {
	return Tag{Text: text, legacy: true}
}

func (t Tag) IsLegacy() bool {
	return t.legacy
}

// DisplayColor returns the stored color, or a deterministic derived color
// for legacy tags that never carried one.
func (t Tag) DisplayColor() string {
	if t.Color != "" {
		return t.Color
	}
	return derivedTagColor(t.Text)
}

func (t Tag) MarshalJSON() ([]byte, error) {
	if t.legacy {
		return json.Marshal(t.Text)
	}
	return json.Marshal(struct {
		Text  string `json:"text"`
		Color string `json:"color"`
	}{Text: t.Text, Color: t.Color})
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*t = Tag{Text: text, legacy: true}
		return nil
	}
	var shaped struct {
		Text  string `json:"text"`
		Color string `json:"color"`
	}
	if err := json.Unmarshal(trimmed, &shaped); err != nil {
		return err
	}
	*t = Tag{Text: shaped.Text, Color: shaped.Color}
	return nil
}

// PromptFolder mirrors Folder for the prompt collection; it is stored under
// an independent key.
type PromptFolder struct {
	Name    string   `json:"name"`
	Emoji   string   `json:"emoji"`
	Color   string   `json:"color"`
	IsOpen  bool     `json:"isOpen"`
	Prompts []Prompt `json:"prompts"`
}

// Prompt content may embed {{name}} or {{Label:opt1,opt2}} placeholders; see
// placeholder.go.
type Prompt struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	IsPinned bool   `json:"isPinned,omitempty"`
}

type HighlightColor string

const (
	HighlightRed    HighlightColor = "red"
	HighlightBlue   HighlightColor = "blue"
	HighlightGreen  HighlightColor = "green"
	HighlightYellow HighlightColor = "yellow"
)

func (c HighlightColor) Valid() bool {
	switch c {
	case HighlightRed, HighlightBlue, HighlightGreen, HighlightYellow:
		return true
	}
	return false
}

// Highlight is a saved excerpt of page text, scoped to a conversation id.
type Highlight struct {
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Color   HighlightColor `json:"color"`
	Comment string         `json:"comment"`
	Date    string         `json:"date"`
}

// NewHighlight stamps a timestamp-derived id unique within a chat.
func NewHighlight(now time.Time, text string, color HighlightColor) Highlight {
	return Highlight{
		ID:    strconv.FormatInt(now.UnixMilli(), 10),
		Text:  text,
		Color: color,
		Date:  now.Format("2006-01-02"),
	}
}

type BackupKind string

const (
	BackupAuto   BackupKind = "auto"
	BackupSafety BackupKind = "safety"
	BackupManual BackupKind = "manual"
)

// BackupData accepts both the modern {folders,promptFolders} object and the
// legacy bare folder array. A nil field means the backup carries nothing for
// that collection and restore leaves it untouched.
type BackupData struct {
	Folders       []Folder       `json:"folders"`
	PromptFolders []PromptFolder `json:"promptFolders"`
}

func (d *BackupData) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var folders []Folder
		if err := json.Unmarshal(trimmed, &folders); err != nil {
			return err
		}
		*d = BackupData{Folders: folders}
		return nil
	}
	type plain BackupData
	var shaped plain
	if err := json.Unmarshal(trimmed, &shaped); err != nil {
		return err
	}
	*d = BackupData(shaped)
	return nil
}

type Backup struct {
	Date        string     `json:"date"`
	DisplayDate string     `json:"displayDate"`
	Data        BackupData `json:"data"`
	Type        BackupKind `json:"type"`
}

type BackupList struct {
	Regular []Backup `json:"regular"`
	Safety  *Backup  `json:"safety"`
}

// derivedTagColor maps a tag text to a stable hue for tags persisted without
// a color. Matches the hash historically used for legacy data so existing
// tags keep their colors.
func derivedTagColor(text string) string {
	var hash int32
	for _, r := range text {
		hash = int32(r) + ((hash << 5) - hash)
	}
	hue := hash % 360
	if hue < 0 {
		hue = -hue
	}
	return fmt.Sprintf("hsl(%d, 70%%, 80%%)", hue)
}
