package organizer

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Placeholder is one {{definition}} token in a prompt body. A definition is
// either free text ("Topic") or choice-based ("Tone:Formal,Casual"); the
// raw definition string is the identity used for fills and rewrites.
type Placeholder struct {
	Definition string   `json:"definition"`
	Label      string   `json:"label"`
	Options    []string `json:"options,omitempty"`
}

// ParsePlaceholders extracts the unique placeholder definitions from a
// prompt body in first-appearance order. Repeated definitions collapse to
// one entry; filling substitutes every occurrence.
func ParsePlaceholders(content string) []Placeholder {
	matches := placeholderPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	placeholders := make([]Placeholder, 0, len(matches))
	for _, match := range matches {
		def := match[1]
		if _, ok := seen[def]; ok {
			continue
		}
		seen[def] = struct{}{}
		placeholders = append(placeholders, parseDefinition(def))
	}
	return placeholders
}

// parseDefinition splits "Label:opt1,opt2" on ":". Only the segment between
// the first and second colon counts as the option list; anything after a
// second colon is dropped. Stored definitions rely on that trimming, so it
// stays.
func parseDefinition(def string) Placeholder {
	p := Placeholder{Definition: def, Label: def}
	if !strings.Contains(def, ":") {
		return p
	}
	parts := strings.Split(def, ":")
	p.Label = strings.TrimSpace(parts[0])
	for _, opt := range strings.Split(parts[1], ",") {
		p.Options = append(p.Options, strings.TrimSpace(opt))
	}
	return p
}

// FillPlaceholders substitutes every occurrence of each definition with the
// supplied value, looked up first by full definition and then by label.
// Missing values become the empty string.
func FillPlaceholders(content string, values map[string]string) string {
	for _, p := range ParsePlaceholders(content) {
		value, ok := values[p.Definition]
		if !ok {
			value = values[p.Label]
		}
		content = strings.ReplaceAll(content, "{{"+p.Definition+"}}", value)
	}
	return content
}

// AddPlaceholderOption rewrites every occurrence of the definition so its
// option list gains option, turning "Tone:A,B" into "Tone:A,B,C". The token
// is rewritten in place, never duplicated.
func AddPlaceholderOption(content, definition, option string) string {
	option = strings.TrimSpace(option)
	if option == "" {
		return content
	}
	newDef := definition + "," + option
	return strings.ReplaceAll(content, "{{"+definition+"}}", "{{"+newDef+"}}")
}

// RemovePlaceholderOption rewrites every occurrence of the definition so its
// option list loses option. A definition without options is left untouched.
func RemovePlaceholderOption(content, definition, option string) string {
	parts := strings.Split(definition, ":")
	if len(parts) < 2 {
		return content
	}
	label := parts[0]
	kept := make([]string, 0)
	for _, opt := range strings.Split(parts[1], ",") {
		if strings.TrimSpace(opt) != option {
			kept = append(kept, opt)
		}
	}
	newDef := label + ":" + strings.Join(kept, ",")
	return strings.ReplaceAll(content, "{{"+definition+"}}", "{{"+newDef+"}}")
}
