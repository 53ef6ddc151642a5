package organizer

import (
	"reflect"
	"testing"
)

func TestParsePlaceholders(t *testing.T) {
	content := "Write {{Tone:Formal,Casual}} about {{Topic}}. Repeat: {{Topic}}"
	got := ParsePlaceholders(content)
	want := []Placeholder{
		{Definition: "Tone:Formal,Casual", Label: "Tone", Options: []string{"Formal", "Casual"}},
		{Definition: "Topic", Label: "Topic"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parsed %+v, want %+v", got, want)
	}
}

func TestParseDefinitionDropsTextAfterSecondColon(t *testing.T) {
	// Only the segment between the first and second colon is the option
	// list; stored definitions rely on this.
	got := parseDefinition("Tone:A,B:C")
	if got.Label != "Tone" {
		t.Fatalf("label %q, want Tone", got.Label)
	}
	if !reflect.DeepEqual(got.Options, []string{"A", "B"}) {
		t.Fatalf("options %v, want [A B]", got.Options)
	}
}

func TestFillPlaceholders(t *testing.T) {
	content := "Write {{Tone:Formal,Casual}} about {{Topic}}"
	filled := FillPlaceholders(content, map[string]string{
		"Tone":  "Casual",
		"Topic": "cats",
	})
	if filled != "Write Casual about cats" {
		t.Fatalf("filled %q", filled)
	}
}

func TestFillPlaceholdersMissingValueBecomesEmpty(t *testing.T) {
	filled := FillPlaceholders("A {{X}} B {{X}} C", nil)
	if filled != "A  B  C" {
		t.Fatalf("filled %q", filled)
	}
}

func TestAddPlaceholderOptionRewritesEveryOccurrence(t *testing.T) {
	content := "Write {{Tone:Formal,Casual}} about {{Topic}}"
	updated := AddPlaceholderOption(content, "Tone:Formal,Casual", "Sarcastic")
	if updated != "Write {{Tone:Formal,Casual,Sarcastic}} about {{Topic}}" {
		t.Fatalf("updated %q", updated)
	}

	twice := "{{Tone:A}} and {{Tone:A}}"
	updated = AddPlaceholderOption(twice, "Tone:A", "B")
	if updated != "{{Tone:A,B}} and {{Tone:A,B}}" {
		t.Fatalf("updated %q", updated)
	}
}

func TestRemovePlaceholderOption(t *testing.T) {
	content := "Write {{Tone:Formal,Casual,Sarcastic}} here"
	updated := RemovePlaceholderOption(content, "Tone:Formal,Casual,Sarcastic", "Casual")
	if updated != "Write {{Tone:Formal,Sarcastic}} here" {
		t.Fatalf("updated %q", updated)
	}

	// A free-text definition has no options to remove.
	untouched := RemovePlaceholderOption("{{Topic}}", "Topic", "x")
	if untouched != "{{Topic}}" {
		t.Fatalf("free-text definition changed: %q", untouched)
	}
}

func TestPlaceholderRoundTrip(t *testing.T) {
	content := "Write {{Tone:Formal,Casual}} about {{Topic}}"
	content = AddPlaceholderOption(content, "Tone:Formal,Casual", "Sarcastic")
	filled := FillPlaceholders(content, map[string]string{
		"Tone":  "Sarcastic",
		"Topic": "deadlines",
	})
	if filled != "Write Sarcastic about deadlines" {
		t.Fatalf("filled %q", filled)
	}
}
