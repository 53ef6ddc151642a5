package organizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	PackType    = "guop_pack"
	PackVersion = "1.0"
)

// PromptPack is the portable envelope for sharing a prompt folder between
// installations.
type PromptPack struct {
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Folder  PromptFolder `json:"folder"`
}

// packSchema accepts either the versioned envelope or a bare folder object,
// the two shapes ParsePack recognizes.
const packSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "oneOf": [
    {
      "type": "object",
      "required": ["type", "folder"],
      "properties": {
        "type": {"const": "guop_pack"},
        "version": {"type": "string"},
        "folder": {"$ref": "#/$defs/folder"}
      }
    },
    {"$ref": "#/$defs/folder"}
  ],
  "$defs": {
    "folder": {
      "type": "object",
      "required": ["name", "prompts"],
      "properties": {
        "name": {"type": "string"},
        "emoji": {"type": "string"},
        "color": {"type": "string"},
        "isOpen": {"type": "boolean"},
        "prompts": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name", "content"],
            "properties": {
              "name": {"type": "string"},
              "content": {"type": "string"},
              "isPinned": {"type": "boolean"}
            }
          }
        }
      }
    }
  }
}`

var (
	packSchemaOnce     sync.Once
	compiledPackSchema *jsonschema.Schema
	packSchemaErr      error
)

func packSchemaCompiled() (*jsonschema.Schema, error) {
	packSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(packSchema))
		if err != nil {
			packSchemaErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("pack.schema.json", doc); err != nil {
			packSchemaErr = err
			return
		}
		compiledPackSchema, packSchemaErr = compiler.Compile("pack.schema.json")
	})
	return compiledPackSchema, packSchemaErr
}

// ParsePack decodes and validates pack bytes. Both the versioned envelope
// and a bare {name,prompts} folder object are accepted; the latter covers
// hand-written packs and exports from before the envelope existed.
func ParsePack(data []byte) (PromptFolder, error) {
	schema, err := packSchemaCompiled()
	if err != nil {
		return PromptFolder{}, fmt.Errorf("compile pack schema: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return PromptFolder{}, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}
	if err := schema.Validate(instance); err != nil {
		return PromptFolder{}, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}

	var envelope PromptPack
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Type == PackType {
		return envelope.Folder, nil
	}
	var folder PromptFolder
	if err := json.Unmarshal(data, &folder); err != nil {
		return PromptFolder{}, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}
	return folder, nil
}

var packFilenamePattern = regexp.MustCompile(`[^a-zA-Z0-9]`)

// PackFilename derives the suggested download name for an exported folder:
// non-alphanumerics collapse to underscores, lowercased, ".guop" extension.
func PackFilename(folderName string) string {
	return strings.ToLower(packFilenamePattern.ReplaceAllString(folderName, "_")) + ".guop"
}

// ExportPack wraps a prompt folder in the versioned envelope and returns the
// indented document plus its suggested filename.
func ExportPack(folder PromptFolder) ([]byte, string, error) {
	pack := PromptPack{Type: PackType, Version: PackVersion, Folder: folder}
	data, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("encode pack: %w", err)
	}
	return data, PackFilename(folder.Name), nil
}

// ImportPack validates pack bytes and appends the carried folder to the
// current identity's prompt folders. A name collision renames the import
// with an " (Imported)" suffix; the folder always lands collapsed.
func (r *Repository) ImportPack(ctx context.Context, data []byte) (PromptFolder, error) {
	folder, err := ParsePack(data)
	if err != nil {
		return PromptFolder{}, err
	}
	err = r.MutatePromptFolders(ctx, func(folders []PromptFolder) ([]PromptFolder, error) {
		for _, existing := range folders {
			if existing.Name == folder.Name {
				folder.Name = folder.Name + " (Imported)"
				break
			}
		}
		folder.IsOpen = false
		return append(folders, folder), nil
	})
	if err != nil {
		return PromptFolder{}, err
	}
	return folder, nil
}
