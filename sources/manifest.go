// Package sources loads the content items a session drafts from.
//
// A manifest is a YAML file listing items. Text and table bodies may be
// given inline or read from a file next to the manifest; images are passed
// by reference with a description.
package sources

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/richinex/reportflow/model"
)

// ErrInvalidManifest is wrapped by manifest validation failures.
var ErrInvalidManifest = errors.New("invalid source manifest")

// DefaultMaxBytes caps a body read from disk.
const DefaultMaxBytes = 64 * 1024

// Entry is one item of a manifest.
type Entry struct {
	model.ContentItem `yaml:",inline"`

	// Path is a file relative to the manifest. For text and tables it
	// supplies the body; for images it becomes the media URI.
	Path string `yaml:"path,omitempty"`
}

// Manifest lists the sources of a report.
type Manifest struct {
	Title   string  `yaml:"title,omitempty"`
	Sources []Entry `yaml:"sources"`

	dir string
}

// ParseManifest decodes and validates manifest YAML. Relative paths are
// resolved against dir.
func ParseManifest(data []byte, dir string) (Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Manifest{}, fmt.Errorf("%w: empty payload", ErrInvalidManifest)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("sources: decode manifest: %w", err)
	}
	m.dir = dir
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("sources: read %s: %w", path, err)
	}
	m, err := ParseManifest(data, filepath.Dir(path))
	if err != nil {
		return Manifest{}, fmt.Errorf("sources: %s: %w", path, err)
	}
	return m, nil
}

// Validate checks ids and kinds.
func (m Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Sources))
	for i, e := range m.Sources {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidManifest, i+1)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidManifest, id)
		}
		seen[id] = true

		switch e.Kind {
		case "", model.ContentText, model.ContentTable, model.ContentImage:
		default:
			return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidManifest, id, e.Kind)
		}
		if e.Kind == model.ContentImage && e.Path == "" && e.MediaURI == "" {
			return fmt.Errorf("%w: image %s needs a path or media_uri", ErrInvalidManifest, id)
		}
	}
	return nil
}

// Items converts the manifest into content items, reading file bodies up to
// maxBytes each (zero uses DefaultMaxBytes).
func (m Manifest) Items(maxBytes int) ([]model.ContentItem, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	items := make([]model.ContentItem, 0, len(m.Sources))
	for _, e := range m.Sources {
		item := e.ContentItem
		item.ID = strings.TrimSpace(item.ID)
		if item.Kind == "" {
			item.Kind = model.ContentText
		}
		if item.Title == "" {
			item.Title = item.ID
		}

		if e.Path != "" {
			path := e.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(m.dir, path)
			}
			if item.Kind == model.ContentImage {
				item.MediaURI = path
			} else if item.Body == "" {
				body, err := readBody(path, maxBytes)
				if err != nil {
					return nil, fmt.Errorf("sources: item %s: %w", item.ID, err)
				}
				item.Body = body
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func readBody(path string, maxBytes int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) > maxBytes {
		return string(data[:maxBytes]) + "\n[truncated]", nil
	}
	return string(data), nil
}
