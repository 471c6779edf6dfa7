package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richinex/reportflow/model"
)

const auditManifest = `
title: Pump Station Audit
sources:
  - id: notes-1
    title: Site notes
    path: notes.md
  - id: tbl-flow
    title: Flow readings
    kind: table
    body: |
      | pump | flow |
      | P1   | 42   |
    metadata:
      unit: m3/h
  - id: img-1
    title: Impeller
    kind: image
    description: corroded impeller blade
    path: img/impeller.jpg
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestManifestItems(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sources.yaml"), auditManifest)
	writeFile(t, filepath.Join(dir, "notes.md"), "Pump P1 vibrates above 3000 rpm.")

	m, err := LoadManifest(filepath.Join(dir, "sources.yaml"))
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if m.Title != "Pump Station Audit" {
		t.Errorf("Title = %q", m.Title)
	}

	items, err := m.Items(0)
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if items[0].Kind != model.ContentText || items[0].Body != "Pump P1 vibrates above 3000 rpm." {
		t.Errorf("text item = %+v", items[0])
	}
	if items[1].Kind != model.ContentTable || items[1].Metadata["unit"] != "m3/h" {
		t.Errorf("table item = %+v", items[1])
	}
	if items[2].MediaURI != filepath.Join(dir, "img/impeller.jpg") || items[2].Body != "" {
		t.Errorf("image item = %+v", items[2])
	}
}

func TestManifestTruncatesBodies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "big.txt"), strings.Repeat("z", 100))

	m, err := ParseManifest([]byte("sources:\n  - id: big\n    path: big.txt\n"), dir)
	if err != nil {
		t.Fatal(err)
	}
	items, err := m.Items(10)
	if err != nil {
		t.Fatal(err)
	}
	if items[0].Body != strings.Repeat("z", 10)+"\n[truncated]" {
		t.Errorf("Body = %q", items[0].Body)
	}
	if items[0].Title != "big" {
		t.Errorf("title should default to the id, got %q", items[0].Title)
	}
}

func TestManifestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "  \n"},
		{"missing id", "sources:\n  - title: x\n"},
		{"duplicate id", "sources:\n  - id: a\n  - id: a\n"},
		{"unknown kind", "sources:\n  - id: a\n    kind: video\n"},
		{"image without reference", "sources:\n  - id: a\n    kind: image\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(tt.yaml), "."); !errors.Is(err, ErrInvalidManifest) {
				t.Errorf("expected ErrInvalidManifest, got %v", err)
			}
		})
	}
}

func TestFileLoaderPrefersSessionManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "default.yaml"), "sources:\n  - id: d\n    body: default\n")
	writeFile(t, filepath.Join(dir, "sessions", "s1.yaml"), "sources:\n  - id: s\n    body: session\n")

	loader := &FileLoader{Dir: filepath.Join(dir, "sessions"), Default: filepath.Join(dir, "default.yaml")}

	items, err := loader.Load(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "s" {
		t.Errorf("s1 items = %+v", items)
	}

	items, err = loader.Load(context.Background(), "s2")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "d" {
		t.Errorf("s2 items = %+v", items)
	}
}

func TestFileLoaderWithoutManifests(t *testing.T) {
	loader := &FileLoader{Dir: t.TempDir()}
	items, err := loader.Load(context.Background(), "s1")
	if err != nil || len(items) != 0 {
		t.Errorf("expected no items, got %v (%v)", items, err)
	}

	loader = &FileLoader{Default: filepath.Join(t.TempDir(), "missing.yaml")}
	if _, err := loader.Load(context.Background(), "s1"); err == nil {
		t.Error("a configured but missing default manifest should fail")
	}
}

func TestResolver(t *testing.T) {
	r := Resolver{}
	text, err := r.Resolve(context.Background(), model.ContentItem{
		ID: "tbl", Title: "Flow", Kind: model.ContentTable, Body: "| a |", Metadata: map[string]string{"unit": "m3/h", "source": "SCADA"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text, "[tbl] Flow (table)") || !strings.HasSuffix(text, "source: SCADA\nunit: m3/h") {
		t.Errorf("unexpected rendering:\n%s", text)
	}

	if _, err := r.Resolve(context.Background(), model.ContentItem{ID: "img", Kind: model.ContentImage, MediaURI: "x.jpg"}); err == nil {
		t.Error("an image without description should not resolve")
	}
}
