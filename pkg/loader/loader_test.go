package loader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"raven/pkg/loader"
	ioloader "raven/pkg/loader/io"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadDirectorySkipsInvalidDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "valid.json", `{"type":"bundle","objects":[{"type":"attack-pattern","id":"attack-pattern--1","name":"A"}]}`)
	writeFile(t, dir, "broken.json", `{"objects": [`)
	writeFile(t, dir, "notes.txt", `not a corpus document`)
	writeFile(t, dir, "binary.json", "\xff\xfe\x00broken")

	docs, err := loader.Load(context.Background(), ioloader.NewIOCorpusLoader(), dir)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if filepath.Base(docs[0].Source) != "valid.json" {
		t.Fatalf("expected valid.json, got %s", docs[0].Source)
	}
	if len(docs[0].Bundle.Objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(docs[0].Bundle.Objects))
	}
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bundle.json", `{"objects":[]}`)

	docs, err := loader.Load(context.Background(), ioloader.NewIOCorpusLoader(), path)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Source != path {
		t.Fatalf("expected source %s, got %s", path, docs[0].Source)
	}
}

func TestLoadNonJSONPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", `irrelevant`)

	docs, err := loader.Load(context.Background(), ioloader.NewIOCorpusLoader(), path)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestLoadMissingPath(t *testing.T) {
	_, err := loader.Load(context.Background(), ioloader.NewIOCorpusLoader(), filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestLoadRepairsJSONWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	// Trailing comma, invalid strict JSON.
	writeFile(t, dir, "sloppy.json", `{"objects": [{"type": "tool", "id": "tool--1",},]}`)

	docs, err := loader.Load(context.Background(), ioloader.NewIOCorpusLoader(), dir)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected document skipped without repair, got %d", len(docs))
	}

	t.Setenv("LOADER_REPAIR_JSON", "true")

	docs, err = loader.Load(context.Background(), ioloader.NewIOCorpusLoader(), dir)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 repaired document, got %d", len(docs))
	}
	if docs[0].Bundle.Objects[0].ID != "tool--1" {
		t.Fatalf("unexpected repaired object %+v", docs[0].Bundle.Objects[0])
	}
}

func TestBundles(t *testing.T) {
	docs := []loader.Document{
		{Source: "a.json"},
		{Source: "b.json"},
	}
	bundles := loader.Bundles(docs)
	if len(bundles) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(bundles))
	}
}
