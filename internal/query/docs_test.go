package query

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/keredson/shadb/internal/codec"
	"github.com/keredson/shadb/internal/errs"
)

func writeDoc(t *testing.T, root, rel string, doc map[string]any) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(full, raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestDocsGetUnique(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "Patient/1.json", map[string]any{"name": "Ada"})

	desc := uniqueDesc()
	db := setupTestDB(t, desc, [][2]string{{"ada@example.com", "Patient/1.json"}})
	docs := NewDocs(NewIndex(db, desc), root, codec.NewRegistry())

	got, err := docs.Get(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["name"] != "Ada" {
		t.Errorf("Get = %v, want {name: Ada}", got)
	}
}

func TestDocsGetMissingFile(t *testing.T) {
	root := t.TempDir()

	desc := uniqueDesc()
	db := setupTestDB(t, desc, [][2]string{{"ada@example.com", "Patient/missing.json"}})
	docs := NewDocs(NewIndex(db, desc), root, codec.NewRegistry())

	_, err := docs.Get(context.Background(), "ada@example.com")
	if !errors.Is(err, errs.ErrLoadMissing) {
		t.Fatalf("Get on missing file = %v, want ErrLoadMissing", err)
	}
}

func TestDocsGetAllowMissing(t *testing.T) {
	root := t.TempDir()

	desc := uniqueDesc()
	db := setupTestDB(t, desc, [][2]string{{"ada@example.com", "Patient/missing.json"}})
	docs := NewDocs(NewIndex(db, desc), root, codec.NewRegistry())

	got, err := docs.Get(context.Background(), "ada@example.com", AllowMissing())
	if err != nil {
		t.Fatalf("Get with AllowMissing: %v", err)
	}
	if got != nil {
		t.Errorf("Get with AllowMissing = %v, want nil", got)
	}
}

func TestDocsItemsAllowMissingSkipsOnlyTheMissingFile(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "Observation/1.json", map[string]any{"v": 1})

	desc := multiDesc()
	db := setupTestDB(t, desc, [][2]string{
		{"Observation", "Observation/1.json"},
		{"Observation", "Observation/missing.json"},
	})
	docs := NewDocs(NewIndex(db, desc), root, codec.NewRegistry())

	items, err := docs.Items(context.Background(), "", AllowMissing())
	if err != nil {
		t.Fatalf("Items with AllowMissing: %v", err)
	}
	if len(items) != 1 || len(items[0].Docs) != 2 {
		t.Fatalf("Items = %+v, want one group with 2 entries (one nil)", items)
	}
	if items[0].Docs[0] == nil || items[0].Docs[1] != nil {
		t.Errorf("Items[0].Docs = %v, want [loaded, nil]", items[0].Docs)
	}
}

func TestDocsGetDefault(t *testing.T) {
	root := t.TempDir()
	desc := uniqueDesc()
	db := setupTestDB(t, desc, nil)
	docs := NewDocs(NewIndex(db, desc), root, codec.NewRegistry())

	got, err := docs.GetDefault(context.Background(), "nobody@example.com", "fallback")
	if err != nil {
		t.Fatalf("GetDefault: %v", err)
	}
	if got != "fallback" {
		t.Errorf("GetDefault = %v, want fallback", got)
	}
}

func TestDocsItemsMaterializesEachGroup(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "Observation/1.json", map[string]any{"v": 1})
	writeDoc(t, root, "Observation/2.json", map[string]any{"v": 2})
	writeDoc(t, root, "Patient/1.json", map[string]any{"v": 3})

	desc := multiDesc()
	db := setupTestDB(t, desc, [][2]string{
		{"Observation", "Observation/1.json"},
		{"Observation", "Observation/2.json"},
		{"Patient", "Patient/1.json"},
	})
	docs := NewDocs(NewIndex(db, desc), root, codec.NewRegistry())

	items, err := docs.Items(context.Background(), "")
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Items returned %d groups, want 2", len(items))
	}
	if items[0].Key != "Observation" || len(items[0].Docs) != 2 {
		t.Errorf("Items[0] = %+v, want Observation with 2 docs", items[0])
	}
}

func TestDocsAll(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "Patient/1.json", map[string]any{"v": 1})

	desc := uniqueDesc()
	db := setupTestDB(t, desc, [][2]string{{"ada@example.com", "Patient/1.json"}})
	docs := NewDocs(NewIndex(db, desc), root, codec.NewRegistry())

	all, err := docs.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("All returned %d docs, want 1", len(all))
	}
}
