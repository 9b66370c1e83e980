package store

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/keredson/shadb/internal/codec"
	"github.com/keredson/shadb/internal/gitexec"
	"github.com/keredson/shadb/internal/index"
)

func setupTestStore(t *testing.T) (*Store, *gitexec.Client) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found on PATH")
	}

	dir := t.TempDir()
	git := gitexec.New(dir)
	ctx := context.Background()
	if err := git.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, kv := range [][2]string{{"user.email", "test@example.com"}, {"user.name", "Test"}} {
		cmd := exec.CommandContext(ctx, "git", "config", kv[0], kv[1])
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git config %s: %v\n%s", kv[0], err, out)
		}
	}
	return New(dir, git, codec.NewRegistry()), git
}

func TestWriteUsesUniqueSignature(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	uniques := []index.Descriptor{{Name: "by_email", Unique: true, Projection: index.FieldProjection("email")}}
	w, err := s.Write(ctx, map[string]any{"email": "ada@example.com", "v": 1}, uniques)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !w.New {
		t.Error("first write should report New=true")
	}
	want := filepath.Join("obj", "a", "d", "a", "@", "obj-by_email-ada@example.com.json")
	if w.Path != want {
		t.Errorf("Path = %q, want %q", w.Path, want)
	}

	raw, err := os.ReadFile(filepath.Join(s.root, w.Path))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["email"] != "ada@example.com" {
		t.Errorf("written doc email = %v, want ada@example.com", m["email"])
	}
}

func TestWriteTwiceSamePathIsNotNewSecondTime(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	uniques := []index.Descriptor{{Name: "by_id", Unique: true, Projection: index.FieldProjection("id")}}
	w1, err := s.Write(ctx, map[string]any{"id": "same", "v": 1}, uniques)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	w2, err := s.Write(ctx, map[string]any{"id": "same", "v": 2}, uniques)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w1.Path != w2.Path {
		t.Fatalf("paths differ: %q != %q", w1.Path, w2.Path)
	}
	if w2.New {
		t.Error("second write to the same signature should report New=false")
	}
}

func TestWriteRandomSignatureWithoutUniques(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	w, err := s.Write(ctx, map[string]any{"v": 1}, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.Path == "" {
		t.Fatal("expected a non-empty generated path")
	}
}

func TestWriteAutoAssignsMissingField(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	uniques := []index.Descriptor{{
		Name:       "by_id",
		Unique:     true,
		Auto:       func() string { return "generated-id" },
		Projection: index.FieldProjection("id"),
	}}
	w, err := s.Write(ctx, map[string]any{"v": 1}, uniques)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(s.root, w.Path))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["id"] != "generated-id" {
		t.Errorf("auto-assigned id = %v, want generated-id", m["id"])
	}
}

func TestRemove(t *testing.T) {
	s, git := setupTestStore(t)
	ctx := context.Background()

	uniques := []index.Descriptor{{Name: "by_id", Unique: true, Projection: index.FieldProjection("id")}}
	w, err := s.Write(ctx, map[string]any{"id": "gone"}, uniques)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := git.Commit(ctx, "initial"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := s.Remove(ctx, w.Path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, w.Path)); !os.IsNotExist(err) {
		t.Error("removed file should no longer exist on disk")
	}
}
