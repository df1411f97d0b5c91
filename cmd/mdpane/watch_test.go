package main

import (
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/mdpane/internal/persist"
	"pkt.systems/mdpane/internal/tabstore"
)

func TestOpenOrReloadReusesSavedTab(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(file, []byte("v1"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	state, err := persist.NewStore(filepath.Join(dir, "state"))
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	first := tabstore.New(tabstore.Options{State: state, Workspace: "w"})
	if err := openOrReload(first, file); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := os.WriteFile(file, []byte("v2"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	second := tabstore.New(tabstore.Options{State: state, Workspace: "w"})
	if ok, err := second.Load(); err != nil || !ok {
		t.Fatalf("load: %v %v", ok, err)
	}
	if err := openOrReload(second, file); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	tabs := second.Tabs()
	if len(tabs) != 1 {
		t.Fatalf("expected the saved tab reused, got %d tabs", len(tabs))
	}
	if tabs[0].Content != "v2" || second.ActiveTabID() != tabs[0].ID {
		t.Fatalf("expected reloaded active tab, got %q", tabs[0].Content)
	}
}
