// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/termforge/termchat/internal/model"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	store, err := NewStore(NewHistoryFile(path))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store, path
}

// =============================================================================
// STORE TESTS
// =============================================================================

func TestStore_EmptyHistory(t *testing.T) {
	store, path := newTestStore(t)

	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
	// Missing document is created as an empty list.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("history file not created: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("empty document = %q, want []", data)
	}
}

func TestStore_UpsertAndReload(t *testing.T) {
	store, path := newTestStore(t)

	conv := model.NewConversation("conv_1", "")
	conv.AppendExchange("hello")
	if !store.Upsert(conv) {
		t.Fatal("Upsert reported failure")
	}

	// A fresh store over the same file sees the conversation.
	reloaded, err := NewStore(NewHistoryFile(path))
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got := reloaded.Snapshot("conv_1")
	if got == nil {
		t.Fatal("conversation lost across reload")
	}
	if got.TurnCount() != 2 {
		t.Errorf("TurnCount = %d, want 2", got.TurnCount())
	}
	if got.ExchangeAt(1).UserText() != "hello" {
		t.Errorf("user text = %q, want hello", got.ExchangeAt(1).UserText())
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	store, _ := newTestStore(t)

	store.Upsert(model.NewConversation("conv_1", ""))
	replacement := model.NewConversation("conv_1", "")
	replacement.Title = "replaced"
	store.Upsert(replacement)

	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
	if got := store.Snapshot("conv_1"); got.Title != "replaced" {
		t.Errorf("Title = %q, want replaced", got.Title)
	}
}

func TestStore_Snapshot_Missing(t *testing.T) {
	store, _ := newTestStore(t)
	if store.Snapshot("nope") != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestStore_Snapshot_IsClone(t *testing.T) {
	store, _ := newTestStore(t)
	store.Upsert(model.NewConversation("conv_1", ""))

	snap := store.Snapshot("conv_1")
	snap.Title = "mutated"

	if store.Snapshot("conv_1").Title == "mutated" {
		t.Error("Snapshot must return a clone, not the live pointer")
	}
}

func TestStore_Update(t *testing.T) {
	store, path := newTestStore(t)
	store.Upsert(model.NewConversation("conv_1", ""))

	ok := store.Update("conv_1", func(conv *model.Conversation) bool {
		conv.AppendExchange("hello")
		return true
	})
	if !ok {
		t.Fatal("Update reported the conversation missing")
	}

	// Persisted under the same lock: a fresh store sees the mutation.
	reloaded, err := NewStore(NewHistoryFile(path))
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := reloaded.Snapshot("conv_1"); got == nil || got.TurnCount() != 2 {
		t.Error("Update with persist=true must write the mutation to disk")
	}
}

func TestStore_Update_NoPersist(t *testing.T) {
	store, path := newTestStore(t)
	store.Upsert(model.NewConversation("conv_1", ""))

	store.Update("conv_1", func(conv *model.Conversation) bool {
		conv.AppendExchange("in memory only")
		return false
	})

	if got := store.Snapshot("conv_1"); got.TurnCount() != 2 {
		t.Error("mutation should be visible in memory")
	}
	reloaded, err := NewStore(NewHistoryFile(path))
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := reloaded.Snapshot("conv_1"); got.TurnCount() != 1 {
		t.Error("persist=false must not touch the document")
	}
}

func TestStore_Update_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	called := false
	if store.Update("nope", func(conv *model.Conversation) bool {
		called = true
		return true
	}) {
		t.Error("Update should report an unknown id")
	}
	if called {
		t.Error("fn must not run for an unknown id")
	}
}

func TestStore_GetAll_Snapshot(t *testing.T) {
	store, _ := newTestStore(t)
	store.Upsert(model.NewConversation("conv_1", ""))

	snap := store.GetAll()
	snap[0].Title = "mutated"

	if store.Snapshot("conv_1").Title == "mutated" {
		t.Error("GetAll must return clones, not live pointers")
	}
}

func TestStore_UpdateTitle(t *testing.T) {
	store, _ := newTestStore(t)
	store.Upsert(model.NewConversation("conv_1", ""))

	if !store.UpdateTitle("conv_1", "My chat") {
		t.Fatal("UpdateTitle reported failure")
	}
	if got := store.Snapshot("conv_1").Title; got != "My chat" {
		t.Errorf("Title = %q, want My chat", got)
	}
	if store.UpdateTitle("missing", "x") {
		t.Error("UpdateTitle should fail for unknown id")
	}
}

func TestStore_Delete(t *testing.T) {
	store, path := newTestStore(t)
	store.Upsert(model.NewConversation("conv_1", ""))
	store.Upsert(model.NewConversation("conv_2", ""))

	if !store.Delete("conv_1") {
		t.Fatal("Delete reported failure")
	}
	if store.Snapshot("conv_1") != nil {
		t.Error("deleted conversation still in index")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
	if store.Delete("conv_1") {
		t.Error("second delete should fail")
	}

	// Deletion is durable.
	reloaded, err := NewStore(NewHistoryFile(path))
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Snapshot("conv_1") != nil {
		t.Error("deleted conversation came back after reload")
	}
}

// =============================================================================
// CORRUPTION HANDLING
// =============================================================================

func TestHistoryFile_SkipsCorruptRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	doc := `[
		{"id":"conv_good","timestamp":"2025-01-02T10:00:00Z","messages":[{"user":{"role":"user","parts":[{"text":"hi"}],"timestamp":"2025-01-02T10:00:00Z"},"model":null,"ai_pending":false}]},
		{"id":"","messages":[]},
		"not an object"
	]`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(NewHistoryFile(path))
	if err != nil {
		t.Fatalf("load should not fail on bad records: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1 (bad records skipped)", store.Len())
	}
	if store.Snapshot("conv_good") == nil {
		t.Error("good record should survive")
	}
}

func TestHistoryFile_UnreadableDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{{{{"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(NewHistoryFile(path))
	if err != nil {
		t.Fatalf("unreadable document should degrade to empty history: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
}
