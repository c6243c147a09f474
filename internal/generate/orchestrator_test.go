// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/termforge/termchat/internal/model"
	"github.com/termforge/termchat/internal/provider"
	"github.com/termforge/termchat/internal/storage"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// memBackend keeps history in memory and counts durable writes.
type memBackend struct {
	mu    sync.Mutex
	saves int
}

func (b *memBackend) LoadAll() ([]*model.Conversation, error) { return nil, nil }

func (b *memBackend) SaveAll(convs []*model.Conversation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves++
	return nil
}

func (b *memBackend) saveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// fakeProvider streams a scripted fragment sequence. When gate is non-nil,
// each fragment waits for one gate release first.
type fakeProvider struct {
	fragments []provider.Fragment
	gate      chan struct{}
	streamErr error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) StreamGenerate(ctx context.Context, history []provider.Message) (<-chan provider.Fragment, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	out := make(chan provider.Fragment)
	go func() {
		defer close(out)
		for _, frag := range f.fragments {
			if f.gate != nil {
				select {
				case <-f.gate:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- frag:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeProvider) StaticGenerate(ctx context.Context, prompt string) (string, error) {
	return "static", nil
}

// setupRun seeds a one-turn conversation with its ticket already minted onto
// the slot, the way the controller hands a run off.
func setupRun(t *testing.T, prov provider.Provider, notify func(string)) (*Orchestrator, *storage.Store, *memBackend, Ticket) {
	t.Helper()
	backend := &memBackend{}
	store, err := storage.NewStore(backend)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	conv := model.NewConversation("conv_1", "")
	idx := conv.AppendExchange("Hello")
	ticket := Mint(conv.ID, idx)
	conv.ExchangeAt(idx).GenID = ticket.ID
	store.Upsert(conv)
	backend.mu.Lock()
	backend.saves = 0
	backend.mu.Unlock()

	orch := NewOrchestrator(store, prov, 0, notify)
	return orch, store, backend, ticket
}

// =============================================================================
// TICKET TESTS
// =============================================================================

func TestTicket_MintAndLiveness(t *testing.T) {
	conv := model.NewConversation("conv_1", "")
	idx := conv.AppendExchange("hi")

	ticket := Mint("conv_1", idx)
	if ticket.ID == "" {
		t.Fatal("ticket id empty")
	}

	// Not live until written onto the slot.
	if IsLive(conv, ticket) {
		t.Error("unminted ticket should not be live")
	}

	conv.ExchangeAt(idx).GenID = ticket.ID
	if !IsLive(conv, ticket) {
		t.Error("stored ticket should be live")
	}

	// A newer ticket invalidates the old one.
	newer := Mint("conv_1", idx)
	conv.ExchangeAt(idx).GenID = newer.ID
	if IsLive(conv, ticket) {
		t.Error("superseded ticket should be dead")
	}
	if !IsLive(conv, newer) {
		t.Error("newer ticket should be live")
	}
}

func TestTicket_DeadForMissingSlot(t *testing.T) {
	conv := model.NewConversation("conv_1", "")
	ticket := Mint("conv_1", 99)
	if IsLive(conv, ticket) {
		t.Error("ticket for missing turn should be dead")
	}
	if IsLive(nil, ticket) {
		t.Error("ticket for missing conversation should be dead")
	}
	other := Mint("conv_other", 0)
	if IsLive(conv, other) {
		t.Error("ticket for another conversation should be dead")
	}
}

// =============================================================================
// ORCHESTRATOR TESTS
// =============================================================================

// Submit on a fresh conversation: fragments accumulate in order, the turn
// finishes un-pending, and exactly one durable write happens.
func TestRun_HappyPath(t *testing.T) {
	prov := &fakeProvider{fragments: []provider.Fragment{{Text: "Hi"}, {Text: " there"}}}
	orch, store, backend, ticket := setupRun(t, prov, nil)

	state := orch.Run(ticket, "Hello")
	if state != StateFinalized {
		t.Fatalf("state = %v, want finalized", state)
	}

	ex := store.Snapshot("conv_1").ExchangeAt(ticket.TurnIndex)
	if text, _ := ex.ModelText(); text != "Hi there" {
		t.Errorf("model text = %q, want %q", text, "Hi there")
	}
	if ex.Pending {
		t.Error("pending should be cleared at finalize")
	}
	if ex.GenID != ticket.ID {
		t.Error("slot should still carry the run's ticket")
	}
	if got := backend.saveCount(); got != 1 {
		t.Errorf("durable writes = %d, want exactly 1", got)
	}
}

// A newer ticket minted mid-stream suppresses the older run: no further
// fragments land and nothing is persisted.
func TestRun_SupersededMidStream(t *testing.T) {
	gate := make(chan struct{})
	prov := &fakeProvider{
		fragments: []provider.Fragment{{Text: "A1"}, {Text: "A2"}},
		gate:      gate,
	}

	notifyCh := make(chan struct{}, 16)
	orch, store, backend, ticket := setupRun(t, prov, func(string) {
		notifyCh <- struct{}{}
	})

	done := make(chan State, 1)
	go func() {
		done <- orch.Run(ticket, "Hello")
	}()

	// First notification is the init refresh.
	<-notifyCh

	// Release the first fragment and wait for it to land.
	gate <- struct{}{}
	<-notifyCh

	// Simulate a regeneration minting a newer ticket for the slot, then
	// let the provider emit its second fragment.
	store.Update("conv_1", func(conv *model.Conversation) bool {
		conv.ExchangeAt(ticket.TurnIndex).GenID = "newer-ticket"
		return false
	})
	gate <- struct{}{}

	state := <-done
	if state != StateAborted {
		t.Fatalf("state = %v, want aborted", state)
	}

	ex := store.Snapshot("conv_1").ExchangeAt(ticket.TurnIndex)
	if text, _ := ex.ModelText(); text != "A1" {
		t.Errorf("model text = %q, want only pre-supersede fragments", text)
	}
	if got := backend.saveCount(); got != 0 {
		t.Errorf("durable writes = %d, want 0 for a superseded run", got)
	}
}

// Deleting the conversation mid-stream kills the run: it aborts without
// writing the conversation back, so the deletion sticks.
func TestRun_DeleteMidStream(t *testing.T) {
	gate := make(chan struct{})
	prov := &fakeProvider{
		fragments: []provider.Fragment{{Text: "B1"}, {Text: "B2"}},
		gate:      gate,
	}

	notifyCh := make(chan struct{}, 16)
	orch, store, backend, ticket := setupRun(t, prov, func(string) {
		notifyCh <- struct{}{}
	})

	done := make(chan State, 1)
	go func() {
		done <- orch.Run(ticket, "Hello")
	}()

	// Init refresh, then the first fragment.
	<-notifyCh
	gate <- struct{}{}
	<-notifyCh

	if !store.Delete("conv_1") {
		t.Fatal("delete failed")
	}
	deleteSaves := backend.saveCount()

	// Let the stream finish; finalize must find the conversation gone.
	close(gate)
	if state := <-done; state != StateAborted {
		t.Fatalf("state = %v, want aborted after delete", state)
	}

	if store.Snapshot("conv_1") != nil {
		t.Error("deleted conversation must stay deleted")
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
	if got := backend.saveCount(); got != deleteSaves {
		t.Errorf("durable writes after delete = %d, want %d (no finalize write)", got, deleteSaves)
	}
}

// Provider stream errors become visible transcript text, not lost output.
func TestRun_ErrorFoldedInline(t *testing.T) {
	prov := &fakeProvider{fragments: []provider.Fragment{
		{Text: "partial"},
		{Err: errors.New("connection reset")},
	}}
	orch, store, backend, ticket := setupRun(t, prov, nil)

	state := orch.Run(ticket, "Hello")
	if state != StateFinalized {
		t.Fatalf("state = %v, want finalized", state)
	}

	ex := store.Snapshot("conv_1").ExchangeAt(ticket.TurnIndex)
	text, _ := ex.ModelText()
	if !strings.HasPrefix(text, "partial") {
		t.Errorf("partial output lost: %q", text)
	}
	if !strings.Contains(text, "connection reset") {
		t.Errorf("error not visible inline: %q", text)
	}
	if ex.Pending {
		t.Error("pending should be cleared")
	}
	if got := backend.saveCount(); got != 1 {
		t.Errorf("durable writes = %d, want 1", got)
	}
}

// A failure starting the stream at all is folded the same way.
func TestRun_StreamStartFailure(t *testing.T) {
	prov := &fakeProvider{streamErr: errors.New("backend down")}
	orch, store, _, ticket := setupRun(t, prov, nil)

	state := orch.Run(ticket, "Hello")
	if state != StateFinalized {
		t.Fatalf("state = %v, want finalized", state)
	}
	text, ok := store.Snapshot("conv_1").ExchangeAt(ticket.TurnIndex).ModelText()
	if !ok || !strings.Contains(text, "backend down") {
		t.Errorf("start failure not folded inline: %q", text)
	}
}

func TestRun_UnknownConversation(t *testing.T) {
	prov := &fakeProvider{}
	orch, _, backend, _ := setupRun(t, prov, nil)

	ticket := Mint("missing", 0)
	if state := orch.Run(ticket, "x"); state != StateAborted {
		t.Errorf("state = %v, want aborted", state)
	}
	if got := backend.saveCount(); got != 0 {
		t.Errorf("durable writes = %d, want 0", got)
	}
}

// The stream timeout guard bounds a stalled provider.
func TestRun_Timeout(t *testing.T) {
	gate := make(chan struct{}) // never released; the provider stalls
	prov := &fakeProvider{
		fragments: []provider.Fragment{{Text: "never"}},
		gate:      gate,
	}

	backend := &memBackend{}
	store, err := storage.NewStore(backend)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	conv := model.NewConversation("conv_1", "")
	idx := conv.AppendExchange("Hello")
	ticket := Mint(conv.ID, idx)
	conv.ExchangeAt(idx).GenID = ticket.ID
	store.Upsert(conv)

	orch := NewOrchestrator(store, prov, 50*time.Millisecond, nil)
	state := orch.Run(ticket, "Hello")
	if state != StateFinalized {
		t.Fatalf("state = %v, want finalized", state)
	}
	text, _ := store.Snapshot("conv_1").ExchangeAt(idx).ModelText()
	if !strings.Contains(text, "timed out") {
		t.Errorf("timeout not folded inline: %q", text)
	}
}

// Concurrent snapshot readers against an active stream: the store's critical
// section keeps them disjoint, so this passes under the race detector.
func TestRun_SnapshotDuringStream(t *testing.T) {
	fragments := make([]provider.Fragment, 200)
	for i := range fragments {
		fragments[i] = provider.Fragment{Text: "x"}
	}
	prov := &fakeProvider{fragments: fragments}
	orch, store, _, ticket := setupRun(t, prov, nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, conv := range store.GetAll() {
				_ = conv.TurnCount()
			}
			_ = store.Snapshot("conv_1")
		}
	}()

	if state := orch.Run(ticket, "Hello"); state != StateFinalized {
		t.Fatalf("state = %v, want finalized", state)
	}
	close(stop)
	wg.Wait()

	text, _ := store.Snapshot("conv_1").ExchangeAt(ticket.TurnIndex).ModelText()
	if len(text) != 200 {
		t.Errorf("model text length = %d, want 200", len(text))
	}
}
