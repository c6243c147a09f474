// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
)

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation_Greeting(t *testing.T) {
	conv := NewConversation("conv_1", "Welcome!")

	if conv.TurnCount() != 1 {
		t.Fatalf("TurnCount = %d, want 1", conv.TurnCount())
	}
	greeting := conv.ExchangeAt(0)
	if greeting == nil {
		t.Fatal("greeting exchange missing")
	}
	if text, ok := greeting.ModelText(); !ok || text != "Welcome!" {
		t.Errorf("greeting model text = %q, %v; want %q, true", text, ok, "Welcome!")
	}
	if greeting.UserText() != "" {
		t.Errorf("greeting user text = %q, want empty", greeting.UserText())
	}
	if greeting.Pending {
		t.Error("greeting should not be pending")
	}
}

func TestNewConversation_DefaultGreeting(t *testing.T) {
	conv := NewConversation("conv_1", "")
	if text, _ := conv.ExchangeAt(0).ModelText(); text != DefaultGreeting {
		t.Errorf("greeting = %q, want default", text)
	}
}

func TestAppendExchange(t *testing.T) {
	conv := NewConversation("conv_1", "")

	idx := conv.AppendExchange("Hello")
	if idx != 1 {
		t.Errorf("index = %d, want 1", idx)
	}

	ex := conv.ExchangeAt(idx)
	if ex.UserText() != "Hello" {
		t.Errorf("user text = %q, want %q", ex.UserText(), "Hello")
	}
	if !ex.Pending {
		t.Error("new exchange should be pending")
	}
	if ex.Model != nil {
		t.Error("new exchange should have no model reply")
	}
	if ex.GenID != "" {
		t.Error("ticket placeholder should be empty until minted")
	}
}

func TestExchangeAt_OutOfRange(t *testing.T) {
	conv := NewConversation("conv_1", "")
	if conv.ExchangeAt(-1) != nil {
		t.Error("negative index should return nil")
	}
	if conv.ExchangeAt(1) != nil {
		t.Error("past-end index should return nil")
	}
}

func TestUnansweredBefore(t *testing.T) {
	conv := NewConversation("conv_1", "")

	// Answered turn.
	i := conv.AppendExchange("first")
	conv.ExchangeAt(i).Model = NewModelMessageWithText("reply")
	conv.ExchangeAt(i).Pending = false

	// Orphaned turn (no reply).
	conv.AppendExchange("second")

	// Current turn.
	idx := conv.AppendExchange("third")

	got := conv.UnansweredBefore(idx)
	if len(got) != 1 || got[0] != "second" {
		t.Errorf("UnansweredBefore = %v, want [second]", got)
	}
}

func TestUnansweredBefore_SkipsGreeting(t *testing.T) {
	conv := NewConversation("conv_1", "")
	idx := conv.AppendExchange("only")
	if got := conv.UnansweredBefore(idx); len(got) != 0 {
		t.Errorf("UnansweredBefore = %v, want empty", got)
	}
}

func TestNeedsResume(t *testing.T) {
	tests := []struct {
		name string
		ex   *Exchange
		want bool
	}{
		{"abandoned", &Exchange{User: NewUserMessage("hi"), Pending: false}, true},
		{"in flight", &Exchange{User: NewUserMessage("hi"), Pending: true}, false},
		{"answered", &Exchange{User: NewUserMessage("hi"), Model: NewModelMessageWithText("yo")}, false},
		{"empty user", &Exchange{User: NewModelMessage(), Pending: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ex.NeedsResume(); got != tt.want {
				t.Errorf("NeedsResume = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResetPendingOrphans(t *testing.T) {
	conv := NewConversation("conv_1", "")

	i := conv.AppendExchange("answered")
	conv.ExchangeAt(i).Model = NewModelMessageWithText("reply")

	j := conv.AppendExchange("orphan")
	conv.ExchangeAt(j).GenID = "dead-ticket"

	if !conv.ResetPendingOrphans(nil) {
		t.Fatal("expected changes")
	}

	orphan := conv.ExchangeAt(j)
	if orphan.Pending {
		t.Error("orphan should no longer be pending")
	}
	if orphan.GenID != "" {
		t.Error("orphan ticket should be cleared")
	}
	if orphan.Model != nil {
		t.Error("no model text may be fabricated")
	}

	// Answered exchange untouched; pending stays true there is impossible,
	// but the reply must survive.
	if text, _ := conv.ExchangeAt(i).ModelText(); text != "reply" {
		t.Error("answered exchange must be untouched")
	}

	if conv.ResetPendingOrphans(nil) {
		t.Error("second pass should be a no-op")
	}
}

func TestResetPendingOrphans_KeepsLiveRuns(t *testing.T) {
	conv := NewConversation("conv_1", "")

	i := conv.AppendExchange("in flight")
	conv.ExchangeAt(i).GenID = "live-ticket"

	j := conv.AppendExchange("orphan")
	conv.ExchangeAt(j).GenID = "dead-ticket"

	keep := func(genID string) bool { return genID == "live-ticket" }
	if !conv.ResetPendingOrphans(keep) {
		t.Fatal("expected the dead slot to change")
	}

	inFlight := conv.ExchangeAt(i)
	if !inFlight.Pending || inFlight.GenID != "live-ticket" {
		t.Error("slot with a live run must be left alone")
	}
	if orphan := conv.ExchangeAt(j); orphan.Pending || orphan.GenID != "" {
		t.Error("dead slot should be cleared")
	}
}

func TestValid(t *testing.T) {
	good := NewConversation("conv_1", "")
	if !good.Valid() {
		t.Error("fresh conversation should be valid")
	}

	noID := NewConversation("", "")
	noID.ID = ""
	if noID.Valid() {
		t.Error("missing id should be invalid")
	}

	broken := NewConversation("conv_2", "")
	broken.Messages = append(broken.Messages, &Exchange{})
	if broken.Valid() {
		t.Error("exchange without user half should be invalid")
	}
}

func TestClone_Independent(t *testing.T) {
	conv := NewConversation("conv_1", "")
	idx := conv.AppendExchange("hello")

	clone := conv.Clone()
	conv.ExchangeAt(idx).User.AppendFragment(" more")
	conv.Title = "changed"

	if clone.Title == "changed" {
		t.Error("clone shares title")
	}
	if clone.ExchangeAt(idx).UserText() != "hello" {
		t.Error("clone shares message parts")
	}
}

// =============================================================================
// JSON CONTRACT
// =============================================================================

func TestJSONFieldNames(t *testing.T) {
	conv := NewConversation("conv_1", "")
	i := conv.AppendExchange("hi")
	conv.ExchangeAt(i).GenID = "ticket-1"
	conv.Title = "Test"

	data, err := json.Marshal(conv)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	for _, field := range []string{`"id"`, `"timestamp"`, `"title"`, `"messages"`, `"user"`, `"model"`, `"ai_pending"`, `"gen_id"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("serialized form missing %s: %s", field, data)
		}
	}
}

func TestMessageText_MultiPart(t *testing.T) {
	msg := NewModelMessage()
	msg.AppendFragment("Hi")
	msg.AppendFragment(" there")
	msg.AppendFragment("")

	if msg.Text() != "Hi there" {
		t.Errorf("Text = %q, want %q", msg.Text(), "Hi there")
	}
	if len(msg.Parts) != 3 {
		t.Errorf("parts = %d, want 3 (empty fragments kept)", len(msg.Parts))
	}
}
