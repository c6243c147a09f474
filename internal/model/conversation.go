// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"time"
)

// DefaultGreeting is the model-authored text shown on page 0 of a new
// conversation when the config does not override it.
const DefaultGreeting = "Hello! How can I assist you today?"

// =============================================================================
// EXCHANGE TYPE
// =============================================================================

// Exchange pairs one user prompt with its (possibly absent) model reply.
//
// Model == nil with Pending == true means generation is in flight, or the
// process died before it completed. Model == nil with Pending == false means
// generation never started or was abandoned; navigating onto such an
// exchange triggers auto-resume.
//
// GenID is the generation ticket currently bound to this slot. Only the
// orchestrator holding the matching ticket may write the model reply;
// overwriting GenID silently invalidates the previous holder.
type Exchange struct {
	User    *Message `json:"user"`
	Model   *Message `json:"model"`
	Pending bool     `json:"ai_pending"`
	GenID   string   `json:"gen_id,omitempty"`
}

// NewExchange creates a pending exchange for the given user text. The ticket
// placeholder stays empty until the controller mints one.
func NewExchange(userText string) *Exchange {
	return &Exchange{
		User:    NewUserMessage(userText),
		Model:   nil,
		Pending: true,
	}
}

// newGreetingExchange creates the greeting slot stored at index 0: a
// model-authored message paired with an empty user message.
func newGreetingExchange(greeting string) *Exchange {
	user := &Message{Role: RoleUser, Parts: make([]Part, 0), Timestamp: time.Now()}
	return &Exchange{
		User:    user,
		Model:   NewModelMessageWithText(greeting),
		Pending: false,
	}
}

// UserText returns the concatenated user prompt text, or "" if absent.
func (e *Exchange) UserText() string {
	return e.User.Text()
}

// ModelText returns the concatenated model reply text and whether a reply
// exists at all.
func (e *Exchange) ModelText() (string, bool) {
	if e.Model == nil {
		return "", false
	}
	return e.Model.Text(), true
}

// Answered reports whether this exchange has a model reply.
func (e *Exchange) Answered() bool {
	return e.Model != nil
}

// NeedsResume reports whether this exchange qualifies for auto-resume: no
// model reply, not currently pending, and a non-empty user prompt.
func (e *Exchange) NeedsResume() bool {
	return e.Model == nil && !e.Pending && e.UserText() != ""
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a complete transcript: the greeting at index 0 followed by
// user/model exchanges. Owned exclusively by the store; the controller and
// orchestrator mutate it inside the store's critical section and read it
// through clones.
type Conversation struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Title     string      `json:"title,omitempty"`
	Messages  []*Exchange `json:"messages"`
}

// NewConversation creates a conversation containing only the greeting.
func NewConversation(id, greeting string) *Conversation {
	if greeting == "" {
		greeting = DefaultGreeting
	}
	return &Conversation{
		ID:        id,
		Timestamp: time.Now(),
		Messages:  []*Exchange{newGreetingExchange(greeting)},
	}
}

// NewConversationID generates a time-derived conversation ID.
func NewConversationID() string {
	return "conv_" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

// TurnCount returns the number of transcript pages (greeting included).
func (c *Conversation) TurnCount() int {
	return len(c.Messages)
}

// ExchangeAt returns the exchange at the given turn index, or nil if the
// index is out of range.
func (c *Conversation) ExchangeAt(index int) *Exchange {
	if index < 0 || index >= len(c.Messages) {
		return nil
	}
	return c.Messages[index]
}

// AppendExchange appends a pending exchange for userText and returns its
// turn index.
func (c *Conversation) AppendExchange(userText string) int {
	c.Messages = append(c.Messages, NewExchange(userText))
	return len(c.Messages) - 1
}

// =============================================================================
// PROMPT CONTEXT
// =============================================================================

// UnansweredBefore collects the user prompt texts of exchanges before index
// that never received a model reply. Interrupted prompts are folded into the
// next request instead of being silently dropped.
func (c *Conversation) UnansweredBefore(index int) []string {
	var texts []string
	if index > len(c.Messages) {
		index = len(c.Messages)
	}
	for i := 1; i < index; i++ {
		ex := c.Messages[i]
		if ex.Model == nil {
			if t := ex.UserText(); t != "" {
				texts = append(texts, t)
			}
		}
	}
	return texts
}

// =============================================================================
// CRASH RECOVERY
// =============================================================================

// ResetPendingOrphans clears the pending flag on every exchange whose model
// reply is absent: a pending flag with no live generation means the process
// died mid-stream. Exchanges whose ticket passes keep are skipped, so runs
// that are still in flight in this process survive reconciliation; pass nil
// when no run can be live (the load-time case). No model text is
// fabricated. Returns true if anything changed.
func (c *Conversation) ResetPendingOrphans(keep func(genID string) bool) bool {
	changed := false
	for i := 1; i < len(c.Messages); i++ {
		ex := c.Messages[i]
		if ex.Model == nil && ex.Pending {
			if keep != nil && keep(ex.GenID) {
				continue
			}
			ex.Pending = false
			ex.GenID = ""
			changed = true
		}
	}
	return changed
}

// =============================================================================
// STRUCTURAL VALIDATION
// =============================================================================

// Valid reports whether a loaded conversation record is structurally usable:
// it has an ID and every exchange carries a user half. Records failing this
// check are skipped on load rather than aborting the whole history.
func (c *Conversation) Valid() bool {
	if c.ID == "" || len(c.Messages) == 0 {
		return false
	}
	for _, ex := range c.Messages {
		if ex == nil || ex.User == nil {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the conversation. Store snapshots hand out
// clones so callers can iterate without holding the store lock.
func (c *Conversation) Clone() *Conversation {
	out := &Conversation{
		ID:        c.ID,
		Timestamp: c.Timestamp,
		Title:     c.Title,
		Messages:  make([]*Exchange, len(c.Messages)),
	}
	for i, ex := range c.Messages {
		out.Messages[i] = &Exchange{
			User:    cloneMessage(ex.User),
			Model:   cloneMessage(ex.Model),
			Pending: ex.Pending,
			GenID:   ex.GenID,
		}
	}
	return out
}

func cloneMessage(m *Message) *Message {
	if m == nil {
		return nil
	}
	out := &Message{Role: m.Role, Timestamp: m.Timestamp, Parts: make([]Part, len(m.Parts))}
	copy(out.Parts, m.Parts)
	return out
}
