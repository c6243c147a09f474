// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller coordinates the store, generation runs, and the view
// position in response to user actions.
//
// The controller runs on the UI loop. Generation happens on background
// goroutines owned by the orchestrator; their only paths back are the store
// and the refresh callback, which the view layer marshals onto its own
// loop. Tickets are minted here, synchronously, before a run is handed
// off: the order of user actions decides which ticket owns a slot, never
// goroutine scheduling.
package controller

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/termforge/termchat/internal/cache"
	"github.com/termforge/termchat/internal/config"
	"github.com/termforge/termchat/internal/generate"
	"github.com/termforge/termchat/internal/logging"
	"github.com/termforge/termchat/internal/model"
	"github.com/termforge/termchat/internal/paging"
	"github.com/termforge/termchat/internal/provider"
	"github.com/termforge/termchat/internal/storage"
	"github.com/termforge/termchat/internal/util"
)

// =============================================================================
// REFRESH REASONS
// =============================================================================

// Reason tags a refresh notification with what changed, so the view layer
// re-renders only the affected region.
type Reason string

const (
	// ReasonChat: the conversation's transcript changed.
	ReasonChat Reason = "chat"
	// ReasonHistory: the conversation list or a title changed.
	ReasonHistory Reason = "history"
	// ReasonInput: the input lock state changed.
	ReasonInput Reason = "input"
)

// NotifyFunc receives refresh notifications: which conversation changed and
// what about it. May be called from background goroutines.
type NotifyFunc func(conversationID string, reason Reason)

// titlePlaceholder is shown in the history panel while a title generates.
const titlePlaceholder = "Generating title…"

// titleFallback is used when title generation fails.
const titleFallback = "Untitled conversation"

// titleTimeout bounds one background title generation.
const titleTimeout = 30 * time.Second

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller is the façade over the conversation store, the streaming
// orchestrator, and the pagination cursor.
type Controller struct {
	store    *storage.Store
	orch     *generate.Orchestrator
	provider provider.Provider
	cache    *cache.Cache // may be nil
	cfg      *config.Config
	notify   NotifyFunc

	currentID string
	cursor    *paging.Cursor

	// active holds the ticket ids of runs started by this controller that
	// have not returned yet. Reconciliation spares their slots.
	mu     sync.Mutex
	active map[string]struct{}

	logger zerolog.Logger
}

// New creates a controller. respCache may be nil to disable title caching;
// notify may be nil.
func New(store *storage.Store, prov provider.Provider, respCache *cache.Cache, cfg *config.Config, notify NotifyFunc) *Controller {
	c := &Controller{
		store:    store,
		provider: prov,
		cache:    respCache,
		cfg:      cfg,
		notify:   notify,
		active:   make(map[string]struct{}),
		logger:   logging.ForComponent("controller"),
	}
	c.orch = generate.NewOrchestrator(store, prov, cfg.GenerationTimeout(), func(conversationID string) {
		c.emit(conversationID, ReasonChat)
	})
	return c
}

// =============================================================================
// CONVERSATION SELECTION
// =============================================================================

// Current returns a snapshot of the current conversation, or nil when none
// is selected.
func (c *Controller) Current() *model.Conversation {
	if c.currentID == "" {
		return nil
	}
	return c.store.Snapshot(c.currentID)
}

// Cursor returns the pagination cursor for the current conversation.
func (c *Controller) Cursor() *paging.Cursor {
	return c.cursor
}

// CurrentID returns the id of the current conversation, or "".
func (c *Controller) CurrentID() string {
	return c.currentID
}

// Conversations returns a snapshot of all stored conversations in append
// order (oldest first).
func (c *Controller) Conversations() []*model.Conversation {
	return c.store.GetAll()
}

// NewConversation creates and selects a fresh conversation with the
// configured greeting. Returns a snapshot of it.
func (c *Controller) NewConversation() *model.Conversation {
	conv := model.NewConversation(model.NewConversationID(), c.cfg.Generation.Greeting)
	if !c.store.Upsert(conv) {
		c.logger.Warn().Str("conversation", conv.ID).Msg("new conversation not persisted")
	}
	c.currentID = conv.ID
	c.cursor = paging.NewCursor(conv.TurnCount())
	c.emit(conv.ID, ReasonHistory)
	c.emit(conv.ID, ReasonChat)
	return conv.Clone()
}

// SwitchConversation selects a stored conversation by id. Pending flags
// orphaned by a crash are cleared and the correction persisted before the
// conversation is displayed; slots owned by a run that is still in flight
// in this process are left alone. Idempotent; switching to the current
// conversation re-runs reconciliation only.
func (c *Controller) SwitchConversation(id string) bool {
	turns := 0
	found := c.store.Update(id, func(conv *model.Conversation) bool {
		turns = conv.TurnCount()
		// Crash-recovery reconciliation: a pending turn with no model
		// message and no live run means the process died mid-stream.
		// Clear the flag, fabricate nothing; the turn becomes resumable.
		if conv.ResetPendingOrphans(c.isActiveTicket) {
			c.logger.Info().Str("conversation", id).Msg("cleared orphaned pending flags")
			return true
		}
		return false
	})
	if !found {
		c.logger.Warn().Str("conversation", id).Msg("switch refused, not found")
		return false
	}

	c.currentID = id
	c.cursor = paging.NewCursor(turns)
	c.emit(id, ReasonChat)
	c.emit(id, ReasonInput)
	return true
}

// Delete removes a conversation from the index and disk. A run still
// streaming into it finds its slot gone on the next store access and
// aborts without writing. Deleting the current conversation selects the
// most recent remaining one, or creates a fresh one when none remain.
func (c *Controller) Delete(id string) bool {
	if !c.store.Delete(id) {
		return false
	}
	if id == c.currentID {
		c.currentID = ""
		c.cursor = nil
		if all := c.store.GetAll(); len(all) > 0 {
			// Stored order is append order; the last entry is newest.
			c.SwitchConversation(all[len(all)-1].ID)
		} else {
			c.NewConversation()
		}
	}
	c.emit(id, ReasonHistory)
	return true
}

// =============================================================================
// SUBMIT / REGENERATE
// =============================================================================

// Submit appends a user turn to the current conversation, mints its ticket,
// persists it immediately so the text survives a crash, and starts
// generation in the background. Empty input after sanitization is ignored.
func (c *Controller) Submit(text string) bool {
	text = util.SanitizeInput(text)
	if text == "" {
		return false
	}
	if c.currentID == "" {
		c.NewConversation()
	}

	var ticket generate.Ticket
	turns := 0
	title := ""
	ok := c.store.Update(c.currentID, func(conv *model.Conversation) bool {
		index := conv.AppendExchange(text)
		ticket = generate.Mint(conv.ID, index)
		conv.ExchangeAt(index).GenID = ticket.ID
		turns = conv.TurnCount()
		title = conv.Title
		return true
	})
	if !ok {
		return false
	}
	c.cursor.Resize(turns)
	c.cursor.End()
	c.emit(c.currentID, ReasonChat)
	c.emit(c.currentID, ReasonInput)

	c.startRun(ticket, text)

	if c.cfg.Generation.Titles && title == "" {
		go c.generateTitle(c.currentID, text)
	}
	return true
}

// Regenerate re-runs generation for the turn under the cursor against its
// existing user text. The fresh ticket, minted before handoff, invalidates
// any still-running prior generation for that slot.
func (c *Controller) Regenerate() bool {
	if c.currentID == "" || c.cursor == nil {
		return false
	}
	pos := c.cursor.Pos()

	var ticket generate.Ticket
	userText := ""
	c.store.Update(c.currentID, func(conv *model.Conversation) bool {
		ex := conv.ExchangeAt(pos)
		if ex == nil || ex.UserText() == "" {
			return false
		}
		userText = ex.UserText()
		ticket = generate.Mint(conv.ID, pos)
		ex.GenID = ticket.ID
		return false
	})
	if userText == "" {
		return false
	}

	c.startRun(ticket, userText)
	c.emit(c.currentID, ReasonChat)
	return true
}

// startRun records the ticket as active and runs the generation on its own
// goroutine.
func (c *Controller) startRun(t generate.Ticket, userText string) {
	c.mu.Lock()
	c.active[t.ID] = struct{}{}
	c.mu.Unlock()

	go func() {
		c.orch.Run(t, userText)
		c.mu.Lock()
		delete(c.active, t.ID)
		c.mu.Unlock()
	}()
}

// isActiveTicket reports whether a generation run holding this ticket is
// still in flight in this process.
func (c *Controller) isActiveTicket(genID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[genID]
	return ok
}

// =============================================================================
// NAVIGATION
// =============================================================================

// Navigate shifts the view by delta pages. Out-of-bounds moves are rejected
// and report false so the caller skips the refresh. Landing on a turn that
// was abandoned before its response started auto-resumes generation for it.
func (c *Controller) Navigate(delta int) bool {
	if c.cursor == nil {
		return false
	}
	if c.cursor.Move(delta) == paging.Invalid {
		return false
	}
	c.maybeResume()
	c.emit(c.currentID, ReasonChat)
	return true
}

// NavigateEnd jumps to the last turn.
func (c *Controller) NavigateEnd() bool {
	if c.cursor == nil {
		return false
	}
	c.cursor.End()
	c.maybeResume()
	c.emit(c.currentID, ReasonChat)
	return true
}

// maybeResume restarts generation for the turn under the cursor when it has
// user text but generation never started or was abandoned.
func (c *Controller) maybeResume() {
	pos := c.cursor.Pos()

	var ticket generate.Ticket
	userText := ""
	c.store.Update(c.currentID, func(conv *model.Conversation) bool {
		ex := conv.ExchangeAt(pos)
		if ex == nil || !ex.NeedsResume() {
			return false
		}
		userText = ex.UserText()
		ticket = generate.Mint(conv.ID, pos)
		ex.GenID = ticket.ID
		return false
	})
	if userText == "" {
		return
	}

	c.logger.Info().Str("conversation", c.currentID).Int("turn", pos).Msg("auto-resuming abandoned turn")
	c.startRun(ticket, userText)
}

// =============================================================================
// TITLE GENERATION
// =============================================================================

// generateTitle produces a short conversation title in the background from
// the first user prompt. Runs off the UI loop.
func (c *Controller) generateTitle(conversationID, firstPrompt string) {
	if !c.store.Update(conversationID, func(conv *model.Conversation) bool {
		conv.Title = titlePlaceholder
		return false
	}) {
		return
	}
	c.emit(conversationID, ReasonHistory)

	prompt := c.cfg.Generation.TitlePrompt + "\n\n" + firstPrompt

	title, ok := c.cachedTitle(prompt)
	if !ok {
		ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
		defer cancel()

		generated, err := c.provider.StaticGenerate(ctx, prompt)
		if err != nil {
			c.logger.Warn().Err(err).Str("conversation", conversationID).Msg("title generation failed")
			generated = titleFallback
		} else if c.cache != nil {
			c.cache.Put(prompt, generated)
		}
		title = generated
	}

	title = cleanTitle(title)
	if title == "" {
		title = titleFallback
	}
	c.store.UpdateTitle(conversationID, title)
	c.emit(conversationID, ReasonHistory)
}

func (c *Controller) cachedTitle(prompt string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	return c.cache.Get(prompt)
}

// cleanTitle flattens a generated title onto one trimmed line.
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	return strings.Trim(title, `"'`)
}

// =============================================================================
// STARTUP
// =============================================================================

// SelectInitial picks the conversation shown at startup: the most recently
// stored one, or a fresh conversation when the history is empty.
func (c *Controller) SelectInitial() *model.Conversation {
	if all := c.store.GetAll(); len(all) > 0 {
		c.SwitchConversation(all[len(all)-1].ID)
		return c.Current()
	}
	return c.NewConversation()
}

func (c *Controller) emit(conversationID string, r Reason) {
	if c.notify != nil {
		c.notify(conversationID, r)
	}
}
