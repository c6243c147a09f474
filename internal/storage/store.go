// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/termforge/termchat/internal/model"
)

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store is the thread-safe, in-memory index of conversations, backed by a
// Backend for durability.
//
// Every mutating operation updates the in-memory index and then writes the
// whole document through the backend inside one critical section. A failed
// durable write leaves the index updated anyway: the design favors visible
// freshness over perfect durability, and callers that need the latter must
// check the returned success flag.
//
// Live conversation objects never leave the store: readers get clones
// (GetAll, Snapshot) and writers mutate inside the lock (Update), so
// streaming mutation cannot race the snapshot or persist paths.
type Store struct {
	mu      sync.RWMutex
	backend Backend

	order []*model.Conversation
	index map[string]*model.Conversation
}

// NewStore creates a store and loads existing history from the backend.
func NewStore(backend Backend) (*Store, error) {
	convs, err := backend.LoadAll()
	if err != nil {
		return nil, err
	}

	s := &Store{
		backend: backend,
		order:   make([]*model.Conversation, 0, len(convs)),
		index:   make(map[string]*model.Conversation, len(convs)),
	}
	for _, conv := range convs {
		if _, dup := s.index[conv.ID]; dup {
			log.Warn().Str("id", conv.ID).Msg("dropping duplicate conversation id on load")
			continue
		}
		s.order = append(s.order, conv)
		s.index[conv.ID] = conv
	}
	return s, nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// GetAll returns a snapshot copy of every conversation in stored order,
// safe to iterate without holding any lock.
func (s *Store) GetAll() []*model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Conversation, len(s.order))
	for i, conv := range s.order {
		out[i] = conv.Clone()
	}
	return out
}

// Snapshot returns a deep copy of one conversation, or nil when absent.
func (s *Store) Snapshot(id string) *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.index[id]; ok {
		return conv.Clone()
	}
	return nil
}

// Len returns the number of conversations in the index.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Upsert inserts the conversation if absent, otherwise replaces it in place,
// then persists the whole document. Returns false when the durable write
// failed; the in-memory index is updated regardless.
func (s *Store) Upsert(conv *model.Conversation) bool {
	if conv == nil || conv.ID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.index[conv.ID]; ok {
		if existing != conv {
			for i, c := range s.order {
				if c.ID == conv.ID {
					s.order[i] = conv
					break
				}
			}
			s.index[conv.ID] = conv
		}
	} else {
		s.order = append(s.order, conv)
		s.index[conv.ID] = conv
	}

	return s.persistLocked()
}

// Update runs fn against the live conversation inside the store's critical
// section. All in-place mutation goes through here. When fn returns true
// the whole document is persisted before the lock is released; a failed
// write is logged and the in-memory state kept. Returns false when the
// conversation is not in the index, in which case fn is not called; a run
// finalizing after its conversation was deleted lands nowhere.
func (s *Store) Update(id string, fn func(conv *model.Conversation) (persist bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.index[id]
	if !ok {
		return false
	}
	if fn(conv) {
		s.persistLocked()
	}
	return true
}

// UpdateTitle sets the title of an existing conversation and persists.
// Returns false if the conversation is unknown or the write failed.
func (s *Store) UpdateTitle(id, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.index[id]
	if !ok {
		return false
	}
	conv.Title = title
	return s.persistLocked()
}

// Delete removes a conversation from the index and from durable storage.
// Returns false if the conversation is unknown or the write failed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, c := range s.order {
		if c.ID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.persistLocked()
}

// persistLocked writes the whole document through the backend. Caller must
// hold the write lock.
func (s *Store) persistLocked() bool {
	if err := s.backend.SaveAll(s.order); err != nil {
		log.Error().Err(err).Msg("history write failed")
		return false
	}
	return true
}
