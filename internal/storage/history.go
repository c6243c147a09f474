// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/termforge/termchat/internal/model"
	"github.com/termforge/termchat/internal/util"
)

// =============================================================================
// HISTORY FILE BACKEND
// =============================================================================

// Backend is the durable storage collaborator consumed by the Store. It
// treats history as a whole document; no incremental append is assumed.
type Backend interface {
	// LoadAll reads every stored conversation, in stored order.
	LoadAll() ([]*model.Conversation, error)

	// SaveAll replaces the stored document with the given conversations.
	SaveAll(convs []*model.Conversation) error
}

// HistoryFile is the JSON-file Backend. The document is a single array of
// conversation records.
type HistoryFile struct {
	Path string
}

// NewHistoryFile creates a file backend at the given path.
func NewHistoryFile(path string) *HistoryFile {
	return &HistoryFile{Path: path}
}

// LoadAll reads the history document. A missing file is created empty.
// Structurally corrupt records are skipped with a warning instead of
// aborting the whole load; a fully unreadable document yields an empty
// history rather than an error, so a damaged file never blocks startup.
func (h *HistoryFile) LoadAll() ([]*model.Conversation, error) {
	data, err := os.ReadFile(h.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := util.AtomicWriteFile(h.Path, []byte("[]"), 0644); werr != nil {
				return nil, errors.Wrap(werr, "creating history file")
			}
			return []*model.Conversation{}, nil
		}
		return nil, errors.Wrap(err, "reading history file")
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn().Str("path", h.Path).Err(err).Msg("history document unreadable, starting empty")
		return []*model.Conversation{}, nil
	}

	convs := make([]*model.Conversation, 0, len(raw))
	for i, rec := range raw {
		var conv model.Conversation
		if err := json.Unmarshal(rec, &conv); err != nil {
			log.Warn().Int("record", i).Err(err).Msg("skipping malformed conversation record")
			continue
		}
		if !conv.Valid() {
			log.Warn().Int("record", i).Str("id", conv.ID).Msg("skipping structurally invalid conversation record")
			continue
		}
		convs = append(convs, &conv)
	}
	return convs, nil
}

// SaveAll atomically rewrites the history document.
func (h *HistoryFile) SaveAll(convs []*model.Conversation) error {
	if convs == nil {
		convs = []*model.Conversation{}
	}
	data, err := json.MarshalIndent(convs, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding history document")
	}
	if err := util.AtomicWriteFile(h.Path, data, 0644); err != nil {
		return errors.Wrap(err, "writing history file")
	}
	return nil
}
