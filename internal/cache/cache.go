// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides a SQLite-backed cache for static generations.
//
// Streaming chat responses are never cached; the cache serves one-shot
// generations such as conversation titles, where the same prompt recurs.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	prompt_hash TEXT PRIMARY KEY,
	response    TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_responses_created ON responses(created_at);
`

// Cache is a TTL-bounded response cache. Safe for concurrent use; the
// database handle serializes access.
type Cache struct {
	db         *sql.DB
	ttl        time.Duration
	maxEntries int
}

// Open opens (creating if needed) the cache database at path.
func Open(path string, ttl time.Duration, maxEntries int) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cache database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize cache schema")
	}
	return &Cache{db: db, ttl: ttl, maxEntries: maxEntries}, nil
}

// Get returns the cached response for a prompt, if present and fresh.
func (c *Cache) Get(prompt string) (string, bool) {
	var response string
	var createdAt int64
	err := c.db.QueryRow(
		"SELECT response, created_at FROM responses WHERE prompt_hash = ?",
		hashPrompt(prompt),
	).Scan(&response, &createdAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Warn().Err(err).Msg("cache read failed")
		}
		return "", false
	}

	if c.ttl > 0 && time.Since(time.Unix(createdAt, 0)) > c.ttl {
		return "", false
	}
	return response, true
}

// Put stores a response for a prompt, replacing any prior entry, then
// prunes expired and excess rows. Failures are logged and swallowed; the
// cache is advisory.
func (c *Cache) Put(prompt, response string) {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO responses (prompt_hash, response, created_at) VALUES (?, ?, ?)",
		hashPrompt(prompt), response, time.Now().Unix(),
	)
	if err != nil {
		log.Warn().Err(err).Msg("cache write failed")
		return
	}
	c.prune()
}

// prune drops expired entries and trims the table to maxEntries, oldest
// first.
func (c *Cache) prune() {
	if c.ttl > 0 {
		cutoff := time.Now().Add(-c.ttl).Unix()
		if _, err := c.db.Exec("DELETE FROM responses WHERE created_at < ?", cutoff); err != nil {
			log.Warn().Err(err).Msg("cache prune failed")
		}
	}
	if c.maxEntries > 0 {
		_, err := c.db.Exec(`
			DELETE FROM responses WHERE prompt_hash NOT IN (
				SELECT prompt_hash FROM responses ORDER BY created_at DESC LIMIT ?
			)`, c.maxEntries)
		if err != nil {
			log.Warn().Err(err).Msg("cache trim failed")
		}
	}
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func hashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
