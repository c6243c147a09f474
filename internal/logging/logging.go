// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures structured file logging.
//
// The TUI owns stdout, so all logging goes to a file under ~/.termchat.
// Components derive their own logger through ForComponent.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup initializes the global logger writing to the given file. An empty
// path or an unopenable file disables logging rather than failing startup.
func Setup(path string, level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = io.Discard
	if path != "" {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr == nil {
			f, openErr := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if openErr == nil {
				w = f
			} else {
				err = openErr
			}
		}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return err
}

// ForComponent returns a logger tagged with the component name.
func ForComponent(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
