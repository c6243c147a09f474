// termchat - a streaming terminal chat client.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/termforge/termchat/internal/cache"
	"github.com/termforge/termchat/internal/config"
	"github.com/termforge/termchat/internal/controller"
	"github.com/termforge/termchat/internal/logging"
	"github.com/termforge/termchat/internal/provider"
	"github.com/termforge/termchat/internal/storage"
	"github.com/termforge/termchat/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async refresh notifications. Background
// goroutines deliver state changes through p.Send; Bubble Tea marshals
// them onto its own loop.
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func sendToProgram(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "print version and exit")
		debugMode   = flag.Bool("debug", false, "use the echo backend instead of a model")
		configPath  = flag.String("config", "", "config file path (default ~/.termchat/config.toml)")
		logLevel    = flag.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("termchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfgPath := *configPath
	if cfgPath == "" {
		p, err := config.Path()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfgPath = p
	}

	cfg, err := config.LoadFromPath(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *debugMode {
		cfg.Provider = "echo"
	}

	logPath, _ := config.LogPath()
	if err := logging.Setup(logPath, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	log.Info().Str("version", Version).Str("provider", cfg.Provider).Msg("termchat starting")

	if err := run(cfg, cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, cfgPath string) error {
	historyPath, err := config.HistoryPath()
	if err != nil {
		return err
	}
	store, err := storage.NewStore(storage.NewHistoryFile(historyPath))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	prov, err := provider.New(cfg)
	if err != nil {
		return err
	}

	var respCache *cache.Cache
	if cfg.Cache.Enabled {
		cachePath, pathErr := config.CachePath()
		if pathErr == nil {
			ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
			respCache, err = cache.Open(cachePath, ttl, cfg.Cache.MaxEntries)
			if err != nil {
				log.Warn().Err(err).Msg("response cache disabled")
				respCache = nil
			}
		}
	}
	if respCache != nil {
		defer respCache.Close()
	}

	ctrl := controller.New(store, prov, respCache, cfg, func(id string, r controller.Reason) {
		sendToProgram(chat.RefreshMsg{ConversationID: id, Reason: r})
	})
	ctrl.SelectInitial()

	p := tea.NewProgram(
		chat.New(ctrl, cfg),
		tea.WithAltScreen(),
	)
	programMu.Lock()
	programRef = p
	programMu.Unlock()

	watcher, err := config.NewWatcher(cfgPath, func(next *config.Config) {
		sendToProgram(chat.ConfigReloadedMsg{Config: next})
	})
	if err == nil {
		if watchErr := watcher.Watch(); watchErr != nil {
			log.Warn().Err(watchErr).Msg("config watch unavailable")
		}
		defer watcher.Close()
	} else {
		log.Warn().Err(err).Msg("config watcher unavailable")
	}

	_, err = p.Run()
	return err
}
