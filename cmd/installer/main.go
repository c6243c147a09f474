// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main provides the termchat installer: seeds ~/.termchat with a
// default config file and an empty conversation history.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/termforge/termchat/internal/config"
	"github.com/termforge/termchat/internal/util"
)

const version = "1.0.0"

func main() {
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--help", "-h":
			printHelp()
			return
		case "--version", "-v":
			fmt.Printf("termchat installer v%s\n", version)
			return
		}
	}

	fmt.Println()
	fmt.Println("termchat setup")
	fmt.Println("==============")
	fmt.Println()

	if err := install(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func install() error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	if err := config.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	fmt.Printf("  config directory  %s\n", dir)

	cfg := config.Default()

	// Only prompt when attached to an interactive terminal.
	if term.IsTerminal(int(os.Stdin.Fd())) {
		promptChoices(cfg)
	}

	cfgPath, err := config.Path()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(cfgPath); statErr == nil {
		fmt.Printf("  config file       %s (kept existing)\n", cfgPath)
	} else {
		if err := config.SaveTOML(cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("  config file       %s (created)\n", cfgPath)
	}

	historyPath, err := config.HistoryPath()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(historyPath); statErr == nil {
		fmt.Printf("  history file      %s (kept existing)\n", historyPath)
	} else {
		if err := util.AtomicWriteFile(historyPath, []byte("[]"), 0644); err != nil {
			return err
		}
		fmt.Printf("  history file      %s (created)\n", historyPath)
	}

	fmt.Println()
	fmt.Println("Done. Run termchat to start chatting.")
	return nil
}

// promptChoices asks for the backend and model, keeping defaults on empty
// input.
func promptChoices(cfg *config.Config) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("Backend [ollama/openai/echo] (default %s): ", cfg.Provider)
	if answer := readLine(reader); answer != "" {
		switch answer {
		case "ollama", "openai", "echo":
			cfg.Provider = answer
		default:
			fmt.Printf("  unknown backend %q, keeping %s\n", answer, cfg.Provider)
		}
	}

	switch cfg.Provider {
	case "ollama":
		fmt.Printf("Model (default %s): ", cfg.Ollama.Model)
		if answer := readLine(reader); answer != "" {
			cfg.Ollama.Model = answer
		}
	case "openai":
		fmt.Printf("Model (default %s): ", cfg.Cloud.Model)
		if answer := readLine(reader); answer != "" {
			cfg.Cloud.Model = answer
		}
		fmt.Print("API key (empty for local servers): ")
		if answer := readLine(reader); answer != "" {
			cfg.Cloud.APIKey = answer
		}
	}
	fmt.Println()
}

func readLine(reader *bufio.Reader) string {
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func printHelp() {
	fmt.Println(`termchat installer v` + version + `

Usage: termchat-installer [OPTIONS]

Options:
  --help, -h     Show this help
  --version, -v  Show version

Creates ~/.termchat with a default config.toml and an empty history.json.
Existing files are left untouched.`)
}
