package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rubii22/chatbot-for-todoapp/examples"
)

// runInit initializes a todochat working directory with a starter config.
// Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(w, "%s already exists, leaving it alone\n", configPath)
		return nil
	}

	// 0600: the config references the API key and token signing secret.
	if err := os.WriteFile(configPath, examples.ConfigYAML, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}

	fmt.Fprintf(w, "Wrote %s\n", configPath)
	fmt.Fprintln(w, "Set OPENROUTER_API_KEY and TODOCHAT_AUTH_SECRET, then run 'todochat serve'.")
	return nil
}
