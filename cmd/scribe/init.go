package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/scribeagent/scribe/examples"
)

// runInit initializes a Scribe working directory with default files.
// Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing Scribe workspace in %s\n", dir)

	promptsDir := filepath.Join(dir, "prompts")
	if err := os.MkdirAll(promptsDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", promptsDir, err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := writeIfMissing(configPath, examples.ConfigYAML); err != nil {
		return err
	}
	fmt.Fprintf(w, "  %s\n", configPath)

	systemPath := filepath.Join(promptsDir, "system.md")
	if err := writeIfMissing(systemPath, examples.SystemMD); err != nil {
		return err
	}
	fmt.Fprintf(w, "  %s\n", systemPath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml with your site URL and credentials, then run: scribe serve")
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist, so init never overwrites user customizations.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, content, 0o644)
}
