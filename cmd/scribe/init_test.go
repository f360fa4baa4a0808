package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/scribeagent/scribe/internal/config"
)

func TestRunInit_CreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	if err := run(context.Background(), &out, &out, []string{"init", dir}); err != nil {
		t.Fatalf("init: %v", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "prompts", "system.md")); err != nil {
		t.Fatalf("prompts/system.md not created: %v", err)
	}

	// The shipped example must parse with the real loader.
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load generated config: %v", err)
	}
	if cfg.Listen.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Listen.Port)
	}
	if cfg.WordPress.URL != "https://example.com" {
		t.Errorf("wordpress url = %q", cfg.WordPress.URL)
	}
	if len(cfg.Models.Available) == 0 {
		t.Error("no models in example config")
	}
}

func TestRunInit_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("listen:\n  port: 9999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := run(context.Background(), &out, &out, []string{"init", dir}); err != nil {
		t.Fatalf("init: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Listen.Port != 9999 {
		t.Errorf("port = %d, existing config was overwritten", cfg.Listen.Port)
	}
}
