package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ct2mcnp/pkg/config"
)

// TestInitWritesExample verifies init writes a configuration that loads back
func TestInitWritesExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.toml")
	Root.SetArgs([]string{"init", "--config", path})
	if err := Root.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load written config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Written config is invalid: %v", err)
	}
}

// TestVersion verifies the version subcommand output
func TestVersion(t *testing.T) {
	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), Version) {
		t.Errorf("Expected version %s in output, got %q", Version, out.String())
	}
}

// TestRunMissingConfig verifies a missing configuration file is reported
func TestRunMissingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	Root.SetArgs([]string{"run", "--config", path})
	err := Root.Execute()
	if err == nil {
		t.Fatal("Expected an error for a missing config file")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("Run should not create the config file")
	}
}

// TestLogLevel verifies an unknown log level is rejected before running
func TestLogLevel(t *testing.T) {
	Root.SetArgs([]string{"version", "--log-level", "loud"})
	if err := Root.Execute(); err == nil {
		t.Error("Expected an error for an unknown log level")
	}
	Root.SetArgs([]string{"version", "--log-level", "info"})
	if err := Root.Execute(); err != nil {
		t.Errorf("Resetting the log level failed: %v", err)
	}
}
