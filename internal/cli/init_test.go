package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInit_WritesSampleConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "oasgen.yaml")

	if err := execute(t, "init", "--out", path); err != nil {
		t.Fatalf("init execute: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "oasgen configuration") {
		t.Fatalf("unexpected config contents: %s", s)
	}
	// Everything is commented out, so the file parses to an empty document.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample config is not YAML: %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected only comments, got %v", raw)
	}
}

func TestInit_ExistingWithoutForce(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}

	err := execute(t, "init", "--out", path)
	if err == nil {
		t.Fatalf("expected error for existing file without --force")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}

	if err := execute(t, "init", "--out", path, "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(data) == "x" {
		t.Fatalf("--force should replace the file")
	}
}

func TestInit_SampleKeysAreAccepted(t *testing.T) {
	t.Parallel()
	var keys []string
	for _, line := range strings.Split(sampleConfigYAML, "\n") {
		line = strings.TrimPrefix(line, "# ")
		if k, _, ok := strings.Cut(line, ":"); ok && k != "" && !strings.ContainsAny(k, " -") {
			keys = append(keys, k)
		}
	}
	if len(keys) < 10 {
		t.Fatalf("expected the sample to document the config keys, found %v", keys)
	}
	for _, k := range keys {
		cfg := defaultGenerateConfig()
		path := filepath.Join(t.TempDir(), "c.yaml")
		if err := os.WriteFile(path, []byte(k+":\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := applyGenerateConfigFromFile(&cfg, path); err != nil {
			t.Errorf("documented key %q rejected: %v", k, err)
		}
	}
}
