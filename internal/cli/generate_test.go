package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mark3labs/oasgen/internal/config"
	"github.com/mark3labs/oasgen/internal/entity"
)

// captureConfig swaps the generate runner and environment for the duration
// of the test. Tests using it must not run in parallel.
func captureConfig(t *testing.T, environ map[string]string) **GenerateConfig {
	t.Helper()
	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured = cfg
		return nil
	}
	loadEnv = func() (*config.Env, error) { return config.FromEnvironment(environ) }
	t.Cleanup(func() {
		generateRunner = runGenerate
		loadEnv = config.Load
	})
	return &captured
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	return root.Execute()
}

func TestGenerateConfigFromFlags(t *testing.T) {
	captured := captureConfig(t, map[string]string{"USER": "alice"})

	err := execute(t,
		"--verbose",
		"generate",
		"--input", "CityService.openapi.json",
		"--service", "location=specs/location.yaml",
		"--out", "./build",
		"--templates", "./tpl",
		"--artifacts", "schemas,tables",
		"--on-duplicate", "reject",
		"--rule", "Region=Country,Countries",
		"--no-default-rules",
		"--exclude-field", "status,version",
		"--validate=false",
		"--strict",
		"--seed", "42",
		"--user", "bob",
		"--dry-run",
		"--force",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}

	want := &GenerateConfig{
		Services:      map[string]string{"location": "specs/location.yaml"},
		Inputs:        []string{"CityService.openapi.json"},
		Out:           "./build",
		Templates:     "./tpl",
		Artifacts:     []string{"schemas", "tables"},
		OnDuplicate:   "reject",
		ComplexRules:  []entity.ComplexRule{{Anchor: "Region", Keywords: []string{"Country", "Countries"}}},
		DefaultRules:  false,
		ExcludeFields: []string{"status", "version"},
		Validate:      false,
		Strict:        true,
		Seed:          42,
		User:          "bob",
		LogLevel:      "info",
		DryRun:        true,
		Force:         true,
		Verbose:       true,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
	if got := cfg.rules(); len(got) != 1 {
		t.Errorf("rules without defaults: got %v", got)
	}
}

func TestGenerateConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`services:
  city: specs/CityService.openapi.json
  location: specs/LocationService.openapi.json
out: from-config
artifacts: [schemas]
on_duplicate: reject
complexRules:
  - anchor: Region
    keywords: [Country]
default-rules: true
excludeFields: []
validate: false
seed: 7
user: carol
dryRun: true
force: false
verbose: true
`) + "\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	captured := captureConfig(t, map[string]string{
		"OASGEN_ARTIFACTS": "schemas,entities",
		"OASGEN_VALIDATE":  "true",
		"USER":             "alice",
	})

	err := execute(t,
		"--config", configPath,
		"generate",
		"--service", "city=flag-city.json",
		"--dry-run=false",
		"--force",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}

	if diff := cmp.Diff(map[string]string{"city": "flag-city.json"}, cfg.Services); diff != "" {
		t.Errorf("services: flags replace the config file map (-want +got):\n%s", diff)
	}
	if cfg.Out != "from-config" {
		t.Errorf("out: want from-config got %q", cfg.Out)
	}
	if want := []string{"schemas", "entities"}; !cmp.Equal(want, cfg.Artifacts) {
		t.Errorf("artifacts: env should override config file: got %v", cfg.Artifacts)
	}
	if !cfg.Validate {
		t.Errorf("validate: env should override config file")
	}
	if cfg.OnDuplicate != "reject" {
		t.Errorf("on duplicate: got %q", cfg.OnDuplicate)
	}
	if cfg.User != "carol" {
		t.Errorf("user: config file should win over USER, got %q", cfg.User)
	}
	if cfg.ExcludeFields == nil || len(cfg.ExcludeFields) != 0 {
		t.Errorf("exclude fields: an explicit empty list disables the defaults, got %#v", cfg.ExcludeFields)
	}
	if cfg.Seed != 7 {
		t.Errorf("seed: got %d", cfg.Seed)
	}
	if cfg.DryRun {
		t.Errorf("expected dry-run false after flag override")
	}
	if !cfg.Force {
		t.Errorf("expected force true after flag override")
	}
	if !cfg.Verbose {
		t.Errorf("expected verbose true from config file")
	}
	if cfg.ConfigPath != configPath {
		t.Errorf("config path mismatch: got %q", cfg.ConfigPath)
	}
	rules := cfg.rules()
	if len(rules) != len(entity.DefaultRules())+1 || rules[len(rules)-1].Anchor != "Region" {
		t.Errorf("rules: want defaults followed by Region, got %v", rules)
	}

	opts := cfg.pipelineOptions(nil)
	if len(opts.Inputs) != 1 || opts.Inputs[0].Service != "city" {
		t.Errorf("pipeline inputs: got %+v", opts.Inputs)
	}
	if opts.DuplicatePolicy != entity.Reject {
		t.Errorf("pipeline policy: got %v", opts.DuplicatePolicy)
	}
}

func TestGenerateConfigUserFallback(t *testing.T) {
	captured := captureConfig(t, map[string]string{"USER": "alice"})
	if err := execute(t, "generate", "--input", "spec.yaml"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := (*captured).User; got != "alice" {
		t.Fatalf("user: want alice from USER, got %q", got)
	}

	captured = captureConfig(t, map[string]string{"USER": "alice", "OASGEN_USER": "dana"})
	if err := execute(t, "generate", "--input", "spec.yaml"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := (*captured).User; got != "dana" {
		t.Fatalf("user: want dana from OASGEN_USER, got %q", got)
	}
}

func TestGenerateConfigErrors(t *testing.T) {
	captureConfig(t, map[string]string{})

	tmpDir := t.TempDir()
	badConfig := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(badConfig, []byte("unknown: value\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	badRules := filepath.Join(tmpDir, "rules.yaml")
	if err := os.WriteFile(badRules, []byte("complexRules:\n  - anchor: Region\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cases := map[string]struct {
		args []string
		want string
	}{
		"unknown key":      {[]string{"--config", badConfig, "generate", "--input", "spec.yaml"}, "unknown field"},
		"rule keywords":    {[]string{"--config", badRules, "generate", "--input", "spec.yaml"}, "anchor and keywords are required"},
		"no inputs":        {[]string{"generate"}, "at least one --input or --service"},
		"bad service":      {[]string{"generate", "--service", "city"}, "want name=path"},
		"bad rule":         {[]string{"generate", "--input", "spec.yaml", "--rule", "Region"}, "want Anchor=keyword1,keyword2"},
		"bad artifact":     {[]string{"generate", "--input", "spec.yaml", "--artifacts", "binaries"}, "unknown artifact"},
		"bad policy":       {[]string{"generate", "--input", "spec.yaml", "--on-duplicate", "ignore"}, "unknown duplicate policy"},
		"conflicting name": {[]string{"generate", "--service", "city=a.json", "--service", "city=b.json"}, "given twice"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := execute(t, tc.args...)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error message: %v", err)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	if got := ExitCode(nil); got != 0 {
		t.Errorf("nil: got %d", got)
	}
	if got := ExitCode(newUsageError("bad flag")); got != 2 {
		t.Errorf("usage: got %d", got)
	}
	if got := ExitCode(errors.New("boom")); got != 1 {
		t.Errorf("other: got %d", got)
	}
}
