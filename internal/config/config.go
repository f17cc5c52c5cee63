// Package config reads the OASGEN_* environment overlay and the artifact
// selection shared by the CLI and the emitters.
package config

import (
	"fmt"
	"os"
	"strings"

	env "github.com/caarlos0/env/v11"
)

// Prefix is prepended to every environment variable name.
const Prefix = "OASGEN_"

// Env holds the settings that may come from the environment. Zero values mean
// "not set" so the CLI can layer them between the config file and flags.
// SystemUser is the login name from USER, the fallback for User.
type Env struct {
	Out         string   `env:"OUT"`
	Templates   string   `env:"TEMPLATES"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	User        string   `env:"USER"`
	OnDuplicate string   `env:"ON_DUPLICATE"`
	Artifacts   []string `env:"ARTIFACTS" envSeparator:","`
	Validate    *bool    `env:"VALIDATE"`
	SystemUser  string
}

// Load reads the process environment.
func Load() (*Env, error) {
	return FromEnvironment(env.ToMap(os.Environ()))
}

// FromEnvironment reads the given variables instead of the process
// environment.
func FromEnvironment(environ map[string]string) (*Env, error) {
	var cfg Env
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      Prefix,
		Environment: environ,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.User = strings.TrimSpace(cfg.User)
	cfg.SystemUser = strings.TrimSpace(environ["USER"])
	cfg.Out = strings.TrimSpace(cfg.Out)
	cfg.Templates = strings.TrimSpace(cfg.Templates)
	cfg.Artifacts = trimAll(cfg.Artifacts)
	return &cfg, nil
}

// Artifact names one family of generated files.
type Artifact string

const (
	ArtifactSchemas  Artifact = "schemas"
	ArtifactEntities Artifact = "entities"
	ArtifactFakeData Artifact = "fake-data"
	ArtifactTables   Artifact = "tables"
)

// AllArtifacts is the default selection, in emission order.
var AllArtifacts = []Artifact{ArtifactSchemas, ArtifactEntities, ArtifactFakeData, ArtifactTables}

// ParseArtifacts validates names against AllArtifacts. An empty list selects
// every artifact. The result keeps AllArtifacts order without duplicates.
func ParseArtifacts(names []string) ([]Artifact, error) {
	names = trimAll(names)
	if len(names) == 0 {
		return append([]Artifact(nil), AllArtifacts...), nil
	}
	want := make(map[Artifact]bool, len(names))
	for _, n := range names {
		a := Artifact(strings.ToLower(n))
		if !known(a) {
			return nil, fmt.Errorf("unknown artifact %q (allowed: %s)", n, allowed())
		}
		want[a] = true
	}
	out := make([]Artifact, 0, len(want))
	for _, a := range AllArtifacts {
		if want[a] {
			out = append(out, a)
		}
	}
	return out, nil
}

// Selected reports whether a is part of set.
func Selected(set []Artifact, a Artifact) bool {
	for _, s := range set {
		if s == a {
			return true
		}
	}
	return false
}

func known(a Artifact) bool {
	return Selected(AllArtifacts, a)
}

func allowed() string {
	parts := make([]string, len(AllArtifacts))
	for i, a := range AllArtifacts {
		parts[i] = string(a)
	}
	return strings.Join(parts, ", ")
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
