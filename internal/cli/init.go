package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/oasgen/internal/emitter"
)

const defaultConfigName = "oasgen.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample oasgen configuration file",
		Long:  "Scaffold a commented oasgen configuration file that documents available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			return initRunner(cmd.Context(), &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
			})
		},
	}

	cmd.Flags().String("out", defaultConfigName, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(_ context.Context, cfg *InitConfig) error {
	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultConfigName
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}
	if st, err := os.Stat(absPath); err == nil && st.IsDir() {
		return newUsageError(fmt.Sprintf("init: %q is a directory", absPath))
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"
	files := emitter.Files{filepath.Base(absPath): []byte(content)}
	if err := emitter.Write(filepath.Dir(absPath), files, cfg.Force); err != nil {
		if errors.Is(err, emitter.ErrExists) {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
		return newUsageError(fmt.Sprintf("init: cannot write %s: %v\nHint: choose a different --out or check directory permissions.", absPath, err))
	}
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# oasgen configuration (YAML or JSON)
# All fields are optional. Environment variables (OASGEN_*) override config
# values and command-line flags override both.

# Documents keyed by service name (path or http/https URL).
# services:
#   city: ./specs/CityService.openapi.json
#   location: ./specs/LocationService.openapi.yaml

# Documents whose service name is derived from the file name
# (CityService.openapi.json -> city).
# inputs: [./specs/RegionService.openapi.json]

# Output directory for every artifact.
# out: ./generated

# Directory of *.tmpl files rendered once per entity instead of the built-in
# entity.md.tmpl.
# templates: ./templates

# Artifacts to write: schemas, entities, fake-data, tables (default: all).
# artifacts: [schemas, entities]

# What to do when an operationId appears in more than one document (warn|reject).
# onDuplicate: warn

# Extra complex-operation rules: an operation whose id contains any keyword
# belongs to the anchor entity.
# complexRules:
#   - anchor: Region
#     keywords: [country]

# Apply the built-in complex-operation rules.
# defaultRules: true

# Fields ignored when comparing request DTOs with the entity (replaces the defaults).
# excludeFields: [status, createdAt, updatedAt]

# Compile every JSON Schema before writing and skip the invalid ones.
# validate: true

# Fail documents that have structural validation findings.
# strict: false

# Seed for fake payload generation; 0 picks a random seed.
# seed: 1

# User recorded in provenance metadata (defaults to $USER).
# user: jdoe

# Generation time and run identifier recorded in provenance, for
# reproducible output (default: now and a random UUID).
# timestamp: 2025-01-01T00:00:00Z
# runId: 00000000-0000-0000-0000-000000000000

# Preview planned outputs without writing files.
# dryRun: false

# Overwrite existing output files.
# force: false

# Enable verbose logging.
# verbose: false
`
