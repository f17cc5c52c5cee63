package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oasgen/internal/config"
	"github.com/mark3labs/oasgen/internal/emitter"
	"github.com/mark3labs/oasgen/internal/emitter/entityemitter"
	"github.com/mark3labs/oasgen/internal/emitter/fakeemitter"
	"github.com/mark3labs/oasgen/internal/emitter/schemaemitter"
	"github.com/mark3labs/oasgen/internal/emitter/sqlemitter"
	"github.com/mark3labs/oasgen/internal/entity"
	"github.com/mark3labs/oasgen/internal/logging"
	"github.com/mark3labs/oasgen/internal/pipeline"
	"github.com/mark3labs/oasgen/internal/render"
	"github.com/mark3labs/oasgen/internal/spec"
)

// GenerateConfig captures all inputs that influence a run after merging
// defaults, config file values, environment and CLI overrides.
type GenerateConfig struct {
	// Services maps a service name to its document path or URL.
	Services map[string]string
	// Inputs are documents whose service name is derived from the file name.
	Inputs        []string
	Out           string
	Templates     string
	Artifacts     []string
	OnDuplicate   string
	ComplexRules  []entity.ComplexRule
	DefaultRules  bool
	ExcludeFields []string
	Validate      bool
	Strict        bool
	Seed          uint64
	User          string
	Timestamp     string
	RunID         string
	LogLevel      string
	ConfigPath    string
	DryRun        bool
	Force         bool
	Verbose       bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Out:          "generated",
		OnDuplicate:  "warn",
		DefaultRules: true,
		Validate:     true,
		Seed:         1,
		LogLevel:     "info",
	}
}

var (
	generateRunner = runGenerate
	loadEnv        = config.Load
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate JSON Schemas, entity contexts and metadata from OpenAPI documents",
		Long: "Generate JSON Schemas, composite request schemas, entity contexts, fake payloads " +
			"and table metadata from one or more OpenAPI/Swagger documents. " +
			"Options can be provided via flags, environment (OASGEN_*), config files, or defaults.",
		Example: strings.TrimSpace(`  oasgen generate --input CityService.openapi.json --out ./generated
  oasgen generate --service city=specs/city.json --service location=specs/location.yaml --artifacts schemas,entities
  oasgen --config oasgen.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	addInputFlags(flags)
	flags.String("out", "", "Output directory (default \"generated\")")
	flags.String("templates", "", "Directory of entity templates (*.tmpl) replacing the built-in one")
	flags.StringSlice("artifacts", nil, "Artifacts to write (schemas|entities|fake-data|tables); defaults to all")
	flags.Bool("validate", true, "Compile every JSON Schema before writing and skip the invalid ones")
	flags.Uint64("seed", 1, "Seed for fake payload generation (0 picks a random seed)")
	flags.String("timestamp", "", "RFC3339 generation time recorded in provenance (default now)")
	flags.String("run-id", "", "Run identifier recorded in provenance (default a random UUID)")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output files")

	return cmd
}

// addInputFlags registers the flags shared by every command that runs the
// pipeline.
func addInputFlags(flags *pflag.FlagSet) {
	flags.StringArray("service", nil, "Document of a named service as name=path (repeatable)")
	flags.StringArray("input", nil, "Path or URL of a document; the service name comes from the file name (repeatable)")
	flags.StringArray("rule", nil, "Complex-operation rule as Anchor=keyword1,keyword2 (repeatable)")
	flags.Bool("no-default-rules", false, "Do not apply the built-in complex-operation rules")
	flags.StringSlice("exclude-field", nil, "Fields ignored by the mapping analysis (replaces the defaults)")
	flags.String("on-duplicate", "", "Duplicate operationId policy (warn|reject)")
	flags.Bool("strict", false, "Fail documents with structural validation findings")
	flags.String("user", "", "User recorded in provenance metadata")
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	envCfg, err := loadEnv()
	if err != nil {
		return nil, newUsageError(err.Error())
	}
	cfg.User = envCfg.SystemUser

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(&cfg, envCfg)

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *GenerateConfig, e *config.Env) {
	if e.Out != "" {
		cfg.Out = e.Out
	}
	if e.Templates != "" {
		cfg.Templates = e.Templates
	}
	if e.LogLevel != "" {
		cfg.LogLevel = e.LogLevel
	}
	if e.User != "" {
		cfg.User = e.User
	}
	if e.OnDuplicate != "" {
		cfg.OnDuplicate = e.OnDuplicate
	}
	if len(e.Artifacts) > 0 {
		cfg.Artifacts = e.Artifacts
	}
	if e.Validate != nil {
		cfg.Validate = *e.Validate
	}
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	if flags.Changed("service") {
		values, err := flags.GetStringArray("service")
		if err != nil {
			return err
		}
		services, err := parseServices(values)
		if err != nil {
			return err
		}
		cfg.Services = services
	}
	if flags.Changed("input") {
		values, err := flags.GetStringArray("input")
		if err != nil {
			return err
		}
		cfg.Inputs = sanitizeList(values)
	}
	if flags.Changed("rule") {
		values, err := flags.GetStringArray("rule")
		if err != nil {
			return err
		}
		rules, err := parseRules(values)
		if err != nil {
			return err
		}
		cfg.ComplexRules = rules
	}
	if flags.Changed("no-default-rules") {
		value, err := flags.GetBool("no-default-rules")
		if err != nil {
			return err
		}
		cfg.DefaultRules = !value
	}
	if flags.Changed("exclude-field") {
		values, err := flags.GetStringSlice("exclude-field")
		if err != nil {
			return err
		}
		cfg.ExcludeFields = sanitizeList(values)
	}
	if flags.Changed("artifacts") {
		values, err := flags.GetStringSlice("artifacts")
		if err != nil {
			return err
		}
		cfg.Artifacts = sanitizeList(values)
	}
	for name, dst := range map[string]*string{
		"out":          &cfg.Out,
		"templates":    &cfg.Templates,
		"on-duplicate": &cfg.OnDuplicate,
		"user":         &cfg.User,
		"timestamp":    &cfg.Timestamp,
		"run-id":       &cfg.RunID,
	} {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}
	for name, dst := range map[string]*bool{
		"validate": &cfg.Validate,
		"strict":   &cfg.Strict,
		"dry-run":  &cfg.DryRun,
		"force":    &cfg.Force,
		"verbose":  &cfg.Verbose,
	} {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}
	if flags.Changed("seed") {
		value, err := flags.GetUint64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Inputs = sanitizeList(c.Inputs)
	c.Out = strings.TrimSpace(c.Out)
	c.Templates = strings.TrimSpace(c.Templates)
	c.Artifacts = sanitizeList(c.Artifacts)
	c.OnDuplicate = strings.ToLower(strings.TrimSpace(c.OnDuplicate))
	c.User = strings.TrimSpace(c.User)
	c.Timestamp = strings.TrimSpace(c.Timestamp)
	c.RunID = strings.TrimSpace(c.RunID)
	if c.ExcludeFields != nil {
		c.ExcludeFields = sanitizeList(c.ExcludeFields)
		if c.ExcludeFields == nil {
			c.ExcludeFields = []string{}
		}
	}
}

func (c *GenerateConfig) validate() error {
	if len(c.Services) == 0 && len(c.Inputs) == 0 {
		return newUsageError("generate: at least one --input or --service is required (set via flag or config file)")
	}
	if c.OnDuplicate == "" {
		c.OnDuplicate = "warn"
	}
	if _, err := entity.ParseDuplicatePolicy(c.OnDuplicate); err != nil {
		return newUsageError(fmt.Sprintf("generate: %v", err))
	}
	if _, err := config.ParseArtifacts(c.Artifacts); err != nil {
		return newUsageError(fmt.Sprintf("generate: %v", err))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return newUsageError(fmt.Sprintf("generate: %v", err))
	}
	if c.Out == "" {
		return newUsageError("generate: --out must not be empty")
	}
	if c.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, c.Timestamp); err != nil {
			return newUsageError(fmt.Sprintf("generate: --timestamp must be RFC3339: %v", err))
		}
	}
	return nil
}

// rules returns the rule table handed to the inference engine: the built-in
// rules unless disabled, followed by the configured ones.
func (c *GenerateConfig) rules() []entity.ComplexRule {
	var out []entity.ComplexRule
	if c.DefaultRules {
		out = append(out, entity.DefaultRules()...)
	}
	return append(out, c.ComplexRules...)
}

// pipelineOptions translates the configuration for pipeline.Run. Named
// services come first, sorted by name, followed by the plain inputs.
func (c *GenerateConfig) pipelineOptions(logger *slog.Logger) pipeline.Options {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	inputs := make([]pipeline.Input, 0, len(names)+len(c.Inputs))
	for _, name := range names {
		inputs = append(inputs, pipeline.Input{Service: name, Path: c.Services[name]})
	}
	for _, p := range c.Inputs {
		inputs = append(inputs, pipeline.Input{Path: p})
	}
	policy, _ := entity.ParseDuplicatePolicy(c.OnDuplicate)
	var now func() time.Time
	if ts, err := time.Parse(time.RFC3339, c.Timestamp); err == nil {
		now = func() time.Time { return ts }
	}
	return pipeline.Options{
		Inputs:           inputs,
		Rules:            c.rules(),
		DuplicatePolicy:  policy,
		ExcludedFields:   c.ExcludeFields,
		StrictValidation: c.Strict,
		User:             c.User,
		GeneratorVersion: Version,
		RunID:            c.RunID,
		Now:              now,
		Logger:           logger,
	}
}

// runPipeline runs one generation pass and turns structured failures into
// usage errors.
func runPipeline(ctx context.Context, cfg *GenerateConfig, stderr io.Writer) (*pipeline.Result, *slog.Logger, error) {
	logger, err := logging.New(stderr, cfg.LogLevel, cfg.Verbose)
	if err != nil {
		return nil, nil, newUsageError(err.Error())
	}
	res, err := pipeline.Run(ctx, cfg.pipelineOptions(logger))
	if err != nil {
		return nil, nil, mapRunError(err)
	}
	for _, f := range res.Failed {
		logger.Warn("document failed", "service", f.Service, "location", f.Location, "code", f.Code, "error", f.Message)
	}
	return res, logger, nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	artifacts, err := config.ParseArtifacts(cfg.Artifacts)
	if err != nil {
		return newUsageError(err.Error())
	}
	var renderer *render.TemplateRenderer
	if cfg.Templates != "" && config.Selected(artifacts, config.ArtifactEntities) {
		st, err := os.Stat(cfg.Templates)
		if err != nil || !st.IsDir() {
			return newUsageError(fmt.Sprintf("generate: templates directory %q not found", cfg.Templates))
		}
		renderer = render.NewTemplateRenderer(os.DirFS(cfg.Templates))
	}

	res, logger, err := runPipeline(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}

	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}

	var planned []emitter.PlannedFile
	if config.Selected(artifacts, config.ArtifactSchemas) {
		out, err := schemaemitter.Emit(ctx, res, schemaemitter.Options{
			OutDir:   cfg.Out,
			Force:    cfg.Force,
			DryRun:   cfg.DryRun,
			Verbose:  cfg.Verbose,
			Validate: cfg.Validate,
		})
		if err != nil {
			return wrapOutputError(err, absOut)
		}
		for _, s := range out.Report.Skipped[len(res.Skipped):] {
			logger.Warn("schema skipped", "service", s.Service, "schema", s.Schema, "reason", s.Reason)
		}
		planned = append(planned, out.Planned...)
	}
	if config.Selected(artifacts, config.ArtifactEntities) {
		out, err := entityemitter.Emit(ctx, res, entityemitter.Options{
			OutDir:   cfg.Out,
			Force:    cfg.Force,
			DryRun:   cfg.DryRun,
			Verbose:  cfg.Verbose,
			Renderer: renderer,
		})
		if err != nil {
			return wrapOutputError(err, absOut)
		}
		planned = append(planned, out.Planned...)
	}
	if config.Selected(artifacts, config.ArtifactFakeData) {
		out, err := fakeemitter.Emit(ctx, res, fakeemitter.Options{
			OutDir:  cfg.Out,
			Force:   cfg.Force,
			DryRun:  cfg.DryRun,
			Verbose: cfg.Verbose,
			Seed:    cfg.Seed,
			Logger:  logger,
		})
		if err != nil {
			return wrapOutputError(err, absOut)
		}
		planned = append(planned, out.Planned...)
	}
	if config.Selected(artifacts, config.ArtifactTables) {
		out, err := sqlemitter.Emit(ctx, res, sqlemitter.Options{
			OutDir:  cfg.Out,
			Force:   cfg.Force,
			DryRun:  cfg.DryRun,
			Verbose: cfg.Verbose,
		})
		if err != nil {
			return wrapOutputError(err, absOut)
		}
		planned = append(planned, out.Planned...)
	}

	if cfg.DryRun {
		paths := make([]string, 0, len(planned))
		for _, p := range planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(absOut, len(paths), paths)
		return nil
	}
	logger.Info("generation complete",
		"out", absOut,
		"files", len(planned),
		"services", len(res.Services),
		"entities", len(res.Entities),
		"failed", len(res.Failed),
		"skipped", len(res.Skipped),
	)
	return nil
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	if errors.Is(err, emitter.ErrExists) {
		return newUsageError(fmt.Sprintf("output error for %s: %v", outDir, err))
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "outdir") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

// parseServices reads name=path pairs.
func parseServices(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, p, ok := strings.Cut(v, "=")
		name, p = strings.TrimSpace(name), strings.TrimSpace(p)
		if !ok || name == "" || p == "" {
			return nil, newUsageError(fmt.Sprintf("invalid --service %q (want name=path)", v))
		}
		if prev, dup := out[name]; dup && prev != p {
			return nil, newUsageError(fmt.Sprintf("service %q given twice (%s, %s)", name, prev, p))
		}
		out[name] = p
	}
	return out, nil
}

// parseRules reads Anchor=keyword1,keyword2 rules.
func parseRules(values []string) ([]entity.ComplexRule, error) {
	rules := make([]entity.ComplexRule, 0, len(values))
	for _, v := range values {
		rule, ok := entity.ParseRule(v)
		if !ok {
			return nil, newUsageError(fmt.Sprintf("invalid --rule %q (want Anchor=keyword1,keyword2)", v))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		if value == nil {
			// A key without a value keeps the default.
			if !knownConfigKeys[normalizeKey(key)] {
				return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
			}
			continue
		}
		fieldErr := func(err error) error {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
		switch normalizeKey(key) {
		case "services":
			services, err := valueAsStringMap(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Services = services
		case "inputs", "input":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Inputs = list
		case "out":
			str, err := valueAsString(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Out = str
		case "templates":
			str, err := valueAsString(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Templates = str
		case "artifacts":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Artifacts = list
		case "onduplicate":
			str, err := valueAsString(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.OnDuplicate = str
		case "complexrules":
			rules, err := valueAsRules(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.ComplexRules = rules
		case "defaultrules":
			val, err := valueAsBool(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.DefaultRules = val
		case "excludefields":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return fieldErr(err)
			}
			if list == nil {
				list = []string{}
			}
			cfg.ExcludeFields = list
		case "validate":
			val, err := valueAsBool(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Validate = val
		case "strict":
			val, err := valueAsBool(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Strict = val
		case "seed":
			n, err := valueAsUint(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Seed = n
		case "user":
			str, err := valueAsString(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.User = str
		case "timestamp":
			str, err := valueAsString(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Timestamp = str
		case "runid":
			str, err := valueAsString(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.RunID = str
		case "dryrun":
			val, err := valueAsBool(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.DryRun = val
		case "force":
			val, err := valueAsBool(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Force = val
		case "verbose":
			val, err := valueAsBool(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Verbose = val
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}

	return nil
}

var knownConfigKeys = map[string]bool{
	"services": true, "inputs": true, "input": true, "out": true, "templates": true,
	"artifacts": true, "onduplicate": true, "complexrules": true, "defaultrules": true,
	"excludefields": true, "validate": true, "strict": true, "seed": true, "user": true,
	"timestamp": true, "runid": true, "dryrun": true, "force": true, "verbose": true,
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsStringMap(v any) (map[string]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		out := make(map[string]string, len(val))
		for name, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("service %q: %w", name, err)
			}
			if str == "" {
				return nil, fmt.Errorf("service %q: empty path", name)
			}
			out[strings.TrimSpace(name)] = str
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected mapping of service name to path, got %T", v)
	}
}

func valueAsRules(v any) ([]entity.ComplexRule, error) {
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("expected list of rules, got %T", v)
	}
	rules := make([]entity.ComplexRule, 0, len(list))
	for idx, elem := range list {
		m, ok := elem.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("rule %d: expected mapping, got %T", idx, elem)
		}
		var rule entity.ComplexRule
		for key, value := range m {
			switch normalizeKey(key) {
			case "anchor":
				str, err := valueAsString(value)
				if err != nil {
					return nil, fmt.Errorf("rule %d: anchor: %w", idx, err)
				}
				rule.Anchor = str
			case "keywords":
				kw, err := valueAsStringSlice(value)
				if err != nil {
					return nil, fmt.Errorf("rule %d: keywords: %w", idx, err)
				}
				rule.Keywords = kw
			default:
				return nil, fmt.Errorf("rule %d: unknown field %q", idx, key)
			}
		}
		if rule.Anchor == "" || len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("rule %d: anchor and keywords are required", idx)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func valueAsUint(v any) (uint64, error) {
	switch val := v.(type) {
	case int:
		if val < 0 {
			return 0, fmt.Errorf("expected non-negative integer, got %d", val)
		}
		return uint64(val), nil
	case uint64:
		return val, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

// mapRunError turns structured pipeline failures into usage errors.
func mapRunError(err error) error {
	var se *spec.SpecError
	if errors.As(err, &se) {
		msg := fmt.Sprintf("spec: %s", se.Message)
		if se.Location != "" {
			msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
		}
		if se.JSONPointer != "" {
			msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
		}
		return newUsageError(msg)
	}
	var de *entity.DuplicateError
	if errors.As(err, &de) {
		return newUsageError(fmt.Sprintf("%v\nHint: use --on-duplicate warn to keep the first definition.", err))
	}
	return err
}
