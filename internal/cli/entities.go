package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oasgen/internal/pipeline"
)

func newEntitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Print the inferred entities and their operations",
		Long: "Run schema transformation and entity inference over the given documents and print " +
			"one context per entity without writing any files.",
		Example: strings.TrimSpace(`  oasgen entities --input CityService.openapi.json
  oasgen entities --service city=city.json --format json --rule "Region=country"`),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "yaml" && format != "json" {
				return newUsageError(fmt.Sprintf("entities: unsupported --format %q (allowed: yaml, json)", format))
			}
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return runEntities(cmd.Context(), cfg, format, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	addInputFlags(cmd.Flags())
	cmd.Flags().String("format", "yaml", "Output format (yaml|json)")

	return cmd
}

func runEntities(ctx context.Context, cfg *GenerateConfig, format string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	res, _, err := runPipeline(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	entities := res.Entities
	if entities == nil {
		entities = []pipeline.EntityContext{}
	}
	if format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entities)
	}
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(entities); err != nil {
		return err
	}
	return enc.Close()
}
