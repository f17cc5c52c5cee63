package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is recorded as generatorVersion in provenance and reports. Release
// builds set it with -ldflags "-X github.com/mark3labs/oasgen/internal/cli.Version=...".
var Version = "dev"

// Execute runs the oasgen CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "oasgen",
		Short:         "Derive JSON Schemas and entity models from OpenAPI documents",
		Long:          "oasgen turns OpenAPI/Swagger documents into self-contained JSON Schemas, composite request schemas, inferred entities with CRUD and complex operations, and the artifacts built on them.",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	flagErr := func(c *cobra.Command, err error) error {
		return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
	}
	cmd.SetFlagErrorFunc(flagErr)

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	for _, sub := range []*cobra.Command{newGenerateCmd(), newEntitiesCmd(), newInitCmd()} {
		sub.SetFlagErrorFunc(flagErr)
		cmd.AddCommand(sub)
	}

	return cmd
}
