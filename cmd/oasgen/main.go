// Command oasgen derives JSON Schemas, composite request schemas and entity
// models from OpenAPI documents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/oasgen/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "oasgen:", err)
		os.Exit(cli.ExitCode(err))
	}
}
