package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbtai-dev/dbtai/internal/mcpserver"
)

// RunServe exposes the project's manifest to MCP clients on stdin/stdout.
// Nothing but protocol traffic may be written to stdout while it runs.
func RunServe(version string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "dbtai %s serving %d manifest nodes over stdio\n", version, p.doc.Len())
		s := mcpserver.New(p.compiler, version)
		return mcpserver.Serve(commandContext(cmd), s, os.Stdin, os.Stdout)
	}
}
