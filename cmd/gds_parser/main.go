// Command gds_parser extracts flights, passengers and prices from GDS
// reservation text.
//
// Input is either raw terminal text (parse, explain) or JSON lines where
// each line is a flat message {"dialect","text",...} or the feed envelope
// {"source":{...},"message":{"id","kind","text"}} (extract). Untagged text
// is routed by dialect detection.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "gds_parser/internal/parsers" // register all parsers via init()
)

// Version is set via ldflags at build time.
var Version = "dev"

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	os.Exit(execute())
}

// execute runs the root command and returns the exit code.
func execute() int {
	if err := newRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newRootCommand creates the root cobra command.
func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "gds_parser",
		Short: "Extract flights, passengers and prices from GDS reservation text",
		Long: `gds_parser reads GDS terminal text in two dialects:

  offer  quoted itineraries, optionally followed by a VI detail block
  sale   booked PNRs with passengers, segments and fare lines

Codes (airlines, stations, meals, equipment) are resolved against a YAML
catalog or the PostgreSQL reference tables. Unresolved codes become
warnings, never failures.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(newParseCommand(flags))
	rootCmd.AddCommand(newExplainCommand(flags))
	rootCmd.AddCommand(newExtractCommand(flags))
	rootCmd.AddCommand(newServeCommand(flags))
	rootCmd.AddCommand(newListenCommand(flags))
	rootCmd.AddCommand(newSchemaCommand(flags))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "gds_parser %s\n", Version)
		},
	}
}
