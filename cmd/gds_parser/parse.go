package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gds_parser/internal/gds"
)

func newParseCommand(flags *globalFlags) *cobra.Command {
	var dialect string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse one reservation text and print the extraction as JSON",
		Long: `Parse one reservation text from a file (or stdin) and print the
extraction: flights, passengers with prices, per-scan row counts and
warnings. Without --dialect the dialect is detected from the text.

An offer without a single flight row fails; everything else succeeds
with warnings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			text, err := readInput(path, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			a, err := newApp(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.persist(cmd.Context()); err != nil {
				return err
			}

			msg := &gds.Message{Dialect: gds.ParseDialect(dialect), Text: string(text), Source: "cli"}
			ext, err := a.pipeline.Process(cmd.Context(), msg)
			if err != nil {
				return err
			}

			out, err := marshalJSON(ext, pretty)
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dialect, "dialect", "d", "", "Dialect: offer or sale (default: detect)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}
