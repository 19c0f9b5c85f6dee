package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"gds_parser/internal/gds"
	"gds_parser/internal/registry"
)

func newExplainCommand(flags *globalFlags) *cobra.Command {
	var dialect string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "explain [file]",
		Short: "Show how each row of a reservation text was matched",
		Long: `Run the traceable parsers over a reservation text and print, for every
segment or scan, the expanded pattern and each candidate row with its
captures. Rows that do not match are the ones dropped by parse.`,
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

			a, err := newApp(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			msg := &gds.Message{Dialect: gds.ParseDialect(dialect), Text: string(text)}
			traces := a.pipeline.Extractor().Trace(msg)
			if len(traces) == 0 {
				return fmt.Errorf("no traceable parser for dialect %q", registry.DialectOf(msg))
			}

			if asJSON {
				out, err := marshalJSON(traces, true)
				if err != nil {
					return fmt.Errorf("encode: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
			for _, t := range traces {
				printTrace(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dialect, "dialect", "d", "", "Dialect: offer or sale (default: detect)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the trace as JSON")
	return cmd
}

func printTrace(w io.Writer, t *registry.TraceResult) {
	_, _ = fmt.Fprintf(w, "Parser: %s (%s)\n", t.ParserName, t.Dialect)
	if t.QuickCheck != nil {
		status := "passed"
		if !t.QuickCheck.Passed {
			status = "failed"
		}
		_, _ = fmt.Fprintf(w, "  quick check %s", status)
		if t.QuickCheck.Reason != "" {
			_, _ = fmt.Fprintf(w, " (%s)", t.QuickCheck.Reason)
		}
		_, _ = fmt.Fprintln(w)
	}

	for _, seg := range t.Segments {
		_, _ = fmt.Fprintf(w, "\n  [%s] %s: %d/%d rows matched\n", seg.Name, seg.Format, seg.Matched(), len(seg.Rows))
		_, _ = fmt.Fprintf(w, "    pattern: %s\n", seg.Pattern)
		for _, row := range seg.Rows {
			mark := "-"
			if row.Matched {
				mark = "+"
			}
			_, _ = fmt.Fprintf(w, "    %s %s\n", mark, row.Text)

			keys := make([]string, 0, len(row.Captures))
			for k := range row.Captures {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				_, _ = fmt.Fprintf(w, "        %s = %q\n", k, row.Captures[k])
			}
		}
	}

	switch {
	case t.Error != "":
		_, _ = fmt.Fprintf(w, "\n  result: %s\n\n", t.Error)
	case t.Matched:
		_, _ = fmt.Fprint(w, "\n  result: matched\n\n")
	default:
		_, _ = fmt.Fprint(w, "\n  result: no match\n\n")
	}
}
