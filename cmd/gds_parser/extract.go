package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gds_parser/internal/extractor"
	"gds_parser/internal/gds"
)

// ExtractOut is one line of extract output.
type ExtractOut struct {
	Message    *gds.Message          `json:"message"`
	Extraction *extractor.Extraction `json:"extraction,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// extractStats are the counters printed by --stats.
type extractStats struct {
	Lines     int
	Skipped   int
	Extracted int
	Failed    int
	Warnings  int
	Dropped   int
}

// readMessages decodes JSON lines. Lines without reservation text are skipped.
func readMessages(r io.Reader, st *extractStats) ([]*gds.Message, error) {
	scanner := bufio.NewScanner(r)
	// Reservation texts can be long; bump buffer.
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 16*1024*1024)

	var msgs []*gds.Message
	for scanner.Scan() {
		st.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		msg := gds.Decode([]byte(line))
		if msg == nil {
			st.Skipped++
			continue
		}
		if msg.Source == "" {
			msg.Source = "extract"
		}
		msgs = append(msgs, msg)
	}
	return msgs, scanner.Err()
}

func newExtractCommand(flags *globalFlags) *cobra.Command {
	var inPath, outPath string
	var pretty, includeAll, showStats bool
	var workers int

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract a JSONL file of reservation messages",
		Long: `Read JSON lines (flat messages or feed envelopes), extract every message
in parallel and write a JSON array in input order. Failed messages are
left out unless --all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if inPath != "" && inPath != "-" {
				f, err := os.Open(inPath)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				r = f
			}

			st := &extractStats{}
			msgs, err := readMessages(r, st)
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

			results := make([]ExtractOut, len(msgs))
			g, ctx := errgroup.WithContext(cmd.Context())
			if workers < 1 {
				workers = runtime.NumCPU()
			}
			g.SetLimit(workers)

			for i, msg := range msgs {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					ext, err := a.pipeline.Process(ctx, msg)
					results[i] = ExtractOut{Message: msg, Extraction: ext}
					if err != nil {
						results[i].Error = err.Error()
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := make([]ExtractOut, 0, len(results))
			for _, res := range results {
				if res.Extraction == nil {
					st.Failed++
					if !includeAll {
						continue
					}
				} else {
					st.Extracted++
					st.Warnings += len(res.Extraction.Warnings)
					st.Dropped += res.Extraction.Dropped()
				}
				out = append(out, res)
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}

			enc, err := marshalJSON(out, pretty)
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			_, _ = w.Write(enc)
			_, _ = w.Write([]byte("\n"))

			if showStats {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(),
					"stats: lines=%d skipped=%d extracted=%d failed=%d warnings=%d dropped_rows=%d\n",
					st.Lines, st.Skipped, st.Extracted, st.Failed, st.Warnings, st.Dropped)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "input", "i", "", "Input JSONL file (default: stdin)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output JSON file (default: stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	cmd.Flags().BoolVar(&includeAll, "all", false, "Include messages that failed to parse")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Print counters to stderr")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel workers (default: number of CPUs)")
	return cmd
}
