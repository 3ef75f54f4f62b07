package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - list runs when empty
	Last     bool
	Full     bool // print whole prompts
}

// TraceExchange is one recorded generator call.
type TraceExchange struct {
	Seq        int64           `json:"seq"`
	Generator  string          `json:"generator"`
	PromptHash string          `json:"prompt_hash"`
	Prompt     string          `json:"prompt"`
	Reply      json.RawMessage `json:"reply"`
	Error      string          `json:"error,omitempty"`
}

// TraceResult holds the exchanges of one run.
type TraceResult struct {
	RunID     string          `json:"run_id"`
	Exchanges []TraceExchange `json:"exchanges"`
	Failures  int             `json:"failures"`
}

// RunListing is one line of the run list.
type RunListing struct {
	RunID     string `json:"run_id"`
	Exchanges int    `json:"exchanges"`
	Failures  int    `json:"failures"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded runs and their exchanges",
		Long: `Read the exchange log written by "tether run --db".

Without --run, lists every recorded run with its exchange count. With
--run (or --last), shows the run's exchanges in order: the generator
called, the first line of the prompt, and the parsed reply.

Examples:
  tether trace --db runs.db
  tether trace --db runs.db --last
  tether trace --db runs.db --run 0190... --full --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show")
	cmd.Flags().BoolVar(&opts.Last, "last", false, "show the most recent run")
	cmd.Flags().BoolVar(&opts.Full, "full", false, "show whole prompts")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runID := opts.RunID
	if opts.Last {
		id, ok, err := st.LastRun(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find last run", err)
		}
		if !ok {
			return f.Text("No runs recorded.", []RunListing{})
		}
		runID = id
	}
	if runID == "" {
		return listRuns(ctx, st, f)
	}

	exchanges, err := st.ReadRun(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if len(exchanges) == 0 {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("no exchanges for run %s", runID), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
	}

	result := TraceResult{RunID: runID, Exchanges: make([]TraceExchange, len(exchanges))}
	for i, ex := range exchanges {
		p := ex.Prompt
		if !opts.Full {
			p, _, _ = strings.Cut(p, "\n")
		}
		result.Exchanges[i] = TraceExchange{
			Seq:        ex.Seq,
			Generator:  ex.Generator,
			PromptHash: ex.PromptHash,
			Prompt:     p,
			Reply:      json.RawMessage(ir.MarshalInline(ex.Reply)),
			Error:      ex.Error,
		}
		if ex.Error != "" {
			result.Failures++
		}
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	return printTrace(f, result)
}

func listRuns(ctx context.Context, st *store.Store, f *OutputFormatter) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	listing := make([]RunListing, len(runs))
	var text strings.Builder
	for i, r := range runs {
		listing[i] = RunListing{RunID: r.RunID, Exchanges: r.Exchanges, Failures: r.Failures}
		fmt.Fprintf(&text, "%s  %d exchange(s)", r.RunID, r.Exchanges)
		if r.Failures > 0 {
			fmt.Fprintf(&text, ", %d failed", r.Failures)
		}
		text.WriteString("\n")
	}
	if len(runs) == 0 {
		return f.Text("No runs recorded.", listing)
	}
	return f.Text(strings.TrimSuffix(text.String(), "\n"), listing)
}

func printTrace(f *OutputFormatter, result TraceResult) error {
	w := f.Writer
	fmt.Fprintf(w, "Run: %s\n\n", result.RunID)
	for _, ex := range result.Exchanges {
		fmt.Fprintf(w, "[%d] %s\n", ex.Seq, ex.Generator)
		for _, line := range strings.Split(ex.Prompt, "\n") {
			fmt.Fprintf(w, "    > %s\n", line)
		}
		fmt.Fprintf(w, "    < %s\n", ex.Reply)
		if ex.Error != "" {
			fmt.Fprintf(w, "    ! %s\n", ex.Error)
		}
	}
	fmt.Fprintf(w, "\n%d exchange(s), %d failed\n", len(result.Exchanges), result.Failures)
	return nil
}
