package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/tether/internal/config"
	"github.com/roach88/tether/internal/generator"
	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/prompt"
	"github.com/roach88/tether/internal/store"
	"github.com/roach88/tether/internal/strategy"
)

// Strategy names accepted by --strategy.
const (
	StrategyBase       = "base"
	StrategyAutoRepair = "auto_repair"
	StrategyFallback   = "fallback"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	SchemaOptions
	Template string
	Fallback string // template of the second branch of the fallback strategy
	Vars     []string
	VarsFile string
	Config   string
	Database string
	Replay   string // run id to serve replies from instead of calling the model
	Strategy string

	// Flag overrides of the config file; applied only when set.
	Retries int
	Depth   int
	Mode    string
	Scope   string

	// Generator replaces the configured model (for testing).
	Generator generator.Generator

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs strategy.RunIDGenerator
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	OK    bool            `json:"ok"`
	Reply json.RawMessage `json:"reply"`
	Calls int             `json:"calls"`
	Short string          `json:"short,omitempty"`
	Long  string          `json:"long,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{SchemaOptions: SchemaOptions{RootOptions: rootOpts}})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <schema-path>...",
		Short: "Generate a reply that satisfies a schema",
		Long: `Render the template for a schema, call the model and validate the reply.
Invalid replies are retried and repaired as the configuration says.

The model is Gemini; its API key is read from the variable named by
api_key_env in the config (GEMINI_API_KEY by default). With --db every
exchange is recorded, and --replay serves a recorded run back instead of
calling the model.

Strategies:
  base         one generation, retried on invalid replies
  auto_repair  base, then repair rounds on the invalid part (default)
  fallback     base with --template, then base with --fallback-template
               if that fails; neither branch is repaired

Exit codes:
  0 - Valid reply
  1 - No valid reply within the retry and repair budget
  2 - Command error (bad schema, config, missing API key, etc.)

Examples:
  tether run ./schemas --schema Pick --template "Pick a number for {who}." --var who=Ann
  tether run ./schemas -s Pick -t "Pick a number." --config tether.yaml --db runs.db
  tether run ./schemas -s Pick -t "Pick a number." --db runs.db --replay 0190...
  tether run ./schemas -s Pick -t "Pick a number." --strategy fallback --fallback-template "Pick a number from 0 to 10."`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, args, cmd)
		},
	}

	opts.bind(cmd)
	bindTemplateFlags(cmd, &opts.Template, &opts.Vars, &opts.VarsFile)
	_ = cmd.MarkFlagRequired("template")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite file to record exchanges to (overrides config store)")
	cmd.Flags().StringVar(&opts.Replay, "replay", "", "replay the recorded run with this id instead of calling the model")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", StrategyAutoRepair, "strategy (base|auto_repair|fallback)")
	cmd.Flags().StringVar(&opts.Fallback, "fallback-template", "", "template of the second branch (fallback strategy)")
	cmd.Flags().IntVar(&opts.Retries, "retries", 0, "extra attempts per generation")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "repair budget")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "repair prompt mode (sub|full)")
	cmd.Flags().StringVar(&opts.Scope, "scope", "", "repair scope (record|nested)")

	return cmd
}

func runGenerate(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	log := opts.logger()

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return commandError(f, &LoadError{Code: ErrCodeConfig, Message: err.Error()})
	}

	loaded, err := LoadSchemas(paths)
	if err != nil {
		return commandError(f, err)
	}
	rec, err := loaded.Record(opts.Schema)
	if err != nil {
		return commandError(f, err)
	}
	vars, err := parseVars(opts.Vars, opts.VarsFile)
	if err != nil {
		return commandError(f, &LoadError{Code: ErrCodeBadInput, Message: err.Error()})
	}
	p := prompt.New(opts.Template, rec)
	if _, err := p.Render(vars); err != nil {
		return commandError(f, &LoadError{Code: ErrCodeBadInput, Message: err.Error()})
	}
	var fp *prompt.Prompt
	if opts.Strategy == StrategyFallback {
		if opts.Fallback == "" {
			return commandError(f, &LoadError{Code: ErrCodeConfig, Message: "--strategy fallback needs --fallback-template"})
		}
		fp = prompt.New(opts.Fallback, rec)
		if _, err := fp.Render(vars); err != nil {
			return commandError(f, &LoadError{Code: ErrCodeBadInput, Message: err.Error()})
		}
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if cfg.Store != "" {
		log.Debug("opening exchange store", "path", cfg.Store)
		st, err = store.Open(cfg.Store)
		if err != nil {
			return commandError(f, &LoadError{Code: ErrCodeConfig, Message: fmt.Sprintf("failed to open store: %v", err)})
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				log.Error("error closing store", "error", closeErr)
			}
		}()
	}

	gen, err := opts.buildGenerator(ctx, cfg, st)
	if err != nil {
		return commandError(f, &LoadError{Code: ErrCodeConfig, Message: err.Error()})
	}

	ids := opts.RunIDs
	if ids == nil {
		ids = strategy.UUIDv7Generator{}
	}
	stratOpts := slices.Clip(append(cfg.StrategyOptions(), strategy.WithLogger(log), strategy.WithRunIDs(ids)))

	var s strategy.Strategy = strategy.NewBase(p, gen, append(stratOpts, strategy.WithName("base"))...)
	switch opts.Strategy {
	case StrategyBase:
	case StrategyAutoRepair:
		s = strategy.NewAutoRepair(s, append(stratOpts, strategy.WithName("auto_repair"))...)
	case StrategyFallback:
		second := strategy.NewBase(fp, gen, append(stratOpts, strategy.WithName("base_fallback"))...)
		s = strategy.NewFallback(s, second, append(stratOpts, strategy.WithName("fallback"))...)
	default:
		return commandError(f, &LoadError{Code: ErrCodeConfig, Message: fmt.Sprintf("unknown strategy %q", opts.Strategy)})
	}

	runID := ids.Generate()
	ctx = generator.WithRunID(ctx, runID)
	log.Info("run starting", "run_id", runID, "schema", rec.Name(), "generator", generator.NameOf(gen))

	attempt := s.Run(ctx, vars, nil)
	if attempt.Err != nil {
		return commandError(f, attempt.Err)
	}

	result := RunResult{
		OK:    attempt.OK,
		Reply: ir.MarshalIndent(attempt.Reply),
		Calls: attempt.Calls,
		Short: attempt.Short,
		Long:  attempt.Long,
	}
	return outputRun(f, runID, st != nil && opts.Replay == "", result)
}

// loadConfig reads the config file and applies flag overrides.
func (o *RunOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.Config != "" {
		var err error
		if cfg, err = config.Load(o.Config); err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Store = o.Database
	}
	if flags.Changed("retries") {
		cfg.Retries = o.Retries
	}
	if flags.Changed("depth") {
		cfg.Depth = o.Depth
	}
	if flags.Changed("mode") {
		cfg.Mode = o.Mode
	}
	if flags.Changed("scope") {
		cfg.Scope = o.Scope
	}
	if o.Replay != "" && cfg.Store == "" {
		return config.Config{}, fmt.Errorf("--replay needs a store (--db or config store)")
	}
	return cfg, cfg.Validate()
}

// buildGenerator picks the reply source and wraps it for recording when a
// store is open. Replayed runs are not recorded again.
func (o *RunOptions) buildGenerator(ctx context.Context, cfg config.Config, st *store.Store) (generator.Generator, error) {
	if o.Replay != "" {
		return generator.NewReplay(st, o.Replay), nil
	}

	gen := o.Generator
	if gen == nil {
		key, err := cfg.APIKey()
		if err != nil {
			return nil, err
		}
		if gen, err = generator.NewGenAI(ctx, key, cfg.GenAIOptions()...); err != nil {
			return nil, err
		}
	}
	if st != nil {
		return generator.NewRecording(gen, st), nil
	}
	return gen, nil
}

func outputRun(f *OutputFormatter, runID string, recorded bool, result RunResult) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if recorded {
			resp.RunID = runID
		}
		if !result.OK {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeExhausted, Message: result.Short, Details: result.Long}
		}
		if err := f.Respond(resp); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(f.Writer, string(result.Reply))
		if recorded {
			fmt.Fprintf(f.diag(), "run %s: %d call(s)\n", runID, result.Calls)
		}
		if !result.OK {
			fmt.Fprintf(f.diag(), "✗ %s\n  %s\n", result.Short, result.Long)
		}
	}

	if !result.OK {
		return NewExitError(ExitFailure, result.Short)
	}
	return nil
}
