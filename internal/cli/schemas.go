package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tether/internal/compiler"
	"github.com/roach88/tether/internal/generator"
	"github.com/roach88/tether/internal/harness"
	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/prompt"
	"github.com/roach88/tether/internal/schema"
)

// SchemaOptions holds the flags shared by commands that work on one schema.
type SchemaOptions struct {
	*RootOptions
	Schema string
}

func (o *SchemaOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Schema, "schema", "s", "", "schema name (optional when the files declare exactly one)")
}

// RulesResult is the JSON payload of the rules command.
type RulesResult struct {
	Schema string   `json:"schema"`
	Header string   `json:"header,omitempty"`
	Rules  []string `json:"rules"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules <schema-path>...",
		Short: "Print the rule block of each schema",
		Long: `Print the rule lines a prompt carries for each schema: one line per
field, nested records indented under their field.

Examples:
  tether rules ./schemas
  tether rules ./schemas/pick.cue --schema Pick --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, args, cmd)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runRules(opts *SchemaOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	loaded, err := LoadSchemas(paths)
	if err != nil {
		return commandError(f, err)
	}

	records := loaded.Catalog.Records()
	if opts.Schema != "" {
		rec, err := loaded.Record(opts.Schema)
		if err != nil {
			return commandError(f, err)
		}
		records = []*schema.Record{rec}
	}

	results := make([]RulesResult, len(records))
	var text strings.Builder
	for i, rec := range records {
		results[i] = RulesResult{Schema: rec.Name(), Header: rec.Header(), Rules: rec.Rules()}
		if i > 0 {
			text.WriteString("\n")
		}
		fmt.Fprintf(&text, "%s:\n%s\n", rec.Name(), rec.RuleBlock())
	}
	return f.Text(strings.TrimRight(text.String(), "\n"), results)
}

// NewExampleCommand creates the example command.
func NewExampleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "example <schema-path>...",
		Short: "Print the worked examples of a schema",
		Long: `Print the synthesised example of a schema followed by its hand-written
examples, as they appear in prompts.

Examples:
  tether example ./schemas --schema Pick`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExample(opts, args, cmd)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runExample(opts *SchemaOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	loaded, err := LoadSchemas(paths)
	if err != nil {
		return commandError(f, err)
	}
	rec, err := loaded.Record(opts.Schema)
	if err != nil {
		return commandError(f, err)
	}

	examples := rec.Examples()
	raw := make([]json.RawMessage, len(examples))
	parts := make([]string, len(examples))
	for i, ex := range examples {
		pretty := ir.MarshalIndent(ex)
		raw[i] = pretty
		parts[i] = fmt.Sprintf("Example %d:\n%s", i+1, pretty)
	}
	return f.Text(strings.Join(parts, "\n\n"), raw)
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	SchemaOptions
	Reply string // file holding the reply, "-" for stdin
}

// ValidateResult is the JSON payload of the validate command.
type ValidateResult struct {
	Valid     bool                    `json:"valid"`
	Schema    string                  `json:"schema,omitempty"`
	Violation *schema.Violation       `json:"violation,omitempty"`
	Check     *harness.CheckResult    `json:"check,omitempty"`
	Cycles    []compiler.CycleWarning `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{SchemaOptions: SchemaOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "validate <schema-path>...",
		Short: "Check schema files, or a reply against a schema",
		Long: `Without --reply: compile the schema files, check that every schema's
examples satisfy the schema, and report required reference cycles.

With --reply: parse the reply (fences and trailing commas are tolerated)
and report the first violation against the schema.

Exit codes:
  0 - Valid
  1 - Invalid reply or failing example
  2 - Command error (bad schema file, unknown schema, unreadable reply)

Examples:
  tether validate ./schemas
  tether validate ./schemas --schema Pick --reply reply.json
  echo '{"x": 3}' | tether validate ./schemas --schema Pick --reply -`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Reply != "" {
				return runValidateReply(opts, args, cmd)
			}
			return runValidateSchemas(&opts.SchemaOptions, args, cmd)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&opts.Reply, "reply", "r", "", `reply file to validate ("-" for stdin)`)
	return cmd
}

func runValidateSchemas(opts *SchemaOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	loaded, err := LoadSchemas(paths)
	if err != nil {
		return commandError(f, err)
	}
	f.VerboseLog("Compiled %d schema(s) from %d file(s)", loaded.Catalog.Len(), loaded.FileCount)

	check := harness.CheckRecords(loaded.Catalog.Records())
	result := ValidateResult{Valid: check.Failed == 0, Check: check, Cycles: loaded.Cycles}

	if f.Format == "json" {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		w := f.Writer
		for _, c := range result.Cycles {
			fmt.Fprintf(w, "warning: %s\n", c.Message)
		}
		for _, fail := range check.Failures {
			fmt.Fprintf(w, "✗ %s\n", fail.Error())
		}
		if result.Valid {
			fmt.Fprintf(w, "✓ %d schema(s) valid, %d example(s) checked\n", check.TotalRecords, check.TotalExamples)
		}
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d example(s) failed", check.Failed))
	}
	return nil
}

func runValidateReply(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	loaded, err := LoadSchemas(paths)
	if err != nil {
		return commandError(f, err)
	}
	rec, err := loaded.Record(opts.Schema)
	if err != nil {
		return commandError(f, err)
	}

	data, err := readInput(opts.Reply, cmd.InOrStdin())
	if err != nil {
		return commandError(f, &LoadError{Code: ErrCodeBadInput, Message: err.Error()})
	}
	reply, err := generator.TryParseReply(string(data))
	if err != nil {
		return commandError(f, &LoadError{Code: ErrCodeBadInput, Message: fmt.Sprintf("reply is not JSON: %v", err)})
	}

	viol := rec.Validate(reply)
	result := ValidateResult{Valid: viol == nil, Schema: rec.Name(), Violation: viol}
	if viol == nil {
		return f.Text("✓ reply is a valid "+rec.Name(), result)
	}

	if f.Format == "json" {
		_ = f.Respond(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeInvalidReply, Message: viol.Short, Details: viol.Long},
		})
	} else {
		fmt.Fprintf(f.Writer, "✗ %s\n  %s\n", viol.Short, viol.Long)
	}
	return NewExitError(ExitFailure, viol.Short)
}

// PromptOptions holds flags for the prompt command.
type PromptOptions struct {
	SchemaOptions
	Template string
	Vars     []string
	VarsFile string
	Repair   string // file holding an invalid reply; prints the repair prompt
}

// NewPromptCommand creates the prompt command.
func NewPromptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PromptOptions{SchemaOptions: SchemaOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "prompt <schema-path>...",
		Short: "Render the prompt for a schema",
		Long: `Render a template bound to a schema exactly as a generator would receive
it, or, with --repair, the repair prompt for an invalid reply.

Placeholders are single-brace names ("{topic}"); "{{" and "}}" are literal
braces. Values come from --var name=value and --vars file.yaml; --var wins.

Examples:
  tether prompt ./schemas --schema Pick --template "Pick a number for {who}." --var who=Ann
  tether prompt ./schemas --schema Pick --repair bad.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrompt(opts, args, cmd)
		},
	}
	opts.bind(cmd)
	bindTemplateFlags(cmd, &opts.Template, &opts.Vars, &opts.VarsFile)
	cmd.Flags().StringVar(&opts.Repair, "repair", "", `invalid reply to build a repair prompt for ("-" for stdin)`)
	return cmd
}

func bindTemplateFlags(cmd *cobra.Command, template *string, vars *[]string, varsFile *string) {
	cmd.Flags().StringVarP(template, "template", "t", "", "prompt template")
	cmd.Flags().StringArrayVar(vars, "var", nil, "template variable as name=value (repeatable)")
	cmd.Flags().StringVar(varsFile, "vars", "", "YAML file of template variables")
}

func runPrompt(opts *PromptOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	loaded, err := LoadSchemas(paths)
	if err != nil {
		return commandError(f, err)
	}
	rec, err := loaded.Record(opts.Schema)
	if err != nil {
		return commandError(f, err)
	}

	if opts.Repair != "" {
		data, err := readInput(opts.Repair, cmd.InOrStdin())
		if err != nil {
			return commandError(f, &LoadError{Code: ErrCodeBadInput, Message: err.Error()})
		}
		text := rec.RepairPrompt(generator.ParseReply(string(data)))
		return f.Text(text, map[string]string{"prompt": text})
	}

	if opts.Template == "" {
		return commandError(f, &LoadError{Code: ErrCodeBadInput, Message: "--template is required"})
	}
	vars, err := parseVars(opts.Vars, opts.VarsFile)
	if err != nil {
		return commandError(f, &LoadError{Code: ErrCodeBadInput, Message: err.Error()})
	}
	text, err := prompt.New(opts.Template, rec).Render(vars)
	if err != nil {
		return commandError(f, &LoadError{Code: ErrCodeBadInput, Message: err.Error()})
	}
	return f.Text(text, map[string]string{"prompt": text})
}

// parseVars merges the vars file with name=value flags; flags win.
func parseVars(flags []string, file string) (prompt.Vars, error) {
	vars := prompt.Vars{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read vars file: %w", err)
		}
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return nil, fmt.Errorf("failed to parse vars file: %w", err)
		}
	}
	for _, kv := range flags {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: expected name=value", kv)
		}
		vars[name] = value
	}
	return vars, nil
}

// readInput reads path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
