package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tether/internal/strategy"
)

// DefaultGenerator names the generator built from a scenario's replies.
const DefaultGenerator = "default"

// Scenario defines one strategy run against scripted generators, with the
// expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schemas lists CUE files to compile. Paths are relative to the
	// scenario file.
	Schemas []string `yaml:"schemas,omitempty"`

	// Source is inline CUE compiled alongside Schemas.
	Source string `yaml:"source,omitempty"`

	// Schema is the record prompts bind to unless a strategy node names
	// another.
	Schema string `yaml:"schema"`

	// Template is the prompt template unless a strategy node names another.
	Template string `yaml:"template"`

	// Vars fill the template placeholders.
	Vars map[string]any `yaml:"vars,omitempty"`

	// Replies script the default generator. A string reply is treated as
	// raw generator text and parsed leniently.
	Replies []yaml.Node `yaml:"replies,omitempty"`

	// Generators script additional named generators.
	Generators map[string][]yaml.Node `yaml:"generators,omitempty"`

	// Strategy is the strategy tree to run.
	Strategy StrategySpec `yaml:"strategy"`

	// Overrides are passed to the top-level Run call.
	Overrides *OverrideSpec `yaml:"overrides,omitempty"`

	// Expect is the expected final attempt.
	Expect Expectation `yaml:"expect"`

	// Assertions check the call trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunID is an optional fixed run id. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Strategy kinds.
const (
	KindBase       = "base"
	KindFallback   = "fallback"
	KindAutoRepair = "auto_repair"
)

// StrategySpec declares one node of a strategy tree.
type StrategySpec struct {
	Kind string `yaml:"kind"`

	// Base only.
	Generator string         `yaml:"generator,omitempty"`
	Template  string         `yaml:"template,omitempty"`
	Schema    string         `yaml:"schema,omitempty"`
	Retries   int            `yaml:"retries,omitempty"`
	Backoff   *time.Duration `yaml:"backoff,omitempty"`

	// AutoRepair only.
	Depth         *int          `yaml:"depth,omitempty"`
	Mode          string        `yaml:"mode,omitempty"`
	Scope         string        `yaml:"scope,omitempty"`
	RepairRetries *int          `yaml:"repair_retries,omitempty"`
	RepairBackoff time.Duration `yaml:"repair_backoff,omitempty"`

	// Inner is wrapped by fallback and auto_repair.
	Inner *StrategySpec `yaml:"inner,omitempty"`

	// Fallback runs when Inner fails.
	Fallback *StrategySpec `yaml:"fallback,omitempty"`
}

// OverrideSpec declares per-call overrides.
type OverrideSpec struct {
	Template string         `yaml:"template,omitempty"`
	Schema   string         `yaml:"schema,omitempty"`
	Retries  *int           `yaml:"retries,omitempty"`
	Backoff  *time.Duration `yaml:"backoff,omitempty"`
	Depth    *int           `yaml:"depth,omitempty"`
	Mode     string         `yaml:"mode,omitempty"`
	Scope    string         `yaml:"scope,omitempty"`
	Inner    *OverrideSpec  `yaml:"inner,omitempty"`
	Fallback *OverrideSpec  `yaml:"fallback,omitempty"`
}

// Expectation specifies the expected final attempt. Zero-valued optional
// fields are not checked.
type Expectation struct {
	OK    bool      `yaml:"ok"`
	Reply yaml.Node `yaml:"reply,omitempty"` // zero Kind when absent
	Short string    `yaml:"short,omitempty"`
	Long  string    `yaml:"long,omitempty"`
	Kind  string    `yaml:"kind,omitempty"`
	Calls int       `yaml:"calls,omitempty"`
}

// Assertion validates the call trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "prompt_contains": the prompt of call Call contains Text
	// - "generator_calls": generator Generator was called Count times
	// - "call_order": the generators called, in order, are exactly Generators
	// - "waits": the backoff waits, in order, are exactly Waits
	Type string `yaml:"type"`

	Call       int             `yaml:"call,omitempty"`
	Text       string          `yaml:"text,omitempty"`
	Generator  string          `yaml:"generator,omitempty"`
	Count      int             `yaml:"count,omitempty"`
	Generators []string        `yaml:"generators,omitempty"`
	Waits      []time.Duration `yaml:"waits,omitempty"`
}

// Assertion type constants.
const (
	AssertPromptContains = "prompt_contains"
	AssertGeneratorCalls = "generator_calls"
	AssertCallOrder      = "call_order"
	AssertWaits          = "waits"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Schema paths are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving schema paths against
// basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Schemas {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Schemas[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Schemas) == 0 && s.Source == "" {
		return fmt.Errorf("schemas or source is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if s.Template == "" {
		return fmt.Errorf("template is required")
	}

	for _, p := range s.Schemas {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", p)
		}
	}

	if err := validateStrategy("strategy", &s.Strategy, s); err != nil {
		return err
	}
	if err := validateOverrides("overrides", s.Overrides); err != nil {
		return err
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStrategy(path string, sp *StrategySpec, s *Scenario) error {
	switch sp.Kind {
	case KindBase:
		if sp.Inner != nil || sp.Fallback != nil {
			return fmt.Errorf("%s: base takes no inner or fallback", path)
		}
		name := sp.Generator
		if name == "" {
			name = DefaultGenerator
		}
		if name == DefaultGenerator && len(s.Replies) == 0 {
			return fmt.Errorf("%s: replies are required for the default generator", path)
		}
		if _, ok := s.Generators[name]; !ok && name != DefaultGenerator {
			return fmt.Errorf("%s: unknown generator %q", path, name)
		}
		if sp.Retries < 0 {
			return fmt.Errorf("%s: retries must be non-negative", path)
		}
		return nil
	case KindFallback:
		if sp.Inner == nil || sp.Fallback == nil {
			return fmt.Errorf("%s: fallback requires inner and fallback", path)
		}
		if err := validateStrategy(path+".inner", sp.Inner, s); err != nil {
			return err
		}
		return validateStrategy(path+".fallback", sp.Fallback, s)
	case KindAutoRepair:
		if sp.Inner == nil {
			return fmt.Errorf("%s: auto_repair requires inner", path)
		}
		if sp.Fallback != nil {
			return fmt.Errorf("%s: auto_repair takes no fallback", path)
		}
		if err := validateModeScope(path, sp.Mode, sp.Scope); err != nil {
			return err
		}
		return validateStrategy(path+".inner", sp.Inner, s)
	case "":
		return fmt.Errorf("%s: kind is required", path)
	default:
		return fmt.Errorf("%s: unknown strategy kind %q", path, sp.Kind)
	}
}

func validateOverrides(path string, ov *OverrideSpec) error {
	if ov == nil {
		return nil
	}
	if err := validateModeScope(path, ov.Mode, ov.Scope); err != nil {
		return err
	}
	if err := validateOverrides(path+".inner", ov.Inner); err != nil {
		return err
	}
	return validateOverrides(path+".fallback", ov.Fallback)
}

func validateModeScope(path, mode, scope string) error {
	switch strategy.Mode(mode) {
	case "", strategy.ModeSub, strategy.ModeFull:
	default:
		return fmt.Errorf("%s: unknown mode %q", path, mode)
	}
	switch strategy.Scope(scope) {
	case "", strategy.ScopeRecord, strategy.ScopeNested:
	default:
		return fmt.Errorf("%s: unknown scope %q", path, scope)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPromptContains:
		if a.Call < 1 {
			return fmt.Errorf("assertions[%d]: call must be 1 or more for prompt_contains", index)
		}
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for prompt_contains", index)
		}
	case AssertGeneratorCalls:
		if a.Generator == "" {
			return fmt.Errorf("assertions[%d]: generator is required for generator_calls", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for generator_calls", index)
		}
	case AssertCallOrder:
		if len(a.Generators) == 0 {
			return fmt.Errorf("assertions[%d]: generators list is required for call_order", index)
		}
	case AssertWaits:
		// an empty list asserts that nothing waited
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
