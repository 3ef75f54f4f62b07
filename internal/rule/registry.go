package rule

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/tether/internal/ir"
)

var (
	// ErrUnknownRule is returned when no factory is registered under a name.
	ErrUnknownRule = errors.New("unknown rule")

	// ErrDuplicateRule is returned when a name is registered twice.
	ErrDuplicateRule = errors.New("rule already registered")

	// ErrBadParams is returned when a factory rejects its parameters.
	ErrBadParams = errors.New("invalid rule parameters")
)

// Params are the named parameters a declaration passes to a rule factory.
type Params map[string]any

// Factory builds a rule from declaration parameters.
type Factory func(p Params) (Rule, error)

// Registry is an explicit name to factory table.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the built-in rules:
// interval, one_of, regex, natural and excerpt.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.mustRegister("interval", buildInterval)
	reg.mustRegister("one_of", buildOneOf)
	reg.mustRegister("regex", buildRegex)
	reg.mustRegister("natural", func(Params) (Rule, error) { return NaturalNumber(), nil })
	reg.mustRegister("excerpt", buildExcerpt)
	return reg
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("register: empty rule name")
	}
	if f == nil {
		return fmt.Errorf("register %q: nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateRule)
	}
	r.factories[name] = f
	return nil
}

func (r *Registry) mustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Build looks up name and invokes its factory.
func (r *Registry) Build(name string, p Params) (Rule, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, name)
	}
	rl, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", name, err)
	}
	return rl, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildInterval(p Params) (Rule, error) {
	lo, err := p.number("min")
	if err != nil {
		return nil, err
	}
	hi, err := p.number("max")
	if err != nil {
		return nil, err
	}
	if lo > hi {
		return nil, fmt.Errorf("%w: min %v is greater than max %v", ErrBadParams, lo, hi)
	}
	return Interval(lo, hi), nil
}

func buildOneOf(p Params) (Rule, error) {
	raw, ok := p["values"]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrBadParams, "values")
	}
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: values: %v", ErrBadParams, err)
	}
	arr, ok := v.(ir.IRArray)
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("%w: values must be a non-empty list", ErrBadParams)
	}
	return OneOf(arr...), nil
}

func buildRegex(p Params) (Rule, error) {
	pattern, err := p.str("pattern")
	if err != nil {
		return nil, err
	}
	rl, err := Regex(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadParams, err)
	}
	return rl, nil
}

func buildExcerpt(p Params) (Rule, error) {
	source, err := p.str("source")
	if err != nil {
		return nil, err
	}
	var opts []ExcerptOption
	if _, ok := p["window"]; ok {
		n, err := p.number("window")
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithWindow(int(n)))
	}
	if _, ok := p["stride"]; ok {
		n, err := p.number("stride")
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithStride(int(n)))
	}
	if _, ok := p["threshold"]; ok {
		t, err := p.number("threshold")
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithThreshold(t))
	}
	if _, ok := p["min_length"]; ok {
		n, err := p.number("min_length")
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithMinLength(int(n)))
	}
	rl, err := Excerpt(source, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadParams, err)
	}
	return rl, nil
}

func (p Params) number(key string) (float64, error) {
	raw, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrBadParams, key)
	}
	v, err := ir.FromGo(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrBadParams, key, err)
	}
	n, ok := ir.Number(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number, got %s", ErrBadParams, key, ir.TypeName(v))
	}
	return n, nil
}

func (p Params) str(key string) (string, error) {
	raw, ok := p[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrBadParams, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrBadParams, key, raw)
	}
	return s, nil
}
