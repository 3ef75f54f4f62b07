package compiler

import (
	"fmt"

	"github.com/roach88/tether/internal/rule"
	"github.com/roach88/tether/internal/schema"
)

// Catalog holds compiled schemas in declaration order.
type Catalog struct {
	order   []string
	records map[string]*schema.Record
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{records: make(map[string]*schema.Record)}
}

// CompileFiles compiles several files into one catalog. A schema name may be
// declared in only one file. Refs resolve within each file.
func CompileFiles(reg *rule.Registry, paths ...string) (*Catalog, error) {
	out := NewCatalog()
	for _, path := range paths {
		cat, err := CompileFile(path, reg)
		if err != nil {
			return nil, err
		}
		if err := out.Merge(cat); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return out, nil
}

// Add appends rec. Names must be unique.
func (c *Catalog) Add(rec *schema.Record) error {
	if _, exists := c.records[rec.Name()]; exists {
		return ValidationError{
			Field:   rec.Name(),
			Message: fmt.Sprintf("schema %q declared twice", rec.Name()),
			Code:    ErrDuplicateSchema,
		}
	}
	c.order = append(c.order, rec.Name())
	c.records[rec.Name()] = rec
	return nil
}

// Merge adds every schema of other, in order.
func (c *Catalog) Merge(other *Catalog) error {
	for _, rec := range other.Records() {
		if err := c.Add(rec); err != nil {
			return err
		}
	}
	return nil
}

// replace swaps in a rebuilt record under an existing name.
func (c *Catalog) replace(rec *schema.Record) {
	c.records[rec.Name()] = rec
}

// Lookup returns the schema declared under name.
func (c *Catalog) Lookup(name string) (*schema.Record, bool) {
	rec, ok := c.records[name]
	return rec, ok
}

// Names returns schema names in declaration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Records returns the schemas in declaration order.
func (c *Catalog) Records() []*schema.Record {
	out := make([]*schema.Record, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.records[name])
	}
	return out
}

// Len returns the number of schemas.
func (c *Catalog) Len() int { return len(c.order) }
