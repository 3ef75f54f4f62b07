package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/schema"
)

// TestAnalyzeCycles_Empty tests that empty input produces no warnings.
func TestAnalyzeCycles_Empty(t *testing.T) {
	warnings := AnalyzeCycles(nil)
	assert.Empty(t, warnings)
	assert.NotNil(t, warnings)
}

// TestAnalyzeCycles_DAG tests that nested records without recursion produce
// no warnings.
func TestAnalyzeCycles_DAG(t *testing.T) {
	cat, err := CompileString(`
		schema: Order: fields: {
			customer: {ref: "Customer"}
			address:  {ref: "Address"}
		}
		schema: Customer: fields: home: {ref: "Address"}
		schema: Address: fields: street: "string"
	`, nil)
	require.NoError(t, err)

	assert.Empty(t, AnalyzeCycles(cat.Records()))
}

// TestAnalyzeCycles_EscapableRecursion tests that recursion through optional
// fields, lists and unions is not reported.
func TestAnalyzeCycles_EscapableRecursion(t *testing.T) {
	cat, err := CompileString(`
		schema: Tree: fields: {
			children: {list: {ref: "Tree"}}
			parent:   {optional: {ref: "Tree"}}
			link:     {union: [{ref: "Tree"}, "string"]}
		}
	`, nil)
	require.NoError(t, err)

	assert.Empty(t, AnalyzeCycles(cat.Records()))
}

// TestAnalyzeCycles_SelfLoop tests a record that requires itself.
func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	cat, err := CompileString(`schema: Loop: fields: next: {ref: "Loop"}`, nil)
	require.NoError(t, err)

	warnings := AnalyzeCycles(cat.Records())
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Loop", "Loop"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "requires itself")
}

// TestAnalyzeCycles_MultiNode tests a cycle through several records,
// including one reached through a tuple.
func TestAnalyzeCycles_MultiNode(t *testing.T) {
	cat, err := CompileString(`
		schema: A: fields: b: {ref: "B"}
		schema: B: fields: pair: {tuple: ["string", {ref: "C"}]}
		schema: C: fields: a: {ref: "A"}
		schema: D: fields: a: {ref: "A"}
	`, nil)
	require.NoError(t, err)

	warnings := AnalyzeCycles(cat.Records())
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, warnings[0].Path)
	assert.Equal(t, "schemas require each other: A → B → C → A", warnings[0].Message)
}

// TestAnalyzeCycles_GoRecords tests records declared in Go and reached only
// through references.
func TestAnalyzeCycles_GoRecords(t *testing.T) {
	var ping, pong *schema.Record
	ping = schema.MustRecord("Ping", schema.WithField("pong", schema.Ref(func() *schema.Record { return pong })))
	pong = schema.MustRecord("Pong", schema.WithField("ping", schema.Ref(func() *schema.Record { return ping })))

	warnings := AnalyzeCycles([]*schema.Record{ping})
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Ping", "Pong", "Ping"}, warnings[0].Path)
}
