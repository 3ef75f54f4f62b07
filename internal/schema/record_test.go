package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/rule"
)

func intAt(obj *ir.IRObject, key string) int64 {
	v, _ := obj.Get(key)
	n, _ := v.(ir.IRInt)
	return int64(n)
}

// parity requires y odd when x is even and vice versa.
func parity() *Record {
	return MustRecord("Parity",
		WithField("x", Integer()),
		WithField("y", Integer()),
		WithConstraint("y", "must be odd if x is even and vice versa",
			func(obj *ir.IRObject) bool {
				return (intAt(obj, "x")+intAt(obj, "y"))%2 != 0
			},
			func(obj *ir.IRObject) {
				obj.Set("y", ir.IRInt(intAt(obj, "x")+1))
			}),
	)
}

func kitchenSink(t *testing.T) *Record {
	t.Helper()
	level := MustRecord("Level",
		WithHeader("Single level"),
		WithField("name", String()),
		WithField("weight", OptionalOf(Integer())),
	)
	return MustRecord("Sink",
		WithField("score", Ruled(rule.Interval(0, 10))),
		WithField("color", Ruled(rule.OneOf(ir.IRString("red"), ir.IRString("blue")))),
		WithField("code", Ruled(rule.MustRegex(`[A-Z]{2}\d+`))),
		WithField("count", Ruled(rule.NaturalNumber())),
		WithField("tags", ListOf(String())),
		WithField("pair", TupleOf(Integer(), RecordOf(level))),
		WithField("pick", UnionOf(ListOf(RecordOf(level)), Boolean())),
		WithField("maybe", OptionalOf(Float())),
		WithField("levels", ListOf(RecordOf(level))),
		WithField("level", RecordOf(level)),
		WithField("flag", Boolean()),
	)
}

func TestExampleSelfValidates(t *testing.T) {
	records := map[string]*Record{
		"parity": parity(),
		"sink":   kitchenSink(t),
		"overridden": MustRecord("Over",
			WithField("name", String()),
			WithField("sub", RecordOf(MustRecord("Sub", WithField("n", Ruled(rule.Interval(1, 3)))))),
			WithOverride("name", ir.IRString("Ben")),
			WithOverride("sub.n", ir.IRInt(1)),
		),
	}

	for name, rec := range records {
		t.Run(name, func(t *testing.T) {
			ex := rec.Example()
			assert.Nil(t, rec.Validate(ex), "example: %s", ir.MarshalInline(ex))
			// idempotent
			assert.Nil(t, rec.Validate(ex))
		})
	}
}

func TestExampleAppliesFixupsThenOverrides(t *testing.T) {
	rec := parity()
	assert.Equal(t, `{"x": 42, "y": 43}`, ir.MarshalInline(rec.Example()))

	pinned := MustRecord("Pinned",
		WithField("x", Integer()),
		WithField("y", Integer()),
		WithConstraint("y", "must differ from x",
			func(obj *ir.IRObject) bool { return intAt(obj, "x") != intAt(obj, "y") },
			func(obj *ir.IRObject) { obj.Set("y", ir.IRInt(0)) }),
		WithOverride("y", ir.IRInt(7)),
	)
	assert.Equal(t, `{"x": 42, "y": 7}`, ir.MarshalInline(pinned.Example()))
}

func TestExampleIsFreshCopy(t *testing.T) {
	rec := MustRecord("R", WithField("x", Integer()), WithOverride("x", ir.IRInt(1)))
	ex := rec.Example()
	ex.Set("x", ir.IRInt(99))
	assert.Equal(t, `{"x": 1}`, ir.MarshalInline(rec.Example()))
}

func TestValidHandBuiltInstance(t *testing.T) {
	rec := kitchenSink(t)
	v, err := ir.Parse([]byte(`{
		"score": 7.5,
		"color": "blue",
		"code": "AB12",
		"count": 1,
		"tags": [],
		"pair": [1, {"name": "n"}],
		"pick": false,
		"maybe": null,
		"levels": [{"name": "a", "weight": 2}, {"name": "b", "weight": null}],
		"level": {"name": "c"},
		"flag": true
	}`))
	require.NoError(t, err)
	assert.Nil(t, rec.Validate(v))
}

func TestValidateCrossField(t *testing.T) {
	rec := parity()

	assert.Nil(t, rec.Validate(ir.NewIRObject(ir.O("x", ir.IRInt(42)), ir.O("y", ir.IRInt(1)))))

	viol := rec.Validate(ir.NewIRObject(ir.O("x", ir.IRInt(42)), ir.O("y", ir.IRInt(2))))
	require.NotNil(t, viol)
	assert.Equal(t, ConstraintViolation, viol.Kind)
	assert.Equal(t, "y", viol.Path)
	assert.Equal(t, `"y" violates constraint.`, viol.Short)
	assert.Equal(t, `"y" must be odd if x is even and vice versa`, viol.Long)
}

func TestValidateErrorPriority(t *testing.T) {
	rec := MustRecord("R", WithField("x", Integer()), WithField("y", String()))

	viol := rec.Validate(ir.NewIRObject(ir.O("y", ir.IRInt(1)), ir.O("x", ir.IRString("a"))))
	require.NotNil(t, viol)
	assert.Equal(t, `"x" must be integer`, viol.Short)

	viol = rec.Validate(ir.NewIRObject(ir.O("x", ir.IRInt(42)), ir.O("y", ir.IRInt(42))))
	require.NotNil(t, viol)
	assert.Equal(t, `"y" must be string`, viol.Short)
}

func TestValidateUnknownKeysFirst(t *testing.T) {
	rec := MustRecord("R", WithField("x", Integer()))

	viol := rec.Validate(ir.NewIRObject(ir.O("x", ir.IRString("bad")), ir.O("z", ir.IRInt(1))))
	require.NotNil(t, viol)
	assert.Equal(t, SchemaMismatch, viol.Kind)
	assert.Equal(t, `"z" is not a valid field.`, viol.Short)
	assert.Equal(t, `"z" is not expected here.`, viol.Long)
}

func TestValidateMissing(t *testing.T) {
	rec := MustRecord("R",
		WithField("a", Integer()),
		WithField("b", Integer()),
		WithField("c", OptionalOf(Integer())),
	)

	viol := rec.Validate(ir.NewIRObject(ir.O("a", ir.IRInt(1))))
	require.NotNil(t, viol)
	assert.Equal(t, `"b" is missing.`, viol.Short)
	assert.Equal(t, `"b" must be present.`, viol.Long)

	// optional field may be absent, null or a value
	assert.Nil(t, rec.Validate(ir.NewIRObject(ir.O("a", ir.IRInt(1)), ir.O("b", ir.IRInt(2)))))
	assert.Nil(t, rec.Validate(ir.NewIRObject(ir.O("a", ir.IRInt(1)), ir.O("b", ir.IRInt(2)), ir.O("c", ir.IRNull{}))))
	assert.Nil(t, rec.Validate(ir.NewIRObject(ir.O("a", ir.IRInt(1)), ir.O("b", ir.IRInt(2)), ir.O("c", ir.IRInt(3)))))
	assert.NotNil(t, rec.Validate(ir.NewIRObject(ir.O("a", ir.IRInt(1)), ir.O("b", ir.IRInt(2)), ir.O("c", ir.IRString("3")))))
}

func TestValidateEmptyReply(t *testing.T) {
	rec := MustRecord("R", WithField("x", Integer()))
	viol := rec.Validate(ir.NewIRObject())
	require.NotNil(t, viol)
	assert.Equal(t, `"x" is missing.`, viol.Short)

	viol = rec.Validate(ir.IRArray{})
	require.NotNil(t, viol)
	assert.Equal(t, `"R" must be an object`, viol.Short)
}

func TestValidateNestedPaths(t *testing.T) {
	inner := MustRecord("Inner", WithField("x", Integer()), WithField("y", ListOf(String())))
	rec := MustRecord("Outer", WithField("a", RecordOf(inner)))

	v, err := ir.Parse([]byte(`{"a": {"x": 1, "y": ["ok", 2]}}`))
	require.NoError(t, err)
	viol := rec.Validate(v)
	require.NotNil(t, viol)
	assert.Equal(t, "a.y[1]", viol.Path)
	assert.Equal(t, `"a.y[1]" must be string`, viol.Short)

	v, err = ir.Parse([]byte(`{"a": {"y": []}}`))
	require.NoError(t, err)
	viol = rec.Validate(v)
	require.NotNil(t, viol)
	assert.Equal(t, `"a.x" is missing.`, viol.Short)
	assert.Equal(t, `"a.x" must be present.`, viol.Long)

	v, err = ir.Parse([]byte(`{"a": 3}`))
	require.NoError(t, err)
	viol = rec.Validate(v)
	require.NotNil(t, viol)
	assert.Equal(t, `"a" must be an object`, viol.Short)
}

func TestValidateNestedCrossField(t *testing.T) {
	rec := MustRecord("Outer", WithField("p", RecordOf(parity())))

	v, err := ir.Parse([]byte(`{"p": {"x": 2, "y": 4}}`))
	require.NoError(t, err)
	viol := rec.Validate(v)
	require.NotNil(t, viol)
	assert.Equal(t, `"p.y" violates constraint.`, viol.Short)
	assert.Equal(t, `"p.y" must be odd if x is even and vice versa`, viol.Long)
}

func TestRecordLevelConstraint(t *testing.T) {
	rec := MustRecord("Range",
		WithField("lo", Integer()),
		WithField("hi", Integer()),
		WithConstraint("", "lo must not exceed hi",
			func(obj *ir.IRObject) bool { return intAt(obj, "lo") <= intAt(obj, "hi") }, nil),
	)

	viol := rec.Validate(ir.NewIRObject(ir.O("lo", ir.IRInt(5)), ir.O("hi", ir.IRInt(1))))
	require.NotNil(t, viol)
	assert.Equal(t, "Range", viol.Path)
	assert.Equal(t, `"Range" violates constraint.`, viol.Short)
}

func TestRecursiveRecord(t *testing.T) {
	var node *Record
	node = MustRecord("Node",
		WithField("value", Integer()),
		WithField("children", ListOf(Ref(func() *Record { return node }))),
	)

	ex := node.Example()
	assert.Nil(t, node.Validate(ex))
	assert.NotEmpty(t, node.Rules())

	v, err := ir.Parse([]byte(`{"value": 1, "children": [{"value": 2, "children": [{"value": "x", "children": []}]}]}`))
	require.NoError(t, err)
	viol := node.Validate(v)
	require.NotNil(t, viol)
	assert.Equal(t, "children[0].children[0].value", viol.Path)
}

func TestNewRecordErrors(t *testing.T) {
	_, err := NewRecord("", WithField("x", Integer()))
	assert.Error(t, err)

	_, err = NewRecord("R", WithField("x", Integer()), WithField("x", String()))
	assert.ErrorContains(t, err, "declared twice")

	_, err = NewRecord("R", WithField("x", nil))
	assert.ErrorContains(t, err, "nil type")

	_, err = NewRecord("R", WithField("x", Integer()), WithNote("y", "nope"))
	assert.ErrorContains(t, err, "unknown field")

	_, err = NewRecord("R", WithField("x", Integer()),
		WithConstraint("z.w", "bad", func(*ir.IRObject) bool { return true }, nil))
	assert.ErrorContains(t, err, "unknown field")

	_, err = NewRecord("R", WithField("x", Integer()), WithConstraint("x", "bad", nil, nil))
	assert.ErrorContains(t, err, "nil check")

	assert.Panics(t, func() { MustRecord("") })
}

func TestRecordAccessors(t *testing.T) {
	rec := MustRecord("R",
		WithHeader("head"),
		WithField("x", Integer()),
		WithNote("x", "the x"),
		WithExample(ir.NewIRObject(ir.O("x", ir.IRInt(7)))),
	)

	assert.Equal(t, "R", rec.Name())
	assert.Equal(t, "head", rec.Header())
	assert.Equal(t, "the x", rec.Note("x"))
	require.Len(t, rec.Fields(), 1)
	assert.Equal(t, "x", rec.Fields()[0].Name)

	_, ok := rec.Field("x")
	assert.True(t, ok)

	exs := rec.Examples()
	require.Len(t, exs, 2)
	assert.Equal(t, `{"x": 42}`, ir.MarshalInline(exs[0]))
	assert.Equal(t, `{"x": 7}`, ir.MarshalInline(exs[1]))
}

func TestViolationAsError(t *testing.T) {
	var err error = parity().Validate(ir.NewIRObject())
	v, ok := AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, `"x" is missing.`, v.Error())
	assert.True(t, IsKind(err, SchemaMismatch))
	assert.False(t, IsKind(err, UnionExhausted))
}
