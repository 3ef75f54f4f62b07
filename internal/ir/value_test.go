package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRFloat(3.14)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = NewIRObject(O("key", IRString("value")))
}

func TestIRObjectKeepsInsertionOrder(t *testing.T) {
	obj := NewIRObject(
		O("zebra", IRString("z")),
		O("apple", IRString("a")),
		O("banana", IRString("b")),
	)

	assert.Equal(t, []string{"zebra", "apple", "banana"}, obj.Keys())

	obj.Set("apple", IRInt(1))
	assert.Equal(t, []string{"zebra", "apple", "banana"}, obj.Keys(), "existing key keeps its position")

	obj.Set("cherry", IRInt(2))
	assert.Equal(t, []string{"zebra", "apple", "banana", "cherry"}, obj.Keys())

	obj.Delete("apple")
	assert.Equal(t, []string{"zebra", "banana", "cherry"}, obj.Keys())
	assert.False(t, obj.Has("apple"))
	assert.Equal(t, 3, obj.Len())
}

func TestIRObjectKeysIsCopy(t *testing.T) {
	obj := NewIRObject(O("a", IRInt(1)))
	keys := obj.Keys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"a"}, obj.Keys())
}

func TestIRObjectSetNilStoresNull(t *testing.T) {
	obj := NewIRObject()
	obj.Set("k", nil)
	v, ok := obj.Get("k")
	require.True(t, ok)
	assert.Equal(t, IRNull{}, v)
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := NewIRObject(
		O("a", IRInt(1)),
		O("A", IRInt(2)),
		O("aa", IRInt(3)),
		O("aA", IRInt(4)),
		O("Aa", IRInt(5)),
		O("AA", IRInt(6)),
	)

	// 'A' = 65, 'a' = 97
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestIRObjectSortedKeysUTF16(t *testing.T) {
	// U+E000 vs U+10000: UTF-16 order differs from UTF-8
	obj := NewIRObject(
		O("\uE000", IRInt(1)),
		O("\U00010000", IRInt(2)),
	)
	assert.Equal(t, []string{"\U00010000", "\uE000"}, obj.SortedKeys())
}

func TestIRObjectSetPath(t *testing.T) {
	obj := NewIRObject(O("a", IRInt(1)))

	obj.SetPath("b.c.d", IRString("deep"))
	obj.SetPath("a", IRInt(2))

	assert.Equal(t, `{"a": 2, "b": {"c": {"d": "deep"}}}`, MarshalInline(obj))
}

func TestIRObjectSetPathOverwritesScalar(t *testing.T) {
	obj := NewIRObject(O("a", IRInt(1)))
	obj.SetPath("a.b", IRBool(true))
	assert.Equal(t, `{"a": {"b": true}}`, MarshalInline(obj))
}

func TestIRObjectReplace(t *testing.T) {
	target := NewIRObject(O("x", IRInt(50)), O("y", IRInt(1)))
	holder := IRArray{target}

	patch := NewIRObject(O("x", IRInt(10)))
	target.Replace(patch)

	assert.Equal(t, `[{"x": 10}]`, MarshalInline(holder), "holders see the patched value")

	// patch is deep-copied in
	patch.Set("x", IRInt(99))
	v, _ := target.Get("x")
	assert.Equal(t, IRInt(10), v)
}

func TestIRObjectReplaceSelf(t *testing.T) {
	obj := NewIRObject(O("x", IRInt(1)))
	obj.Replace(obj)
	assert.Equal(t, `{"x": 1}`, MarshalInline(obj))
}

func TestCloneIsDeep(t *testing.T) {
	orig := NewIRObject(
		O("list", IRArray{IRInt(1), NewIRObject(O("k", IRString("v")))}),
		O("sub", NewIRObject(O("n", IRInt(2)))),
	)

	cp := Clone(orig).(*IRObject)
	require.True(t, Equal(orig, cp))

	sub, _ := cp.Get("sub")
	sub.(*IRObject).Set("n", IRInt(3))
	list, _ := cp.Get("list")
	list.(IRArray)[1].(*IRObject).Set("k", IRString("changed"))

	assert.Equal(t, `{"list": [1, {"k": "v"}], "sub": {"n": 2}}`, MarshalInline(orig))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b IRValue
		want bool
	}{
		{"int int", IRInt(1), IRInt(1), true},
		{"int float", IRInt(1), IRFloat(1), true},
		{"float differs", IRFloat(1.5), IRInt(1), false},
		{"bool is not int", IRBool(true), IRInt(1), false},
		{"null null", IRNull{}, IRNull{}, true},
		{"null string", IRNull{}, IRString(""), false},
		{"strings", IRString("a"), IRString("a"), true},
		{"arrays", IRArray{IRInt(1)}, IRArray{IRFloat(1)}, true},
		{"array length", IRArray{IRInt(1)}, IRArray{}, false},
		{
			"objects ignore order",
			NewIRObject(O("a", IRInt(1)), O("b", IRInt(2))),
			NewIRObject(O("b", IRInt(2)), O("a", IRInt(1))),
			true,
		},
		{
			"objects differ",
			NewIRObject(O("a", IRInt(1))),
			NewIRObject(O("a", IRInt(2))),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a))
		})
	}
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "null", TypeName(IRNull{}))
	assert.Equal(t, "null", TypeName(nil))
	assert.Equal(t, "string", TypeName(IRString("")))
	assert.Equal(t, "integer", TypeName(IRInt(0)))
	assert.Equal(t, "float", TypeName(IRFloat(0)))
	assert.Equal(t, "boolean", TypeName(IRBool(false)))
	assert.Equal(t, "list", TypeName(IRArray{}))
	assert.Equal(t, "object", TypeName(NewIRObject()))
}

func TestNumber(t *testing.T) {
	n, ok := Number(IRInt(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)

	n, ok = Number(IRFloat(2.5))
	assert.True(t, ok)
	assert.Equal(t, 2.5, n)

	_, ok = Number(IRBool(true))
	assert.False(t, ok)
}

func TestIsIntegral(t *testing.T) {
	assert.True(t, IsIntegral(5))
	assert.True(t, IsIntegral(-3))
	assert.False(t, IsIntegral(2.5))
	assert.False(t, IsIntegral(1e300))
}
