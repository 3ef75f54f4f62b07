package ir

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface representing a parsed reply value.
// Only IRNull, IRString, IRInt, IRFloat, IRBool, IRArray, and *IRObject
// implement this.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents a JSON null value.
// Using an explicit type ensures all IRValues satisfy the sealed interface.
type IRNull struct{}

func (IRNull) irValue() {}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value.
// Integers and floats are distinct kinds: 42 and 42.0 decode differently.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a number that carried a fraction or exponent on the wire.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
// A boolean never satisfies an integer check.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject is a keyed object that remembers insertion order.
//
// Order matters: schema examples and pretty-printed replies list keys in
// field declaration order, and the generator sees exactly that order.
// The zero value is not usable; construct with NewIRObject.
type IRObject struct {
	keys []string
	vals map[string]IRValue
}

func (*IRObject) irValue() {}

// IRPair represents a key-value pair for ordered IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// O is a shorthand for IRPair for ergonomic construction.
// Example: NewIRObject(O("name", IRString("cart")), O("count", IRInt(5)))
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// NewIRObject creates an IRObject from pairs, keeping their order.
// A repeated key keeps its first position and its last value.
func NewIRObject(pairs ...IRPair) *IRObject {
	obj := &IRObject{
		keys: make([]string, 0, len(pairs)),
		vals: make(map[string]IRValue, len(pairs)),
	}
	for _, p := range pairs {
		obj.Set(p.Key, p.Value)
	}
	return obj
}

// NewIRArray creates an IRArray from values.
func NewIRArray(vals ...IRValue) IRArray {
	return IRArray(vals)
}

// Get returns the value stored under key.
func (obj *IRObject) Get(key string) (IRValue, bool) {
	v, ok := obj.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (obj *IRObject) Has(key string) bool {
	_, ok := obj.vals[key]
	return ok
}

// Set stores v under key. New keys are appended; existing keys keep their position.
func (obj *IRObject) Set(key string, v IRValue) {
	if v == nil {
		v = IRNull{}
	}
	if _, ok := obj.vals[key]; !ok {
		obj.keys = append(obj.keys, key)
	}
	obj.vals[key] = v
}

// Delete removes key if present.
func (obj *IRObject) Delete(key string) {
	if _, ok := obj.vals[key]; !ok {
		return
	}
	delete(obj.vals, key)
	for i, k := range obj.keys {
		if k == key {
			obj.keys = append(obj.keys[:i], obj.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice is a copy.
func (obj *IRObject) Keys() []string {
	out := make([]string, len(obj.keys))
	copy(out, obj.keys)
	return out
}

// Len returns the number of keys.
func (obj *IRObject) Len() int {
	return len(obj.keys)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings orders by UTF-8 bytes, which differs for astral runes.
func (obj *IRObject) SortedKeys() []string {
	keys := obj.Keys()
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Replace overwrites obj in place with the contents of other.
// Used to patch a repaired reply into a working copy; holders of obj see the change.
func (obj *IRObject) Replace(other *IRObject) {
	if other == obj {
		return
	}
	obj.keys = obj.keys[:0]
	obj.vals = make(map[string]IRValue, other.Len())
	for _, k := range other.keys {
		obj.Set(k, Clone(other.vals[k]))
	}
}

// SetPath assigns v at a dot-separated path, creating intermediate objects.
// An intermediate that exists but is not an object is overwritten.
func (obj *IRObject) SetPath(path string, v IRValue) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		obj.Set(head, v)
		return
	}
	child, ok := obj.vals[head].(*IRObject)
	if !ok {
		child = NewIRObject()
		obj.Set(head, child)
	}
	child.SetPath(rest, v)
}

// Clone returns a deep copy of v.
func Clone(v IRValue) IRValue {
	switch val := v.(type) {
	case nil:
		return nil
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case *IRObject:
		if val == nil {
			return IRNull{}
		}
		out := &IRObject{
			keys: make([]string, len(val.keys)),
			vals: make(map[string]IRValue, len(val.keys)),
		}
		copy(out.keys, val.keys)
		for k, elem := range val.vals {
			out.vals[k] = Clone(elem)
		}
		return out
	default:
		// Scalars are immutable values.
		return v
	}
}

// Equal reports structural equality. Integers and floats compare numerically,
// so IRInt(1) equals IRFloat(1). Object key order is ignored.
func Equal(a, b IRValue) bool {
	if an, ok := numeric(a); ok {
		bn, ok := numeric(b)
		return ok && an == bn
	}
	switch av := a.(type) {
	case IRNull:
		_, ok := b.(IRNull)
		return ok
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *IRObject:
		bv, ok := b.(*IRObject)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.keys {
			other, ok := bv.vals[k]
			if !ok || !Equal(av.vals[k], other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Number returns the numeric value of an IRInt or IRFloat.
// Booleans are not numbers.
func Number(v IRValue) (float64, bool) {
	return numeric(v)
}

func numeric(v IRValue) (float64, bool) {
	switch n := v.(type) {
	case IRInt:
		return float64(n), true
	case IRFloat:
		return float64(n), true
	default:
		return 0, false
	}
}

// TypeName returns the JSON-facing kind of v, used in shape errors.
func TypeName(v IRValue) string {
	switch v.(type) {
	case nil, IRNull:
		return "null"
	case IRString:
		return "string"
	case IRInt:
		return "integer"
	case IRFloat:
		return "float"
	case IRBool:
		return "boolean"
	case IRArray:
		return "list"
	case *IRObject:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// IsIntegral reports whether f has no fractional part and fits an int64 exactly.
func IsIntegral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) && math.Abs(f) < 1<<53
}
