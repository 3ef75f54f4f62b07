package schema

import (
	"strconv"
	"strings"

	"github.com/roach88/tether/internal/ir"
)

// NoteFor returns the note attached to the field a dotted path names,
// following nested records through lists, tuples, optionals and unions.
// Index markers ("[]", "[2]") are stripped from each segment.
func (r *Record) NoteFor(path string) string {
	rec := r
	parts := strings.Split(path, ".")
	for i, raw := range parts {
		name, idx, hasIdx := splitIndex(raw)
		f, ok := rec.Field(name)
		if !ok {
			return ""
		}
		if i == len(parts)-1 {
			return rec.notes[name]
		}
		next, ok := enclosedRecord(f.Type, idx, hasIdx)
		if !ok {
			return ""
		}
		rec = next
	}
	return ""
}

// splitIndex splits "items[2]" into ("items", 2, true). "items[]" yields
// index 0 with hasIdx false.
func splitIndex(seg string) (string, int, bool) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, 0, false
	}
	name := seg[:open]
	end := strings.IndexByte(seg[open:], ']')
	if end < 0 {
		return name, 0, false
	}
	n, err := strconv.Atoi(seg[open+1 : open+end])
	if err != nil {
		return name, 0, false
	}
	return name, n, true
}

// enclosedRecord finds the record a path descends into through t: the element
// of a list, the indexed position of a tuple, the inner type of an optional,
// or the first union alternative that leads to a record.
func enclosedRecord(t Type, idx int, hasIdx bool) (*Record, bool) {
	switch tt := t.(type) {
	case RecordType:
		return asRecord(tt)
	case OptionalType:
		return enclosedRecord(tt.Inner, idx, hasIdx)
	case ListType:
		return enclosedRecord(tt.Elem, idx, hasIdx)
	case TupleType:
		if hasIdx && idx < len(tt.Elems) {
			return enclosedRecord(tt.Elems[idx], 0, false)
		}
		for _, el := range tt.Elems {
			if rec, ok := enclosedRecord(el, 0, false); ok {
				return rec, true
			}
		}
		return nil, false
	case UnionType:
		for _, alt := range tt.Alts {
			if rec, ok := enclosedRecord(alt, idx, hasIdx); ok {
				return rec, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

// step is one move from a value to a child: an object key or a list index.
type step struct {
	key   string
	index int
	isIdx bool
}

// Scope is a nested record enclosing a violation, located inside a reply.
type Scope struct {
	// Path is the dotted path of the enclosing object; empty for the root.
	Path string
	// Record is the schema the object at Path must satisfy.
	Record *Record
	steps  []step
}

// IsRoot reports whether the scope is the whole reply.
func (s Scope) IsRoot() bool { return len(s.steps) == 0 }

// Locate finds the innermost nested record that encloses the value at a
// violation path, so a repair can be narrowed to that sub-object. The reply
// is consulted so that only objects actually present are chosen. When no
// nested record encloses the path, the root scope is returned.
func (r *Record) Locate(reply ir.IRValue, path string) Scope {
	root := Scope{Record: r}
	best := root

	rec := r
	cur := reply
	var steps []step
	var walked []string

	segs := splitPath(path)
	for i, seg := range segs {
		// the last segment names the offending value itself
		if i == len(segs)-1 {
			break
		}
		obj, ok := cur.(*ir.IRObject)
		if !ok {
			break
		}
		f, ok := rec.Field(seg.name)
		if !ok {
			break
		}
		val, ok := obj.Get(seg.name)
		if !ok {
			break
		}
		steps = append(steps, step{key: seg.name})
		walked = append(walked, seg.name)
		cur = val
		t := f.Type

		for _, idx := range seg.indices {
			arr, ok := cur.(ir.IRArray)
			if !ok || idx >= len(arr) {
				return best
			}
			steps = append(steps, step{index: idx, isIdx: true})
			walked[len(walked)-1] += "[" + strconv.Itoa(idx) + "]"
			cur = arr[idx]
			t = elementType(t, idx)
			if t == nil {
				return best
			}
		}

		next, ok := recordFor(t)
		if !ok {
			break
		}
		if _, isObj := cur.(*ir.IRObject); !isObj {
			break
		}
		rec = next
		best = Scope{
			Path:   strings.Join(walked, "."),
			Record: rec,
			steps:  append([]step(nil), steps...),
		}
	}
	return best
}

// Extract returns the object the scope points at inside reply.
func (s Scope) Extract(reply ir.IRValue) (*ir.IRObject, bool) {
	cur := reply
	for _, st := range s.steps {
		if st.isIdx {
			arr, ok := cur.(ir.IRArray)
			if !ok || st.index >= len(arr) {
				return nil, false
			}
			cur = arr[st.index]
			continue
		}
		obj, ok := cur.(*ir.IRObject)
		if !ok {
			return nil, false
		}
		if cur, ok = obj.Get(st.key); !ok {
			return nil, false
		}
	}
	obj, ok := cur.(*ir.IRObject)
	return obj, ok
}

type pathSeg struct {
	name    string
	indices []int
}

// splitPath parses "a.b[1][2].c" into segments with their list indices.
func splitPath(path string) []pathSeg {
	var segs []pathSeg
	for _, raw := range strings.Split(path, ".") {
		name, rest, _ := strings.Cut(raw, "[")
		seg := pathSeg{name: name}
		for rest != "" {
			num, after, ok := strings.Cut(rest, "]")
			if !ok {
				break
			}
			if n, err := strconv.Atoi(num); err == nil {
				seg.indices = append(seg.indices, n)
			}
			rest = strings.TrimPrefix(after, "[")
		}
		segs = append(segs, seg)
	}
	return segs
}

// elementType is the type of position idx inside a list or tuple, looking
// through optionals and taking the first list-like union alternative.
func elementType(t Type, idx int) Type {
	switch tt := t.(type) {
	case OptionalType:
		return elementType(tt.Inner, idx)
	case ListType:
		return tt.Elem
	case TupleType:
		if idx < len(tt.Elems) {
			return tt.Elems[idx]
		}
		return nil
	case UnionType:
		for _, alt := range tt.Alts {
			if el := elementType(alt, idx); el != nil {
				return el
			}
		}
		return nil
	default:
		return nil
	}
}

// recordFor resolves t to a record, looking through optionals and taking the
// first record alternative of a union.
func recordFor(t Type) (*Record, bool) {
	switch tt := t.(type) {
	case RecordType:
		return asRecord(tt)
	case OptionalType:
		return recordFor(tt.Inner)
	case UnionType:
		for _, alt := range tt.Alts {
			if rec, ok := recordFor(alt); ok {
				return rec, true
			}
		}
	}
	return nil, false
}
