package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Parse decodes JSON into an IRValue, preserving object key order.
//
// Numbers written without fraction or exponent decode to IRInt; everything
// else (and integers that overflow int64) decode to IRFloat.
func Parse(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (IRValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return IRString(t), nil
	case bool:
		return IRBool(t), nil
	case nil:
		// null becomes IRNull (not nil) to satisfy sealed interface
		return IRNull{}, nil
	case json.Number:
		return numberValue(t)
	default:
		return nil, fmt.Errorf("unsupported token %T", tok)
	}
}

func decodeObject(dec *json.Decoder) (IRValue, error) {
	obj := NewIRObject()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key must be a string, got %T", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("object key %q: %w", key, err)
		}
		obj.Set(key, val)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) (IRValue, error) {
	arr := IRArray{}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("array index %d: %w", len(arr), err)
		}
		arr = append(arr, val)
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

func numberValue(n json.Number) (IRValue, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return IRInt(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return IRFloat(f), nil
}

// FromGo converts plain Go values (as produced by encoding/json, yaml.v3 or
// literal construction) into an IRValue. Map keys are sorted, since Go maps
// carry no order.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint:
		return IRInt(val), nil
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return IRFloat(val), nil
		}
		return IRInt(val), nil
	case float32:
		return IRFloat(val), nil
	case float64:
		return IRFloat(val), nil
	case json.Number:
		return numberValue(val)
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewIRObject()
		for _, k := range keys {
			irElem, err := FromGo(val[k])
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj.Set(k, irElem)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// MustFromGo is FromGo for literals in tests and declarations.
func MustFromGo(v any) IRValue {
	out, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return out
}

// ToGo converts an IRValue back into plain Go values.
// Objects become map[string]any, so key order is lost.
func ToGo(v IRValue) any {
	switch val := v.(type) {
	case nil, IRNull:
		return nil
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRFloat:
		return float64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case *IRObject:
		out := make(map[string]any, val.Len())
		for _, k := range val.keys {
			out[k] = ToGo(val.vals[k])
		}
		return out
	default:
		return nil
	}
}

// MarshalIndent renders v as JSON with a two-space indent and keys in
// insertion order. This is the form shown to the generator for worked
// examples and for the offending value in repair prompts.
func MarshalIndent(v IRValue) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v, "  ", 0)
	return buf.Bytes()
}

// MarshalInline renders v on one line with ", " and ": " separators.
func MarshalInline(v IRValue) string {
	var buf bytes.Buffer
	writeValue(&buf, v, "", 0)
	return buf.String()
}

// MarshalJSON implements json.Marshaler with keys in insertion order.
func (obj *IRObject) MarshalJSON() ([]byte, error) {
	return compact(obj)
}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := Parse(data)
	if err != nil {
		return err
	}
	parsed, ok := v.(*IRObject)
	if !ok {
		return fmt.Errorf("expected JSON object, got %s", TypeName(v))
	}
	*obj = *parsed
	return nil
}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// MarshalJSON keeps the float kind visible on the wire (10.0, not 10).
func (f IRFloat) MarshalJSON() ([]byte, error) {
	return []byte(formatFloat(float64(f))), nil
}

func compact(v IRValue) ([]byte, error) {
	var buf bytes.Buffer
	writeCompact(&buf, v)
	return buf.Bytes(), nil
}

// writeValue writes v. An empty indent selects the single-line form.
func writeValue(buf *bytes.Buffer, v IRValue, indent string, level int) {
	switch val := v.(type) {
	case IRArray:
		if len(val) == 0 {
			buf.WriteString("[]")
			return
		}
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
				if indent == "" {
					buf.WriteByte(' ')
				}
			}
			newline(buf, indent, level+1)
			writeValue(buf, elem, indent, level+1)
		}
		newline(buf, indent, level)
		buf.WriteByte(']')
	case *IRObject:
		if val.Len() == 0 {
			buf.WriteString("{}")
			return
		}
		buf.WriteByte('{')
		for i, k := range val.keys {
			if i > 0 {
				buf.WriteByte(',')
				if indent == "" {
					buf.WriteByte(' ')
				}
			}
			newline(buf, indent, level+1)
			writeString(buf, k)
			buf.WriteString(": ")
			writeValue(buf, val.vals[k], indent, level+1)
		}
		newline(buf, indent, level)
		buf.WriteByte('}')
	default:
		writeScalar(buf, v)
	}
}

func newline(buf *bytes.Buffer, indent string, level int) {
	if indent == "" {
		return
	}
	buf.WriteByte('\n')
	buf.WriteString(strings.Repeat(indent, level))
}

func writeCompact(buf *bytes.Buffer, v IRValue) {
	switch val := v.(type) {
	case IRArray:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCompact(buf, elem)
		}
		buf.WriteByte(']')
	case *IRObject:
		buf.WriteByte('{')
		for i, k := range val.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			writeCompact(buf, val.vals[k])
		}
		buf.WriteByte('}')
	default:
		writeScalar(buf, v)
	}
}

func writeScalar(buf *bytes.Buffer, v IRValue) {
	switch val := v.(type) {
	case nil, IRNull:
		buf.WriteString("null")
	case IRString:
		writeString(buf, string(val))
	case IRInt:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case IRFloat:
		buf.WriteString(formatFloat(float64(val)))
	case IRBool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	default:
		fmt.Fprintf(buf, "%q", fmt.Sprintf("%v", v))
	}
}

// writeString writes a JSON string literal without HTML escaping.
func writeString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
}

// formatFloat renders f so that it reads back as a float: integral values
// keep a ".0" suffix. Non-finite values have no JSON form and become null.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "null"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', -1, 64) + ".0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
