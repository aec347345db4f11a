package codec

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
)

// maxDepth bounds the nesting of lists and maps in both directions.
const maxDepth = 1000

var kindNames = [...]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindBytes:  "bytes",
	KindList:   "list",
	KindMap:    "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func kindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// Value is the unit carried by a call: an argument, a keyword argument or a
// return value. It is a closed set of primitive and composite kinds, so every
// Value can be serialized by every Codec. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	raw  []byte
	list []Value
	m    map[string]Value
}

func Null() Value            { return Value{} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func String(s string) Value  { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value   { return Value{kind: KindBytes, raw: b} }
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// Map builds a map Value. The map is used as is, not copied.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v Value) Int() (int64, bool)     { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) Str() (string, bool)    { return v.s, v.kind == KindString }
func (v Value) Bytes() ([]byte, bool)  { return v.raw, v.kind == KindBytes }
func (v Value) List() ([]Value, bool)  { return v.list, v.kind == KindList }

func (v Value) Map() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// Number returns the value as a float64 for both Int and Float values.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Len returns the number of elements of a list or map, and the length of a
// string or bytes value. It is 0 for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return len(v.s)
	case KindBytes:
		return len(v.raw)
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.m)
	}
	return 0
}

// Interface converts v back into plain Go values: nil, bool, int64, float64,
// string, []byte, []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.raw
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Interface()
		}
		return out
	}
	return nil
}

// Equal reports whether v and o hold the same kind and content. NaN floats
// compare equal to each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, e := range v.m {
			oe, ok := o.m[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	case KindBytes:
		fmt.Fprintf(sb, "b%q", v.raw)
	case KindList:
		sb.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.format(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, k := range sortedKeys(v.m) {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			v.m[k].format(sb)
		}
		sb.WriteByte('}')
	}
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	valueType = reflect.TypeOf(Value{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// ValueOf converts a Go value into a Value. Supported inputs are nil, bool,
// integers that fit in an int64, floats, strings, []byte, slices and arrays,
// maps with string keys, pointers and interfaces holding any of those, and
// Value itself. Anything else yields a *SerializationError.
func ValueOf(x any) (Value, error) {
	if x == nil {
		return Null(), nil
	}
	if v, ok := x.(Value); ok {
		return v, nil
	}
	return valueOf(reflect.ValueOf(x), 0)
}

func valueOf(rv reflect.Value, depth int) (Value, error) {
	if !rv.IsValid() {
		return Null(), nil
	}
	if depth > maxDepth {
		return Value{}, &SerializationError{Type: rv.Type().String(), Reason: "nesting too deep"}
	}
	if rv.Type() == valueType {
		return rv.Interface().(Value), nil
	}
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, &SerializationError{Type: rv.Type().String(), Reason: "integer overflows int64"}
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return valueOf(rv.Elem(), depth+1)
	case reflect.Slice:
		if rv.Type().ConvertibleTo(bytesType) {
			if rv.IsNil() {
				return Bytes(nil), nil
			}
			return Bytes(rv.Convert(bytesType).Interface().([]byte)), nil
		}
		fallthrough
	case reflect.Array:
		list := make([]Value, rv.Len())
		for i := range list {
			e, err := valueOf(rv.Index(i), depth+1)
			if err != nil {
				return Value{}, err
			}
			list[i] = e
		}
		return List(list...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, &SerializationError{Type: rv.Type().String(), Reason: "map keys must be strings"}
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			e, err := valueOf(iter.Value(), depth+1)
			if err != nil {
				return Value{}, err
			}
			m[iter.Key().String()] = e
		}
		return Map(m), nil
	}
	return Value{}, &SerializationError{Type: rv.Type().String(), Reason: "unsupported kind " + rv.Kind().String()}
}

// validate rejects values nested deeper than maxDepth and strings that are
// not valid UTF-8, before anything is written.
func validate(v Value, depth int) error {
	if depth > maxDepth {
		return &SerializationError{Type: v.kind.String(), Reason: "nesting too deep"}
	}
	switch v.kind {
	case KindString:
		if !utf8.ValidString(v.s) {
			return &SerializationError{Type: "string", Reason: "invalid UTF-8"}
		}
	case KindList:
		for _, e := range v.list {
			if err := validate(e, depth+1); err != nil {
				return err
			}
		}
	case KindMap:
		for k, e := range v.m {
			if !utf8.ValidString(k) {
				return &SerializationError{Type: "map key", Reason: "invalid UTF-8"}
			}
			if err := validate(e, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
