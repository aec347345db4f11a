package codec

import (
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// BinaryCodec writes values in protobuf wire format without a schema.
// The field number of each value is its Kind+1, which also tags the variant:
//
//	null    varint 0
//	bool    varint 0/1
//	int     zig-zag varint
//	float   fixed64 (IEEE 754 bits)
//	string  length-delimited UTF-8
//	bytes   length-delimited
//	list    length-delimited concatenation of the element values
//	map     length-delimited sequence of (key field 15, value) pairs, keys sorted
type BinaryCodec struct{}

const mapKeyField protowire.Number = 15

func (c *BinaryCodec) Encode(v Value) ([]byte, error) {
	if err := validate(v, 0); err != nil {
		return nil, err
	}
	return armor(appendValue(nil, v)), nil
}

func (c *BinaryCodec) Decode(data []byte) (Value, error) {
	raw, err := unarmor(c.Name(), data)
	if err != nil {
		return Value{}, err
	}
	v, n, err := consumeValue(raw, 0)
	if err != nil {
		return Value{}, &DecodeError{Codec: c.Name(), Err: err}
	}
	if n != len(raw) {
		return Value{}, &DecodeError{Codec: c.Name(), Err: errors.Errorf("%d trailing bytes", len(raw)-n)}
	}
	return v, nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

func (c *BinaryCodec) Name() string {
	return "binary"
}

func fieldOf(k Kind) protowire.Number {
	return protowire.Number(k) + 1
}

func appendValue(b []byte, v Value) []byte {
	num := fieldOf(v.kind)
	switch v.kind {
	case KindNull:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, 0)
	case KindBool:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(v.b))
	case KindInt:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v.i))
	case KindFloat:
		b = protowire.AppendTag(b, num, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v.f))
	case KindString:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v.s)
	case KindBytes:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, v.raw)
	case KindList:
		var body []byte
		for _, e := range v.list {
			body = appendValue(body, e)
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, body)
	case KindMap:
		var body []byte
		for _, k := range sortedKeys(v.m) {
			body = protowire.AppendTag(body, mapKeyField, protowire.BytesType)
			body = protowire.AppendString(body, k)
			body = appendValue(body, v.m[k])
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, body)
	}
	return b
}

// consumeValue parses one value from the front of b and reports how many
// bytes it used.
func consumeValue(b []byte, depth int) (Value, int, error) {
	if depth > maxDepth {
		return Value{}, 0, errors.New("nesting too deep")
	}
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return Value{}, 0, errors.Wrap(protowire.ParseError(n), "tag")
	}
	if num < 1 || num > fieldOf(KindMap) {
		return Value{}, 0, errors.Errorf("unknown field %d", num)
	}
	kind := Kind(num - 1)
	if want := wireTypeOf(kind); typ != want {
		return Value{}, 0, errors.Errorf("%s value with wire type %d", kind, typ)
	}
	rest := b[n:]

	switch kind {
	case KindNull, KindBool, KindInt:
		x, m := protowire.ConsumeVarint(rest)
		if m < 0 {
			return Value{}, 0, errors.Wrap(protowire.ParseError(m), kind.String())
		}
		switch kind {
		case KindNull:
			if x != 0 {
				return Value{}, 0, errors.New("null value with payload")
			}
			return Null(), n + m, nil
		case KindBool:
			if x > 1 {
				return Value{}, 0, errors.Errorf("invalid bool %d", x)
			}
			return Bool(x == 1), n + m, nil
		}
		return Int(protowire.DecodeZigZag(x)), n + m, nil
	case KindFloat:
		x, m := protowire.ConsumeFixed64(rest)
		if m < 0 {
			return Value{}, 0, errors.Wrap(protowire.ParseError(m), "float")
		}
		return Float(math.Float64frombits(x)), n + m, nil
	}

	body, m := protowire.ConsumeBytes(rest)
	if m < 0 {
		return Value{}, 0, errors.Wrap(protowire.ParseError(m), kind.String())
	}
	used := n + m

	switch kind {
	case KindString:
		if !utf8.Valid(body) {
			return Value{}, 0, errors.New("string is not valid UTF-8")
		}
		return String(string(body)), used, nil
	case KindBytes:
		out := make([]byte, len(body))
		copy(out, body)
		return Bytes(out), used, nil
	case KindList:
		var list []Value
		for len(body) > 0 {
			e, k, err := consumeValue(body, depth+1)
			if err != nil {
				return Value{}, 0, errors.Wrapf(err, "list[%d]", len(list))
			}
			list = append(list, e)
			body = body[k:]
		}
		return List(list...), used, nil
	default: // KindMap
		m := map[string]Value{}
		for len(body) > 0 {
			knum, ktyp, k := protowire.ConsumeTag(body)
			if k < 0 {
				return Value{}, 0, errors.Wrap(protowire.ParseError(k), "map key tag")
			}
			if knum != mapKeyField || ktyp != protowire.BytesType {
				return Value{}, 0, errors.Errorf("expected map key, got field %d", knum)
			}
			key, kl := protowire.ConsumeString(body[k:])
			if kl < 0 {
				return Value{}, 0, errors.Wrap(protowire.ParseError(kl), "map key")
			}
			if !utf8.ValidString(key) {
				return Value{}, 0, errors.New("map key is not valid UTF-8")
			}
			body = body[k+kl:]
			if _, dup := m[key]; dup {
				return Value{}, 0, errors.Errorf("duplicate map key %q", key)
			}
			e, el, err := consumeValue(body, depth+1)
			if err != nil {
				return Value{}, 0, errors.Wrapf(err, "map[%q]", key)
			}
			m[key] = e
			body = body[el:]
		}
		return Map(m), used, nil
	}
}

func wireTypeOf(k Kind) protowire.Type {
	switch k {
	case KindNull, KindBool, KindInt:
		return protowire.VarintType
	case KindFloat:
		return protowire.Fixed64Type
	}
	return protowire.BytesType
}
