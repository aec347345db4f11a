package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// JSONCodec uses Go's standard library encoding/json for serialization.
// Every value is written as {"t": kind, "v": payload}:
//
//	null   {"t":"null"}
//	int    {"t":"int","v":-7}            exact int64, never a float
//	float  {"t":"float","v":"0.5"}       strconv text, so NaN and ±Inf survive
//	bytes  {"t":"bytes","v":"AAE="}      base64
//	list   {"t":"list","v":[...]}
//	map    {"t":"map","v":{"k":...}}     keys sorted by encoding/json
//
// Pros: human-readable once the base64 armor is removed, easy to debug.
// Cons: larger payload than the binary codec.
type JSONCodec struct{}

type jsonOut struct {
	T string `json:"t"`
	V any    `json:"v,omitempty"`
}

func (c *JSONCodec) Encode(v Value) ([]byte, error) {
	if err := validate(v, 0); err != nil {
		return nil, err
	}
	data, err := json.Marshal(toJSON(v))
	if err != nil {
		return nil, errors.Wrap(err, "json codec: encode")
	}
	return armor(data), nil
}

func (c *JSONCodec) Decode(data []byte) (Value, error) {
	raw, err := unarmor(c.Name(), data)
	if err != nil {
		return Value{}, err
	}
	v, err := fromJSON(raw)
	if err != nil {
		return Value{}, &DecodeError{Codec: c.Name(), Err: err}
	}
	return v, nil
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}

func (c *JSONCodec) Name() string {
	return "json"
}

func toJSON(v Value) jsonOut {
	out := jsonOut{T: v.kind.String()}
	switch v.kind {
	case KindBool:
		out.V = v.b
	case KindInt:
		out.V = json.Number(strconv.FormatInt(v.i, 10))
	case KindFloat:
		out.V = strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		out.V = v.s
	case KindBytes:
		if v.raw == nil {
			out.V = []byte{}
		} else {
			out.V = v.raw
		}
	case KindList:
		list := make([]jsonOut, len(v.list))
		for i, e := range v.list {
			list[i] = toJSON(e)
		}
		out.V = list
	case KindMap:
		m := make(map[string]jsonOut, len(v.m))
		for k, e := range v.m {
			m[k] = toJSON(e)
		}
		out.V = m
	}
	return out
}

// fromJSON walks the token stream once. Each value must be an object whose
// "t" member comes first, as written by Encode.
func fromJSON(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Value{}, errors.New("empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	r := &jsonReader{dec: dec}
	v, err := r.value(0)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errors.New("trailing data after value")
	}
	return v, nil
}

type jsonReader struct {
	dec *json.Decoder
}

// token is dec.Token with an early end of input reported as such.
func (r *jsonReader) token() (json.Token, error) {
	tok, err := r.dec.Token()
	if err == io.EOF {
		return nil, io.ErrUnexpectedEOF
	}
	return tok, err
}

func (r *jsonReader) delim(want json.Delim) error {
	tok, err := r.token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return errors.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func (r *jsonReader) key() (string, error) {
	tok, err := r.token()
	if err != nil {
		return "", errors.Wrap(err, "malformed value")
	}
	k, ok := tok.(string)
	if !ok {
		return "", errors.Errorf("expected a member name, got %v", tok)
	}
	return k, nil
}

func (r *jsonReader) value(depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, errors.New("nesting too deep")
	}
	if err := r.delim('{'); err != nil {
		return Value{}, err
	}
	if k, err := r.key(); err != nil {
		return Value{}, err
	} else if k != "t" {
		return Value{}, errors.Errorf("unexpected member %q before kind", k)
	}
	tok, err := r.token()
	if err != nil {
		return Value{}, errors.Wrap(err, "malformed value")
	}
	name, _ := tok.(string)
	kind, ok := kindByName(name)
	if !ok {
		return Value{}, errors.Errorf("unknown kind %q", tok)
	}

	if !r.dec.More() {
		if kind != KindNull {
			return Value{}, errors.Errorf("%s value without payload", kind)
		}
		return Null(), r.delim('}')
	}
	if k, err := r.key(); err != nil {
		return Value{}, err
	} else if k != "v" {
		return Value{}, errors.Errorf("unknown member %q", k)
	}

	v, err := r.payload(kind, depth)
	if err != nil {
		return Value{}, err
	}
	if r.dec.More() {
		return Value{}, errors.New("unexpected member after payload")
	}
	return v, r.delim('}')
}

func (r *jsonReader) payload(kind Kind, depth int) (Value, error) {
	switch kind {
	case KindList:
		if err := r.delim('['); err != nil {
			return Value{}, errors.Wrap(err, "list")
		}
		var list []Value
		for r.dec.More() {
			e, err := r.value(depth + 1)
			if err != nil {
				return Value{}, errors.Wrapf(err, "list[%d]", len(list))
			}
			list = append(list, e)
		}
		return List(list...), r.delim(']')
	case KindMap:
		if err := r.delim('{'); err != nil {
			return Value{}, errors.Wrap(err, "map")
		}
		m := make(map[string]Value)
		for r.dec.More() {
			k, err := r.key()
			if err != nil {
				return Value{}, errors.Wrap(err, "map")
			}
			if _, dup := m[k]; dup {
				return Value{}, errors.Errorf("duplicate map key %q", k)
			}
			e, err := r.value(depth + 1)
			if err != nil {
				return Value{}, errors.Wrapf(err, "map[%q]", k)
			}
			m[k] = e
		}
		return Map(m), r.delim('}')
	}

	tok, err := r.token()
	if err != nil {
		return Value{}, errors.Wrap(err, "malformed value")
	}
	if tok == nil {
		if kind == KindNull {
			return Null(), nil
		}
		return Value{}, errors.Errorf("%s value without payload", kind)
	}
	switch kind {
	case KindBool:
		if b, ok := tok.(bool); ok {
			return Bool(b), nil
		}
	case KindInt:
		if n, ok := tok.(json.Number); ok {
			i, err := strconv.ParseInt(string(n), 10, 64)
			if err != nil {
				return Value{}, errors.Wrap(err, "int")
			}
			return Int(i), nil
		}
	case KindFloat:
		if s, ok := tok.(string); ok {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil && !math.IsInf(f, 0) {
				return Value{}, errors.Wrap(err, "float")
			}
			return Float(f), nil
		}
	case KindString:
		if s, ok := tok.(string); ok {
			return String(s), nil
		}
	case KindBytes:
		if s, ok := tok.(string); ok {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return Value{}, errors.Wrap(err, "bytes")
			}
			return Bytes(b), nil
		}
	case KindNull:
		return Value{}, errors.New("null value with payload")
	}
	return Value{}, errors.Errorf("%s value with a %T payload", kind, tok)
}
