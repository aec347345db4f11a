package codec

import (
	"encoding/base64"
	"math"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

var codecs = []Codec{&JSONCodec{}, &BinaryCodec{}}

func sampleValues() []Value {
	return []Value{
		Null(),
		Bool(true),
		Bool(false),
		Int(0),
		Int(5),
		Int(-7),
		Int(math.MaxInt64),
		Int(math.MinInt64),
		Float(0.5),
		Float(-1e300),
		Float(math.Inf(1)),
		Float(math.Inf(-1)),
		Float(math.NaN()),
		String(""),
		String("héllo, 世界"),
		Bytes(nil),
		Bytes([]byte{0, 1, 2, 255}),
		List(),
		List(Int(1), String("two"), List(Float(3))),
		Map(nil),
		Map(map[string]Value{
			"a":      Int(1),
			"nested": Map(map[string]Value{"x": List(Null(), Bool(true))}),
			"":       String("empty key"),
		}),
		// a call payload: (args, kwargs)
		List(List(Int(2), Int(3)), Map(map[string]Value{"round": Bool(true)})),
	}
}

func TestRoundTrip(t *testing.T) {
	for _, c := range codecs {
		for _, v := range sampleValues() {
			data, err := c.Encode(v)
			if err != nil {
				t.Fatalf("%s Encode(%v) failed: %v", c.Name(), v, err)
			}
			got, err := c.Decode(data)
			if err != nil {
				t.Fatalf("%s Decode(%v) failed: %v", c.Name(), v, err)
			}
			if !got.Equal(v) {
				t.Errorf("%s round trip mismatch: got %v, want %v", c.Name(), got, v)
			}
		}
	}
}

func TestEncodeIsBase64Text(t *testing.T) {
	for _, c := range codecs {
		data, err := c.Encode(List(Bytes([]byte{0, 0xff}), String("x")))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := base64.StdEncoding.DecodeString(string(data)); err != nil {
			t.Fatalf("%s output is not base64: %v", c.Name(), err)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	m := map[string]Value{}
	for _, k := range []string{"q", "w", "e", "r", "t", "y", "u", "i", "o", "p"} {
		m[k] = String(k)
	}
	for _, c := range codecs {
		first, err := c.Encode(Map(m))
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 20; i++ {
			again, _ := c.Encode(Map(m))
			if string(again) != string(first) {
				t.Fatalf("%s encoding is not deterministic", c.Name())
			}
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	valid := map[string][]byte{}
	for _, c := range codecs {
		data, err := c.Encode(List(Int(1), String("abc")))
		if err != nil {
			t.Fatal(err)
		}
		valid[c.Name()] = data
	}

	for _, c := range codecs {
		cases := map[string][]byte{
			"empty":      nil,
			"not base64": []byte("%%% definitely not base64 %%%"),
			"garbage":    []byte(base64.StdEncoding.EncodeToString([]byte{0xff, 0xff, 0xff})),
			"truncated":  truncate(valid[c.Name()]),
		}
		for name, data := range cases {
			_, err := c.Decode(data)
			if err == nil {
				t.Fatalf("%s: expect error for %s input", c.Name(), name)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("%s: expect *DecodeError for %s input, got %T: %v", c.Name(), name, err, err)
			}
		}
	}
}

func truncate(armored []byte) []byte {
	raw, _ := base64.StdEncoding.DecodeString(string(armored))
	return []byte(base64.StdEncoding.EncodeToString(raw[:len(raw)-2]))
}

func TestDecodeWrongCodec(t *testing.T) {
	data, err := (&BinaryCodec{}).Encode(List(Int(1)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := (&JSONCodec{}).Decode(data); err == nil {
		t.Fatal("expect json codec to reject a binary payload")
	}
}

func TestJSONRejectsUnknownKind(t *testing.T) {
	data := []byte(base64.StdEncoding.EncodeToString([]byte(`{"t":"complex","v":1}`)))
	_, err := (&JSONCodec{}).Decode(data)
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Fatalf("expect unknown kind error, got %v", err)
	}
}

func TestBinaryRejectsTrailingBytes(t *testing.T) {
	raw := appendValue(nil, Int(1))
	raw = append(raw, appendValue(nil, Int(2))...)
	_, err := (&BinaryCodec{}).Decode(armor(raw))
	if err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("expect trailing bytes error, got %v", err)
	}
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	for _, c := range codecs {
		_, err := c.Encode(String("\xff\xfe"))
		var se *SerializationError
		if !errors.As(err, &se) {
			t.Fatalf("%s: expect *SerializationError, got %v", c.Name(), err)
		}
	}
}

func TestNestingLimit(t *testing.T) {
	v := Int(1)
	for i := 0; i < maxDepth+5; i++ {
		v = List(v)
	}
	for _, c := range codecs {
		if _, err := c.Encode(v); err == nil {
			t.Fatalf("%s: expect error for deeply nested value", c.Name())
		}
	}
}

// A deep value with a large leaf decodes in one pass over the payload.
func TestDecodeDeepLargeValue(t *testing.T) {
	v := String(strings.Repeat("x", 512<<10))
	for i := 0; i < maxDepth-1; i++ {
		v = List(v)
	}
	for _, c := range codecs {
		data, err := c.Encode(v)
		if err != nil {
			t.Fatal(err)
		}

		var before, after runtime.MemStats
		runtime.GC()
		runtime.ReadMemStats(&before)
		start := time.Now()
		got, err := c.Decode(data)
		elapsed := time.Since(start)
		runtime.ReadMemStats(&after)
		if err != nil {
			t.Fatalf("%s: decode failed: %v", c.Name(), err)
		}
		if !got.Equal(v) {
			t.Fatalf("%s: deep value did not round trip", c.Name())
		}

		allocated := after.TotalAlloc - before.TotalAlloc
		if limit := uint64(32 * len(data)); allocated > limit {
			t.Fatalf("%s: decoding %d bytes allocated %d bytes", c.Name(), len(data), allocated)
		}
		if elapsed > 2*time.Second {
			t.Fatalf("%s: decoding %d bytes took %v", c.Name(), len(data), elapsed)
		}
	}
}

func TestJSONDecodeStrictLayout(t *testing.T) {
	cases := map[string]string{
		"payload first":   `{"v":1,"t":"int"}`,
		"extra member":    `{"t":"int","v":1,"x":2}`,
		"missing payload": `{"t":"int"}`,
		"null payload":    `{"t":"bool","v":null}`,
		"wrong payload":   `{"t":"string","v":1}`,
		"duplicate key":   `{"t":"map","v":{"a":{"t":"null"},"a":{"t":"null"}}}`,
		"unclosed list":   `{"t":"list","v":[`,
	}
	for name, doc := range cases {
		_, err := (&JSONCodec{}).Decode(armor([]byte(doc)))
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Errorf("%s: expect *DecodeError, got %v", name, err)
		}
	}
}

func TestGetCodec(t *testing.T) {
	if GetCodec(CodecTypeJSON).Type() != CodecTypeJSON {
		t.Fatal("expect json codec")
	}
	if GetCodec(CodecTypeBinary).Type() != CodecTypeBinary {
		t.Fatal("expect binary codec")
	}

	for name, want := range map[string]CodecType{"json": CodecTypeJSON, "": CodecTypeJSON, "Binary": CodecTypeBinary} {
		got, err := ParseCodecType(name)
		if err != nil {
			t.Fatalf("ParseCodecType(%q) failed: %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseCodecType(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := ParseCodecType("pickle"); err == nil {
		t.Fatal("expect error for unknown codec name")
	}
}
