package message

import (
	"net/http"
	"obj-rpc/codec"
	"testing"

	"github.com/pkg/errors"
)

func TestCallValueRoundTrip(t *testing.T) {
	call, err := NewCall([]any{1, "b"}, map[string]any{"c": true})
	if err != nil {
		t.Fatalf("NewCall failed: %v", err)
	}

	for _, cdc := range []codec.Codec{codec.GetCodec(codec.CodecTypeJSON), codec.GetCodec(codec.CodecTypeBinary)} {
		data, err := cdc.Encode(call.Value())
		if err != nil {
			t.Fatalf("%s Encode failed: %v", cdc.Name(), err)
		}
		v, err := cdc.Decode(data)
		if err != nil {
			t.Fatalf("%s Decode failed: %v", cdc.Name(), err)
		}
		got, err := CallFromValue(v)
		if err != nil {
			t.Fatalf("CallFromValue failed: %v", err)
		}
		if len(got.Args) != 2 || !got.Args[0].Equal(codec.Int(1)) || !got.Args[1].Equal(codec.String("b")) {
			t.Fatalf("args mismatch: %v", got.Args)
		}
		if !got.Kwargs["c"].Equal(codec.Bool(true)) {
			t.Fatalf("kwargs mismatch: %v", got.Kwargs)
		}
	}
}

func TestNewCallRejectsUnsupported(t *testing.T) {
	_, err := NewCall([]any{struct{}{}}, nil)
	var se *codec.SerializationError
	if !errors.As(err, &se) {
		t.Fatalf("expect *codec.SerializationError, got %v", err)
	}
}

func TestCallFromValueShape(t *testing.T) {
	bad := []codec.Value{
		codec.Int(1),
		codec.List(codec.List()),
		codec.List(codec.Map(nil), codec.Map(nil)),
		codec.List(codec.List(), codec.List()),
	}
	for _, v := range bad {
		_, err := CallFromValue(v)
		var de *codec.DecodeError
		if !errors.As(err, &de) {
			t.Errorf("CallFromValue(%v): expect *codec.DecodeError, got %v", v, err)
		}
	}
}

func TestResponseStatus(t *testing.T) {
	if s := (&Response{Result: codec.Int(1)}).HTTPStatus(); s != http.StatusOK {
		t.Fatalf("expect 200, got %d", s)
	}
	if s := (&Response{Error: "boom"}).HTTPStatus(); s != http.StatusInternalServerError {
		t.Fatalf("expect 500, got %d", s)
	}
	if s := Failed(http.StatusTooManyRequests, "slow down").HTTPStatus(); s != http.StatusTooManyRequests {
		t.Fatalf("expect 429, got %d", s)
	}
	if r := NoResponse(); r.Error == "" || r.HTTPStatus() != http.StatusInternalServerError {
		t.Fatalf("expect a 500 error response, got %+v", r)
	}
}
