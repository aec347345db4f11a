// Package codec turns call payloads and return values into HTTP-safe bodies.
//
// A Codec serializes a Value with one of two deterministic formats and then
// applies standard base64, so a body never carries raw binary:
//
//	Value → serialize (JSON or protobuf wire) → base64 → HTTP body
//	HTTP body → base64 decode → deserialize → Value
//
// The codec knows nothing about calls or results; the caller decides what
// the Value means.
package codec

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

// Header names the codec a client used, so a server can reject a body it
// would not be able to read.
const Header = "X-Objrpc-Codec"

type Codec interface {
	Encode(v Value) ([]byte, error)
	Decode(data []byte) (Value, error)
	Type() CodecType // 0=JSON, 1=Binary
	Name() string
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}

	return &BinaryCodec{}
}

// ParseCodecType maps a codec name ("json" or "binary") to its type.
func ParseCodecType(name string) (CodecType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return CodecTypeJSON, nil
	case "binary", "protowire":
		return CodecTypeBinary, nil
	}
	return 0, errors.Errorf("unknown codec %q", name)
}

func (t CodecType) String() string {
	return GetCodec(t).Name()
}

func armor(raw []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out
}

func unarmor(codecName string, data []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(raw, data)
	if err != nil {
		return nil, &DecodeError{Codec: codecName, Err: errors.Wrap(err, "base64")}
	}
	return raw[:n], nil
}
