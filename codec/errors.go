package codec

import "fmt"

// DecodeError reports a payload that cannot be turned back into a Value:
// invalid base64, corrupt or truncated serializer output, or a payload
// produced by a different codec.
type DecodeError struct {
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec %s: decode: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SerializationError reports a value outside the supported kinds.
type SerializationError struct {
	Type   string
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("codec: cannot serialize %s: %s", e.Type, e.Reason)
}
