// Package message defines what travels through one remote call.
//
// Call is the payload of a request body: positional arguments plus keyword
// arguments. On the wire it is the codec Value List(List(args...), Map(kwargs)).
// Request and Response are the envelopes the server passes through its
// middleware chain around the bound operation.
package message

import (
	"net/http"
	"obj-rpc/codec"

	"github.com/pkg/errors"
)

// Call carries the arguments of a single invocation.
//
//   - Args:   positional arguments, in order.
//   - Kwargs: keyword arguments by name. Never nil after decoding.
type Call struct {
	Args   []codec.Value
	Kwargs map[string]codec.Value
}

// NewCall converts Go values into a Call. It fails with a
// *codec.SerializationError when an argument is outside the supported kinds.
func NewCall(args []any, kwargs map[string]any) (*Call, error) {
	call := &Call{
		Args:   make([]codec.Value, len(args)),
		Kwargs: make(map[string]codec.Value, len(kwargs)),
	}
	for i, a := range args {
		v, err := codec.ValueOf(a)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		call.Args[i] = v
	}
	for k, a := range kwargs {
		v, err := codec.ValueOf(a)
		if err != nil {
			return nil, errors.Wrapf(err, "keyword argument %q", k)
		}
		call.Kwargs[k] = v
	}
	return call, nil
}

// Value returns the wire form of the call.
func (c *Call) Value() codec.Value {
	return codec.List(codec.List(c.Args...), codec.Map(c.Kwargs))
}

// CallFromValue validates the wire form of a call and unpacks it. A value of
// the wrong shape is reported as a *codec.DecodeError, as it means the body
// was not produced by a compatible client.
func CallFromValue(v codec.Value) (*Call, error) {
	pair, ok := v.List()
	if !ok || len(pair) != 2 {
		return nil, shapeError("payload must be a list of (args, kwargs), got %v", v.Kind())
	}
	args, ok := pair[0].List()
	if !ok {
		return nil, shapeError("positional arguments must be a list, got %v", pair[0].Kind())
	}
	kwargs, ok := pair[1].Map()
	if !ok {
		return nil, shapeError("keyword arguments must be a map, got %v", pair[1].Kind())
	}
	if kwargs == nil {
		kwargs = map[string]codec.Value{}
	}
	return &Call{Args: args, Kwargs: kwargs}, nil
}

func shapeError(format string, args ...any) error {
	return &codec.DecodeError{Codec: "call", Err: errors.Errorf(format, args...)}
}

// Request is one decoded invocation on its way to the bound operation.
type Request struct {
	Object    string // Exposed object name, e.g. "Calc"
	Operation string // Operation name, e.g. "add"
	Call      *Call
}

// ServiceMethod returns "Object.Operation", used in logs.
func (r *Request) ServiceMethod() string {
	return r.Object + "." + r.Operation
}

// Response is the outcome of a Request.
//
//   - On success: Result holds the return value, Error is empty.
//   - On failure: Error holds the text sent to the caller. Only the text of
//     an operation error crosses the wire, never its type.
type Response struct {
	Result codec.Value
	Error  string
	Status int // HTTP status; 0 means 200 on success and 500 on failure
}

// Failed builds an error Response with the given HTTP status.
func Failed(status int, text string) *Response {
	return &Response{Error: text, Status: status}
}

// NoResponse stands in for a handler that returned nil.
func NoResponse() *Response {
	return Failed(http.StatusInternalServerError, "no response from handler")
}

// HTTPStatus resolves the status to answer with.
func (r *Response) HTTPStatus() int {
	switch {
	case r.Status != 0:
		return r.Status
	case r.Error != "":
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
