package server

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrRegistrationConflict is matched by every *RegistrationConflictError.
	ErrRegistrationConflict = errors.New("rpc: endpoint already registered")
	ErrServerStarted        = errors.New("rpc: server already started")
	ErrServerNotStarted     = errors.New("rpc: server not started")
)

// RegistrationConflictError reports an endpoint path that is already bound.
// The earlier binding stays in place.
type RegistrationConflictError struct {
	Path string
}

func (e *RegistrationConflictError) Error() string {
	return fmt.Sprintf("rpc: endpoint %s already registered", e.Path)
}

func (e *RegistrationConflictError) Is(target error) bool {
	return target == ErrRegistrationConflict
}

// OperationError is an error raised by an exposed operation. Only Error()
// reaches the client; Object and Operation stay in the server logs.
type OperationError struct {
	Object    string
	Operation string
	Err       error
}

// Error is the text sent to the caller; an empty error text becomes
// "operation failed".
func (e *OperationError) Error() string {
	if e.Err == nil || e.Err.Error() == "" {
		return "operation failed"
	}
	return e.Err.Error()
}

func (e *OperationError) Unwrap() error { return e.Err }
