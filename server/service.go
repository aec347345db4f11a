package server

import (
	"context"
	"obj-rpc/codec"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Operation is one remotely callable unit of behaviour. It receives the
// positional and keyword arguments exactly as the client sent them; checking
// their number and kinds is up to the operation.
type Operation func(ctx context.Context, args []codec.Value, kwargs map[string]codec.Value) (codec.Value, error)

// Object is implemented by values that can be exposed. RemoteOperations
// declares the callable surface; it is read once, when the object is exposed.
type Object interface {
	RemoteOperations() map[string]Operation
}

// PrivatePrefix marks operation names that are never exposed.
const PrivatePrefix = "_"

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

type service struct {
	name       string
	rcvr       Object
	operations map[string]Operation
}

// newService derives the object name and selects its eligible operations.
func newService(rcvr Object, name string) (*service, error) {
	if rv := reflect.ValueOf(rcvr); rcvr == nil || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return nil, errors.New("rpc: cannot expose a nil object")
	}
	if name == "" {
		name = typeName(rcvr)
		if name == "" {
			return nil, errors.Errorf("rpc: %T has no type name, an explicit name is required", rcvr)
		}
	}
	if !validName.MatchString(name) {
		return nil, errors.Errorf("rpc: invalid object name %q", name)
	}

	svc := &service{
		name:       name,
		rcvr:       rcvr,
		operations: make(map[string]Operation),
	}
	if err := svc.registerOperations(); err != nil {
		return nil, err
	}
	return svc, nil
}

// typeName is the name of the object's type, looking through pointers.
func typeName(rcvr Object) string {
	typ := reflect.TypeOf(rcvr)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ.Name()
}

// registerOperations keeps every declared operation that is not private and
// not nil. Having none left is fine: the object is exposed without routes.
func (s *service) registerOperations() error {
	for name, op := range s.rcvr.RemoteOperations() {
		if strings.HasPrefix(name, PrivatePrefix) || op == nil {
			continue
		}
		if !validName.MatchString(name) {
			return errors.Errorf("rpc: %s: invalid operation name %q", s.name, name)
		}
		s.operations[name] = op
	}
	return nil
}

// names returns the eligible operation names in sorted order.
func (s *service) names() []string {
	names := make([]string, 0, len(s.operations))
	for name := range s.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// call invokes an operation, turning a panic into an error so one bad call
// cannot take the server down.
func (s *service) call(ctx context.Context, op Operation, args []codec.Value, kwargs map[string]codec.Value) (result codec.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("operation panicked: %v", r)
		}
	}()
	return op(ctx, args, kwargs)
}
