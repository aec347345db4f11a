package main

import (
	"context"
	"math"
	"obj-rpc/codec"
	"obj-rpc/server"

	"github.com/pkg/errors"
)

// Calc is the demo object exposed by objserver.
type Calc struct{}

func (c *Calc) RemoteOperations() map[string]server.Operation {
	return map[string]server.Operation{
		"add":       c.add,
		"sub":       c.sub,
		"mul":       c.mul,
		"div":       c.div,
		"echo":      c.echo,
		"_internal": c.internal,
	}
}

// numbers reads exactly n numeric arguments.
func numbers(args []codec.Value, n int) ([]float64, bool, error) {
	if len(args) != n {
		return nil, false, errors.Errorf("expected %d arguments, got %d", n, len(args))
	}
	out := make([]float64, n)
	allInts := true
	for i, arg := range args {
		f, ok := arg.Number()
		if !ok {
			return nil, false, errors.Errorf("argument %d: expected a number, got %v", i, arg.Kind())
		}
		if arg.Kind() != codec.KindInt {
			allInts = false
		}
		out[i] = f
	}
	return out, allInts, nil
}

func (c *Calc) add(_ context.Context, args []codec.Value, _ map[string]codec.Value) (codec.Value, error) {
	xs, ints, err := numbers(args, 2)
	if err != nil {
		return codec.Value{}, err
	}
	if ints {
		x, _ := args[0].Int()
		y, _ := args[1].Int()
		return codec.Int(x + y), nil
	}
	return codec.Float(xs[0] + xs[1]), nil
}

func (c *Calc) sub(_ context.Context, args []codec.Value, _ map[string]codec.Value) (codec.Value, error) {
	xs, ints, err := numbers(args, 2)
	if err != nil {
		return codec.Value{}, err
	}
	if ints {
		x, _ := args[0].Int()
		y, _ := args[1].Int()
		return codec.Int(x - y), nil
	}
	return codec.Float(xs[0] - xs[1]), nil
}

func (c *Calc) mul(_ context.Context, args []codec.Value, _ map[string]codec.Value) (codec.Value, error) {
	xs, ints, err := numbers(args, 2)
	if err != nil {
		return codec.Value{}, err
	}
	if ints {
		x, _ := args[0].Int()
		y, _ := args[1].Int()
		return codec.Int(x * y), nil
	}
	return codec.Float(xs[0] * xs[1]), nil
}

func (c *Calc) div(_ context.Context, args []codec.Value, _ map[string]codec.Value) (codec.Value, error) {
	xs, _, err := numbers(args, 2)
	if err != nil {
		return codec.Value{}, err
	}
	if xs[1] == 0 {
		return codec.Value{}, errors.New("division by zero")
	}
	return codec.Float(xs[0] / xs[1]), nil
}

// echo returns its arguments as [args, kwargs].
func (c *Calc) echo(_ context.Context, args []codec.Value, kwargs map[string]codec.Value) (codec.Value, error) {
	return codec.List(codec.List(args...), codec.Map(kwargs)), nil
}

func (c *Calc) internal(_ context.Context, _ []codec.Value, _ map[string]codec.Value) (codec.Value, error) {
	return codec.Float(math.Pi), nil
}
