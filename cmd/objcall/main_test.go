package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"obj-rpc/codec"
	"obj-rpc/server"
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

type Calc struct{}

func (Calc) RemoteOperations() map[string]server.Operation {
	return map[string]server.Operation{
		"add": func(_ context.Context, args []codec.Value, _ map[string]codec.Value) (codec.Value, error) {
			x, _ := args[0].Int()
			y, _ := args[1].Int()
			return codec.Int(x + y), nil
		},
		"fail": func(context.Context, []codec.Value, map[string]codec.Value) (codec.Value, error) {
			return codec.Value{}, errors.New("no luck")
		},
		"echo": func(_ context.Context, args []codec.Value, kwargs map[string]codec.Value) (codec.Value, error) {
			return codec.List(codec.List(args...), codec.Map(kwargs)), nil
		},
	}
}

func TestParseArgs(t *testing.T) {
	o, err := parseArgs([]string{"-url", "http://h/Calc", "echo", "1", "2.5", `"s"`, `[1,{"a":null}]`, "scale=3"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	want := []any{int64(1), 2.5, "s", []any{int64(1), map[string]any{"a": nil}}}
	if o.operation != "echo" || !reflect.DeepEqual(o.args, want) {
		t.Fatalf("unexpected parse: %s %#v", o.operation, o.args)
	}
	if !reflect.DeepEqual(o.kwargs, map[string]any{"scale": int64(3)}) {
		t.Fatalf("unexpected kwargs: %#v", o.kwargs)
	}
}

func TestParseArgsErrors(t *testing.T) {
	cases := [][]string{
		{"add", "1"},
		{"-url", "http://h/Calc"},
		{"-url", "http://h/Calc", "-etcd", "e:2379", "add"},
		{"-etcd", "e:2379", "add"},
		{"-url", "http://h/Calc", "add", "not json"},
	}
	for _, args := range cases {
		if _, err := parseArgs(args, io.Discard); err == nil {
			t.Errorf("expect %q to be rejected", args)
		}
	}
}

func startCalc(t *testing.T) string {
	t.Helper()
	svr := server.NewServer()
	if err := svr.Expose(Calc{}, ""); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(svr.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/Calc"
}

func TestRun(t *testing.T) {
	url := startCalc(t)
	var out bytes.Buffer
	if err := run([]string{"-url", url, "add", "2", "3"}, &out, io.Discard); err != nil {
		t.Fatal(err)
	}
	if out.String() != "5\n" {
		t.Fatalf("expect 5, got %q", out.String())
	}

	out.Reset()
	if err := run([]string{"-url", url, "echo", `"x"`, "k=true"}, &out, io.Discard); err != nil {
		t.Fatal(err)
	}
	if out.String() != "[[\"x\"], {\"k\": true}]\n" {
		t.Fatalf("unexpected echo output %q", out.String())
	}
}

func TestRunRemoteError(t *testing.T) {
	err := run([]string{"-url", startCalc(t), "fail"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "status 500") || !strings.Contains(err.Error(), "no luck") {
		t.Fatalf("expect the remote error with its status, got %v", err)
	}
}
