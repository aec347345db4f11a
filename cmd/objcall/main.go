// Command objcall issues one remote call and prints the result.
//
//	objcall -url http://127.0.0.1:8080/Calc add 2 3
//	objcall -etcd 127.0.0.1:2379 -object Calc -balancer weighted div 1 4
//
// Arguments are JSON values; an argument of the form name=value is passed as
// a keyword argument.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"obj-rpc/client"
	"obj-rpc/codec"
	"obj-rpc/loadbalance"
	"obj-rpc/registry"
	"os"
	"regexp"
	"strings"

	"github.com/juju/gnuflag"
	"github.com/pkg/errors"
)

type options struct {
	url       string
	codec     string
	etcd      string
	object    string
	balancer  string
	operation string
	args      []any
	kwargs    map[string]any
}

var keyword = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	o := &options{kwargs: map[string]any{}}
	f := gnuflag.NewFlagSet("objcall", gnuflag.ContinueOnError)
	f.SetOutput(stderr)
	f.StringVar(&o.url, "url", "", "object endpoint, e.g. http://127.0.0.1:8080/Calc")
	f.StringVar(&o.codec, "codec", "json", "payload codec: json or binary")
	f.StringVar(&o.etcd, "etcd", "", "comma separated etcd endpoints to discover the object in")
	f.StringVar(&o.object, "object", "", "object name to discover")
	f.StringVar(&o.balancer, "balancer", "roundrobin", "roundrobin, weighted or hash:<key>")
	if err := f.Parse(false, args); err != nil {
		return nil, err
	}
	if (o.url == "") == (o.etcd == "") {
		return nil, errors.New("exactly one of -url and -etcd is required")
	}
	if o.etcd != "" && o.object == "" {
		return nil, errors.New("-etcd needs -object")
	}
	if f.NArg() == 0 {
		return nil, errors.New("missing operation")
	}
	o.operation = f.Arg(0)
	for _, arg := range f.Args()[1:] {
		if m := keyword.FindStringSubmatch(arg); m != nil {
			v, err := parseJSON(m[2])
			if err != nil {
				return nil, errors.Wrapf(err, "keyword argument %s", m[1])
			}
			o.kwargs[m[1]] = v
			continue
		}
		v, err := parseJSON(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %q", arg)
		}
		o.args = append(o.args, v)
	}
	return o, nil
}

// parseJSON decodes one JSON value, keeping integers exact.
func parseJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data")
	}
	return numbers(v), nil
}

func numbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = numbers(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = numbers(x[k])
		}
	}
	return v
}

func newProxy(o *options) (*client.Proxy, func(), error) {
	codecType, err := codec.ParseCodecType(o.codec)
	if err != nil {
		return nil, nil, err
	}
	if o.url != "" {
		return client.NewProxy(o.url, client.WithCodec(codecType)), func() {}, nil
	}

	bal, err := loadbalance.New(o.balancer)
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry.NewEtcdRegistry(strings.Split(o.etcd, ","))
	if err != nil {
		return nil, nil, err
	}
	p, err := client.NewClient(reg, bal, client.WithCodec(codecType)).Proxy(o.object)
	if err != nil {
		reg.Close()
		return nil, nil, err
	}
	return p, func() { reg.Close() }, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	o, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	p, closer, err := newProxy(o)
	if err != nil {
		return err
	}
	defer closer()

	result, err := p.CallKw(o.operation, o.args, o.kwargs)
	if err != nil {
		var remote *client.RemoteCallError
		if errors.As(err, &remote) {
			return errors.New(remote.Detail())
		}
		return err
	}
	_, err = fmt.Fprintln(stdout, result.String())
	return err
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, gnuflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "objcall:", err)
		os.Exit(1)
	}
}
