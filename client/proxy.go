// Package client makes remote operations callable like local functions.
//
// A Proxy stands for one exposed object on one server:
//
//	calc := client.NewProxy("http://127.0.0.1:8080/Calc")
//	sum, err := calc.Call("add", 2, 3)
//
// Arguments go through codec.ValueOf; the result comes back as a codec.Value.
// Every call is a single POST with no caching and no retries.
package client

import (
	"context"
	"net/http"
	"net/url"
	"obj-rpc/codec"
	"obj-rpc/message"
	"obj-rpc/transport"
	"strings"

	"github.com/pkg/errors"
)

type options struct {
	codec      codec.Codec
	httpClient *http.Client
	header     http.Header
	poolSize   int
}

type Option func(*options)

// WithCodec selects the payload codec; it must match the server's.
func WithCodec(t codec.CodecType) Option {
	return func(o *options) { o.codec = codec.GetCodec(t) }
}

// WithHTTPClient replaces the pooled client built by transport.NewHTTPClient.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(o *options) { o.header.Add(key, value) }
}

// WithPoolSize sets the idle connections kept per host.
func WithPoolSize(n int) Option {
	return func(o *options) { o.poolSize = n }
}

func buildOptions(opts []Option) *options {
	o := &options{
		codec:  codec.GetCodec(codec.CodecTypeJSON),
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = transport.NewHTTPClient(o.poolSize)
	}
	return o
}

// Proxy is a handle on a remote object. It is safe for concurrent use.
type Proxy struct {
	endpoint string
	opts     *options
}

// NewProxy returns a proxy for the object at endpoint, e.g.
// "http://host:8080/api/Calc". Nothing is contacted until the first call.
func NewProxy(endpoint string, opts ...Option) *Proxy {
	return newProxy(endpoint, buildOptions(opts))
}

func newProxy(endpoint string, o *options) *Proxy {
	return &Proxy{endpoint: strings.TrimRight(endpoint, "/"), opts: o}
}

// Endpoint returns the object URL the proxy was built with.
func (p *Proxy) Endpoint() string {
	return p.endpoint
}

// Method returns a callable bound to {endpoint}/{name}, with name escaped as
// one path segment. Each access builds a new Method; the name is not checked
// until it is called.
func (p *Proxy) Method(name string) *Method {
	return &Method{proxy: p, url: p.endpoint + "/" + url.PathEscape(name)}
}

// Call invokes operation op with positional arguments.
func (p *Proxy) Call(op string, args ...any) (codec.Value, error) {
	return p.Method(op).Call(args...)
}

// CallKw invokes operation op with positional and keyword arguments.
func (p *Proxy) CallKw(op string, args []any, kwargs map[string]any) (codec.Value, error) {
	return p.Method(op).CallKw(args, kwargs)
}

// Method is one remote operation.
type Method struct {
	proxy *Proxy
	url   string
}

// Endpoint returns the URL the method posts to.
func (m *Method) Endpoint() string {
	return m.url
}

func (m *Method) Call(args ...any) (codec.Value, error) {
	return m.CallContext(context.Background(), args, nil)
}

func (m *Method) CallKw(args []any, kwargs map[string]any) (codec.Value, error) {
	return m.CallContext(context.Background(), args, kwargs)
}

// CallContext performs the call, abandoning it when ctx is done.
//
// Errors:
//   - *codec.SerializationError: an argument cannot be encoded
//   - *RemoteCallError: the server answered with a status other than 200
//   - *codec.DecodeError: a 200 answer did not decode
//   - anything else: the request did not complete
func (m *Method) CallContext(ctx context.Context, args []any, kwargs map[string]any) (codec.Value, error) {
	o := m.proxy.opts
	call, err := message.NewCall(args, kwargs)
	if err != nil {
		return codec.Value{}, err
	}
	body, err := o.codec.Encode(call.Value())
	if err != nil {
		return codec.Value{}, err
	}

	reply, err := transport.Post(ctx, o.httpClient, m.url, o.codec.Name(), o.header, body)
	if err != nil {
		return codec.Value{}, errors.Wrap(err, "remote call")
	}
	if reply.Status != http.StatusOK {
		return codec.Value{}, &RemoteCallError{StatusCode: reply.Status, Body: string(reply.Body)}
	}
	return o.codec.Decode(reply.Body)
}
