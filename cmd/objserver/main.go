// Command objserver exposes the demo Calc object over HTTP.
//
//	objserver run [-host 0.0.0.0] [-port 8080] [-prefix /api] [-codec json]
//	              [-rate 0] [-burst 0] [-timeout 0] [-etcd host:2379,...]
//	              [-advertise http://10.0.0.5:8080] [-debug]
package main

import (
	"context"
	"fmt"
	"io"
	"obj-rpc/codec"
	"obj-rpc/middleware"
	"obj-rpc/registry"
	"obj-rpc/server"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/juju/gnuflag"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const usage = "usage: objserver run [flags]"

type options struct {
	host      string
	port      int
	prefix    string
	codec     string
	rate      float64
	burst     int
	timeout   time.Duration
	etcd      string
	advertise string
	debug     bool
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	if len(args) == 0 || args[0] != "run" {
		return nil, errors.New(usage)
	}
	o := &options{}
	f := gnuflag.NewFlagSet("objserver run", gnuflag.ContinueOnError)
	f.SetOutput(stderr)
	f.StringVar(&o.host, "host", server.DefaultHost, "address to bind")
	f.IntVar(&o.port, "port", server.DefaultPort, "port to bind")
	f.StringVar(&o.prefix, "prefix", "", "URL path prefix of every endpoint")
	f.StringVar(&o.codec, "codec", "json", "payload codec: json or binary")
	f.Float64Var(&o.rate, "rate", 0, "calls per second allowed, 0 for no limit")
	f.IntVar(&o.burst, "burst", 0, "burst size of the rate limit")
	f.DurationVar(&o.timeout, "timeout", 0, "per call timeout, 0 for none")
	f.StringVar(&o.etcd, "etcd", "", "comma separated etcd endpoints to announce in")
	f.StringVar(&o.advertise, "advertise", "", "base URL announced in etcd")
	f.BoolVar(&o.debug, "debug", false, "development logging")
	if err := f.Parse(true, args[1:]); err != nil {
		return nil, err
	}
	if f.NArg() > 0 {
		return nil, errors.Errorf("unexpected arguments %q", f.Args())
	}
	if o.etcd != "" && o.advertise == "" {
		o.advertise = fmt.Sprintf("http://127.0.0.1:%d", o.port)
	}
	return o, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newServer builds the server described by o. The returned closer releases
// the registry connection.
func newServer(o *options, logger *zap.Logger) (*server.Server, func(), error) {
	codecType, err := codec.ParseCodecType(o.codec)
	if err != nil {
		return nil, nil, err
	}
	opts := []server.Option{
		server.WithHost(o.host),
		server.WithPort(o.port),
		server.WithPrefix(o.prefix),
		server.WithCodec(codecType),
		server.WithLogger(logger),
	}
	closer := func() {}
	if o.etcd != "" {
		reg, err := registry.NewEtcdRegistry(strings.Split(o.etcd, ","))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, server.WithRegistry(reg, o.advertise))
		closer = func() { reg.Close() }
	}

	svr := server.NewServer(opts...)
	for _, mw := range middlewares(o, logger) {
		if err := svr.Use(mw); err != nil {
			closer()
			return nil, nil, err
		}
	}
	if err := svr.Expose(&Calc{}, ""); err != nil {
		closer()
		return nil, nil, err
	}
	return svr, closer, nil
}

// middlewares lists the chain selected by the flags, outermost first.
func middlewares(o *options, logger *zap.Logger) []middleware.Middleware {
	chain := []middleware.Middleware{middleware.LoggingMiddleware(logger)}
	if o.rate > 0 {
		burst := o.burst
		if burst < 1 {
			burst = 1
		}
		chain = append(chain, middleware.RateLimitMiddleware(o.rate, burst))
	}
	if o.timeout > 0 {
		chain = append(chain, middleware.TimeOutMiddleware(o.timeout))
	}
	return chain
}

func run(args []string) error {
	o, err := parseArgs(args, os.Stderr)
	if err != nil {
		return err
	}
	logger, err := newLogger(o.debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	svr, closer, err := newServer(o, logger)
	if err != nil {
		return err
	}
	defer closer()

	if err := svr.Start(); err != nil {
		return err
	}
	for _, route := range svr.Routes() {
		logger.Info("route", zap.String("path", route))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down")
	return svr.Shutdown(5 * time.Second)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, gnuflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "objserver:", err)
		os.Exit(2)
	}
}
