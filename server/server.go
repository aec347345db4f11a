// Package server exposes the operations of local objects over HTTP.
//
// Request processing pipeline:
//
//	POST {prefix}/{object}/{operation} → mux.Router → invocationHandler
//	  → Codec.Decode → Middleware Chain → businessHandler (Operation call) → Codec.Encode → 200
//
// Every exposed operation gets its own route. The route table is complete
// before Start; nothing is added while requests are served.
package server

import (
	"context"
	"net"
	"net/http"
	"obj-rpc/codec"
	"obj-rpc/message"
	"obj-rpc/middleware"
	"obj-rpc/registry"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Server binds exposed objects to HTTP routes and serves them.
type Server struct {
	cfg    Config
	codec  codec.Codec
	logger *zap.Logger
	router *mux.Router

	mu          sync.Mutex
	services    map[string]*service // Exposed objects: "Calc" → *service
	routes      map[string]string   // Bound paths: "/api/Calc/add" → "Calc.add"
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // middleware(middleware(...(businessHandler)))
	sealed      bool                   // Set once the chain is built; no more Expose or Use

	httpServer *http.Server
	listener   net.Listener
	started    atomic.Bool
	shutdown   atomic.Bool // Set during shutdown so Serve's ErrServerClosed is expected
	done       chan struct{}
	serveErr   error
}

// NewServer creates a server with DefaultConfig adjusted by opts. Nothing
// listens until Start.
func NewServer(opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Prefix = normalizePrefix(cfg.Prefix)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		cfg:      cfg,
		codec:    codec.GetCodec(cfg.Codec),
		logger:   cfg.Logger,
		router:   mux.NewRouter(),
		services: make(map[string]*service),
		routes:   make(map[string]string),
		done:     make(chan struct{}),
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint: "+r.URL.Path)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed, use POST")
	})
	return s
}

// Expose makes every eligible operation of obj callable at
// {prefix}/{name}/{operation}. An empty name means the object's type name.
//
// When any path is already bound, Expose registers nothing and returns a
// *RegistrationConflictError.
func (s *Server) Expose(obj Object, name string) error {
	svc, err := newService(obj, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return ErrServerStarted
	}
	if _, ok := s.services[svc.name]; ok {
		return &RegistrationConflictError{Path: s.cfg.Prefix + "/" + svc.name}
	}
	names := svc.names()
	for _, op := range names {
		if _, ok := s.routes[s.path(svc.name, op)]; ok {
			return &RegistrationConflictError{Path: s.path(svc.name, op)}
		}
	}

	s.services[svc.name] = svc
	for _, op := range names {
		path := s.path(svc.name, op)
		s.routes[path] = svc.name + "." + op
		s.router.Handle(path, &invocationHandler{server: s, object: svc.name, operation: op}).
			Methods(http.MethodPost)
	}
	s.logger.Info("object exposed", zap.String("object", svc.name), zap.Strings("operations", names))
	return nil
}

func (s *Server) path(object, operation string) string {
	return s.cfg.Prefix + "/" + object + "/" + operation
}

// Use registers a middleware. Middlewares are applied in the order they are added.
func (s *Server) Use(mw middleware.Middleware) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return ErrServerStarted
	}
	s.middlewares = append(s.middlewares, mw)
	return nil
}

// seal builds the middleware chain once. After it, the route table and the
// chain are read-only.
func (s *Server) seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return
	}
	s.handler = middleware.Chain(s.middlewares...)(s.businessHandler)
	s.sealed = true
}

// Handler returns the route table as an http.Handler, for embedding in
// another HTTP server. It seals the server.
func (s *Server) Handler() http.Handler {
	s.seal()
	return s.router
}

// Routes returns the bound endpoint paths in sorted order.
func (s *Server) Routes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.routes))
	for path := range s.routes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Start listens on the configured address, announces the exposed objects to
// the registry if one is set, and serves in the background.
func (s *Server) Start() error {
	if err := s.cfg.validate(); err != nil {
		return err
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerStarted
	}
	handler := s.Handler()

	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		s.started.Store(false)
		return errors.Wrapf(err, "listen on %s", s.cfg.Addr())
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	if err := s.announce(); err != nil {
		listener.Close()
		s.started.Store(false)
		return err
	}

	s.logger.Info("server listening", zap.String("addr", listener.Addr().String()),
		zap.String("codec", s.codec.Name()), zap.Int("routes", len(s.Routes())))
	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(listener); err != nil && !(s.shutdown.Load() && errors.Is(err, http.ErrServerClosed)) {
			s.serveErr = err
			s.logger.Error("serve failed", zap.Error(err))
		}
	}()
	return nil
}

// Run starts the server and blocks until it is shut down.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}
	<-s.done
	return s.serveErr
}

// announce registers every exposed object under AdvertiseURL.
func (s *Server) announce() error {
	if s.cfg.Registry == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.services {
		inst := registry.Instance{URL: s.cfg.AdvertiseURL + s.cfg.Prefix + "/" + name, Weight: 10}
		if err := s.cfg.Registry.Register(name, inst, s.cfg.RegistryTTL); err != nil {
			return errors.Wrapf(err, "announce %s", name)
		}
	}
	return nil
}

// withdraw removes every exposed object from the registry.
func (s *Server) withdraw() {
	if s.cfg.Registry == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.services {
		url := s.cfg.AdvertiseURL + s.cfg.Prefix + "/" + name
		if err := s.cfg.Registry.Deregister(name, url); err != nil {
			s.logger.Warn("deregister failed", zap.String("object", name), zap.Error(err))
		}
	}
}

// Addr returns the address the server listens on, or the configured one
// before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr()
}

// BaseURL is the URL prefix of every endpoint, e.g. "http://127.0.0.1:8080/api".
func (s *Server) BaseURL() string {
	return "http://" + s.Addr() + s.cfg.Prefix
}

// Shutdown performs graceful shutdown:
//  1. Withdraw every object from the registry (clients stop routing here)
//  2. Set shutdown flag (so ErrServerClosed is recognized as intentional)
//  3. Stop accepting and wait for in-flight requests (with timeout)
func (s *Server) Shutdown(timeout time.Duration) error {
	if !s.started.Load() {
		return ErrServerNotStarted
	}
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	s.withdraw()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.httpServer.Close()
			return errors.New("timeout waiting for ongoing requests to finish")
		}
		return err
	}
	<-s.done
	s.logger.Info("server stopped")
	return nil
}

// businessHandler dispatches a decoded request to its bound operation. It is
// wrapped by the middleware chain and has the HandlerFunc signature.
func (s *Server) businessHandler(ctx context.Context, req *message.Request) *message.Response {
	svc := s.services[req.Object]
	if svc == nil {
		return message.Failed(http.StatusNotFound, "no such object: "+req.Object)
	}
	op := svc.operations[req.Operation]
	if op == nil {
		return message.Failed(http.StatusNotFound, "no such operation: "+req.ServiceMethod())
	}

	result, err := svc.call(ctx, op, req.Call.Args, req.Call.Kwargs)
	if err != nil {
		opErr := &OperationError{Object: req.Object, Operation: req.Operation, Err: err}
		s.logger.Debug("operation failed", zap.String("method", req.ServiceMethod()), zap.Error(err))
		return message.Failed(http.StatusInternalServerError, opErr.Error())
	}
	return &message.Response{Result: result}
}
