package server

import (
	"net"
	"obj-rpc/codec"
	"obj-rpc/registry"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 8080
	DefaultMaxBodyBytes = 32 << 20
	DefaultRegistryTTL  = 10 // seconds; the lease is kept alive while the server runs
)

// Config holds the listener configuration of a Server.
type Config struct {
	Host         string          // Bind address, default 0.0.0.0
	Port         int             // Bind port, default 8080; 0 picks a free port
	Prefix       string          // URL path prefix, default empty
	Codec        codec.CodecType // Payload codec, default JSON
	MaxBodyBytes int64           // Request bodies above this size are rejected with 413

	// Registry, when set, receives one entry per exposed object on Start and
	// loses it on Shutdown. AdvertiseURL is the base URL clients should use
	// (e.g. "http://10.0.0.5:8080"); it differs from the bind address because
	// 0.0.0.0 is not routable.
	Registry     registry.Registry
	AdvertiseURL string
	RegistryTTL  int64

	Logger *zap.Logger
}

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() Config {
	return Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		Codec:        codec.CodecTypeJSON,
		MaxBodyBytes: DefaultMaxBodyBytes,
		RegistryTTL:  DefaultRegistryTTL,
		Logger:       zap.NewNop(),
	}
}

// Addr returns the host:port the server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if c.MaxBodyBytes <= 0 {
		return errors.Errorf("invalid max body size %d", c.MaxBodyBytes)
	}
	if c.Registry != nil && c.AdvertiseURL == "" {
		return errors.New("a registry needs an advertise URL")
	}
	return nil
}

// normalizePrefix turns "", "/", "api", "/api/" into "", "", "/api", "/api".
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}

type Option func(*Config)

func WithHost(host string) Option {
	return func(c *Config) { c.Host = host }
}

func WithPort(port int) Option {
	return func(c *Config) { c.Port = port }
}

func WithPrefix(prefix string) Option {
	return func(c *Config) { c.Prefix = prefix }
}

func WithCodec(t codec.CodecType) Option {
	return func(c *Config) { c.Codec = t }
}

func WithMaxBodyBytes(n int64) Option {
	return func(c *Config) { c.MaxBodyBytes = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithRegistry announces every exposed object in reg under advertiseURL.
func WithRegistry(reg registry.Registry, advertiseURL string) Option {
	return func(c *Config) {
		c.Registry = reg
		c.AdvertiseURL = strings.TrimRight(advertiseURL, "/")
	}
}

// WithConfig replaces the whole configuration; later options still apply.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}
