package client

import (
	"obj-rpc/loadbalance"
	"obj-rpc/registry"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Client binds proxies to objects found in a registry. All proxies it
// returns share one pooled HTTP client.
type Client struct {
	registry registry.Registry // find object endpoints from registry
	balancer loadbalance.Balancer
	opts     *options
	logger   *zap.Logger
}

// NewClient uses round robin when bal is nil.
func NewClient(reg registry.Registry, bal loadbalance.Balancer, opts ...Option) *Client {
	if bal == nil {
		bal = &loadbalance.RoundRobinBalancer{}
	}
	return &Client{
		registry: reg,
		balancer: bal,
		opts:     buildOptions(opts),
		logger:   zap.NewNop(),
	}
}

// SetLogger logs endpoint selection to logger.
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Proxy discovers the servers exposing objectName, picks one with the
// balancer and returns a proxy bound to it. The choice holds for the life of
// the proxy; ask again to rebalance.
func (c *Client) Proxy(objectName string) (*Proxy, error) {
	instances, err := c.registry.Discover(objectName)
	if err != nil {
		return nil, errors.Wrapf(err, "discover %s", objectName)
	}
	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return nil, errors.Wrapf(err, "pick %s", objectName)
	}
	c.logger.Debug("endpoint selected", zap.String("object", objectName),
		zap.String("url", instance.URL), zap.String("balancer", c.balancer.Name()))
	return newProxy(instance.URL, c.opts), nil
}
