// Package loadbalance picks the endpoint a proxy is bound to when an
// object is exposed by several servers.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity servers
//   - WeightedRandom:  servers announced with different weights
//   - ConsistentHash:  every caller with the same key lands on the same server
package loadbalance

import (
	"obj-rpc/registry"

	"github.com/pkg/errors"
)

// ErrNoInstances is returned by Pick when nothing is announced.
var ErrNoInstances = errors.New("no instances available")

// Balancer is the interface for load balancing strategies.
// The client calls Pick() each time it binds a proxy.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Must be goroutine-safe.
	Pick(instances []registry.Instance) (*registry.Instance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the balancer registered under name: "roundrobin",
// "weighted" or "hash:<key>".
func New(name string) (Balancer, error) {
	switch {
	case name == "" || name == "roundrobin":
		return &RoundRobinBalancer{}, nil
	case name == "weighted":
		return &WeightedRandomBalancer{}, nil
	case len(name) > len("hash:") && name[:len("hash:")] == "hash:":
		return NewConsistentHashBalancer(name[len("hash:"):]), nil
	}
	return nil, errors.Errorf("unknown balancer %q", name)
}
