package loadbalance

import (
	"hash/crc32"
	"obj-rpc/registry"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const defaultReplicas = 100

// ConsistentHashBalancer maps its key onto a hash ring of instances. Every
// client using the same key picks the same instance until the set of
// instances changes, and then only keys near the change move.
//
// Each instance is placed on the ring as 100 virtual nodes so that a handful
// of instances still splits the ring evenly.
type ConsistentHashBalancer struct {
	key      string
	replicas int

	mu    sync.Mutex
	sig   string                       // URLs the ring was built from
	ring  []uint32                     // Sorted hash values on the ring
	nodes map[uint32]registry.Instance // Hash value → instance
}

// NewConsistentHashBalancer creates a balancer for key with 100 virtual
// nodes per instance.
func NewConsistentHashBalancer(key string) *ConsistentHashBalancer {
	return &ConsistentHashBalancer{key: key, replicas: defaultReplicas}
}

// Pick returns the instance owning the balancer's key.
func (b *ConsistentHashBalancer) Pick(instances []registry.Instance) (*registry.Instance, error) {
	return b.PickKey(instances, b.key)
}

// PickKey returns the instance owning key. The ring is rebuilt only when the
// instance list differs from the previous call.
func (b *ConsistentHashBalancer) PickKey(instances []registry.Instance, key string) (*registry.Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.build(instances)

	hash := crc32.ChecksumIEEE([]byte(key))
	// First node clockwise from the key, wrapping around past the end
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	inst := b.nodes[b.ring[idx]]
	return &inst, nil
}

func (b *ConsistentHashBalancer) build(instances []registry.Instance) {
	urls := make([]string, len(instances))
	for i, inst := range instances {
		urls[i] = inst.URL
	}
	sort.Strings(urls)
	sig := strings.Join(urls, "\n")
	if sig == b.sig && b.ring != nil {
		return
	}

	b.sig = sig
	b.ring = make([]uint32, 0, len(instances)*b.replicas)
	b.nodes = make(map[uint32]registry.Instance, len(instances)*b.replicas)
	for _, inst := range instances {
		for i := 0; i < b.replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(inst.URL + "#" + strconv.Itoa(i)))
			b.ring = append(b.ring, hash)
			b.nodes[hash] = inst
		}
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
