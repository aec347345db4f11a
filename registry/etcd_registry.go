package registry

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyRoot = "/obj-rpc/"

// EtcdRegistry implements the Registry interface using etcd v3, used as the
// phonebook of exposed objects:
//
//	Key:   /obj-rpc/{ObjectName}/{escaped URL}
//	Value: JSON-encoded Instance
//
// Registration uses TTL-based leases: if the server crashes, the lease expires
// and the entry is removed, so clients never resolve a dead endpoint for long.
type EtcdRegistry struct {
	client  *clientv3.Client // thread-safe, shared across goroutines
	timeout time.Duration    // bound on each etcd round trip

	mu     sync.Mutex
	leases map[string]lease // instance key → lease kept alive for it
}

type lease struct {
	id   clientv3.LeaseID
	stop context.CancelFunc // ends the keep-alive
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect etcd")
	}
	return &EtcdRegistry{client: c, timeout: 5 * time.Second, leases: make(map[string]lease)}, nil
}

func objectPrefix(objectName string) string {
	return keyRoot + objectName + "/"
}

func instanceKey(objectName, instanceURL string) string {
	return objectPrefix(objectName) + url.PathEscape(instanceURL)
}

// Register adds an instance to etcd with a TTL lease and keeps the lease
// alive in the background until Deregister or Close. Registering the same
// URL again replaces the entry and revokes the previous lease.
func (r *EtcdRegistry) Register(objectName string, instance Instance, ttl int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	grant, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return errors.Wrap(err, "grant lease")
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := instanceKey(objectName, instance.URL)
	_, err = r.client.Put(ctx, key, string(val), clientv3.WithLease(grant.ID))
	if err != nil {
		r.client.Revoke(ctx, grant.ID)
		return errors.Wrapf(err, "register %s", objectName)
	}

	// The keep-alive must outlive this call, so it gets its own context.
	kaCtx, stop := context.WithCancel(context.Background())
	ch, err := r.client.KeepAlive(kaCtx, grant.ID)
	if err != nil {
		stop()
		return errors.Wrap(err, "keep lease alive")
	}

	// Consume KeepAlive responses to prevent the channel from filling up
	go func() {
		for range ch {
		}
	}()

	r.mu.Lock()
	prev, had := r.leases[key]
	r.leases[key] = lease{id: grant.ID, stop: stop}
	r.mu.Unlock()
	if had {
		r.release(ctx, prev)
	}
	return nil
}

// Deregister removes an instance from etcd and revokes its lease. The server
// calls it during shutdown, before it stops accepting requests.
func (r *EtcdRegistry) Deregister(objectName string, instanceURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	key := instanceKey(objectName, instanceURL)
	if _, err := r.client.Delete(ctx, key); err != nil {
		return errors.Wrapf(err, "deregister %s", objectName)
	}

	r.mu.Lock()
	l, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()
	if ok {
		return errors.Wrapf(r.release(ctx, l), "deregister %s", objectName)
	}
	return nil
}

// release stops the keep-alive of l and revokes it.
func (r *EtcdRegistry) release(ctx context.Context, l lease) error {
	l.stop()
	_, err := r.client.Revoke(ctx, l.id)
	return errors.Wrap(err, "revoke lease")
}

// Watch emits the full instance list of an object whenever it changes.
func (r *EtcdRegistry) Watch(objectName string) <-chan []Instance {
	ch := make(chan []Instance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(context.Background(), objectPrefix(objectName), clientv3.WithPrefix())
		for range watchChan {
			// On any change, re-fetch the full instance list
			instances, err := r.Discover(objectName)
			if err != nil {
				continue
			}
			ch <- instances
		}
	}()

	return ch
}

// Discover returns all currently registered instances of an object.
func (r *EtcdRegistry) Discover(objectName string) ([]Instance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	resp, err := r.client.Get(ctx, objectPrefix(objectName), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrapf(err, "discover %s", objectName)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // Skip malformed entries
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

// Close releases the etcd connection; leases stop being renewed and expire.
func (r *EtcdRegistry) Close() error {
	r.mu.Lock()
	for key, l := range r.leases {
		l.stop()
		delete(r.leases, key)
	}
	r.mu.Unlock()
	return r.client.Close()
}

// Ping checks that the first etcd endpoint answers.
func (r *EtcdRegistry) Ping(ctx context.Context) error {
	endpoints := r.client.Endpoints()
	if len(endpoints) == 0 {
		return errors.New("no etcd endpoints")
	}
	_, err := r.client.Status(ctx, endpoints[0])
	return errors.Wrap(err, "etcd status")
}
