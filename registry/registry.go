// Package registry lets servers announce where their exposed objects live and
// lets clients find them.
//
// An Instance is the base URL of one exposed object on one server, e.g.
// "http://10.0.0.5:8080/api/Calc". Proxies append the operation name to it.
package registry

type Instance struct {
	URL     string
	Weight  int // Weight for load balancing
	Version string
}

type Registry interface {
	Register(objectName string, instance Instance, ttl int64) error
	Deregister(objectName string, url string) error
	Discover(objectName string) ([]Instance, error)
	Watch(objectName string) <-chan []Instance
}
