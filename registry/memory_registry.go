package registry

import "sync"

// MemoryRegistry keeps instances in process memory. It ignores TTLs and is
// meant for tests and single-process setups.
type MemoryRegistry struct {
	mu        sync.Mutex
	instances map[string][]Instance
	watchers  map[string][]chan []Instance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		instances: make(map[string][]Instance),
		watchers:  make(map[string][]chan []Instance),
	}
}

// Register adds or replaces the instance with the same URL.
func (m *MemoryRegistry) Register(objectName string, instance Instance, ttl int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	insts := m.instances[objectName]
	for i, inst := range insts {
		if inst.URL == instance.URL {
			insts[i] = instance
			m.notify(objectName)
			return nil
		}
	}
	m.instances[objectName] = append(insts, instance)
	m.notify(objectName)
	return nil
}

func (m *MemoryRegistry) Deregister(objectName string, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	insts := m.instances[objectName]
	for i, inst := range insts {
		if inst.URL == url {
			m.instances[objectName] = append(insts[:i:i], insts[i+1:]...)
			m.notify(objectName)
			break
		}
	}
	return nil
}

func (m *MemoryRegistry) Discover(objectName string) ([]Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Instance(nil), m.instances[objectName]...), nil
}

// Watch emits the instance list after every change. A slow reader only
// misses intermediate lists, never the latest one.
func (m *MemoryRegistry) Watch(objectName string) <-chan []Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan []Instance, 1)
	m.watchers[objectName] = append(m.watchers[objectName], ch)
	return ch
}

// notify must be called with mu held.
func (m *MemoryRegistry) notify(objectName string) {
	snapshot := append([]Instance(nil), m.instances[objectName]...)
	for _, ch := range m.watchers[objectName] {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
