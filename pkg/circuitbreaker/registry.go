package circuitbreaker

import "sync"

// Registry holds one breaker per key, created lazily with a shared
// config. Keys are typically destination hosts.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      Config
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		cfg:      cfg.withDefaults(),
	}
}

// Get returns the breaker for key, creating it on first use.
func (r *Registry) Get(key string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[key]; ok {
		return b
	}
	b = New(r.cfg)
	r.breakers[key] = b
	return b
}

// Snapshot summarizes breaker states across the registry.
type Snapshot struct {
	Total    int
	Open     int
	HalfOpen int
	Closed   int
}

// Snapshot counts breakers by state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{Total: len(r.breakers)}
	for _, b := range r.breakers {
		switch b.State() {
		case StateOpen:
			snap.Open++
		case StateHalfOpen:
			snap.HalfOpen++
		default:
			snap.Closed++
		}
	}
	return snap
}
