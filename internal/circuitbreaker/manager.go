package circuitbreaker

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Manager is a registry of named breakers, one per backend tier. It is
// pure bookkeeping: the map mutex is held only for lookups and
// inserts, never for the duration of a breaker call. Construct one
// Manager at startup and pass it explicitly; there is no package-level
// default instance.
type Manager struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	logger   *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
	}
}

// Register creates and stores a breaker under name. Registering a name
// twice fails with ErrDuplicateBreaker.
func (m *Manager) Register(name string, settings Settings) (*CircuitBreaker, error) {
	cb, err := New(name, settings, m.logger)
	if err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.breakers[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateBreaker, name)
	}

	m.breakers[name] = cb
	m.logger.Info("breaker registered", slog.String("breaker", name))
	return cb, nil
}

// Get returns the breaker registered under name or ErrBreakerNotFound.
func (m *Manager) Get(name string) (*CircuitBreaker, error) {
	m.mutex.RLock()
	cb, exists := m.breakers[name]
	m.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrBreakerNotFound, name)
	}
	return cb, nil
}

// Unregister removes the breaker registered under name.
func (m *Manager) Unregister(name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.breakers[name]; !exists {
		return fmt.Errorf("%w: %q", ErrBreakerNotFound, name)
	}

	delete(m.breakers, name)
	m.logger.Info("breaker unregistered", slog.String("breaker", name))
	return nil
}

// AllStates returns the current state of every registered breaker.
// State() may apply the lazy recovery transition, so each breaker is
// queried from a map snapshot without the registry lock held.
func (m *Manager) AllStates() map[string]State {
	states := make(map[string]State)
	for name, cb := range m.snapshot() {
		states[name] = cb.State()
	}
	return states
}

// AllMetrics returns a metrics snapshot of every registered breaker.
func (m *Manager) AllMetrics() map[string]Metrics {
	metrics := make(map[string]Metrics)
	for name, cb := range m.snapshot() {
		metrics[name] = cb.Metrics()
	}
	return metrics
}

// ResetAll resets every registered breaker to closed.
func (m *Manager) ResetAll() {
	for _, cb := range m.snapshot() {
		cb.Reset()
	}
	m.logger.Info("all breakers reset")
}

// Reset resets the named breaker to closed.
func (m *Manager) Reset(name string) error {
	cb, err := m.Get(name)
	if err != nil {
		return err
	}
	cb.Reset()
	return nil
}

// Names returns the registered breaker names in sorted order.
func (m *Manager) Names() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	names := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered breakers.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.breakers)
}

// snapshot copies the breaker map so per-breaker calls happen without
// holding the registry lock.
func (m *Manager) snapshot() map[string]*CircuitBreaker {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	copied := make(map[string]*CircuitBreaker, len(m.breakers))
	for name, cb := range m.breakers {
		copied[name] = cb
	}
	return copied
}
