package secrets

import "fmt"

// Memory is an in-memory Store used by tests. It can simulate a missing
// backend (Unavailable) and per-key operation failures (FailDelete).
type Memory struct {
	// Unavailable makes every operation fail with ErrUnavailable.
	Unavailable bool
	// FailDelete lists keys whose Delete fails with a generic error
	// that is neither not-found nor unavailable.
	FailDelete map[string]bool

	data map[string]string
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string), FailDelete: make(map[string]bool)}
}

func (m *Memory) addr(service, key string) string { return service + "\x00" + key }

// Set stores value in the map.
func (m *Memory) Set(service, key, value string) error {
	if m.Unavailable {
		return ErrUnavailable
	}
	m.data[m.addr(service, key)] = value
	return nil
}

// Get reads value from the map.
func (m *Memory) Get(service, key string) (string, error) {
	if m.Unavailable {
		return "", ErrUnavailable
	}
	v, ok := m.data[m.addr(service, key)]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Delete removes key from the map.
func (m *Memory) Delete(service, key string) error {
	if m.Unavailable {
		return ErrUnavailable
	}
	if m.FailDelete[key] {
		return fmt.Errorf("simulated delete failure for %q", key)
	}
	if _, ok := m.data[m.addr(service, key)]; !ok {
		return ErrNotFound
	}
	delete(m.data, m.addr(service, key))
	return nil
}

// Len reports the number of stored entries across all services.
func (m *Memory) Len() int { return len(m.data) }
