package archive

import (
	"fmt"
	"strings"
	"sync"
)

// MemoryArchive is an in-process archive used for local runs and tests.
type MemoryArchive struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ Store = (*MemoryArchive)(nil)

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{entries: make(map[string][]byte)}
}

func (a *MemoryArchive) Put(name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	a.entries[name] = buf
	return nil
}

func (a *MemoryArchive) Get(name string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, ok := a.entries[name]
	if !ok {
		return nil, fmt.Errorf("entry %s not found", name)
	}
	return data, nil
}

func (a *MemoryArchive) List(prefix string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var names []string
	for name := range a.entries {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}
