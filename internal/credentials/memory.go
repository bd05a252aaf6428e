package credentials

import (
	"sync"

	"github.com/awnumar/memguard"
)

// MemoryStore keeps credentials in memguard enclaves, encrypted while idle.
// Nothing survives process exit.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]*memguard.Enclave

	// memguard refuses empty enclaves, so zero-length values live here
	empty map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]*memguard.Enclave),
		empty:  make(map[string]struct{}),
	}
}

func (s *MemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(key, value)
	return nil
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.empty[key]; ok {
		return []byte{}, nil
	}
	enclave, ok := s.values[key]
	if !ok {
		return nil, nil
	}

	buf, err := enclave.Open()
	if err != nil {
		return nil, storageError(err, "open %s", key)
	}
	defer buf.Destroy()

	return copyBytes(buf.Bytes()), nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.empty, key)
	return nil
}

func (s *MemoryStore) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	return nil
}

func (s *MemoryStore) Replace(values map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	for k, v := range values {
		s.putLocked(k, v)
	}
	return nil
}

// Close drops every value
func (s *MemoryStore) Close() error {
	return s.DeleteAll()
}

func (s *MemoryStore) putLocked(key string, value []byte) {
	delete(s.values, key)
	delete(s.empty, key)
	if len(value) == 0 {
		s.empty[key] = struct{}{}
		return
	}
	// NewEnclave wipes its input
	s.values[key] = memguard.NewEnclave(copyBytes(value))
}

func (s *MemoryStore) clearLocked() {
	s.values = make(map[string]*memguard.Enclave)
	s.empty = make(map[string]struct{})
}
