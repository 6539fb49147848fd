package vault

import (
	"fmt"
	"sync"
)

// MemoryStore is a [CipherStore] backed by a map.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) GetCiphertext(userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ct, ok := m.data[userID]
	if !ok {
		return "", fmt.Errorf("%w: no stored secret for user %s", ErrNotFound, userID)
	}
	return ct, nil
}

func (m *MemoryStore) PutCiphertext(userID, ciphertext string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = ciphertext
	return nil
}

func (m *MemoryStore) DeleteCiphertext(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[userID]; !ok {
		return fmt.Errorf("%w: no stored secret for user %s", ErrNotFound, userID)
	}
	delete(m.data, userID)
	return nil
}
