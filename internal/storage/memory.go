package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process ObjectStore used in development and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string

	// FailDelete makes Delete return an error. Test hook.
	FailDelete bool
}

func NewMemory(baseURL string) *Memory {
	return &Memory{objects: make(map[string][]byte), baseURL: baseURL}
}

func (m *Memory) Put(ctx context.Context, r io.Reader, _ int64, _ string, keyHint string) (string, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	key := NewKey(keyHint)

	m.mu.Lock()
	m.objects[key] = buf
	m.mu.Unlock()
	return key, ctx.Err()
}

// Seed stores data under an exact key.
func (m *Memory) Seed(key string, data []byte) {
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
}

func (m *Memory) Delete(_ context.Context, key string) error {
	if m.FailDelete {
		return fmt.Errorf("memory delete %s: injected failure", key)
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) URL(key string) string {
	return JoinURL(m.baseURL, key)
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}
