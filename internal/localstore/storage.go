// ABOUTME: Storage interface for client-local durable records and the in-memory backend
// ABOUTME: Open selects a backend by driver name (file, sqlite, memory)

package localstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when no record exists for a key
var ErrNotFound = errors.New("not found")

// Driver names accepted by Open
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Storage is a durable key/value store for small client records.
type Storage interface {
	GetItem(ctx context.Context, key string) ([]byte, error)
	SetItem(ctx context.Context, key string, value []byte) error
	RemoveItem(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a Storage backend.
type Options struct {
	Driver string
	// Path is a directory for the file driver and a database file for sqlite.
	Path string
}

// Open creates the Storage described by opts.
func Open(opts Options) (Storage, error) {
	switch opts.Driver {
	case DriverFile, "":
		return NewFileStorage(opts.Path)
	case DriverSQLite:
		return NewSQLiteStorage(opts.Path)
	case DriverMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// MemoryStorage is an in-process Storage. Records are lost on exit.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string][]byte)}
}

// GetItem returns a copy of the stored value or ErrNotFound.
func (m *MemoryStorage) GetItem(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// SetItem stores a copy of value under key.
func (m *MemoryStorage) SetItem(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.items[key] = v
	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (m *MemoryStorage) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Close is a no-op.
func (m *MemoryStorage) Close() error {
	return nil
}
