// ABOUTME: Session Store keeping the signed-in Identity in client-local storage
// ABOUTME: Load treats missing or malformed records as unauthenticated; writes report storage errors

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/bank-assistant/internal/localstore"
)

// RecordKey is the storage key holding the persisted identity.
const RecordKey = "user"

// ErrPersistenceUnavailable is returned when the identity record cannot be written or removed
var ErrPersistenceUnavailable = errors.New("persistence unavailable")

// Identity is the authenticated actor.
// IsPrivileged is only ever taken from a login response.
type Identity struct {
	Username     string `json:"username"`
	IsPrivileged bool   `json:"isAdmin"`
}

// Store reads and writes the persisted Identity.
type Store struct {
	storage localstore.Storage
	logger  *slog.Logger
}

// NewStore creates a Store over storage. Pass nil logger for default.
func NewStore(storage localstore.Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage: storage,
		logger:  logger.With("component", "session"),
	}
}

// Load returns the persisted identity, or false if there is none usable.
func (s *Store) Load(ctx context.Context) (Identity, bool) {
	data, err := s.storage.GetItem(ctx, RecordKey)
	if errors.Is(err, localstore.ErrNotFound) {
		return Identity{}, false
	}
	if err != nil {
		s.logger.Warn("reading session record failed", "error", err)
		return Identity{}, false
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		s.logger.Warn("ignoring malformed session record", "error", err)
		return Identity{}, false
	}
	if strings.TrimSpace(id.Username) == "" {
		s.logger.Warn("ignoring session record without username")
		return Identity{}, false
	}
	return id, true
}

// Save overwrites the persisted identity.
func (s *Store) Save(ctx context.Context, id Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}
	if err := s.storage.SetItem(ctx, RecordKey, data); err != nil {
		return fmt.Errorf("%w: saving session record: %w", ErrPersistenceUnavailable, err)
	}
	return nil
}

// Clear removes the persisted identity.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.storage.RemoveItem(ctx, RecordKey); err != nil {
		return fmt.Errorf("%w: clearing session record: %w", ErrPersistenceUnavailable, err)
	}
	return nil
}
