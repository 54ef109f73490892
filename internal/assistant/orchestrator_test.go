// ABOUTME: Tests for the orchestrator session lifecycle
// ABOUTME: Covers login, restore, register, logout idempotence, persistence degradation and Sync

package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/bank-assistant/internal/api"
	"github.com/2389/bank-assistant/internal/localstore"
	"github.com/2389/bank-assistant/internal/scope"
	"github.com/2389/bank-assistant/internal/session"
)

// failingStorage rejects writes but reads as empty, like disabled storage.
type failingStorage struct{}

func (failingStorage) GetItem(context.Context, string) ([]byte, error) {
	return nil, localstore.ErrNotFound
}
func (failingStorage) SetItem(context.Context, string, []byte) error {
	return errors.New("storage disabled")
}
func (failingStorage) RemoveItem(context.Context, string) error {
	return errors.New("storage disabled")
}
func (failingStorage) Close() error { return nil }

func TestLogin_PersistsIdentityFromResponse(t *testing.T) {
	backend := &fakeBackend{isAdmin: true}
	o, store := newTestOrchestrator(t, backend)
	ctx := context.Background()

	id, err := o.Login(ctx, Credentials{Username: "admin", Password: "pw"})
	require.NoError(t, err)

	want := session.Identity{Username: "admin", IsPrivileged: true}
	assert.Equal(t, want, id)
	assert.Equal(t, StateAuthenticated, o.State())
	assert.True(t, o.Durable())

	stored, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, want, stored)
	assert.NotNil(t, o.Transcript())
}

func TestLogin_NonAdminResponseIsNotPrivileged(t *testing.T) {
	o := loggedIn(t, &fakeBackend{isAdmin: false}, "alice")
	id, ok := o.Identity()
	require.True(t, ok)
	assert.False(t, id.IsPrivileged)
}

func TestLogin_FailureLeavesStoreUntouched(t *testing.T) {
	backend := &fakeBackend{loginErr: &api.BackendError{StatusCode: 401, Message: "invalid credentials"}}
	o, store := newTestOrchestrator(t, backend)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session.Identity{Username: "previous"}))

	_, err := o.Login(ctx, Credentials{Username: "alice", Password: "bad"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.ErrorIs(t, err, api.ErrBackendRejected)
	assert.Equal(t, StateUnauthenticated, o.State())

	stored, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "previous", stored.Username)
}

func TestLogin_TransportFailure(t *testing.T) {
	backend := &fakeBackend{loginErr: &api.TransportError{Method: "POST", Path: api.PathLogin, Err: errors.New("refused")}}
	o, _ := newTestOrchestrator(t, backend)

	_, err := o.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.ErrorIs(t, err, api.ErrTransportFailure)
}

func TestLogin_ValidatesCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"empty", Credentials{}},
		{"no password", Credentials{Username: "alice"}},
		{"no username", Credentials{Password: "pw"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			o, _ := newTestOrchestrator(t, backend)

			_, err := o.Login(context.Background(), tt.creds)
			assert.ErrorIs(t, err, ErrValidationRejected)
			assert.Equal(t, 0, backend.networkCalls())
		})
	}
}

func TestLogin_PersistenceUnavailableDegradesToSessionOnly(t *testing.T) {
	backend := &fakeBackend{}
	o := New(backend, session.NewStore(failingStorage{}, nil), nil)
	ctx := context.Background()

	id, err := o.Login(ctx, Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, StateAuthenticated, o.State())
	assert.False(t, o.Durable())

	// Session-only identities survive Sync even though nothing is stored
	assert.True(t, o.Sync(ctx))

	_, err = o.Ask(ctx, "hello")
	assert.NoError(t, err)
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	backend := &fakeBackend{}
	o := loggedIn(t, backend, "alice")
	first := o.Transcript()
	_, err := o.Ask(context.Background(), "hi")
	require.NoError(t, err)

	_, err = o.Login(context.Background(), Credentials{Username: "bob", Password: "pw"})
	require.NoError(t, err)

	assert.NotSame(t, first, o.Transcript())
	assert.Equal(t, 0, o.Transcript().Len())
	id, _ := o.Identity()
	assert.Equal(t, "bob", id.Username)
}

func TestRestore(t *testing.T) {
	backend := &fakeBackend{}
	storage := localstore.NewMemoryStorage()
	ctx := context.Background()

	first := New(backend, session.NewStore(storage, nil), nil)
	_, err := first.Login(ctx, Credentials{Username: "admin", Password: "pw"})
	require.NoError(t, err)

	// A new process over the same storage
	second := New(backend, session.NewStore(storage, nil), nil)
	assert.Equal(t, StateUnauthenticated, second.State())

	id, ok := second.Restore(ctx)
	require.True(t, ok)
	assert.Equal(t, "admin", id.Username)
	assert.Equal(t, StateAuthenticated, second.State())
	assert.Equal(t, 0, second.Transcript().Len(), "transcripts are not persisted")
}

func TestRestore_MalformedRecord(t *testing.T) {
	storage := localstore.NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.SetItem(ctx, session.RecordKey, []byte("{broken")))

	o := New(&fakeBackend{}, session.NewStore(storage, nil), nil)
	_, ok := o.Restore(ctx)
	assert.False(t, ok)
	assert.Equal(t, StateUnauthenticated, o.State())
}

func TestRegister(t *testing.T) {
	backend := &fakeBackend{}
	o, store := newTestOrchestrator(t, backend)
	ctx := context.Background()

	require.NoError(t, o.Register(ctx, Credentials{Username: "new", Password: "pw"}))
	assert.Equal(t, 1, backend.registers)
	assert.Equal(t, StateUnauthenticated, o.State(), "signup does not sign in")
	_, ok := store.Load(ctx)
	assert.False(t, ok)

	backend.regErr = &api.BackendError{StatusCode: 400}
	err := o.Register(ctx, Credentials{Username: "new", Password: "pw"})
	assert.ErrorIs(t, err, ErrRegistrationFailed)

	err = o.Register(ctx, Credentials{Username: "new"})
	assert.ErrorIs(t, err, ErrValidationRejected)
}

func TestLogout_ClearsEverything(t *testing.T) {
	backend := &fakeBackend{isAdmin: true}
	o, store := newTestOrchestrator(t, backend)
	ctx := context.Background()

	_, err := o.Login(ctx, Credentials{Username: "admin", Password: "pw"})
	require.NoError(t, err)
	o.SetSelection(scope.ForUser("42"))
	backend.setUploadErr(errors.New("boom"))
	_, err = o.UploadDocument(ctx, testDocument(), scope.ForUser("42"))
	require.Error(t, err)
	_, hasPending := o.PendingUpload()
	require.True(t, hasPending)

	require.NoError(t, o.Logout(ctx))

	assert.Equal(t, StateUnauthenticated, o.State())
	_, ok := store.Load(ctx)
	assert.False(t, ok)
	assert.Nil(t, o.Transcript())
	assert.Equal(t, scope.Selection{}, o.Selection())
	_, hasPending = o.PendingUpload()
	assert.False(t, hasPending)
	assert.Equal(t, 1, backend.logouts)
}

func TestLogout_Idempotent(t *testing.T) {
	backend := &fakeBackend{}
	o, store := newTestOrchestrator(t, backend)
	ctx := context.Background()
	_, err := o.Login(ctx, Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, o.Logout(ctx))
	require.NoError(t, o.Logout(ctx))

	assert.Equal(t, StateUnauthenticated, o.State())
	_, ok := store.Load(ctx)
	assert.False(t, ok)
	assert.Equal(t, 1, backend.logouts, "second logout is a local no-op")
}

func TestLogout_WhenNeverLoggedIn(t *testing.T) {
	backend := &fakeBackend{}
	o, _ := newTestOrchestrator(t, backend)

	assert.NoError(t, o.Logout(context.Background()))
	assert.Equal(t, 0, backend.networkCalls())
}

func TestLogout_BackendFailureStillSignsOut(t *testing.T) {
	backend := &fakeBackend{logoutErr: &api.TransportError{Err: errors.New("offline")}}
	o, store := newTestOrchestrator(t, backend)
	ctx := context.Background()
	_, err := o.Login(ctx, Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	assert.NoError(t, o.Logout(ctx))
	assert.Equal(t, StateUnauthenticated, o.State())
	_, ok := store.Load(ctx)
	assert.False(t, ok)
}

func TestLogout_CancelledContextStillClearsRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	st, err := localstore.NewSQLiteStorage(path)
	require.NoError(t, err)
	o := New(&fakeBackend{}, session.NewStore(st, nil), nil)

	_, err = o.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, o.Logout(ctx))
	require.NoError(t, st.Close())

	// A fresh process over the same database
	reopened, err := localstore.NewSQLiteStorage(path)
	require.NoError(t, err)
	defer reopened.Close()
	next := New(&fakeBackend{}, session.NewStore(reopened, nil), nil)

	_, restored := next.Restore(context.Background())
	assert.False(t, restored)
}

func TestLogout_RecordClearedBeforeBackendReturns(t *testing.T) {
	backend := &fakeBackend{
		logoutGate:    make(chan struct{}),
		logoutStarted: make(chan struct{}),
	}
	o, store := newTestOrchestrator(t, backend)
	ctx := context.Background()
	_, err := o.Login(ctx, Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- o.Logout(ctx) }()

	select {
	case <-backend.logoutStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("backend logout was never called")
	}
	_, ok := store.Load(ctx)
	assert.False(t, ok, "record should be gone while the backend call is in flight")

	close(backend.logoutGate)
	require.NoError(t, <-done)
}

func TestLogout_PersistenceFailureReportedButSignedOut(t *testing.T) {
	o := New(&fakeBackend{}, session.NewStore(failingStorage{}, nil), nil)
	ctx := context.Background()
	_, err := o.Login(ctx, Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	err = o.Logout(ctx)
	assert.ErrorIs(t, err, session.ErrPersistenceUnavailable)
	assert.Equal(t, StateUnauthenticated, o.State())
}

func TestSync(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, st localstore.Storage)
		want   bool
	}{
		{"unchanged", func(*testing.T, localstore.Storage) {}, true},
		{"removed", func(t *testing.T, st localstore.Storage) {
			require.NoError(t, st.RemoveItem(context.Background(), session.RecordKey))
		}, false},
		{"corrupted", func(t *testing.T, st localstore.Storage) {
			require.NoError(t, st.SetItem(context.Background(), session.RecordKey, []byte("garbage")))
		}, false},
		{"other user", func(t *testing.T, st localstore.Storage) {
			require.NoError(t, st.SetItem(context.Background(), session.RecordKey, []byte(`{"username":"mallory","isAdmin":false}`)))
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := localstore.NewMemoryStorage()
			o := New(&fakeBackend{}, session.NewStore(storage, nil), nil)
			ctx := context.Background()
			_, err := o.Login(ctx, Credentials{Username: "alice", Password: "pw"})
			require.NoError(t, err)

			tt.mutate(t, storage)

			assert.Equal(t, tt.want, o.Sync(ctx))
			if tt.want {
				assert.Equal(t, StateAuthenticated, o.State())
			} else {
				assert.Equal(t, StateUnauthenticated, o.State())
			}
		})
	}
}

func TestSync_Unauthenticated(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeBackend{})
	assert.False(t, o.Sync(context.Background()))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
}
