// ABOUTME: Test helpers for orchestrator tests
// ABOUTME: Provides a recording in-memory Backend and orchestrator constructors

package assistant

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/2389/bank-assistant/internal/api"
	"github.com/2389/bank-assistant/internal/localstore"
	"github.com/2389/bank-assistant/internal/session"
)

type queryCall struct {
	question string
	targetID string
}

type uploadCall struct {
	filename string
	body     string
	targetID string
}

// fakeBackend records calls and returns canned results.
type fakeBackend struct {
	mu sync.Mutex

	isAdmin   bool
	loginErr  error
	regErr    error
	queryErr  error
	uploadErr error
	logoutErr error
	listErr   error
	users     []api.ManagedUser

	// queryGate, uploadGate and logoutGate, when set, hold calls until they are closed.
	queryGate  chan struct{}
	uploadGate chan struct{}
	logoutGate chan struct{}
	// logoutStarted, when set, is closed as Logout is entered.
	logoutStarted chan struct{}

	logins    int
	registers int
	logouts   int
	lists     int
	queries   []queryCall
	uploads   []uploadCall
}

func (f *fakeBackend) Login(_ context.Context, username, password string) (*api.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &api.LoginResult{Status: "logged_in", IsAdmin: f.isAdmin}, nil
}

func (f *fakeBackend) Register(_ context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	return f.regErr
}

func (f *fakeBackend) Query(_ context.Context, question, targetID string) (*api.QueryResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, queryCall{question: question, targetID: targetID})
	gate := f.queryGate
	err := f.queryErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &api.QueryResult{Answer: "answer to " + question}, nil
}

func (f *fakeBackend) UploadPDF(_ context.Context, filename string, content io.Reader, targetID string) (*api.UploadResult, error) {
	data, _ := io.ReadAll(content)

	f.mu.Lock()
	f.uploads = append(f.uploads, uploadCall{filename: filename, body: string(data), targetID: targetID})
	gate := f.uploadGate
	err := f.uploadErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &api.UploadResult{Status: "uploaded", UploadedFor: targetID}, nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.mu.Lock()
	f.logouts++
	gate := f.logoutGate
	started := f.logoutStarted
	err := f.logoutErr
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeBackend) ListUsers(context.Context) ([]api.ManagedUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.users, nil
}

func (f *fakeBackend) setUploadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadErr = err
}

func (f *fakeBackend) queryCalls() []queryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queryCall(nil), f.queries...)
}

func (f *fakeBackend) uploadCalls() []uploadCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uploadCall(nil), f.uploads...)
}

// networkCalls counts every backend call.
func (f *fakeBackend) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins + f.registers + f.logouts + f.lists + len(f.queries) + len(f.uploads)
}

// newTestOrchestrator returns an unauthenticated orchestrator over memory storage.
func newTestOrchestrator(t *testing.T, backend *fakeBackend) (*Orchestrator, *session.Store) {
	t.Helper()
	store := session.NewStore(localstore.NewMemoryStorage(), nil)
	return New(backend, store, nil), store
}

// loggedIn returns an orchestrator already signed in as username.
func loggedIn(t *testing.T, backend *fakeBackend, username string) *Orchestrator {
	t.Helper()
	o, _ := newTestOrchestrator(t, backend)
	_, err := o.Login(context.Background(), Credentials{Username: username, Password: "pw"})
	require.NoError(t, err)
	return o
}

func testDocument() *Document {
	return &Document{Name: "statement.pdf", Data: []byte("%PDF-1.4 test")}
}

