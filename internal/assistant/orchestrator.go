// ABOUTME: Orchestrator owning identity, selection, transcript and pending upload for one client
// ABOUTME: Implements login, restore, register, logout and the session generation guard

package assistant

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"

	"github.com/2389/bank-assistant/internal/api"
	"github.com/2389/bank-assistant/internal/scope"
	"github.com/2389/bank-assistant/internal/session"
	"github.com/2389/bank-assistant/internal/transcript"
)

// DefaultDirectoryTTL is how long a fetched user list is reused.
const DefaultDirectoryTTL = 30 * time.Second

// Backend is the protocol client surface the orchestrator needs.
type Backend interface {
	Login(ctx context.Context, username, password string) (*api.LoginResult, error)
	Register(ctx context.Context, username, password string) error
	Query(ctx context.Context, question, targetID string) (*api.QueryResult, error)
	UploadPDF(ctx context.Context, filename string, content io.Reader, targetID string) (*api.UploadResult, error)
	Logout(ctx context.Context) error
	ListUsers(ctx context.Context) ([]api.ManagedUser, error)
}

// State is the authentication state of the client.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
)

func (s State) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Credentials are a username and password pair.
type Credentials struct {
	Username string `validate:"required,max=150"`
	Password string `validate:"required"`
}

// Orchestrator sequences user actions for one client process.
type Orchestrator struct {
	backend   Backend
	sessions  *session.Store
	logger    *slog.Logger
	validate  *validator.Validate
	directory *cache.Cache

	mu         sync.Mutex
	identity   *session.Identity
	generation uint64
	durable    bool
	transcript *transcript.Transcript
	selection  scope.Selection
	pending    *PendingUpload
	uploading  bool
}

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	directoryTTL time.Duration
}

// WithDirectoryTTL sets how long ListUsers results are reused.
// Non-positive values keep DefaultDirectoryTTL.
func WithDirectoryTTL(d time.Duration) Option {
	return func(o *options) {
		o.directoryTTL = d
	}
}

// New creates an Orchestrator in the unauthenticated state. Pass nil logger for default.
func New(backend Backend, sessions *session.Store, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := options{directoryTTL: DefaultDirectoryTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.directoryTTL <= 0 {
		cfg.directoryTTL = DefaultDirectoryTTL
	}

	return &Orchestrator{
		backend:   backend,
		sessions:  sessions,
		logger:    logger.With("component", "orchestrator"),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		directory: cache.New(cfg.directoryTTL, 2*cfg.directoryTTL),
	}
}

// Restore re-hydrates the identity persisted by a previous process.
func (o *Orchestrator) Restore(ctx context.Context) (session.Identity, bool) {
	id, ok := o.sessions.Load(ctx)
	if !ok {
		return session.Identity{}, false
	}

	o.mu.Lock()
	o.beginSessionLocked(id, true)
	o.mu.Unlock()

	o.logger.Info("restored session", "username", id.Username, "admin", id.IsPrivileged)
	return id, true
}

// Login authenticates with the backend and starts a new session.
// The privilege flag comes only from the backend response.
func (o *Orchestrator) Login(ctx context.Context, creds Credentials) (session.Identity, error) {
	if err := o.validate.Struct(creds); err != nil {
		return session.Identity{}, fmt.Errorf("%w: %w", ErrValidationRejected, err)
	}

	res, err := o.backend.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		o.logger.Info("login failed", "username", creds.Username, "error", err)
		return session.Identity{}, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	id := session.Identity{Username: creds.Username, IsPrivileged: res.IsAdmin}

	saveErr := o.sessions.Save(ctx, id)
	if saveErr != nil {
		o.logger.Warn("session will not survive restart", "error", saveErr)
	}

	o.mu.Lock()
	o.beginSessionLocked(id, saveErr == nil)
	o.mu.Unlock()

	o.logger.Info("logged in", "username", id.Username, "admin", id.IsPrivileged)
	return id, nil
}

// Register creates an account. It does not sign in.
func (o *Orchestrator) Register(ctx context.Context, creds Credentials) error {
	if err := o.validate.Struct(creds); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationRejected, err)
	}
	if err := o.backend.Register(ctx, creds.Username, creds.Password); err != nil {
		return fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}
	return nil
}

// Logout signs out. The backend call is best-effort; local state is always
// cleared. Calling Logout while unauthenticated does nothing.
func (o *Orchestrator) Logout(ctx context.Context) error {
	o.mu.Lock()
	if o.identity == nil {
		o.mu.Unlock()
		return nil
	}
	username := o.identity.Username
	o.endSessionLocked()
	o.mu.Unlock()

	// The record is gone before the backend is contacted, and cancelling ctx
	// does not keep it on disk.
	clearErr := o.sessions.Clear(context.WithoutCancel(ctx))
	if clearErr != nil {
		o.logger.Warn("clearing session record failed", "error", clearErr)
	}

	if err := o.backend.Logout(ctx); err != nil {
		o.logger.Warn("backend logout failed", "username", username, "error", err)
	}

	if clearErr != nil {
		return clearErr
	}

	o.logger.Info("logged out", "username", username)
	return nil
}

// Sync rechecks the persisted record. If another process signed out, or the
// record is gone or corrupted, the client drops to unauthenticated.
// Session-only identities are left alone. Sync reports whether the client is
// still authenticated.
func (o *Orchestrator) Sync(ctx context.Context) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.identity == nil {
		return false
	}
	if !o.durable {
		return true
	}

	stored, ok := o.sessions.Load(ctx)
	if ok && stored == *o.identity {
		return true
	}

	o.logger.Warn("session record changed outside this client, signing out", "username", o.identity.Username)
	o.endSessionLocked()
	return false
}

// State returns the current authentication state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.identity == nil {
		return StateUnauthenticated
	}
	return StateAuthenticated
}

// Identity returns the signed-in identity, if any.
func (o *Orchestrator) Identity() (session.Identity, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.identity == nil {
		return session.Identity{}, false
	}
	return *o.identity, true
}

// Durable reports whether the current identity was persisted.
func (o *Orchestrator) Durable() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.identity != nil && o.durable
}

// Transcript returns the current session's transcript, or nil when unauthenticated.
func (o *Orchestrator) Transcript() *transcript.Transcript {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript
}

// Selection returns the admin's current scope selection.
func (o *Orchestrator) Selection() scope.Selection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selection
}

// SetSelection changes the scope used by later questions. It has no effect
// on what a non-admin's requests carry.
func (o *Orchestrator) SetSelection(sel scope.Selection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selection = sel
}

// beginSessionLocked switches to a new authenticated session. Must be called with mu held.
func (o *Orchestrator) beginSessionLocked(id session.Identity, durable bool) {
	if o.identity != nil {
		o.endSessionLocked()
	}
	o.identity = &id
	o.durable = durable
	o.generation++
	o.transcript = transcript.New(o.logger)
	o.selection = scope.Selection{}
}

// endSessionLocked discards all per-session state. Must be called with mu held.
func (o *Orchestrator) endSessionLocked() {
	if o.transcript != nil {
		o.transcript.Close()
	}
	o.identity = nil
	o.durable = false
	o.generation++
	o.transcript = nil
	o.selection = scope.Selection{}
	o.pending = nil
	o.uploading = false
	o.directory.Flush()
}

// currentLocked returns the identity and generation. Must be called with mu held.
func (o *Orchestrator) currentLocked() (session.Identity, uint64, bool) {
	if o.identity == nil {
		return session.Identity{}, 0, false
	}
	return *o.identity, o.generation, true
}
