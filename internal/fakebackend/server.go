// ABOUTME: In-memory banking backend with users, sessions and uploaded documents
// ABOUTME: Routes are served by chi under /api/ and mirror the real service's responses

package fakebackend

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

// Cookie and header names used by the backend.
const (
	SessionCookie = "sessionid"
	CSRFCookie    = "csrftoken"
	CSRFHeader    = "X-CSRFToken"
)

// ErrUsernameTaken is returned when registering an existing username.
var ErrUsernameTaken = errors.New("username taken")

// AnswerFunc produces the reply to question asked against target's documents.
type AnswerFunc func(target User, question string) string

// User is a backend account.
type User struct {
	ID       int
	Username string
	FullName string
	Staff    bool
	PDFs     []string

	hash []byte
}

type sessionState struct {
	userID int
	csrf   string
}

// Server holds all backend state.
type Server struct {
	logger *slog.Logger
	answer AnswerFunc
	cost   int

	mu       sync.Mutex
	users    map[int]*User
	byName   map[string]*User
	nextID   int
	sessions map[string]*sessionState
}

// Option configures a Server.
type Option func(*Server)

// WithAnswer replaces the canned answer.
func WithAnswer(fn AnswerFunc) Option {
	return func(s *Server) {
		s.answer = fn
	}
}

// WithPasswordCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithPasswordCost(cost int) Option {
	return func(s *Server) {
		s.cost = cost
	}
}

// New creates an empty backend. Pass nil logger for default.
func New(logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:   logger.With("component", "fakebackend"),
		answer:   defaultAnswer,
		cost:     bcrypt.DefaultCost,
		users:    make(map[int]*User),
		byName:   make(map[string]*User),
		nextID:   1,
		sessions: make(map[string]*sessionState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultAnswer(target User, question string) string {
	if len(target.PDFs) == 0 {
		return fmt.Sprintf("I could not find any statements for %s yet. Upload a PDF and ask again.", target.Username)
	}
	return fmt.Sprintf("Based on %d statement(s) for **%s** (%s), here is what I found about %q.",
		len(target.PDFs), target.Username, strings.Join(target.PDFs, ", "), question)
}

// AddUser creates an account and returns its id.
func (s *Server) AddUser(username, password string, staff bool) (int, error) {
	if username == "" || password == "" {
		return 0, errors.New("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return 0, fmt.Errorf("hashing password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[username]; exists {
		return 0, ErrUsernameTaken
	}
	u := &User{ID: s.nextID, Username: username, Staff: staff, PDFs: []string{}, hash: hash}
	s.nextID++
	s.users[u.ID] = u
	s.byName[username] = u
	return u.ID, nil
}

// User returns a copy of the account with the given id.
func (s *Server) User(id int) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return u.snapshot(), true
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (u *User) snapshot() User {
	c := *u
	c.PDFs = append([]string{}, u.PDFs...)
	c.hash = nil
	return c
}

// usersLocked returns accounts ordered by id. Must be called with mu held.
func (s *Server) usersLocked() []*User {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Handler returns the HTTP handler serving the API under /api/.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusBadRequest, "POST only")
		})

		r.Post("/register/", s.handleRegister)
		r.Post("/login/", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.loadSession)
			r.Use(s.checkCSRF)

			r.Post("/list_users/", s.handleListUsers)

			r.Group(func(r chi.Router) {
				r.Use(s.requireLogin)
				r.Get("/logout/", s.handleLogout)
				r.Post("/logout/", s.handleLogout)
				r.Post("/query/", s.handleQuery)
				r.Post("/upload_pdf/", s.handleUpload)
			})
		})
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status())
	})
}
