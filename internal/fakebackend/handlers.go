// ABOUTME: Endpoint handlers and session middleware for the fake backend
// ABOUTME: Status codes and error messages follow the real service's views

package fakebackend

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxUploadSize = 32 << 20

type ctxKey int

const sessionKey ctxKey = iota

type requestSession struct {
	id     string
	userID int
	csrf   string
}

func sessionFrom(ctx context.Context) (*requestSession, bool) {
	rs, ok := ctx.Value(sessionKey).(*requestSession)
	return rs, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, err
	}
	if c.Username == "" || c.Password == "" {
		return c, errors.New("username and password are required")
	}
	return c, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.AddUser(c.Username, c.Password, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("registered user", "username", c.Username)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	u, ok := s.byName[c.Username]
	var hash []byte
	if ok {
		hash = u.hash
	}
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(c.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sessionID := uuid.NewString()
	csrf := strings.ReplaceAll(uuid.NewString(), "-", "")

	s.mu.Lock()
	// Replace any session this client already had
	if ck, err := r.Cookie(SessionCookie); err == nil {
		delete(s.sessions, ck.Value)
	}
	s.sessions[sessionID] = &sessionState{userID: u.ID, csrf: csrf}
	staff := u.Staff
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sessionID, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Value: csrf, Path: "/", SameSite: http.SameSiteLaxMode})

	s.logger.Info("logged in", "username", c.Username, "staff", staff)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_in", "is_admin": staff})
}

// loadSession attaches the caller's session, if the cookie names a live one.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(SessionCookie)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		s.mu.Lock()
		st, ok := s.sessions[ck.Value]
		var rs *requestSession
		if ok {
			rs = &requestSession{id: ck.Value, userID: st.userID, csrf: st.csrf}
		}
		s.mu.Unlock()

		if rs == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, rs)))
	})
}

// checkCSRF refuses unsafe requests in a session that do not echo the token.
func (s *Server) checkCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs, ok := sessionFrom(r.Context())
		if !ok || isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get(CSRFHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(rs.csrf)) != 1 {
			s.logger.Warn("csrf check failed", "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "CSRF verification failed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessionFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerLocked returns the signed-in user. Must be called with mu held.
func (s *Server) callerLocked(r *http.Request) (*User, bool) {
	rs, ok := sessionFrom(r.Context())
	if !ok {
		return nil, false
	}
	u, ok := s.users[rs.userID]
	return u, ok
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	rs, _ := sessionFrom(r.Context())

	s.mu.Lock()
	delete(s.sessions, rs.id)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// parseUserID accepts an id as a JSON number or string.
func parseUserID(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(v))
		return id, err == nil
	}
	return 0, false
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	question, _ := body["question"].(string)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	s.mu.Lock()
	caller, ok := s.callerLocked(r)
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	target := caller
	if raw, present := body["user_id"]; caller.Staff && present {
		id, valid := parseUserID(raw)
		t, found := s.users[id]
		if !valid || !found {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, "target user not found")
			return
		}
		target = t
	}
	snap := target.snapshot()
	staff := caller.Staff
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":             s.answer(snap, question),
		"for_user":           snap.Username,
		"requested_by_admin": staff,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
		return
	}

	s.mu.Lock()
	caller, ok := s.callerLocked(r)
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	target := caller
	if caller.Staff {
		raw := r.FormValue("user_id")
		if raw == "" {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "user_id required for admin")
			return
		}
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		t, found := s.users[id]
		if err != nil || !found {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, "target user not found")
			return
		}
		target = t
	}
	s.mu.Unlock()

	f, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	f.Close()

	name := filepath.Base(header.Filename)

	s.mu.Lock()
	target.PDFs = append(target.PDFs, name)
	username := target.Username
	s.mu.Unlock()

	s.logger.Info("stored document", "document", name, "owner", username)
	writeJSON(w, http.StatusOK, map[string]string{"status": "uploaded", "uploaded_for": username})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller, ok := s.callerLocked(r)
	if !ok || !caller.Staff {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	type row struct {
		SNo      int      `json:"s_no"`
		FullName string   `json:"full_name"`
		PDFs     []string `json:"pdfs"`
	}
	rows := make([]row, 0, len(s.users))
	for i, u := range s.usersLocked() {
		name := u.FullName
		if name == "" {
			name = u.Username
		}
		rows = append(rows, row{SNo: i + 1, FullName: name, PDFs: append([]string{}, u.PDFs...)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": rows})
}
