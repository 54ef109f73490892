// ABOUTME: Typed calls for each backend endpoint (login, register, query, upload, logout, list users)
// ABOUTME: Builds JSON and multipart bodies and decodes success payloads

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// Backend paths, relative to the base URL.
const (
	PathLogin     = "login/"
	PathRegister  = "register/"
	PathQuery     = "query/"
	PathUploadPDF = "upload_pdf/"
	PathLogout    = "logout/"
	PathListUsers = "list_users/"
)

// Multipart field names for uploads.
const (
	FieldPDF    = "pdf"
	FieldUserID = "user_id"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the success payload of login/.
type LoginResult struct {
	Status  string `json:"status"`
	IsAdmin bool   `json:"is_admin"`
}

// QueryRequest is the body of query/. UserID is omitted when empty.
type QueryRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id,omitempty"`
}

// QueryResult is the success payload of query/.
type QueryResult struct {
	Answer           string `json:"answer"`
	ForUser          string `json:"for_user,omitempty"`
	RequestedByAdmin bool   `json:"requested_by_admin,omitempty"`
}

// UploadResult is the success payload of upload_pdf/.
type UploadResult struct {
	Status      string `json:"status"`
	UploadedFor string `json:"uploaded_for"`
}

// ManagedUser is one row of list_users/.
type ManagedUser struct {
	SNo      int      `json:"s_no"`
	FullName string   `json:"full_name"`
	PDFs     []string `json:"pdfs"`
}

type listUsersResult struct {
	Users []ManagedUser `json:"users"`
}

// Login authenticates and establishes the backend session.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	resp, err := c.DoJSON(ctx, http.MethodPost, PathLogin, credentialsRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	var result LoginResult
	if err := resp.DecodeJSON(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, password string) error {
	_, err := c.DoJSON(ctx, http.MethodPost, PathRegister, credentialsRequest{Username: username, Password: password})
	return err
}

// Query asks a question. targetID is sent as user_id when non-empty.
func (c *Client) Query(ctx context.Context, question, targetID string) (*QueryResult, error) {
	resp, err := c.DoJSON(ctx, http.MethodPost, PathQuery, QueryRequest{Question: question, UserID: targetID})
	if err != nil {
		return nil, err
	}
	var result QueryResult
	if err := resp.DecodeJSON(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadPDF sends a document as multipart form data. targetID is sent as
// user_id when non-empty.
func (c *Client) UploadPDF(ctx context.Context, filename string, content io.Reader, targetID string) (*UploadResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile(FieldPDF, filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("writing form file: %w", err)
	}
	if targetID != "" {
		if err := w.WriteField(FieldUserID, targetID); err != nil {
			return nil, fmt.Errorf("writing user_id: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, PathUploadPDF, &body, w.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var result UploadResult
	if len(resp.Body) > 0 {
		if err := resp.DecodeJSON(&result); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

// Logout ends the backend session. Local cookies are dropped whether or not
// the backend accepts the call.
func (c *Client) Logout(ctx context.Context) error {
	// The jar still carries the session for this request.
	if err := c.removeCookieRecord(ctx); err != nil {
		c.logger.Warn("clearing persisted cookies failed", "error", err)
	}

	_, err := c.Do(ctx, http.MethodPost, PathLogout, nil, "")

	if ferr := c.ForgetCookies(ctx); ferr != nil {
		c.logger.Warn("forgetting cookies failed", "error", ferr)
	}
	return err
}

// ListUsers returns every user with their uploaded PDFs. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]ManagedUser, error) {
	resp, err := c.Do(ctx, http.MethodPost, PathListUsers, nil, "")
	if err != nil {
		return nil, err
	}
	var result listUsersResult
	if err := resp.DecodeJSON(&result); err != nil {
		return nil, err
	}
	return result.Users, nil
}
