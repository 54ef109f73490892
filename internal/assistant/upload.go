// ABOUTME: Document upload flow with a retryable pending upload
// ABOUTME: Validates document and scope before any network call; one upload in flight at a time

package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/2389/bank-assistant/internal/api"
	"github.com/2389/bank-assistant/internal/scope"
)

// Document is a file selected for upload.
type Document struct {
	Name string
	Data []byte
}

// OpenDocument reads the file at path into a Document.
func OpenDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return &Document{Name: filepath.Base(path), Data: data}, nil
}

// PendingUpload is a selected document and the scope it targets, kept until
// it uploads successfully.
type PendingUpload struct {
	Document  *Document
	Selection scope.Selection
}

// PendingUpload returns the upload awaiting (re)submission, if any.
func (o *Orchestrator) PendingUpload() (PendingUpload, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return PendingUpload{}, false
	}
	return *o.pending, true
}

// UploadDocument uploads doc into the document store chosen by sel.
// On failure the pending upload is kept for RetryUpload.
func (o *Orchestrator) UploadDocument(ctx context.Context, doc *Document, sel scope.Selection) (*api.UploadResult, error) {
	o.mu.Lock()
	id, gen, ok := o.currentLocked()
	if !ok {
		o.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	if doc == nil || len(doc.Data) == 0 {
		o.mu.Unlock()
		return nil, ErrMissingDocument
	}
	if o.uploading {
		o.mu.Unlock()
		return nil, ErrUploadInFlight
	}

	o.pending = &PendingUpload{Document: doc, Selection: sel}

	payload, err := scope.Resolve(id, scope.ActionUpload, sel)
	if err != nil {
		o.mu.Unlock()
		if errors.Is(err, scope.ErrMissingTarget) {
			return nil, ErrMissingTarget
		}
		return nil, fmt.Errorf("%w: %w", ErrValidationRejected, err)
	}
	o.uploading = true
	o.mu.Unlock()

	res, err := o.backend.UploadPDF(ctx, doc.Name, bytes.NewReader(doc.Data), payload.TargetID)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.generation != gen {
		o.logger.Debug("dropping upload result for ended session", "document", doc.Name, "error", err)
		return nil, ErrSessionEnded
	}
	o.uploading = false

	if err != nil {
		o.logger.Warn("upload failed", "document", doc.Name, "target", payload.TargetID, "error", err)
		return nil, fmt.Errorf("uploading %s: %w", doc.Name, err)
	}

	o.pending = nil
	o.directory.Flush()
	o.logger.Info("uploaded document", "document", doc.Name, "target", payload.TargetID)
	return res, nil
}

// RetryUpload resubmits the pending upload.
func (o *Orchestrator) RetryUpload(ctx context.Context) (*api.UploadResult, error) {
	o.mu.Lock()
	p := o.pending
	o.mu.Unlock()

	if p == nil {
		return nil, ErrNoPendingUpload
	}
	return o.UploadDocument(ctx, p.Document, p.Selection)
}
