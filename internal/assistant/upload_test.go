// ABOUTME: Tests for the document upload flow
// ABOUTME: Covers target rules, local rejection, retry after failure and the single-upload guard

package assistant

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/bank-assistant/internal/api"
	"github.com/2389/bank-assistant/internal/scope"
)

func TestUpload_AdminForSpecificUser(t *testing.T) {
	backend := &fakeBackend{isAdmin: true}
	o := loggedIn(t, backend, "admin")

	res, err := o.UploadDocument(context.Background(), testDocument(), scope.ForUser("42"))
	require.NoError(t, err)
	assert.Equal(t, "uploaded", res.Status)
	assert.Equal(t, "42", res.UploadedFor)

	calls := backend.uploadCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "42", calls[0].targetID)
	assert.Equal(t, "statement.pdf", calls[0].filename)
	assert.Equal(t, "%PDF-1.4 test", calls[0].body)

	_, pending := o.PendingUpload()
	assert.False(t, pending, "success clears the pending upload")
}

func TestUpload_AdminWithoutTargetRejectedLocally(t *testing.T) {
	selections := []scope.Selection{
		{Mode: scope.AllUsers},
		{Mode: scope.Mine},
		scope.ForUser(""),
		scope.ForUser("  "),
	}

	for _, sel := range selections {
		t.Run(sel.String(), func(t *testing.T) {
			backend := &fakeBackend{isAdmin: true}
			o := loggedIn(t, backend, "admin")
			before := backend.networkCalls()

			_, err := o.UploadDocument(context.Background(), testDocument(), sel)
			assert.ErrorIs(t, err, ErrMissingTarget)
			assert.ErrorIs(t, err, ErrValidationRejected)
			assert.Equal(t, before, backend.networkCalls())

			p, ok := o.PendingUpload()
			require.True(t, ok, "the selected document stays pending")
			assert.Equal(t, "statement.pdf", p.Document.Name)
		})
	}
}

func TestUpload_CustomerNeverSendsTarget(t *testing.T) {
	backend := &fakeBackend{}
	o := loggedIn(t, backend, "alice")

	_, err := o.UploadDocument(context.Background(), testDocument(), scope.ForUser("42"))
	require.NoError(t, err)

	calls := backend.uploadCalls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].targetID)
}

func TestUpload_MissingDocument(t *testing.T) {
	backend := &fakeBackend{isAdmin: true}
	o := loggedIn(t, backend, "admin")
	before := backend.networkCalls()

	_, err := o.UploadDocument(context.Background(), nil, scope.ForUser("42"))
	assert.ErrorIs(t, err, ErrMissingDocument)

	_, err = o.UploadDocument(context.Background(), &Document{Name: "empty.pdf"}, scope.ForUser("42"))
	assert.ErrorIs(t, err, ErrMissingDocument)

	assert.Equal(t, before, backend.networkCalls())
}

func TestUpload_NotAuthenticated(t *testing.T) {
	backend := &fakeBackend{}
	o, _ := newTestOrchestrator(t, backend)

	_, err := o.UploadDocument(context.Background(), testDocument(), scope.ForUser("42"))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, 0, backend.networkCalls())
}

func TestUpload_RetryAfterFailure(t *testing.T) {
	backend := &fakeBackend{isAdmin: true, uploadErr: &api.TransportError{Err: errors.New("connection reset")}}
	o := loggedIn(t, backend, "admin")
	ctx := context.Background()

	_, err := o.UploadDocument(ctx, testDocument(), scope.ForUser("42"))
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrTransportFailure)

	p, ok := o.PendingUpload()
	require.True(t, ok)
	assert.Equal(t, scope.ForUser("42"), p.Selection)

	backend.setUploadErr(nil)
	res, err := o.RetryUpload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", res.UploadedFor)

	calls := backend.uploadCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0], calls[1])

	_, ok = o.PendingUpload()
	assert.False(t, ok)
}

func TestRetryUpload_NothingPending(t *testing.T) {
	o := loggedIn(t, &fakeBackend{}, "alice")

	_, err := o.RetryUpload(context.Background())
	assert.ErrorIs(t, err, ErrNoPendingUpload)
}

func TestUpload_OneAtATime(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{isAdmin: true, uploadGate: gate}
	o := loggedIn(t, backend, "admin")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := o.UploadDocument(ctx, testDocument(), scope.ForUser("42"))
		done <- err
	}()

	require.Eventually(t, func() bool {
		return len(backend.uploadCalls()) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := o.UploadDocument(ctx, testDocument(), scope.ForUser("43"))
	assert.ErrorIs(t, err, ErrUploadInFlight)

	close(gate)
	require.NoError(t, <-done)

	_, err = o.UploadDocument(ctx, testDocument(), scope.ForUser("43"))
	assert.NoError(t, err)
	assert.Len(t, backend.uploadCalls(), 2)
}

func TestUpload_FinishingAfterLogoutLeavesNewSessionAlone(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{isAdmin: true, uploadGate: gate}
	o := loggedIn(t, backend, "admin")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := o.UploadDocument(ctx, testDocument(), scope.ForUser("42"))
		done <- err
	}()
	require.Eventually(t, func() bool {
		return len(backend.uploadCalls()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, o.Logout(ctx))
	_, err := o.Login(ctx, Credentials{Username: "admin", Password: "pw"})
	require.NoError(t, err)

	close(gate)
	assert.ErrorIs(t, <-done, ErrSessionEnded)

	_, pending := o.PendingUpload()
	assert.False(t, pending)
}

func TestUpload_FailureAfterLogoutReportsSessionEnded(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{uploadGate: gate, uploadErr: errors.New("boom")}
	o := loggedIn(t, backend, "alice")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		res, err := o.UploadDocument(ctx, testDocument(), scope.Selection{})
		assert.Nil(t, res)
		done <- err
	}()
	require.Eventually(t, func() bool {
		return len(backend.uploadCalls()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, o.Logout(ctx))
	close(gate)

	assert.ErrorIs(t, <-done, ErrSessionEnded)
	_, pending := o.PendingUpload()
	assert.False(t, pending)
}

func TestOpenDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "march.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))

	doc, err := OpenDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "march.pdf", doc.Name)
	assert.Equal(t, []byte("%PDF"), doc.Data)

	_, err = OpenDocument(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
