// ABOUTME: Question flow with optimistic echo of the user's entry
// ABOUTME: Replies are appended in completion order and dropped if the session ended meanwhile

package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/bank-assistant/internal/scope"
	"github.com/2389/bank-assistant/internal/transcript"
)

// Exchange is a submitted question awaiting its reply.
type Exchange struct {
	// Question is the user entry appended at submission.
	Question transcript.Entry

	done   chan struct{}
	answer string
	err    error
}

// Done is closed once the reply has been handled.
func (x *Exchange) Done() <-chan struct{} {
	return x.done
}

// Wait blocks until the reply is handled or ctx ends, and returns the answer.
func (x *Exchange) Wait(ctx context.Context) (string, error) {
	select {
	case <-x.done:
		return x.answer, x.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Ask submits question and waits for the reply.
func (o *Orchestrator) Ask(ctx context.Context, question string) (string, error) {
	x, err := o.Submit(ctx, question)
	if err != nil {
		return "", err
	}
	return x.Wait(ctx)
}

// Submit appends question to the transcript and sends it in the background.
// The user entry is in the transcript when Submit returns. Blank questions
// are ignored and reported as ErrEmptyQuestion.
func (o *Orchestrator) Submit(ctx context.Context, question string) (*Exchange, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	o.mu.Lock()
	id, gen, ok := o.currentLocked()
	if !ok {
		o.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	tr := o.transcript

	entry := tr.Append(transcript.RoleUser, question)

	payload, err := scope.Resolve(id, scope.ActionQuery, o.selection)
	if err != nil {
		tr.Append(transcript.RoleAssistant, MessageMissingTarget)
		o.mu.Unlock()
		if errors.Is(err, scope.ErrMissingTarget) {
			return nil, ErrMissingTarget
		}
		return nil, fmt.Errorf("%w: %w", ErrValidationRejected, err)
	}
	o.mu.Unlock()

	x := &Exchange{Question: entry, done: make(chan struct{})}
	go o.runQuery(ctx, x, gen, question, payload)
	return x, nil
}

func (o *Orchestrator) runQuery(ctx context.Context, x *Exchange, gen uint64, question string, payload scope.Payload) {
	defer close(x.done)

	res, err := o.backend.Query(ctx, question, payload.TargetID)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.identity == nil || o.generation != gen {
		o.logger.Debug("dropping reply for ended session", "entry_id", x.Question.ID)
		x.err = ErrSessionEnded
		return
	}

	if err != nil {
		o.logger.Warn("query failed", "target", payload.TargetID, "error", err)
		o.transcript.Append(transcript.RoleAssistant, MessageQueryFailed)
		x.err = fmt.Errorf("querying: %w", err)
		return
	}

	o.transcript.Append(transcript.RoleAssistant, res.Answer)
	x.answer = res.Answer
}
