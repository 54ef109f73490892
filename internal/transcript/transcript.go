// ABOUTME: Append-only transcript of user questions and assistant replies
// ABOUTME: Fans appended entries out to subscribers for incremental rendering

package transcript

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Role identifies who produced an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one message in the transcript.
type Entry struct {
	ID   string
	Role Role
	Text string
	At   time.Time
}

// Transcript is an append-only ordered log of entries.
type Transcript struct {
	mu          sync.RWMutex
	entries     []Entry
	subscribers map[string]chan Entry
	closed      bool
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an empty transcript. Pass nil logger for default.
func New(logger *slog.Logger) *Transcript {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcript{
		subscribers: make(map[string]chan Entry),
		logger:      logger.With("component", "transcript"),
		now:         time.Now,
	}
}

// Append adds an entry to the end of the log and returns it.
func (t *Transcript) Append(role Role, text string) Entry {
	t.mu.Lock()
	e := Entry{
		ID:   uuid.New().String(),
		Role: role,
		Text: text,
		At:   t.now(),
	}
	t.entries = append(t.entries, e)

	// Sends happen under the lock so subscribers see entries in log order.
	// They never block: a full subscriber misses the entry and can catch up with Since.
	for id, ch := range t.subscribers {
		select {
		case ch <- e:
		default:
			t.logger.Debug("dropped entry for slow subscriber", "sub_id", id, "entry_id", e.ID)
		}
	}
	t.mu.Unlock()

	return e
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns a copy of the whole log.
func (t *Transcript) Entries() []Entry {
	return t.Since(0)
}

// Since returns a copy of the entries after the first n.
func (t *Transcript) Since(n int) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n >= len(t.entries) {
		return nil
	}
	out := make([]Entry, len(t.entries)-n)
	copy(out, t.entries[n:])
	return out
}

// Subscribe returns a channel receiving every entry appended from now on,
// and a subscription ID for Unsubscribe. The subscription ends when ctx is
// cancelled or the transcript is closed.
func (t *Transcript) Subscribe(ctx context.Context) (<-chan Entry, string) {
	subID := uuid.New().String()
	ch := make(chan Entry, subscriberBufferSize)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch, subID
	}
	t.subscribers[subID] = ch
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.Unsubscribe(subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscription and closes its channel.
func (t *Transcript) Unsubscribe(subID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.subscribers[subID]
	if !ok {
		return
	}
	delete(t.subscribers, subID)
	close(ch)
}

// Close ends all subscriptions. The log itself stays readable.
func (t *Transcript) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subscribers {
		close(ch)
		delete(t.subscribers, id)
	}
}
