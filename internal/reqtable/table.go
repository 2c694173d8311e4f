package reqtable

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

const prefixChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789abcdefghijklmnopqrstuvwxyz"

// MaxRequestIDLen is the QAPI request id length limit.
const MaxRequestIDLen = 32

// Table is the concurrent request map keyed by request id, grounded on
// Core/ThreadSafeDict.py + Core/RequestEvent.py: one entry per outstanding
// request, created before the outbound enqueue and removed on completion,
// failure, or shutdown.
type Table struct {
	mu      sync.Mutex
	entries map[string]*Event
	prefix  string
	counter uint64

	// OnComplete, if set, is invoked (outside the table lock) whenever an
	// event finishes, so the protocol client can remove it from the table.
	OnComplete func(id string, ev *Event)
}

// New constructs an empty request table with a random 6-character id prefix.
func New() *Table {
	return &Table{
		entries: make(map[string]*Event),
		prefix:  rndString(6),
	}
}

func rndString(n int) string {
	buf := make([]byte, n)
	idx := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure is only possible if the OS entropy source is
		// broken; fall back to a fixed prefix rather than panic.
		for i := range idx {
			idx[i] = prefixChars[0]
		}
		return string(idx)
	}
	for i, b := range buf {
		idx[i] = prefixChars[int(b)%len(prefixChars)]
	}
	return string(idx)
}

// NewRequest allocates a fresh request id and inserts a pending Event for
// inner, all within a single critical section, per spec.
func (t *Table) NewRequest(inner []byte, isCRUD bool) *Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var id string
	for {
		id = fmt.Sprintf("%s%d", t.prefix, t.counter)
		t.counter++
		if _, exists := t.entries[id]; !exists {
			break
		}
		// collision: regenerate the prefix and try again.
		t.prefix = rndString(6)
	}

	ev := newEvent(id, inner, isCRUD, t.onEventComplete)
	t.entries[id] = ev
	return ev
}

// Restore seeds an empty pending entry for an id persisted before shutdown
// (used to reattach pre-start requests read back from the stash's diff
// table) so retry logic treats it like any other in-flight request.
func (t *Table) Restore(id string, inner []byte, isCRUD bool) *Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev, ok := t.entries[id]; ok {
		return ev
	}
	ev := newEvent(id, inner, isCRUD, t.onEventComplete)
	t.entries[id] = ev
	return ev
}

// Get returns the event for id, if present.
func (t *Table) Get(id string) (*Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ev, ok := t.entries[id]
	return ev, ok
}

// MarkSent clears any prior exception and stores the monotonic send time
// for id; a no-op if id is no longer in the table (it may already have a
// response).
func (t *Table) MarkSent(id string, now time.Time) {
	t.mu.Lock()
	ev, ok := t.entries[id]
	t.mu.Unlock()
	if ok {
		ev.MarkSent(now)
	}
}

// RemoveAndSetException atomically pops id from the table (if present) and
// resolves its event with err, waking any waiters.
func (t *Table) RemoveAndSetException(id string, err error) {
	t.mu.Lock()
	ev, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if ok {
		ev.FinishError(err)
	}
}

// Remove deletes id from the table without resolving it (used once an
// event has already finished and the caller just wants it gone).
func (t *Table) Remove(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// Len reports the number of outstanding requests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// RetrySnapshot returns the ids+events needing resend: entries with no
// received messages yet, sent at some point strictly before
// lastFailureTime.
func (t *Table) RetrySnapshot(lastFailureTime time.Time) []*Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Event
	for _, ev := range t.entries {
		if ev.NeedsRetry(lastFailureTime) {
			out = append(out, ev)
		}
	}
	return out
}

// Shutdown resolves every outstanding event with err and empties the
// table, for use when the client is stopping.
func (t *Table) Shutdown(err error) {
	t.mu.Lock()
	events := make([]*Event, 0, len(t.entries))
	for _, ev := range t.entries {
		events = append(events, ev)
	}
	t.entries = make(map[string]*Event)
	t.mu.Unlock()
	for _, ev := range events {
		ev.FinishError(err)
	}
}

func (t *Table) onEventComplete(ev *Event) {
	t.mu.Lock()
	delete(t.entries, ev.ID)
	t.mu.Unlock()
	if t.OnComplete != nil {
		t.OnComplete(ev.ID, ev)
	}
}
