package reqtable

import (
	"errors"
	"testing"
	"time"
)

func TestNewRequestUniqueIDs(t *testing.T) {
	tbl := New()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ev := tbl.NewRequest([]byte("inner"), false)
		if seen[ev.ID] {
			t.Fatalf("duplicate request id %q", ev.ID)
		}
		seen[ev.ID] = true
	}
	if tbl.Len() != 100 {
		t.Fatalf("expected 100 outstanding requests, got %d", tbl.Len())
	}
}

func TestMarkSentThenFinishRemovesFromTable(t *testing.T) {
	tbl := New()
	ev := tbl.NewRequest([]byte("inner"), false)
	now := time.Now()
	tbl.MarkSent(ev.ID, now)
	if ev.SendTime() != now {
		t.Fatalf("expected send time to be recorded")
	}

	ev.Finish(true, map[string]any{"ok": true})
	select {
	case <-ev.Done():
	case <-time.After(time.Second):
		t.Fatal("expected event to be done")
	}
	if _, ok := tbl.Get(ev.ID); ok {
		t.Fatal("expected event removed from table after completion")
	}
}

func TestMarkSentNoopForRemovedID(t *testing.T) {
	tbl := New()
	tbl.MarkSent("nonexistent", time.Now())
}

func TestRemoveAndSetException(t *testing.T) {
	tbl := New()
	ev := tbl.NewRequest([]byte("inner"), false)
	wantErr := errors.New("shutdown")
	tbl.RemoveAndSetException(ev.ID, wantErr)

	status, _, err := ev.Result()
	if status != Failure || err != wantErr {
		t.Fatalf("got status=%v err=%v, want Failure/%v", status, err, wantErr)
	}
	if _, ok := tbl.Get(ev.ID); ok {
		t.Fatal("expected id removed from table")
	}
}

func TestRetrySnapshot(t *testing.T) {
	tbl := New()
	ev1 := tbl.NewRequest([]byte("a"), false)
	ev2 := tbl.NewRequest([]byte("b"), false)

	base := time.Now()
	tbl.MarkSent(ev1.ID, base)
	tbl.MarkSent(ev2.ID, base.Add(time.Second))

	failureTime := base.Add(500 * time.Millisecond)
	retry := tbl.RetrySnapshot(failureTime)
	if len(retry) != 1 || retry[0].ID != ev1.ID {
		t.Fatalf("expected only ev1 to need retry, got %+v", retry)
	}

	ev1.RecordMessage()
	retry = tbl.RetrySnapshot(failureTime)
	if len(retry) != 0 {
		t.Fatalf("expected no retries once a message was received, got %+v", retry)
	}
}

func TestShutdownResolvesAllPending(t *testing.T) {
	tbl := New()
	ev1 := tbl.NewRequest([]byte("a"), false)
	ev2 := tbl.NewRequest([]byte("b"), true)

	wantErr := errors.New("client stopped")
	tbl.Shutdown(wantErr)

	for _, ev := range []*Event{ev1, ev2} {
		status, _, err := ev.Result()
		if status != Failure || err != wantErr {
			t.Fatalf("event %s: got status=%v err=%v", ev.ID, status, err)
		}
	}
	if tbl.Len() != 0 {
		t.Fatalf("expected empty table after shutdown, got %d", tbl.Len())
	}
}

func TestRestoreReattachesExistingID(t *testing.T) {
	tbl := New()
	ev1 := tbl.Restore("pre-start-1", []byte("inner"), false)
	ev2 := tbl.Restore("pre-start-1", []byte("other"), false)
	if ev1 != ev2 {
		t.Fatal("expected Restore to return the existing event for a known id")
	}
}

func TestWaitTimesOutWithoutResolution(t *testing.T) {
	tbl := New()
	ev := tbl.NewRequest([]byte("inner"), false)
	status, _, err := ev.Wait(10 * time.Millisecond)
	if status != Pending || err != nil {
		t.Fatalf("expected pending result on timeout, got status=%v err=%v", status, err)
	}
}
