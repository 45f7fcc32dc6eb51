package board

import (
	"testing"
	"time"
)

func newTestBoard(t *testing.T) *Board {
	t.Helper()
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestAddAndList(t *testing.T) {
	b := newTestBoard(t)
	task, err := b.Add("write tests", 5)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if task.Status != StatusOpen {
		t.Fatalf("status = %q, want open", task.Status)
	}
	if len(task.ID) != 8 {
		t.Fatalf("id = %q, want 8 chars", task.ID)
	}

	open, err := b.List(StatusOpen)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(open) != 1 || open[0].ID != task.ID {
		t.Fatalf("List(open) = %+v, want [%v]", open, task.ID)
	}
}

func TestClaimPriorityTieBreak(t *testing.T) {
	b := newTestBoard(t)
	t1, _ := b.Add("a", 5)
	t2, _ := b.Add("b", 5)
	_, _ = b.Add("c", 3)

	first, ok, err := b.Claim("agent-1")
	if err != nil || !ok {
		t.Fatalf("Claim 1: task=%+v ok=%v err=%v", first, ok, err)
	}
	second, ok, err := b.Claim("agent-1")
	if err != nil || !ok {
		t.Fatalf("Claim 2: task=%+v ok=%v err=%v", second, ok, err)
	}
	third, ok, err := b.Claim("agent-1")
	if err != nil || !ok {
		t.Fatalf("Claim 3: task=%+v ok=%v err=%v", third, ok, err)
	}

	// Ties among priority-5 tasks break ascending by id.
	wantFirst, wantSecond := t1.ID, t2.ID
	if wantFirst > wantSecond {
		wantFirst, wantSecond = wantSecond, wantFirst
	}
	if first.ID != wantFirst || second.ID != wantSecond {
		t.Fatalf("tie-break order = %q, %q; want %q, %q", first.ID, second.ID, wantFirst, wantSecond)
	}
	if third.Priority != 3 {
		t.Fatalf("third claim priority = %d, want 3", third.Priority)
	}

	none, ok, err := b.Claim("agent-1")
	if err != nil || ok {
		t.Fatalf("Claim on empty board: task=%+v ok=%v err=%v", none, ok, err)
	}
}

func TestCompleteRequiresOwnership(t *testing.T) {
	b := newTestBoard(t)
	task, _ := b.Add("x", 1)
	claimed, _, err := b.Claim("agent-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed.ID != task.ID {
		t.Fatalf("claimed %q, want %q", claimed.ID, task.ID)
	}

	if _, err := b.Complete(task.ID, "agent-2"); err != ErrNotOwner {
		t.Fatalf("Complete by non-owner: err = %v, want ErrNotOwner", err)
	}

	done, err := b.Complete(task.ID, "agent-1")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != StatusDone || done.CompletedAt == nil {
		t.Fatalf("done task = %+v", done)
	}
}

func TestFailRecordsReason(t *testing.T) {
	b := newTestBoard(t)
	task, _ := b.Add("x", 1)
	if _, _, err := b.Claim("agent-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	failed, err := b.Fail(task.ID, "agent-1", "timed out")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if failed.Status != StatusFailed || failed.Reason != "timed out" {
		t.Fatalf("failed task = %+v", failed)
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	b := newTestBoard(t)
	task, _ := b.Add("x", 1)
	b.Claim("agent-1")

	first, err := b.Reopen(task.ID)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	second, err := b.Reopen(task.ID)
	if err != nil {
		t.Fatalf("Reopen again: %v", err)
	}
	if first.Status != StatusOpen || second.Status != StatusOpen || first.LockedBy != "" || second.LockedBy != "" {
		t.Fatalf("reopen not idempotent: %+v, %+v", first, second)
	}
}

func TestDeleteAbsentIsNoOp(t *testing.T) {
	b := newTestBoard(t)
	if err := b.Delete("does-not-exist"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}

func TestArchiveMovesOldCompletedTasks(t *testing.T) {
	b := newTestBoard(t)
	task, _ := b.Add("x", 1)
	b.Claim("agent-1")
	done, err := b.Complete(task.ID, "agent-1")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	old := done.CompletedAt.Add(-48 * time.Hour)
	done.CompletedAt = &old
	if err := b.write(done); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	archived, err := b.Archive(1)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(archived) != 1 || archived[0] != task.ID {
		t.Fatalf("archived = %v, want [%v]", archived, task.ID)
	}
	if _, err := b.List(""); err != nil {
		t.Fatalf("List after archive: %v", err)
	}
	remaining, _ := b.List("")
	if len(remaining) != 0 {
		t.Fatalf("remaining live tasks = %+v, want none", remaining)
	}
}

// Concurrent multi-claimer arbitration (spec.md §8 scenario 1) is tested in
// board/lock_integration_test.go, since board.Claim alone is explicitly not
// atomic across processes — arbitration is the lock store's job.
