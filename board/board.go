// Package board implements the durable, file-per-record task board: one
// JSON file per task under tasks/, archived completions under archive/.
// Arbitration of concurrent claims is NOT performed here — see package lock.
package board

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is a task's position in its lifecycle.
type Status string

const (
	StatusOpen   Status = "open"
	StatusLocked Status = "locked"
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Task is one task record; the file's base name equals ID.
type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    int        `json:"priority"`
	LockedBy    string     `json:"locked_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Heartbeat   *time.Time `json:"heartbeat,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// ErrNotOwner is returned by Complete/Fail when the caller does not hold the
// task's lock.
var ErrNotOwner = fmt.Errorf("board: caller is not the task owner")

// Board stores task records under root/tasks and archives under root/archive.
type Board struct {
	root string
}

// New returns a Board rooted at dir. The tasks subdirectory is created if
// absent; the archive subdirectory is created by Archive when it first runs.
func New(dir string) (*Board, error) {
	if err := os.MkdirAll(filepath.Join(dir, "tasks"), 0o755); err != nil {
		return nil, fmt.Errorf("board: create tasks dir: %w", err)
	}
	return &Board{root: dir}, nil
}

func (b *Board) tasksDir() string   { return filepath.Join(b.root, "tasks") }
func (b *Board) archiveDir() string { return filepath.Join(b.root, "archive") }
func (b *Board) taskPath(id string) string {
	return filepath.Join(b.tasksDir(), id+".json")
}

func newID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return hex[:8]
}

// Add allocates a fresh id and persists a new open task.
func (b *Board) Add(description string, priority int) (Task, error) {
	t := Task{
		ID:          newID(),
		Description: description,
		Status:      StatusOpen,
		Priority:    priority,
		CreatedAt:   time.Now(),
	}
	if err := b.write(t); err != nil {
		return Task{}, err
	}
	return t, nil
}

// List enumerates all task records, optionally filtered by status.
func (b *Board) List(status Status) ([]Task, error) {
	entries, err := os.ReadDir(b.tasksDir())
	if err != nil {
		return nil, fmt.Errorf("board: read tasks dir: %w", err)
	}
	var tasks []Task
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		t, err := b.readFile(filepath.Join(b.tasksDir(), e.Name()))
		if err != nil {
			slog.Warn("board: skipping unreadable task file", "file", e.Name(), "error", err)
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Claim picks the highest-priority open task, ties broken by ascending id,
// and marks it locked by agentID. It returns (Task{}, false, nil) when no
// open task exists. This operation is NOT atomic across processes; true
// mutual exclusion is enforced by the lock store, not here.
func (b *Board) Claim(agentID string) (Task, bool, error) {
	open, err := b.List(StatusOpen)
	if err != nil {
		return Task{}, false, err
	}
	if len(open) == 0 {
		return Task{}, false, nil
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].Priority != open[j].Priority {
			return open[i].Priority > open[j].Priority
		}
		return open[i].ID < open[j].ID
	})
	t := open[0]
	now := time.Now()
	t.Status = StatusLocked
	t.LockedBy = agentID
	t.Heartbeat = &now
	if err := b.write(t); err != nil {
		return Task{}, false, err
	}
	return t, true, nil
}

// Complete marks a locked task done. Fails with ErrNotOwner if the task is
// not locked, or locked by someone else.
func (b *Board) Complete(id, agentID string) (Task, error) {
	return b.terminate(id, agentID, StatusDone, "")
}

// Fail marks a locked task failed with the given reason.
func (b *Board) Fail(id, agentID, reason string) (Task, error) {
	return b.terminate(id, agentID, StatusFailed, reason)
}

func (b *Board) terminate(id, agentID string, status Status, reason string) (Task, error) {
	t, err := b.readFile(b.taskPath(id))
	if err != nil {
		return Task{}, fmt.Errorf("board: read task %q: %w", id, err)
	}
	if t.Status != StatusLocked || t.LockedBy != agentID {
		return Task{}, ErrNotOwner
	}
	now := time.Now()
	t.Status = status
	t.CompletedAt = &now
	t.Reason = reason
	if err := b.write(t); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Reopen clears lock ownership and heartbeat and returns the task to open.
func (b *Board) Reopen(id string) (Task, error) {
	t, err := b.readFile(b.taskPath(id))
	if err != nil {
		return Task{}, fmt.Errorf("board: read task %q: %w", id, err)
	}
	t.Status = StatusOpen
	t.LockedBy = ""
	t.Heartbeat = nil
	if err := b.write(t); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Delete removes a task's file. A missing task is a no-op.
func (b *Board) Delete(id string) error {
	err := os.Remove(b.taskPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("board: delete task %q: %w", id, err)
	}
	return nil
}

// Archive moves every done/failed task older than olderThanDays into the
// archive directory. It tolerates a file vanishing mid-sweep (a concurrent
// delete), per the spec's archive-race note.
func (b *Board) Archive(olderThanDays int) ([]string, error) {
	if err := os.MkdirAll(b.archiveDir(), 0o755); err != nil {
		return nil, fmt.Errorf("board: create archive dir: %w", err)
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	tasks, err := b.List("")
	if err != nil {
		return nil, err
	}
	var archived []string
	for _, t := range tasks {
		if t.Status != StatusDone && t.Status != StatusFailed {
			continue
		}
		if t.CompletedAt == nil || t.CompletedAt.After(cutoff) {
			continue
		}
		src := b.taskPath(t.ID)
		dst := filepath.Join(b.archiveDir(), t.ID+".json")
		if err := os.Rename(src, dst); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return archived, fmt.Errorf("board: archive task %q: %w", t.ID, err)
		}
		archived = append(archived, t.ID)
	}
	return archived, nil
}

func (b *Board) write(t Task) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("board: marshal task %q: %w", t.ID, err)
	}
	if err := os.WriteFile(b.taskPath(t.ID), data, 0o644); err != nil {
		return fmt.Errorf("board: write task %q: %w", t.ID, err)
	}
	return nil
}

func (b *Board) readFile(path string) (Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Task{}, err
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, err
	}
	return t, nil
}
