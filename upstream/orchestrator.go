package upstream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tgruben-circuit/agentfleet/board"
	"github.com/tgruben-circuit/agentfleet/lock"
)

// Orchestrator drives the optional merge-agent-branch workflow: merging a
// completed task's agent branch into the upstream's tracked branch, and
// requeuing the task if the merge itself fails.
type Orchestrator struct {
	Board *board.Board
	Lock  *lock.Store
}

// NewOrchestrator returns an Orchestrator backed by the given board and
// lock stores.
func NewOrchestrator(b *board.Board, l *lock.Store) *Orchestrator {
	return &Orchestrator{Board: b, Lock: l}
}

// MergeCompletedTask merges branchName (the agent's work for taskID) into
// mw's checked-out branch. On a clean or conflict-resolved merge, the
// branch is deleted and any remaining lock released. On merge failure, the
// task is reopened so another agent can retry it — a deliberate
// requeue-on-failure, mirroring the at-least-once completion model.
func (o *Orchestrator) MergeCompletedTask(ctx context.Context, taskID, agentID, branchName string, mw *MergeWorktree, resolver ConflictResolver) (MergeResult, error) {
	tasks, err := o.Board.List(board.StatusDone)
	if err != nil {
		return MergeResult{}, fmt.Errorf("upstream: list done tasks: %w", err)
	}
	var task *board.Task
	for i := range tasks {
		if tasks[i].ID == taskID {
			task = &tasks[i]
			break
		}
	}
	if task == nil {
		return MergeResult{}, fmt.Errorf("upstream: task %q is not in done status", taskID)
	}

	result, err := mw.Merge(ctx, branchName, taskID, resolver)
	if err != nil {
		slog.Error("upstream: merge failed, requeuing task", "task", taskID, "error", err)
		if _, reopenErr := o.Board.Reopen(taskID); reopenErr != nil {
			slog.Error("upstream: reopen task after merge failure", "task", taskID, "error", reopenErr)
		}
		if _, relErr := o.Lock.Release(taskID, agentID); relErr != nil {
			slog.Warn("upstream: release lock after merge failure", "task", taskID, "error", relErr)
		}
		return MergeResult{}, err
	}

	if err := mw.DeleteBranch(ctx, branchName); err != nil {
		slog.Warn("upstream: delete merged branch", "branch", branchName, "error", err)
	}
	if _, err := o.Lock.Release(taskID, agentID); err != nil {
		slog.Warn("upstream: release lock after merge", "task", taskID, "error", err)
	}
	return result, nil
}
