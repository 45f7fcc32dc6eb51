package fleet

import (
	"context"
	"testing"

	"github.com/tgruben-circuit/agentfleet/runtime"
)

// TestHealthCheckBoundedRestart exercises spec.md §8 scenario 5: a single
// entry whose container has vanished gets restarted on each tick while
// restart_count < MaxRestarts, and is retired to crashed (with no further
// restart attempt) once restart_count reaches MaxRestarts.
func TestHealthCheckBoundedRestart(t *testing.T) {
	fr := &fakeRuntime{} // ListRunningAgents always reports nothing running
	s := New(fr)
	s.table["impl-0"] = Entry{
		AgentID:      "impl-0",
		ContainerID:  "C",
		Status:       StatusRunning,
		RestartCount: 0,
	}

	ctx := context.Background()

	for i := 1; i <= MaxRestarts; i++ {
		s.HealthCheck(ctx)
		entry := s.Snapshot()["impl-0"]
		if entry.RestartCount != i {
			t.Fatalf("tick %d: restart_count = %d, want %d", i, entry.RestartCount, i)
		}
		if entry.Status != StatusRestarting {
			t.Fatalf("tick %d: status = %q, want restarting", i, entry.Status)
		}
		if len(fr.restartCalls) != i {
			t.Fatalf("tick %d: restart_agent called %d times, want %d", i, len(fr.restartCalls), i)
		}
		// HealthCheck reassigns ContainerID to the restarted id; point the
		// fake back at a container that still won't show up as running so
		// the next tick again finds it gone.
		entry.ContainerID = "C"
		s.table["impl-0"] = entry
	}

	// restart_count is now MaxRestarts: a further tick must not restart.
	s.HealthCheck(ctx)
	entry := s.Snapshot()["impl-0"]
	if entry.Status != StatusCrashed {
		t.Fatalf("status after threshold = %q, want crashed", entry.Status)
	}
	if entry.RestartCount != MaxRestarts {
		t.Fatalf("restart_count after threshold = %d, want unchanged at %d", entry.RestartCount, MaxRestarts)
	}
	if len(fr.restartCalls) != MaxRestarts {
		t.Fatalf("restart_agent called %d times after threshold, want unchanged at %d", len(fr.restartCalls), MaxRestarts)
	}
}

// TestHealthCheckMarksHealthyWhenContainerStillRunning confirms an entry
// whose container id appears in the runtime's running set is marked
// healthy and left otherwise untouched.
func TestHealthCheckMarksHealthyWhenContainerStillRunning(t *testing.T) {
	fr := &fakeRuntime{running: []runtime.RunningAgent{{ContainerID: "C"}}}
	s := New(fr)
	s.table["impl-0"] = Entry{AgentID: "impl-0", ContainerID: "C", Status: StatusRunning, RestartCount: 2}

	s.HealthCheck(context.Background())

	entry := s.Snapshot()["impl-0"]
	if entry.Status != StatusHealthy {
		t.Errorf("status = %q, want healthy", entry.Status)
	}
	if entry.RestartCount != 2 {
		t.Errorf("restart_count = %d, want unchanged at 2", entry.RestartCount)
	}
	if len(fr.restartCalls) != 0 {
		t.Errorf("restart_agent should not have been called, calls = %v", fr.restartCalls)
	}
}

// TestHealthCheckRestartFailureMarksCrashed confirms a failed restart
// attempt still counts against the bound and marks the entry crashed
// immediately rather than leaving it in limbo.
func TestHealthCheckRestartFailureMarksCrashed(t *testing.T) {
	fr := &fakeRuntime{restartErr: context.DeadlineExceeded}
	s := New(fr)
	s.table["impl-0"] = Entry{AgentID: "impl-0", ContainerID: "C", Status: StatusRunning, RestartCount: 0}

	s.HealthCheck(context.Background())

	entry := s.Snapshot()["impl-0"]
	if entry.Status != StatusCrashed {
		t.Errorf("status = %q, want crashed", entry.Status)
	}
	if entry.RestartCount != 1 {
		t.Errorf("restart_count = %d, want 1", entry.RestartCount)
	}
}
