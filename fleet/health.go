package fleet

import (
	"context"
	"log/slog"
	"time"
)

// RunHealthLoop ticks every HealthCheckPeriod until ctx is cancelled,
// calling HealthCheck on each tick. Exceptions are swallowed so the loop
// stays alive, per spec.md §4.5 step 3.
func (s *Supervisor) RunHealthLoop(ctx context.Context) {
	ticker := time.NewTicker(HealthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.HealthCheck(ctx)
		}
	}
}

// HealthCheck snapshots the runtime's running container set, then for each
// table entry: marks it healthy if still running, otherwise attempts a
// bounded auto-restart (capped at MaxRestarts) or marks it crashed.
func (s *Supervisor) HealthCheck(ctx context.Context) {
	running, err := s.runtime.ListRunningAgents(ctx)
	if err != nil {
		slog.Error("fleet: health check: list running agents", "error", err)
		return
	}
	runningSet := make(map[string]bool, len(running))
	for _, a := range running {
		runningSet[a.ContainerID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for agentID, entry := range s.table {
		if runningSet[entry.ContainerID] {
			entry.Status = StatusHealthy
			s.table[agentID] = entry
			continue
		}

		if entry.RestartCount >= MaxRestarts {
			entry.Status = StatusCrashed
			s.table[agentID] = entry
			continue
		}

		status, err := s.runtime.RestartAgent(ctx, entry.ContainerID)
		entry.RestartCount++
		if err != nil {
			slog.Error("fleet: health check: restart failed", "agent", agentID, "error", err)
			entry.Status = StatusCrashed
		} else {
			entry.Status = StatusRestarting
			entry.ContainerID = status.ContainerID
		}
		s.table[agentID] = entry
	}
}
