// Package fleet holds the supervisor's in-memory view of running agents: a
// table guarded by a single mutex, lifecycle operations over the runtime
// adapter, and a periodic health check that restarts or retires crashed
// agents.
package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tgruben-circuit/agentfleet/runtime"
	"github.com/tgruben-circuit/agentfleet/upstream"
)

// runtimeClient is the subset of *runtime.Runtime the supervisor drives.
// Declared as an interface so tests can supervise a fake runtime instead of
// shelling out to a real container CLI.
type runtimeClient interface {
	StartAgent(ctx context.Context, opts runtime.StartAgentOptions) (runtime.AgentStatus, error)
	StopAgent(ctx context.Context, containerID string) (bool, error)
	RestartAgent(ctx context.Context, containerID string) (runtime.AgentStatus, error)
	StopFleet(ctx context.Context) (int, error)
	ListRunningAgents(ctx context.Context) ([]runtime.RunningAgent, error)
}

// Status is an agent's lifecycle state in the fleet table.
type Status string

const (
	StatusRunning     Status = "running"
	StatusHealthy     Status = "healthy"
	StatusStopped     Status = "stopped"
	StatusRestarting  Status = "restarting"
	StatusCrashed     Status = "crashed"
	StatusNoContainer Status = "no-container"
)

// MaxRestarts bounds automatic restart attempts before an agent is retired
// to crashed.
const MaxRestarts = 3

// HealthCheckPeriod is the interval between health loop ticks.
const HealthCheckPeriod = 30 * time.Second

// Entry is one fleet table row.
type Entry struct {
	AgentID      string    `json:"agent_id"`
	Role         string    `json:"role"`
	Model        string    `json:"model"`
	ContainerID  string    `json:"container_id"`
	Status       Status    `json:"status"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	RestartCount int       `json:"restart_count"`
}

// RoleConfig describes one role's replica configuration for StartFleet.
type RoleConfig struct {
	Name        string
	Count       int
	Model       string
	MaxSessions int
	Image       string
}

// StartFleetOptions configures StartFleet.
type StartFleetOptions struct {
	ProjectRoot     string
	UpstreamPath    string
	UpstreamBranch  string
	BoardRoot       string
	Roles           []RoleConfig
	CredentialsPath string
	APIKey          string
	ProviderEnv     map[string]string
}

// Supervisor owns the fleet table and the serialization primitive guarding
// it. Every table mutation — including the health loop's — acquires mu.
type Supervisor struct {
	mu      sync.Mutex
	table   map[string]Entry
	runtime runtimeClient
}

// New returns an empty Supervisor driving the given runtime adapter.
func New(rt runtimeClient) *Supervisor {
	return &Supervisor{
		table:   make(map[string]Entry),
		runtime: rt,
	}
}

// ErrNoRoles is returned by StartFleet when no roles are configured.
var ErrNoRoles = fmt.Errorf("fleet: no roles configured")

// ErrUnknownAgent is returned by StopAgent/RestartAgent for an id not in
// the table.
var ErrUnknownAgent = fmt.Errorf("fleet: unknown agent id")

// StartFleet initializes the upstream repository, then starts each
// configured role's replicas and records them in the fleet table.
func (s *Supervisor) StartFleet(ctx context.Context, opts StartFleetOptions) ([]Entry, error) {
	if len(opts.Roles) == 0 {
		return nil, ErrNoRoles
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := upstream.InitUpstream(ctx, opts.ProjectRoot, opts.UpstreamPath, opts.UpstreamBranch); err != nil {
		return nil, fmt.Errorf("fleet: init upstream: %w", err)
	}

	var started []Entry
	for _, role := range opts.Roles {
		for i := 0; i < role.Count; i++ {
			agentID := fmt.Sprintf("%s-%d", role.Name, i)
			status, err := s.runtime.StartAgent(ctx, runtime.StartAgentOptions{
				AgentID:         agentID,
				Role:            role.Name,
				Model:           role.Model,
				MaxSessions:     role.MaxSessions,
				Image:           role.Image,
				UpstreamPath:    opts.UpstreamPath,
				BoardRoot:       opts.BoardRoot,
				CredentialsPath: opts.CredentialsPath,
				APIKey:          opts.APIKey,
				ProviderEnv:     opts.ProviderEnv,
				ProjectRoot:     opts.ProjectRoot,
			})
			if err != nil {
				slog.Error("fleet: start agent failed", "agent", agentID, "error", err)
				continue
			}
			entry := Entry{
				AgentID:      agentID,
				Role:         role.Name,
				Model:        role.Model,
				ContainerID:  status.ContainerID,
				Status:       StatusRunning,
				StartedAt:    time.Now(),
				RestartCount: 0,
			}
			s.table[agentID] = entry
			started = append(started, entry)
		}
	}
	return started, nil
}

// StopFleet stops every running agent and clears the fleet table.
func (s *Supervisor) StopFleet(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.runtime.StopFleet(ctx)
	if err != nil {
		return 0, fmt.Errorf("fleet: stop fleet: %w", err)
	}
	s.table = make(map[string]Entry)
	return n, nil
}

// StopAgent stops one agent by id.
func (s *Supervisor) StopAgent(ctx context.Context, agentID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.table[agentID]
	if !ok {
		return Entry{}, ErrUnknownAgent
	}
	if _, err := s.runtime.StopAgent(ctx, entry.ContainerID); err != nil {
		return Entry{}, fmt.Errorf("fleet: stop agent %q: %w", agentID, err)
	}
	entry.Status = StatusStopped
	s.table[agentID] = entry
	return entry, nil
}

// RestartAgent restarts one agent by id and increments its restart count.
func (s *Supervisor) RestartAgent(ctx context.Context, agentID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.table[agentID]
	if !ok {
		return Entry{}, ErrUnknownAgent
	}
	status, err := s.runtime.RestartAgent(ctx, entry.ContainerID)
	if err != nil {
		return Entry{}, fmt.Errorf("fleet: restart agent %q: %w", agentID, err)
	}
	entry.Status = StatusRestarting
	entry.ContainerID = status.ContainerID
	entry.RestartCount++
	s.table[agentID] = entry
	return entry, nil
}

// Snapshot returns a copy of the current fleet table, sorted by agent id is
// the caller's job (this just returns the map contents).
func (s *Supervisor) Snapshot() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Entry, len(s.table))
	for k, v := range s.table {
		out[k] = v
	}
	return out
}

// Reconstruct queries the runtime for running containers matching the fixed
// prefix and rebuilds the fleet table from them. Called at supervisor boot,
// per spec.md's "state reconstruction" operation.
func (s *Supervisor) Reconstruct(ctx context.Context) error {
	agents, err := s.runtime.ListRunningAgents(ctx)
	if err != nil {
		return fmt.Errorf("fleet: reconstruct: list running agents: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = make(map[string]Entry)
	for _, a := range agents {
		agentID := strings.TrimPrefix(a.Name, runtime.ContainerName(""))
		if agentID == a.Name {
			continue // name didn't have the expected prefix
		}
		s.table[agentID] = Entry{
			AgentID:      agentID,
			Role:         roleFromAgentID(agentID),
			ContainerID:  a.ContainerID,
			Status:       StatusRunning,
			RestartCount: 0,
		}
	}
	return nil
}

// roleFromAgentID strips the trailing "-<n>" replica index from an agent id
// to recover its role name, e.g. "impl-0" -> "impl".
func roleFromAgentID(agentID string) string {
	idx := strings.LastIndex(agentID, "-")
	if idx < 0 {
		return agentID
	}
	if _, err := strconv.Atoi(agentID[idx+1:]); err != nil {
		return agentID
	}
	return agentID[:idx]
}
