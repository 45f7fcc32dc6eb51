package fleet

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/tgruben-circuit/agentfleet/runtime"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// initProjectRepo creates a minimal git repo at dir so StartFleet's
// upstream.InitUpstream call (which pushes the project's current state)
// has something real to push.
func initProjectRepo(t *testing.T, dir string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %s: %v", args, out, err)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-q", "-m", "initial")
	run("branch", "-M", "main")
}

// fakeRuntime is a stand-in runtimeClient driven entirely in-memory, so the
// supervisor's table logic can be tested without shelling out to a
// container CLI.
type fakeRuntime struct {
	running      []runtime.RunningAgent
	startErr     error
	restartErr   error
	restartCalls []string
}

func (f *fakeRuntime) StartAgent(ctx context.Context, opts runtime.StartAgentOptions) (runtime.AgentStatus, error) {
	if f.startErr != nil {
		return runtime.AgentStatus{}, f.startErr
	}
	return runtime.AgentStatus{ContainerID: "c-" + opts.AgentID, Status: "running"}, nil
}

func (f *fakeRuntime) StopAgent(ctx context.Context, containerID string) (bool, error) {
	return true, nil
}

func (f *fakeRuntime) RestartAgent(ctx context.Context, containerID string) (runtime.AgentStatus, error) {
	f.restartCalls = append(f.restartCalls, containerID)
	if f.restartErr != nil {
		return runtime.AgentStatus{}, f.restartErr
	}
	return runtime.AgentStatus{ContainerID: containerID + "-r", Status: "running"}, nil
}

func (f *fakeRuntime) StopFleet(ctx context.Context) (int, error) {
	n := len(f.running)
	f.running = nil
	return n, nil
}

func (f *fakeRuntime) ListRunningAgents(ctx context.Context) ([]runtime.RunningAgent, error) {
	return f.running, nil
}

func TestStartFleetRejectsNoRoles(t *testing.T) {
	s := New(&fakeRuntime{})
	_, err := s.StartFleet(context.Background(), StartFleetOptions{})
	if !errors.Is(err, ErrNoRoles) {
		t.Fatalf("err = %v, want ErrNoRoles", err)
	}
}

func TestStartFleetRecordsOneEntryPerReplica(t *testing.T) {
	requireGit(t)
	fr := &fakeRuntime{}
	s := New(fr)

	projectRoot := t.TempDir()
	initProjectRepo(t, projectRoot)

	entries, err := s.StartFleet(context.Background(), StartFleetOptions{
		ProjectRoot:    projectRoot,
		UpstreamPath:   filepath.Join(t.TempDir(), "upstream.git"),
		UpstreamBranch: "main",
		Roles: []RoleConfig{
			{Name: "impl", Count: 2, Model: "m"},
			{Name: "review", Count: 1, Model: "m"},
		},
	})
	if err != nil {
		t.Fatalf("StartFleet: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	snap := s.Snapshot()
	for _, id := range []string{"impl-0", "impl-1", "review-0"} {
		e, ok := snap[id]
		if !ok {
			t.Errorf("missing entry for %q", id)
			continue
		}
		if e.Status != StatusRunning || e.RestartCount != 0 {
			t.Errorf("entry %q = %+v, want running/restart_count=0", id, e)
		}
	}
}

func TestStopFleetClearsTable(t *testing.T) {
	fr := &fakeRuntime{running: []runtime.RunningAgent{{ContainerID: "c-impl-0"}}}
	s := New(fr)
	s.table["impl-0"] = Entry{AgentID: "impl-0", ContainerID: "c-impl-0", Status: StatusRunning}

	n, err := s.StopFleet(context.Background())
	if err != nil {
		t.Fatalf("StopFleet: %v", err)
	}
	if n != 1 {
		t.Errorf("stopped count = %d, want 1", n)
	}
	if len(s.Snapshot()) != 0 {
		t.Errorf("table not cleared: %+v", s.Snapshot())
	}
}

func TestStopAgentUnknownID(t *testing.T) {
	s := New(&fakeRuntime{})
	if _, err := s.StopAgent(context.Background(), "nope"); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("err = %v, want ErrUnknownAgent", err)
	}
}

func TestRestartAgentIncrementsCount(t *testing.T) {
	fr := &fakeRuntime{}
	s := New(fr)
	s.table["impl-0"] = Entry{AgentID: "impl-0", ContainerID: "c-impl-0", Status: StatusRunning}

	entry, err := s.RestartAgent(context.Background(), "impl-0")
	if err != nil {
		t.Fatalf("RestartAgent: %v", err)
	}
	if entry.RestartCount != 1 || entry.Status != StatusRestarting {
		t.Errorf("entry = %+v, want restart_count=1/status=restarting", entry)
	}
}

// TestReconstructRecoversTableFromRunningContainers exercises spec.md §8
// scenario 6: a single container named with the fixed prefix recovers a
// table entry keyed by the stripped agent id, with role derived by
// dropping the trailing replica index.
func TestReconstructRecoversTableFromRunningContainers(t *testing.T) {
	fr := &fakeRuntime{
		running: []runtime.RunningAgent{
			{ContainerID: "abc123", Name: runtime.ContainerName("impl-0"), Status: "Up 2 minutes"},
		},
	}
	s := New(fr)

	if err := s.Reconstruct(context.Background()); err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}

	snap := s.Snapshot()
	entry, ok := snap["impl-0"]
	if !ok {
		t.Fatalf("expected entry for impl-0, got %+v", snap)
	}
	if entry.Role != "impl" {
		t.Errorf("Role = %q, want impl", entry.Role)
	}
	if entry.Status != StatusRunning {
		t.Errorf("Status = %q, want running", entry.Status)
	}
	if entry.ContainerID != "abc123" {
		t.Errorf("ContainerID = %q, want abc123", entry.ContainerID)
	}
	if entry.RestartCount != 0 {
		t.Errorf("RestartCount = %d, want 0", entry.RestartCount)
	}
}

func TestReconstructIgnoresContainersWithoutExpectedPrefix(t *testing.T) {
	fr := &fakeRuntime{
		running: []runtime.RunningAgent{
			{ContainerID: "zzz", Name: "unrelated-container"},
		},
	}
	s := New(fr)
	if err := s.Reconstruct(context.Background()); err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if len(s.Snapshot()) != 0 {
		t.Errorf("expected empty table, got %+v", s.Snapshot())
	}
}
