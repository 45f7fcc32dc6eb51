// Package runtime is a thin, injection-safe facade over a CLI-driven
// container runtime (docker, nerdctl, podman, ...). Every call uses
// argument-vector invocation, carries a timeout, and validates any
// user-supplied identifier before a process is ever spawned.
package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

var (
	roleNameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)
	agentIDRE  = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// ValidateRoleName reports whether name is a safe role identifier.
func ValidateRoleName(name string) error {
	if !roleNameRE.MatchString(name) {
		return fmt.Errorf("runtime: invalid role name %q", name)
	}
	return nil
}

// ValidateAgentID reports whether id is a safe agent identifier.
func ValidateAgentID(id string) error {
	if !agentIDRE.MatchString(id) {
		return fmt.Errorf("runtime: invalid agent id %q", id)
	}
	return nil
}

const (
	containerPrefix = "claude-agent-"

	defaultTimeout = 30 * time.Second
	buildTimeout   = 300 * time.Second
	pushTimeout    = 60 * time.Second
)

// Runtime wraps a container CLI binary (e.g. "docker", "podman", "nerdctl").
type Runtime struct {
	bin string
}

// New returns a Runtime driving the given CLI binary.
func New(bin string) *Runtime {
	if bin == "" {
		bin = "docker"
	}
	return &Runtime{bin: bin}
}

// ContainerName returns the deterministic container name for an agent id.
func ContainerName(agentID string) string {
	return containerPrefix + agentID
}

func (r *Runtime) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, r.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("runtime: %s %s: %s: %w", r.bin, strings.Join(args, " "), out, err)
	}
	return string(out), nil
}

// BuildImage builds an image named name from source_dir, with a long
// timeout to accommodate real builds.
func (r *Runtime) BuildImage(ctx context.Context, name, sourceDir string) (bool, error) {
	if _, err := r.run(ctx, buildTimeout, "build", "-t", name, sourceDir); err != nil {
		return false, err
	}
	return true, nil
}

// StartAgentOptions configures StartAgent.
type StartAgentOptions struct {
	AgentID         string
	Role            string
	Model           string
	MaxSessions     int
	Image           string
	UpstreamPath    string
	BoardRoot       string
	CredentialsPath string
	APIKey          string
	ProviderEnv     map[string]string
	ProjectRoot     string
}

// AgentStatus describes the outcome of a lifecycle call.
type AgentStatus struct {
	ContainerID string `json:"container_id"`
	Status      string `json:"status"`
}

// StartAgent assembles and runs a container for one agent. Environment
// variables from ProviderEnv are applied last so they can override the
// defaults this function sets.
func (r *Runtime) StartAgent(ctx context.Context, opts StartAgentOptions) (AgentStatus, error) {
	if err := ValidateAgentID(opts.AgentID); err != nil {
		return AgentStatus{}, err
	}
	if err := ValidateRoleName(opts.Role); err != nil {
		return AgentStatus{}, err
	}

	args := []string{
		"run", "-d",
		"--name", ContainerName(opts.AgentID),
		"-v", fmt.Sprintf("%s:/workspace/repo", opts.UpstreamPath),
		"-v", fmt.Sprintf("%s:/workspace/board/tasks", join(opts.BoardRoot, "tasks")),
		"-v", fmt.Sprintf("%s:/workspace/board/locks", join(opts.BoardRoot, "locks")),
		"-v", fmt.Sprintf("%s:/workspace/board/messages", join(opts.BoardRoot, "messages")),
		"-v", fmt.Sprintf("%s:/workspace/board/logs", join(opts.BoardRoot, "logs")),
		"-e", "AGENT_ID=" + opts.AgentID,
		"-e", "AGENT_ROLE=" + opts.Role,
		"-e", "AGENT_MODEL=" + opts.Model,
		"-e", fmt.Sprintf("MAX_SESSIONS=%d", opts.MaxSessions),
	}
	if opts.CredentialsPath != "" {
		args = append(args, "-v", fmt.Sprintf("%s:/root/.credentials:ro", opts.CredentialsPath))
	}
	if opts.APIKey != "" {
		args = append(args, "-e", "API_KEY="+opts.APIKey)
	}
	for k, v := range opts.ProviderEnv {
		args = append(args, "-e", k+"="+v)
	}
	args = append(args, opts.Image)

	out, err := r.run(ctx, defaultTimeout, args...)
	if err != nil {
		return AgentStatus{}, err
	}
	id := strings.TrimSpace(out)
	if len(id) > 12 {
		id = id[:12]
	}
	return AgentStatus{ContainerID: id, Status: "running"}, nil
}

func join(root, sub string) string {
	if root == "" {
		return sub
	}
	return root + "/" + sub
}

// StopAgent stops a container by id.
func (r *Runtime) StopAgent(ctx context.Context, containerID string) (bool, error) {
	if _, err := r.run(ctx, defaultTimeout, "stop", containerID); err != nil {
		return false, err
	}
	return true, nil
}

// RestartAgent restarts a container by id.
func (r *Runtime) RestartAgent(ctx context.Context, containerID string) (AgentStatus, error) {
	if _, err := r.run(ctx, defaultTimeout, "restart", containerID); err != nil {
		return AgentStatus{}, err
	}
	return AgentStatus{ContainerID: containerID, Status: "running"}, nil
}

// ImageExists reports whether an image named name is present in the local
// image store. A non-zero exit (the normal "no such image" case) is
// reported as (false, nil) rather than an error.
func (r *Runtime) ImageExists(ctx context.Context, name string) (bool, error) {
	if _, err := r.run(ctx, defaultTimeout, "image", "inspect", name); err != nil {
		return false, nil
	}
	return true, nil
}

// StopFleet stops every container whose name starts with the fixed prefix
// and returns the number stopped.
func (r *Runtime) StopFleet(ctx context.Context) (int, error) {
	agents, err := r.ListRunningAgents(ctx)
	if err != nil {
		return 0, err
	}
	stopped := 0
	for _, a := range agents {
		if _, err := r.StopAgent(ctx, a.ContainerID); err != nil {
			continue
		}
		stopped++
	}
	return stopped, nil
}

// RunningAgent is one row of ListRunningAgents' output.
type RunningAgent struct {
	ContainerID string `json:"container_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	RunningFor  string `json:"running_for"`
}

type dockerPsRow struct {
	ID         string `json:"ID"`
	Names      string `json:"Names"`
	Status     string `json:"Status"`
	RunningFor string `json:"RunningFor"`
}

// ListRunningAgents enumerates running containers with the fixed agent
// prefix, parsing the runtime's machine-readable output.
func (r *Runtime) ListRunningAgents(ctx context.Context) ([]RunningAgent, error) {
	out, err := r.run(ctx, defaultTimeout, "ps",
		"--filter", "name="+containerPrefix,
		"--format", "{{json .}}")
	if err != nil {
		return nil, err
	}
	var agents []RunningAgent
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var row dockerPsRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("runtime: parse ps output: %w", err)
		}
		agents = append(agents, RunningAgent{
			ContainerID: row.ID,
			Name:        row.Names,
			Status:      row.Status,
			RunningFor:  row.RunningFor,
		})
	}
	return agents, nil
}

// GetAgentLogs returns the last tailLines lines from a container. This is a
// bounded tail only; streaming is the HTTP control plane's job.
func (r *Runtime) GetAgentLogs(ctx context.Context, containerID string, tailLines int) (string, error) {
	out, err := r.run(ctx, defaultTimeout, "logs", "--tail", fmt.Sprintf("%d", tailLines), containerID)
	if err != nil {
		return "", err
	}
	return out, nil
}

// FollowLogsCmd returns an unstarted *exec.Cmd that streams live follow-mode
// logs for containerID. The caller owns its lifecycle (Start, read Stdout,
// kill on timeout/disconnect, Wait).
func (r *Runtime) FollowLogsCmd(ctx context.Context, containerID string) *exec.Cmd {
	return exec.CommandContext(ctx, r.bin, "logs", "-f", containerID)
}
