// Package upstream manages the bare source-control repository that serves
// as the agents' synchronization point, plus optional branch-merge
// convenience operations adapted from a git-worktree-per-merge approach.
package upstream

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	pushTimeout    = 60 * time.Second
)

func run(ctx context.Context, timeout time.Duration, dir string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("upstream: git %s: %s: %w", strings.Join(args, " "), out, err)
	}
	return string(out), nil
}

// InitUpstream creates the bare repository at upstreamPath if missing, then
// force-pushes projectRoot's current state onto refs/heads/branch in it.
func InitUpstream(ctx context.Context, projectRoot, upstreamPath, branch string) (bool, error) {
	if _, err := run(ctx, defaultTimeout, "", "rev-parse", "--is-bare-repository", "--git-dir="+upstreamPath); err != nil {
		if _, err := run(ctx, defaultTimeout, "", "init", "--bare", upstreamPath); err != nil {
			return false, err
		}
	}
	ref := fmt.Sprintf("HEAD:refs/heads/%s", branch)
	if _, err := run(ctx, pushTimeout, projectRoot, "push", "--force", upstreamPath, ref); err != nil {
		return false, err
	}
	return true, nil
}

// AgentBranch describes one agent's branch in the upstream repository.
type AgentBranch struct {
	Branch  string `json:"branch"`
	AgentID string `json:"agent_id"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Subject string `json:"subject"`
	Ahead   int    `json:"ahead"`
}

// ListAgentBranches enumerates refs/heads/agent/* and computes commits ahead
// of main for each.
func ListAgentBranches(ctx context.Context, upstreamPath string) ([]AgentBranch, error) {
	out, err := run(ctx, defaultTimeout, upstreamPath,
		"for-each-ref", "--format=%(refname:short)|%(objectname:short)|%(creatordate:short)|%(subject)",
		"refs/heads/agent/*")
	if err != nil {
		return nil, err
	}
	var branches []AgentBranch
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			continue
		}
		branch := parts[0]
		agentID := strings.TrimPrefix(branch, "agent/")

		aheadOut, err := run(ctx, defaultTimeout, upstreamPath, "rev-list", "--count", "main.."+branch)
		ahead := 0
		if err == nil {
			if n, convErr := strconv.Atoi(strings.TrimSpace(aheadOut)); convErr == nil {
				ahead = n
			}
		}

		branches = append(branches, AgentBranch{
			Branch:  branch,
			AgentID: agentID,
			Commit:  parts[1],
			Date:    parts[2],
			Subject: parts[3],
			Ahead:   ahead,
		})
	}
	return branches, nil
}

// SyncBranchesToOrigin fetches agent branches from upstreamPath into
// projectRoot and pushes them on to origin. It is an optional convenience
// used by the supervisor's workflow endpoints; failures for individual
// branches are collected rather than aborting the whole sync.
func SyncBranchesToOrigin(ctx context.Context, projectRoot, upstreamPath string, branches []string) []error {
	var errs []error
	for _, b := range branches {
		refspec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", b, b)
		if _, err := run(ctx, defaultTimeout, projectRoot, "fetch", upstreamPath, refspec); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := run(ctx, pushTimeout, projectRoot, "push", "origin", b); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
