package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tgruben-circuit/agentfleet/config"
	"github.com/tgruben-circuit/agentfleet/upstream"
)

// handleFleetSync drives upstream.SyncBranchesToOrigin: it lists the
// upstream's agent branches, then fetches each one into the project root
// and pushes it on to origin. Per spec.md §4.4, this is an optional
// convenience the dashboard exposes as a workflow action rather than
// something the fleet lifecycle calls automatically.
func (s *Server) handleFleetSync(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	branches, err := upstream.ListAgentBranches(r.Context(), cfg.Sync.UpstreamPath)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	names := make([]string, len(branches))
	for i, b := range branches {
		names[i] = b.Branch
	}

	syncErrs := upstream.SyncBranchesToOrigin(r.Context(), s.ProjectRoot, cfg.Sync.UpstreamPath, names)
	resp := map[string]any{
		"branches": branches,
		"synced":   len(names) - len(syncErrs),
	}
	if len(syncErrs) > 0 {
		msgs := make([]string, len(syncErrs))
		for i, e := range syncErrs {
			msgs[i] = e.Error()
		}
		resp["errors"] = msgs
	}
	writeJSON(w, http.StatusOK, resp)
}

// mergeWorkDir returns the scratch directory merge worktrees are created
// under, relative to the project root.
func mergeWorkDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".agentfleet-merge")
}

// handleFleetMerge drives upstream.Orchestrator.MergeCompletedTask for one
// completed task's agent branch: it opens a dedicated merge worktree
// against the upstream repository's tracked branch, merges the agent's
// branch in (aborting on unresolved conflicts — no resolver is wired here,
// matching spec.md §9's note that conflict resolution is left to the
// caller), and on success deletes the branch and releases the lock.
func (s *Server) handleFleetMerge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	taskID := r.FormValue("task_id")
	agentID := r.FormValue("agent_id")
	if taskID == "" || agentID == "" {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("task_id and agent_id are required"))
		return
	}
	if !agentIDPattern.MatchString(agentID) {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	workDir := mergeWorkDir(s.ProjectRoot)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	branch := "agent/" + agentID
	mw, err := upstream.NewMergeWorktree(cfg.Sync.UpstreamPath, workDir, agentID, cfg.Sync.Branch)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	defer mw.Cleanup()

	orch := upstream.NewOrchestrator(s.Board, s.Lock)
	result, err := orch.MergeCompletedTask(r.Context(), taskID, agentID, branch, mw, nil)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
