package server

import (
	"net/http"
	"strconv"
)

// handleAddTask adds a task and re-renders the board partial, matching
// scripts/dashboard.py's add_task route.
func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	description := r.FormValue("description")
	priority := 1
	if p := r.FormValue("priority"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			priority = n
		}
	}
	if _, err := s.Board.Add(description, priority); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.handlePartialBoard(w, r)
}

// handleReopenTask clears ownership and returns a task to open, deleting
// any associated lock file, per spec.md §4.6.
func (s *Server) handleReopenTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Board.Reopen(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.deleteLockFile(id)
	s.handlePartialBoard(w, r)
}

// handleDeleteTask removes a task and its lock file unconditionally.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Board.Delete(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.deleteLockFile(id)
	s.handlePartialBoard(w, r)
}

// deleteLockFile removes a task's lock file whoever holds it, by releasing
// it as its recorded owner — reopen/delete are administrative paths, not
// agent protocol, so they may clear any lock.
func (s *Server) deleteLockFile(taskID string) {
	if rec, ok, err := s.Lock.IsLocked(taskID); err == nil && ok {
		if _, err := s.Lock.Release(taskID, rec.AgentID); err != nil {
			s.Logger.Warn("delete lock file", "task", taskID, "error", err)
		}
	}
}

// handleArchiveTasks sweeps done/failed tasks older than 7 days into the
// archive directory.
func (s *Server) handleArchiveTasks(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Board.Archive(7); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.handlePartialBoard(w, r)
}

// handleCleanupLocks runs the stale-lock reaper with the spec's default
// two-hour bound.
func (s *Server) handleCleanupLocks(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Lock.CleanupStale(7200); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.handlePartialAgents(w, r)
}
