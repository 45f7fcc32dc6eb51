// Package server implements the HTTP control plane: page and partial
// rendering over board/lock/fleet state, mutating action endpoints, a
// per-agent log tail and follow stream, and fleet lifecycle/preflight
// endpoints.
package server

import (
	"log/slog"
	"net/http"
	"regexp"

	sloghttp "github.com/samber/slog-http"

	"github.com/tgruben-circuit/agentfleet/board"
	"github.com/tgruben-circuit/agentfleet/config"
	"github.com/tgruben-circuit/agentfleet/fleet"
	"github.com/tgruben-circuit/agentfleet/lock"
	"github.com/tgruben-circuit/agentfleet/runtime"
)

// agentIDPattern validates the {id} path parameter of every agent-scoped
// route and the agent_id form value of POST /fleet/merge, per spec.md
// §4.6's input-validation rule. Task {id} parameters are not checked
// against it.
var agentIDPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Server wires the board/lock/fleet/runtime stores into an HTTP mux and
// holds the request-scoped dependencies every handler needs.
type Server struct {
	Board           *board.Board
	Lock            *lock.Store
	Fleet           *fleet.Supervisor
	Runtime         *runtime.Runtime
	ConfigPath      string
	ProjectRoot     string
	BoardRoot       string
	CredentialsPath string
	Logger          *slog.Logger

	mux *http.ServeMux
	tpl *templateSet
}

// Options configures a Server beyond its core store dependencies.
type Options struct {
	ConfigPath      string
	ProjectRoot     string
	BoardRoot       string
	CredentialsPath string
	Logger          *slog.Logger
}

// New builds a Server and registers every route.
func New(b *board.Board, l *lock.Store, f *fleet.Supervisor, rt *runtime.Runtime, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	s := &Server{
		Board:           b,
		Lock:            l,
		Fleet:           f,
		Runtime:         rt,
		ConfigPath:      opts.ConfigPath,
		ProjectRoot:     opts.ProjectRoot,
		BoardRoot:       opts.BoardRoot,
		CredentialsPath: opts.CredentialsPath,
		Logger:          logger,
		mux:             http.NewServeMux(),
		tpl:             tpl,
	}
	s.routes()
	return s, nil
}

// Handler returns the fully wired HTTP handler, wrapped with structured
// request-access logging.
func (s *Server) Handler() http.Handler {
	return sloghttp.New(s.Logger)(sloghttp.Recovery(s.Logger)(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)

	s.mux.HandleFunc("GET /partials/board", s.handlePartialBoard)
	s.mux.HandleFunc("GET /partials/stats", s.handlePartialStats)
	s.mux.HandleFunc("GET /partials/agents", s.handlePartialAgents)
	s.mux.HandleFunc("GET /partials/messages", s.handlePartialMessages)
	s.mux.HandleFunc("GET /partials/fleet", s.handlePartialFleet)
	s.mux.HandleFunc("GET /partials/config", s.handlePartialConfig)

	s.mux.HandleFunc("POST /tasks", s.handleAddTask)
	s.mux.HandleFunc("POST /tasks/{id}/reopen", s.handleReopenTask)
	s.mux.HandleFunc("POST /tasks/{id}/delete", s.handleDeleteTask)
	s.mux.HandleFunc("POST /tasks/archive", s.handleArchiveTasks)
	s.mux.HandleFunc("POST /locks/cleanup", s.handleCleanupLocks)

	s.mux.HandleFunc("GET /config", s.handleGetConfig)
	s.mux.HandleFunc("POST /config", s.handlePostConfig)

	s.mux.HandleFunc("GET /fleet/status", s.handleFleetStatus)
	s.mux.HandleFunc("GET /fleet/preflight", s.handlePreflight)
	s.mux.HandleFunc("POST /fleet/start", s.handleFleetStart)
	s.mux.HandleFunc("POST /fleet/stop", s.handleFleetStop)
	s.mux.HandleFunc("POST /agents/{id}/stop", s.handleAgentStop)
	s.mux.HandleFunc("POST /agents/{id}/restart", s.handleAgentRestart)

	s.mux.HandleFunc("POST /fleet/sync", s.handleFleetSync)
	s.mux.HandleFunc("POST /fleet/merge", s.handleFleetMerge)

	s.mux.HandleFunc("GET /agents/{id}/logs", s.handleAgentLogs)
	s.mux.HandleFunc("GET /agents/{id}/logs/ws", s.handleAgentLogsWS)
}

// validateAgentID checks the {id} path value against the shared pattern and
// writes a 400 response if it fails. Returns the id and whether the
// request should continue.
func validateAgentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !agentIDPattern.MatchString(id) {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}
