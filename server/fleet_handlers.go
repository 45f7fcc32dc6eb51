package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/tgruben-circuit/agentfleet/config"
	"github.com/tgruben-circuit/agentfleet/fleet"
)

// providerEnvAllowlist is the fixed set of host env vars forwarded into
// agent containers, per spec.md §4.5.
var providerEnvAllowlist = []string{
	"ANTHROPIC_API_KEY",
	"ANTHROPIC_AUTH_TOKEN",
	"ANTHROPIC_BASE_URL",
	"ANTHROPIC_MODEL",
	"ANTHROPIC_SMALL_FAST_MODEL",
	"ANTHROPIC_DEFAULT_HAIKU_MODEL",
	"API_TIMEOUT_MS",
}

// buildProviderEnv merges the forwarded host-env allowlist with explicit
// overrides from the config's provider section; overrides are applied
// last so they win.
func buildProviderEnv(cfg *config.Config) map[string]string {
	env := make(map[string]string)
	for _, k := range providerEnvAllowlist {
		if v := os.Getenv(k); v != "" {
			env[k] = v
		}
	}
	if cfg.Provider.BaseURL != "" {
		env["ANTHROPIC_BASE_URL"] = cfg.Provider.BaseURL
	}
	if cfg.Provider.ModelOverride != "" {
		env["ANTHROPIC_MODEL"] = cfg.Provider.ModelOverride
	}
	if cfg.Provider.SmallModel != "" {
		env["ANTHROPIC_SMALL_FAST_MODEL"] = cfg.Provider.SmallModel
	}
	if cfg.Provider.FastModel != "" {
		env["ANTHROPIC_DEFAULT_HAIKU_MODEL"] = cfg.Provider.FastModel
	}
	if cfg.Provider.APITimeoutMS > 0 {
		env["API_TIMEOUT_MS"] = strconv.Itoa(cfg.Provider.APITimeoutMS)
	}
	return env
}

func (s *Server) handleFleetStart(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	roles := make([]fleet.RoleConfig, 0, len(cfg.Roles))
	image := ""
	if cfg.Docker != nil {
		image = cfg.Docker.Image
	}
	for _, role := range cfg.Roles {
		roles = append(roles, fleet.RoleConfig{
			Name:        role.Name,
			Count:       role.Count,
			Model:       role.Model,
			MaxSessions: role.MaxSessions,
			Image:       image,
		})
	}

	entries, err := s.Fleet.StartFleet(r.Context(), fleet.StartFleetOptions{
		ProjectRoot:     s.ProjectRoot,
		UpstreamPath:    cfg.Sync.UpstreamPath,
		UpstreamBranch:  cfg.Sync.Branch,
		BoardRoot:       s.BoardRoot,
		Roles:           roles,
		CredentialsPath: s.CredentialsPath,
		APIKey:          os.Getenv(cfg.Auth.EnvVarName),
		ProviderEnv:     buildProviderEnv(cfg),
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleFleetStop(w http.ResponseWriter, r *http.Request) {
	n, err := s.Fleet.StopFleet(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stopped": n})
}

func (s *Server) handleFleetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Fleet.Snapshot())
}

func (s *Server) handleAgentStop(w http.ResponseWriter, r *http.Request) {
	id, ok := validateAgentID(w, r)
	if !ok {
		return
	}
	entry, err := s.Fleet.StopAgent(r.Context(), id)
	if err != nil {
		if err == fleet.ErrUnknownAgent {
			writeJSONError(w, http.StatusNotFound, err)
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleAgentRestart(w http.ResponseWriter, r *http.Request) {
	id, ok := validateAgentID(w, r)
	if !ok {
		return
	}
	entry, err := s.Fleet.RestartAgent(r.Context(), id)
	if err != nil {
		if err == fleet.ErrUnknownAgent {
			writeJSONError(w, http.StatusNotFound, err)
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errchkjson
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
