package server

import (
	"encoding/json"
	"net/http"

	"github.com/tgruben-circuit/agentfleet/config"
)

// configView is the data model for the config partial: the raw JSON text
// plus any validation errors from the last save attempt.
type configView struct {
	JSON   string
	Errors []string
}

func (s *Server) loadConfigView() configView {
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		return configView{JSON: "{}", Errors: []string{err.Error()}}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return configView{JSON: "{}", Errors: []string{err.Error()}}
	}
	return configView{JSON: string(data)}
}

// handleGetConfig returns the raw configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg) //nolint:errchkjson
}

// handlePostConfig validates a submitted config_json form value. On
// success it backs up the prior file and writes the new one; on failure it
// re-renders the config partial with the error list, leaving the active
// file untouched, per spec.md §4.6.
func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	raw := r.FormValue("config_json")

	var cfg config.Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		s.renderPartial(w, "config", configView{JSON: raw, Errors: []string{"invalid JSON: " + err.Error()}})
		return
	}

	if errs := config.Save(s.ConfigPath, &cfg); errs != nil {
		s.renderPartial(w, "config", configView{JSON: raw, Errors: errs})
		return
	}
	s.renderPartial(w, "config", s.loadConfigView())
}

func (s *Server) handlePartialConfig(w http.ResponseWriter, r *http.Request) {
	s.renderPartial(w, "config", s.loadConfigView())
}
