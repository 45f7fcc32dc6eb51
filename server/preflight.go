package server

import (
	"context"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/tgruben-circuit/agentfleet/board"
	"github.com/tgruben-circuit/agentfleet/config"
)

// CheckStatus is one preflight check's verdict.
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckFail CheckStatus = "fail"
	CheckWarn CheckStatus = "warn"
)

// Check is one row of the preflight report.
type Check struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
}

// handlePreflight runs the five independent readiness checks from
// spec.md §4.6 concurrently with errgroup, then returns them in the
// spec-defined order.
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	checks := make([]Check, 5)
	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		checks[0] = s.checkRuntime(ctx)
		return nil
	})
	g.Go(func() error {
		checks[1] = s.checkImage(ctx)
		return nil
	})
	g.Go(func() error {
		checks[2] = s.checkCredentials()
		return nil
	})
	g.Go(func() error {
		checks[3] = s.checkConfig()
		return nil
	})
	g.Go(func() error {
		checks[4] = s.checkOpenTasks()
		return nil
	})
	_ = g.Wait() // every check handles its own errors; g.Wait never returns non-nil

	writeJSON(w, http.StatusOK, checks)
}

func (s *Server) checkRuntime(ctx context.Context) Check {
	if _, err := s.Runtime.ListRunningAgents(ctx); err != nil {
		return Check{Name: "container runtime", Status: CheckFail, Message: err.Error()}
	}
	return Check{Name: "container runtime", Status: CheckPass, Message: "responsive"}
}

func (s *Server) checkImage(ctx context.Context) Check {
	cfg, err := config.Load(s.ConfigPath)
	if err != nil || cfg.Docker == nil || cfg.Docker.Image == "" {
		return Check{Name: "required image", Status: CheckFail, Message: "no image configured"}
	}
	exists, err := s.Runtime.ImageExists(ctx, cfg.Docker.Image)
	if err != nil {
		return Check{Name: "required image", Status: CheckFail, Message: err.Error()}
	}
	if !exists {
		return Check{Name: "required image", Status: CheckFail, Message: cfg.Docker.Image + " not present, build it first"}
	}
	return Check{Name: "required image", Status: CheckPass, Message: cfg.Docker.Image}
}

func (s *Server) checkCredentials() Check {
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		return Check{Name: "credentials", Status: CheckFail, Message: err.Error()}
	}
	if s.CredentialsPath != "" {
		if _, err := os.Stat(s.CredentialsPath); err == nil {
			return Check{Name: "credentials", Status: CheckPass, Message: "credentials file present"}
		}
	}
	if cfg.Auth.EnvVarName != "" && os.Getenv(cfg.Auth.EnvVarName) != "" {
		return Check{Name: "credentials", Status: CheckPass, Message: cfg.Auth.EnvVarName + " set"}
	}
	return Check{Name: "credentials", Status: CheckFail, Message: "no credentials file and no API key env var set"}
}

func (s *Server) checkConfig() Check {
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		return Check{Name: "config", Status: CheckFail, Message: err.Error()}
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return Check{Name: "config", Status: CheckFail, Message: errs[0]}
	}
	return Check{Name: "config", Status: CheckPass, Message: "valid"}
}

func (s *Server) checkOpenTasks() Check {
	open, err := s.Board.List(board.StatusOpen)
	if err != nil {
		return Check{Name: "open tasks", Status: CheckFail, Message: err.Error()}
	}
	if len(open) == 0 {
		return Check{Name: "open tasks", Status: CheckWarn, Message: "no open tasks"}
	}
	return Check{Name: "open tasks", Status: CheckPass, Message: "has open work"}
}
