// Package config loads and validates the fleet's declarative JSON
// configuration: runtime choice, role definitions, runtime-specific
// parameters, upstream-sync parameters, and auth method.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the top-level fleet configuration.
type Config struct {
	Runtime  string         `json:"runtime"`
	Roles    []Role         `json:"roles"`
	Docker   *DockerConfig  `json:"docker,omitempty"`
	Devpod   *DevpodConfig  `json:"devpod,omitempty"`
	Sync     SyncConfig     `json:"sync"`
	Auth     AuthConfig     `json:"auth"`
	Provider ProviderConfig `json:"provider,omitempty"`
}

// Role describes one agent role's replica configuration.
type Role struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	Model       string `json:"model"`
	PromptFile  string `json:"prompt_file"`
	MaxTurns    int    `json:"max_turns"`
	MaxSessions int    `json:"max_sessions"`
}

// DockerConfig holds Docker-runtime-specific parameters.
type DockerConfig struct {
	Image      string   `json:"image"`
	MountPaths []string `json:"mount_paths"`
}

// DevpodConfig holds Devpod-runtime-specific parameters, carried from the
// original prototype's schema even though this core implements the Docker
// CLI path in depth.
type DevpodConfig struct {
	Provider     string `json:"provider"`
	InstanceType string `json:"instance_type"`
	IDE          string `json:"ide"`
}

// SyncConfig holds upstream repository synchronization parameters.
type SyncConfig struct {
	UpstreamPath   string `json:"upstream_path"`
	UpstreamRemote string `json:"upstream_remote"`
	Branch         string `json:"branch"`
}

// AuthConfig selects the credential method agents use to reach their model
// provider.
type AuthConfig struct {
	Method     string `json:"method"`
	EnvVarName string `json:"env_var_name"`
}

// ProviderConfig carries explicit overrides for the env vars forwarded into
// agent containers (spec.md §4.5's provider env block), layered on top of
// the fixed host-env allowlist.
type ProviderConfig struct {
	BaseURL       string `json:"base_url,omitempty"`
	ModelOverride string `json:"model_override,omitempty"`
	SmallModel    string `json:"small_model,omitempty"`
	FastModel     string `json:"fast_model,omitempty"`
	APITimeoutMS  int    `json:"api_timeout_ms,omitempty"`
}

var validRuntimes = map[string]bool{"docker": true, "devpod": true}

// Load reads and parses the config file at path. It does not validate;
// call Validate separately so callers can distinguish parse errors from
// schema errors (the HTTP config endpoint needs that distinction).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return &cfg, nil
}

// Validate returns the list of schema errors found in cfg. An empty slice
// means the config is valid. Mirrors the original prototype's required-key
// checks, adapted to Go's typed-zero-value reality (an absent JSON field
// decodes to the type's zero value, so "missing" is approximated by
// emptiness rather than by a distinct "absent" sentinel).
func Validate(cfg *Config) []string {
	var errs []string

	if !validRuntimes[cfg.Runtime] {
		errs = append(errs, fmt.Sprintf("invalid runtime %q: must be one of docker, devpod", cfg.Runtime))
	}

	if len(cfg.Roles) == 0 {
		errs = append(errs, "roles must be a non-empty list")
	}
	for i, role := range cfg.Roles {
		if role.Name == "" {
			errs = append(errs, fmt.Sprintf("role %d: missing name", i))
		}
		if role.Model == "" {
			errs = append(errs, fmt.Sprintf("role %d: missing model", i))
		}
		if role.PromptFile == "" {
			errs = append(errs, fmt.Sprintf("role %d: missing prompt_file", i))
		}
		if role.MaxTurns <= 0 {
			errs = append(errs, fmt.Sprintf("role %d: missing max_turns", i))
		}
		if role.Count < 1 {
			errs = append(errs, fmt.Sprintf("role %d: count must be >= 1", i))
		}
		if role.MaxSessions < 1 {
			errs = append(errs, fmt.Sprintf("role %d: max_sessions must be >= 1", i))
		}
	}

	if cfg.Runtime == "docker" {
		if cfg.Docker == nil {
			errs = append(errs, "docker section required when runtime is docker")
		} else {
			if cfg.Docker.Image == "" {
				errs = append(errs, "docker: missing image")
			}
			if len(cfg.Docker.MountPaths) == 0 {
				errs = append(errs, "docker: missing mount_paths")
			}
		}
	}
	if cfg.Runtime == "devpod" {
		if cfg.Devpod == nil {
			errs = append(errs, "devpod section required when runtime is devpod")
		} else {
			if cfg.Devpod.Provider == "" {
				errs = append(errs, "devpod: missing provider")
			}
			if cfg.Devpod.InstanceType == "" {
				errs = append(errs, "devpod: missing instance_type")
			}
			if cfg.Devpod.IDE == "" {
				errs = append(errs, "devpod: missing ide")
			}
		}
	}

	if cfg.Sync.UpstreamPath == "" {
		errs = append(errs, "sync: missing upstream_path")
	}
	if cfg.Sync.UpstreamRemote == "" {
		errs = append(errs, "sync: missing upstream_remote")
	}
	if cfg.Sync.Branch == "" {
		errs = append(errs, "sync: missing branch")
	}

	if cfg.Auth.Method == "" {
		errs = append(errs, "auth: missing method")
	}
	if cfg.Auth.EnvVarName == "" {
		errs = append(errs, "auth: missing env_var_name")
	}

	return errs
}

// Save validates cfg and, on success, backs up the existing file at path to
// path+".bak" (if one exists) before writing the new contents. The prior
// file is left untouched on validation failure.
func Save(path string, cfg *Config) []string {
	if errs := Validate(cfg); len(errs) > 0 {
		return errs
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return []string{fmt.Sprintf("marshal config: %v", err)}
	}

	if existing, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".bak", existing, 0o644); err != nil {
			return []string{fmt.Sprintf("backup existing config: %v", err)}
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return []string{fmt.Sprintf("write config: %v", err)}
	}
	return nil
}
