// Package config loads and validates .wreckit/config.json, with an
// optional config.local.json overlay for machine-local overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// AgentConfig is the closed agent-transport configuration.
type AgentConfig struct {
	// Kind selects the transport: process, sdk, sandboxed-vm, or mock.
	Kind             string      `json:"kind"`
	CompletionSignal string      `json:"completion_signal,omitempty"`
	SandboxCommand   string      `json:"sandbox_command,omitempty"`
	Env              OrderedVars `json:"env,omitempty"`
}

var validAgentKinds = map[string]bool{
	"process": true, "sdk": true, "sandboxed-vm": true, "mock": true,
}

// Skill is a named tool request attached to one phase.
type Skill struct {
	Name  string   `json:"name"`
	Tools []string `json:"tools"`
}

// Repo names the GitHub repository the pr/complete phases and rollback
// push branches to and open/merge pull requests against.
type Repo struct {
	Owner string `json:"owner,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Config is the parsed, validated contents of config.json merged with
// any config.local.json overlay.
type Config struct {
	BaseBranch     string             `json:"base_branch,omitempty"`
	BranchPrefix   string             `json:"branch_prefix,omitempty"`
	TimeoutSeconds int                `json:"timeout_seconds,omitempty"`
	Parallel       int                `json:"parallel,omitempty"`
	Agent          AgentConfig        `json:"agent"`
	Repo           Repo               `json:"repo,omitempty"`
	Skills         map[string][]Skill `json:"skills,omitempty"`
}

const (
	DefaultBaseBranch   = "main"
	DefaultBranchPrefix = "wreckit/"
	DefaultTimeout      = 30
	DefaultParallel     = 1
)

// Load reads config.json from configPath and, if localConfigPath exists,
// overlays it on top.
func Load(configPath, localConfigPath string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", configPath, err)
	}

	if localData, err := os.ReadFile(localConfigPath); err == nil {
		var overlay Config
		if err := json.Unmarshal(localData, &overlay); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", localConfigPath, err)
		}
		mergeOverlay(cfg, &overlay)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: reading %s: %w", localConfigPath, err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeOverlay applies every non-zero field of overlay onto cfg. Maps and
// slices replace wholesale rather than merging element-wise: an overlay
// field takes precedence outright rather than deep-merging with cfg's.
func mergeOverlay(cfg, overlay *Config) {
	if overlay.BaseBranch != "" {
		cfg.BaseBranch = overlay.BaseBranch
	}
	if overlay.BranchPrefix != "" {
		cfg.BranchPrefix = overlay.BranchPrefix
	}
	if overlay.TimeoutSeconds != 0 {
		cfg.TimeoutSeconds = overlay.TimeoutSeconds
	}
	if overlay.Parallel != 0 {
		cfg.Parallel = overlay.Parallel
	}
	if overlay.Agent.Kind != "" {
		cfg.Agent.Kind = overlay.Agent.Kind
	}
	if overlay.Agent.CompletionSignal != "" {
		cfg.Agent.CompletionSignal = overlay.Agent.CompletionSignal
	}
	if overlay.Agent.SandboxCommand != "" {
		cfg.Agent.SandboxCommand = overlay.Agent.SandboxCommand
	}
	if len(overlay.Agent.Env) > 0 {
		cfg.Agent.Env = overlay.Agent.Env
	}
	if len(overlay.Skills) > 0 {
		cfg.Skills = overlay.Skills
	}
	if overlay.Repo.Owner != "" {
		cfg.Repo.Owner = overlay.Repo.Owner
	}
	if overlay.Repo.Name != "" {
		cfg.Repo.Name = overlay.Repo.Name
	}
}

func applyDefaults(cfg *Config) {
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = DefaultBaseBranch
	}
	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = DefaultBranchPrefix
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = DefaultTimeout
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = DefaultParallel
	}
	if cfg.Agent.Kind == "" {
		cfg.Agent.Kind = "process"
	}
}

// SkillsFor returns the skill records declared for the named phase.
func (c *Config) SkillsFor(phase string) []Skill {
	return c.Skills[phase]
}

// MarshalIndent renders cfg back to JSON. Struct field order already
// gives stable key ordering; OrderedVars additionally
// preserves agent.env's declaration order.
func (c *Config) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
