package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wreckit/wreckit/internal/item"
)

var validPhaseNames = map[string]bool{
	string(item.PhaseResearch):  true,
	string(item.PhasePlan):      true,
	string(item.PhaseImplement): true,
	string(item.PhasePR):        true,
	string(item.PhaseComplete):  true,
}

var envNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks cfg for structural errors. Tool-allowlist mismatches
// between a skill and its phase are a Phase Runner warning, not a load
// error, so they are not checked here.
func Validate(cfg *Config) error {
	if !validAgentKind(cfg.Agent.Kind) {
		return fmt.Errorf("config: agent.kind %q is not one of process, sdk, sandboxed-vm, mock", cfg.Agent.Kind)
	}
	if cfg.TimeoutSeconds < 0 {
		return fmt.Errorf("config: timeout_seconds must be >= 0")
	}
	if cfg.Parallel < 1 {
		return fmt.Errorf("config: parallel must be >= 1")
	}
	if strings.TrimSpace(cfg.BaseBranch) == "" {
		return fmt.Errorf("config: base_branch must be non-empty")
	}

	seenEnv := make(map[string]bool)
	for _, v := range cfg.Agent.Env {
		if !envNameRe.MatchString(v.Key) {
			return fmt.Errorf("config: agent.env: %q is not a valid variable name (must match [A-Za-z_][A-Za-z0-9_]*)", v.Key)
		}
		if seenEnv[v.Key] {
			return fmt.Errorf("config: agent.env: duplicate variable %q", v.Key)
		}
		seenEnv[v.Key] = true
	}

	for phase, skills := range cfg.Skills {
		if !validPhaseNames[phase] {
			return fmt.Errorf("config: skills: %q is not a recognized phase", phase)
		}
		seenSkill := make(map[string]bool)
		for _, sk := range skills {
			if sk.Name == "" {
				return fmt.Errorf("config: skills.%s: a skill name is required", phase)
			}
			if seenSkill[sk.Name] {
				return fmt.Errorf("config: skills.%s: duplicate skill %q", phase, sk.Name)
			}
			seenSkill[sk.Name] = true
			for _, tool := range sk.Tools {
				if strings.TrimSpace(tool) == "" {
					return fmt.Errorf("config: skills.%s.%s: tool entries must be non-empty", phase, sk.Name)
				}
			}
		}
	}

	return nil
}

func validAgentKind(kind string) bool {
	return validAgentKinds[kind]
}
