package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		BaseBranch:     "main",
		TimeoutSeconds: 30,
		Parallel:       1,
		Agent:          AgentConfig{Kind: "process"},
	}
}

func TestValidate_RejectsUnknownAgentKind(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.Kind = "telepathy"
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "agent.kind") {
		t.Fatalf("got %v, want agent.kind error", err)
	}
}

func TestValidate_AcceptsEveryKnownAgentKind(t *testing.T) {
	for _, kind := range []string{"process", "sdk", "sandboxed-vm", "mock"} {
		cfg := validConfig()
		cfg.Agent.Kind = kind
		if err := Validate(cfg); err != nil {
			t.Fatalf("kind %q: unexpected error: %v", kind, err)
		}
	}
}

func TestValidate_RejectsNegativeTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.TimeoutSeconds = -1
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "timeout_seconds") {
		t.Fatalf("got %v, want timeout_seconds error", err)
	}
}

func TestValidate_RejectsParallelBelowOne(t *testing.T) {
	cfg := validConfig()
	cfg.Parallel = 0
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "parallel") {
		t.Fatalf("got %v, want parallel error", err)
	}
}

func TestValidate_RejectsEmptyBaseBranch(t *testing.T) {
	cfg := validConfig()
	cfg.BaseBranch = "   "
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "base_branch") {
		t.Fatalf("got %v, want base_branch error", err)
	}
}

func TestValidate_RejectsInvalidEnvName(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.Env = OrderedVars{{Key: "my-var", Value: "x"}}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "not a valid variable name") {
		t.Fatalf("got %v, want invalid variable name error", err)
	}
}

func TestValidate_RejectsDuplicateEnvName(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.Env = OrderedVars{{Key: "FOO", Value: "1"}, {Key: "FOO", Value: "2"}}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "duplicate variable") {
		t.Fatalf("got %v, want duplicate variable error", err)
	}
}

func TestValidate_AcceptsValidEnv(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.Env = OrderedVars{{Key: "_MY_VAR_2", Value: "x"}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RejectsUnrecognizedSkillPhase(t *testing.T) {
	cfg := validConfig()
	cfg.Skills = map[string][]Skill{
		"not-a-phase": {{Name: "reviewer", Tools: []string{"Read"}}},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "not a recognized phase") {
		t.Fatalf("got %v, want unrecognized phase error", err)
	}
}

func TestValidate_RejectsEmptySkillName(t *testing.T) {
	cfg := validConfig()
	cfg.Skills = map[string][]Skill{
		"research": {{Name: "", Tools: []string{"Read"}}},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "skill name is required") {
		t.Fatalf("got %v, want skill name required error", err)
	}
}

func TestValidate_RejectsDuplicateSkillName(t *testing.T) {
	cfg := validConfig()
	cfg.Skills = map[string][]Skill{
		"research": {
			{Name: "reviewer", Tools: []string{"Read"}},
			{Name: "reviewer", Tools: []string{"Grep"}},
		},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "duplicate skill") {
		t.Fatalf("got %v, want duplicate skill error", err)
	}
}

func TestValidate_RejectsEmptySkillTool(t *testing.T) {
	cfg := validConfig()
	cfg.Skills = map[string][]Skill{
		"plan": {{Name: "reviewer", Tools: []string{"  "}}},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "must be non-empty") {
		t.Fatalf("got %v, want non-empty tool error", err)
	}
}

func TestValidate_AcceptsFullyPopulatedConfig(t *testing.T) {
	cfg := &Config{
		BaseBranch:     "main",
		BranchPrefix:   "wreckit/",
		TimeoutSeconds: 60,
		Parallel:       3,
		Agent: AgentConfig{
			Kind:             "process",
			CompletionSignal: "DONE",
			Env:              OrderedVars{{Key: "FOO", Value: "bar"}},
		},
		Repo: Repo{Owner: "acme", Name: "widgets"},
		Skills: map[string][]Skill{
			"implement": {{Name: "linter", Tools: []string{"Bash"}}},
		},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidAgentKind(t *testing.T) {
	if !validAgentKind("mock") {
		t.Fatal("expected mock to be a valid agent kind")
	}
	if validAgentKind("telepathy") {
		t.Fatal("expected telepathy to be invalid")
	}
}
