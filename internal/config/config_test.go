package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	writeFile(t, cfgPath, `{"agent": {"kind": "process"}}`)

	cfg, err := Load(cfgPath, filepath.Join(dir, "config.local.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseBranch != DefaultBaseBranch {
		t.Errorf("base_branch = %q, want default", cfg.BaseBranch)
	}
	if cfg.BranchPrefix != DefaultBranchPrefix {
		t.Errorf("branch_prefix = %q, want default", cfg.BranchPrefix)
	}
	if cfg.Parallel != DefaultParallel {
		t.Errorf("parallel = %d, want default", cfg.Parallel)
	}
}

func TestLocalOverlayTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	localPath := filepath.Join(dir, "config.local.json")
	writeFile(t, cfgPath, `{"base_branch": "main", "parallel": 2, "agent": {"kind": "process"}}`)
	writeFile(t, localPath, `{"parallel": 5, "agent": {"kind": "mock"}}`)

	cfg, err := Load(cfgPath, localPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Parallel != 5 {
		t.Errorf("parallel = %d, want overlay value 5", cfg.Parallel)
	}
	if cfg.BaseBranch != "main" {
		t.Errorf("base_branch = %q, want base config value preserved", cfg.BaseBranch)
	}
	if cfg.Agent.Kind != "mock" {
		t.Errorf("agent.kind = %q, want overlay value mock", cfg.Agent.Kind)
	}
}

func TestLoadRejectsUnknownAgentKind(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	writeFile(t, cfgPath, `{"agent": {"kind": "telepathy"}}`)

	if _, err := Load(cfgPath, filepath.Join(dir, "config.local.json")); err == nil {
		t.Fatal("expected error for unrecognized agent.kind")
	}
}

func TestOrderedVarsPreservesDeclarationOrder(t *testing.T) {
	var ov OrderedVars
	raw := []byte(`{"ZETA":"1","ALPHA":"2","MID":"3"}`)
	if err := ov.UnmarshalJSON(raw); err != nil {
		t.Fatal(err)
	}
	wantOrder := []string{"ZETA", "ALPHA", "MID"}
	for i, w := range wantOrder {
		if ov[i].Key != w {
			t.Fatalf("ov[%d].Key = %q, want %q", i, ov[i].Key, w)
		}
	}

	out, err := ov.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(raw) {
		t.Fatalf("MarshalJSON round-trip = %s, want %s", out, raw)
	}
}

func TestValidateRejectsSkillForUnknownPhase(t *testing.T) {
	cfg := &Config{
		Agent: AgentConfig{Kind: "process"},
		Skills: map[string][]Skill{
			"not-a-phase": {{Name: "reviewer", Tools: []string{"Read"}}},
		},
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for skill attached to unknown phase")
	}
}

func TestValidateRejectsDuplicateSkillName(t *testing.T) {
	cfg := &Config{
		Agent: AgentConfig{Kind: "process"},
		Skills: map[string][]Skill{
			"research": {
				{Name: "reviewer", Tools: []string{"Read"}},
				{Name: "reviewer", Tools: []string{"Grep"}},
			},
		},
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for duplicate skill name")
	}
}
