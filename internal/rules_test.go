package internal

import (
	"testing"

	"branchhooks/scm"
)

// TestRuleEngineEvaluate tests that the rule engine routes on the derived classification.
func TestRuleEngineEvaluate(t *testing.T) {
	cfg := RulesConfig{
		Rules: []Rule{
			{When: "create", Emit: "branch.created"},
			{When: "delete", Emit: "branch.deleted"},
			{When: "action == 'UPDATE'", Emit: "branch.updated"},
		},
	}

	engine, err := NewRuleEngine(cfg)
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}

	cases := []struct {
		action string
		topic  string
	}{
		{scm.ActionAdd, "branch.created"},
		{scm.ActionDelete, "branch.deleted"},
		{"UPDATE", "branch.updated"},
	}
	for _, tc := range cases {
		matches := engine.Evaluate(scm.NewRequest("git", "main", tc.action))
		if len(matches) != 1 {
			t.Fatalf("%s: expected 1 topic, got %d", tc.action, len(matches))
		}
		if matches[0].Topic != tc.topic {
			t.Fatalf("%s: expected topic %s, got %q", tc.action, tc.topic, matches[0].Topic)
		}
	}

	if matches := engine.Evaluate(scm.NewRequest("git", "main", "RENAME")); len(matches) != 0 {
		t.Fatalf("expected no topics for unknown action, got %v", matches)
	}
}

// TestRuleEngineBranchPattern tests regex matching on branch names.
func TestRuleEngineBranchPattern(t *testing.T) {
	engine, err := NewRuleEngine(RulesConfig{
		Rules: []Rule{
			{When: "create && branch =~ '^feature/'", Emit: "feature.created", Drivers: []string{"amqp", "http"}},
			{When: "scm == 'git'", Emit: "git.all"},
		},
	})
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}

	matches := engine.Evaluate(scm.NewRequest("git", "feature/1337-coolfeature", scm.ActionAdd))
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Topic != "feature.created" || len(matches[0].Drivers) != 2 {
		t.Fatalf("unexpected first match: %+v", matches[0])
	}
	if matches[1].Topic != "git.all" {
		t.Fatalf("unexpected second match: %+v", matches[1])
	}

	matches = engine.Evaluate(scm.NewRequest("git", "release/2.0", scm.ActionAdd))
	if len(matches) != 1 || matches[0].Topic != "git.all" {
		t.Fatalf("expected only git.all, got %+v", matches)
	}
}

// TestRuleEngineEvaluateMissingParameter tests that a rule referring to an unknown name never matches.
func TestRuleEngineEvaluateMissingParameter(t *testing.T) {
	engine, err := NewRuleEngine(RulesConfig{
		Rules: []Rule{
			{When: "repository == 'core'", Emit: "never"},
		},
	})
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}

	if matches := engine.Evaluate(scm.NewRequest("git", "main", scm.ActionAdd)); len(matches) != 0 {
		t.Fatalf("expected no topics, got %d", len(matches))
	}
}

func TestRuleEngineStrict(t *testing.T) {
	_, err := NewRuleEngine(RulesConfig{
		Strict: true,
		Rules:  []Rule{{When: "repository == 'core'", Emit: "never"}},
	})
	if err == nil {
		t.Fatalf("expected strict mode to reject unknown parameter")
	}

	if _, err := NewRuleEngine(RulesConfig{
		Strict: true,
		Rules:  []Rule{{When: "delete && scm == 'git'", Emit: "git.deleted"}},
	}); err != nil {
		t.Fatalf("expected known parameters to compile: %v", err)
	}
}

func TestRuleEngineInvalidExpression(t *testing.T) {
	if _, err := NewRuleEngine(RulesConfig{Rules: []Rule{{When: "create &&", Emit: "x"}}}); err == nil {
		t.Fatalf("expected compile error")
	}
}
