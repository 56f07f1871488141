package internal

import (
	"fmt"
	"log"

	"branchhooks/scm"

	"github.com/Knetic/govaluate"
)

// Rule routes matching branch events to a topic.
type Rule struct {
	When    string   `yaml:"when"`
	Emit    string   `yaml:"emit"`
	Drivers []string `yaml:"drivers"`
}

// RuleMatch is a topic selected for an event, optionally limited to some drivers.
type RuleMatch struct {
	Topic   string
	Drivers []string
}

type compiledRule struct {
	emit    string
	drivers []string
	expr    *govaluate.EvaluableExpression
}

// ruleParameters are the names a rule expression may refer to.
var ruleParameters = map[string]struct{}{
	"scm":    {},
	"branch": {},
	"action": {},
	"create": {},
	"delete": {},
}

type RuleEngine struct {
	rules  []compiledRule
	logger *log.Logger
}

func NewRuleEngine(cfg RulesConfig) (*RuleEngine, error) {
	rules := make([]compiledRule, 0, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		expr, err := govaluate.NewEvaluableExpression(rule.When)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if cfg.Strict {
			for _, name := range expr.Vars() {
				if _, ok := ruleParameters[name]; !ok {
					return nil, fmt.Errorf("rule %d: unknown parameter %q", i, name)
				}
			}
		}
		rules = append(rules, compiledRule{emit: rule.Emit, drivers: rule.Drivers, expr: expr})
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &RuleEngine{rules: rules, logger: logger}, nil
}

// Len returns the number of compiled rules.
func (r *RuleEngine) Len() int {
	return len(r.rules)
}

// Evaluate returns the topics whose rule matches req, in rule order.
func (r *RuleEngine) Evaluate(req scm.Request) []RuleMatch {
	if len(r.rules) == 0 {
		return nil
	}

	params := map[string]interface{}{
		"scm":    req.SCM(),
		"branch": req.Branch(),
		"action": req.Action(),
		"create": req.IsCreate(),
		"delete": req.IsDelete(),
	}
	matches := make([]RuleMatch, 0, 1)
	for _, rule := range r.rules {
		result, err := rule.expr.Evaluate(params)
		if err != nil {
			r.logger.Printf("rule eval failed: %v", err)
			continue
		}
		ok, _ := result.(bool)
		if ok {
			matches = append(matches, RuleMatch{Topic: rule.emit, Drivers: rule.drivers})
		}
	}
	return matches
}
