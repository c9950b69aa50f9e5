// Package schedule decides which action a run performs on a given day.
package schedule

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xkilldash9x/rateidea-agent/internal/config"
)

// Action is one of the branches the orchestrator can take.
type Action string

const (
	ActionRate   Action = "rate"
	ActionCreate Action = "create"
	ActionIdle   Action = "idle"
)

// ParseAction validates a configured or user-supplied action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionRate, ActionCreate, ActionIdle:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q (expected rate, create or idle)", s)
	}
}

// Policy maps a point in time to an action.
type Policy interface {
	Select(now time.Time) Action
	Name() string
}

// ModuloPolicy takes a calendar field of the date modulo a fixed number and
// looks the remainder up in a rule table. Remainders without a rule idle.
type ModuloPolicy struct {
	name     string
	field    func(time.Time) int
	modulus  int
	rules    map[int]Action
	location *time.Location
}

func (p *ModuloPolicy) Name() string { return p.name }

func (p *ModuloPolicy) Select(now time.Time) Action {
	if p.location != nil {
		now = now.In(p.location)
	}
	if a, ok := p.rules[p.field(now)%p.modulus]; ok {
		return a
	}
	return ActionIdle
}

// FixedPolicy always returns the same action.
type FixedPolicy struct {
	Action Action
}

func (p FixedPolicy) Name() string { return "fixed" }
func (p FixedPolicy) Select(time.Time) Action { return p.Action }

// NewPolicy builds the policy named by cfg.Policy.
func NewPolicy(cfg config.ScheduleConfig) (Policy, error) {
	if cfg.Policy == "fixed" {
		a, err := ParseAction(cfg.Action)
		if err != nil {
			return nil, fmt.Errorf("fixed schedule: %w", err)
		}
		return FixedPolicy{Action: a}, nil
	}

	var field func(time.Time) int
	switch cfg.Policy {
	case "day_of_month", "":
		field = func(t time.Time) int { return t.Day() }
	case "day_of_year":
		field = func(t time.Time) int { return t.YearDay() }
	default:
		return nil, fmt.Errorf("unsupported schedule policy %q", cfg.Policy)
	}
	if cfg.Modulus <= 0 {
		return nil, fmt.Errorf("schedule modulus must be positive, got %d", cfg.Modulus)
	}

	rules := make(map[int]Action, len(cfg.Rules))
	for key, name := range cfg.Rules {
		rem, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("schedule rule %q: remainder is not an integer", key)
		}
		a, err := ParseAction(name)
		if err != nil {
			return nil, fmt.Errorf("schedule rule %q: %w", key, err)
		}
		rules[rem] = a
	}

	var loc *time.Location
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("schedule timezone: %w", err)
		}
		loc = l
	}

	name := cfg.Policy
	if name == "" {
		name = "day_of_month"
	}
	return &ModuloPolicy{name: name, field: field, modulus: cfg.Modulus, rules: rules, location: loc}, nil
}
