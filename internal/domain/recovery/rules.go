package recovery

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
)

// Action is one candidate response to a failed conversion.
type Action string

const (
	ActionRetry            Action = "retry"
	ActionFallback         Action = "fallback"
	ActionValidateFirst    Action = "validate_first"
	ActionRepairDocument   Action = "repair_document"
	ActionSkipFile         Action = "skip_file"
	ActionAbortBatch       Action = "abort_batch"
	ActionUserIntervention Action = "user_intervention"
)

var allActions = []Action{
	ActionRetry, ActionFallback, ActionValidateFirst, ActionRepairDocument,
	ActionSkipFile, ActionAbortBatch, ActionUserIntervention,
}

// Actions lists every known action.
func Actions() []Action {
	return append([]Action(nil), allActions...)
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range allActions {
		if a == known {
			return true
		}
	}
	return false
}

func (a Action) String() string { return string(a) }

// ParseAction converts s into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown recovery action %q", s)
	}
	return a, nil
}

// DefaultActions apply when no rule matches a kind.
var DefaultActions = []Action{ActionFallback, ActionSkipFile}

// Rule maps a kind to its ordered actions.
type Rule struct {
	Kind    taxonomy.Kind `json:"kind" yaml:"kind" toml:"kind"`
	Actions []Action      `json:"actions" yaml:"actions" toml:"actions"`
}

// RuleTable maps error kinds to ordered action lists. Lookup tries the
// exact kind, then the first registered rule whose kind is a supertype,
// then DefaultActions.
type RuleTable struct {
	mu    sync.RWMutex
	order []taxonomy.Kind
	rules map[taxonomy.Kind][]Action
}

// NewRuleTable creates an empty table.
func NewRuleTable() *RuleTable {
	return &RuleTable{rules: make(map[taxonomy.Kind][]Action)}
}

// DefaultRuleTable returns the built-in rules. Concrete kinds are
// registered before the recoverable/unrecoverable supertypes.
func DefaultRuleTable() *RuleTable {
	t := NewRuleTable()
	t.Add(taxonomy.KindFontDescriptor, ActionValidateFirst, ActionFallback, ActionUserIntervention)
	t.Add(taxonomy.KindPDFParsing, ActionRetry, ActionFallback, ActionSkipFile)
	t.Add(taxonomy.KindConversionMemory, ActionFallback, ActionSkipFile)
	t.Add(taxonomy.KindConversionTimeout, ActionFallback, ActionSkipFile)
	t.Add(taxonomy.KindFileNotFound, ActionSkipFile)
	t.Add(taxonomy.KindUnsupportedFileType, ActionFallback, ActionSkipFile)
	t.Add(taxonomy.KindPermission, ActionUserIntervention, ActionSkipFile)
	t.Add(taxonomy.KindValidationFailed, ActionRepairDocument, ActionFallback, ActionSkipFile)
	t.Add(taxonomy.KindGenericConversion, ActionRetry, ActionFallback, ActionSkipFile)
	t.Add(taxonomy.KindRecoverable, ActionRetry, ActionFallback, ActionSkipFile)
	t.Add(taxonomy.KindUnrecoverable, ActionSkipFile)
	return t
}

// Add sets the actions for kind. Re-adding a kind replaces its actions
// but keeps its original registration position.
func (t *RuleTable) Add(kind taxonomy.Kind, actions ...Action) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.rules[kind]; !exists {
		t.order = append(t.order, kind)
	}
	t.rules[kind] = append([]Action(nil), actions...)
}

// Remove deletes the rule for kind and reports whether it existed.
func (t *RuleTable) Remove(kind taxonomy.Kind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.rules[kind]; !exists {
		return false
	}
	delete(t.rules, kind)
	for i, k := range t.order {
		if k == kind {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Lookup returns the actions for kind and the rule kind that matched.
// matched is empty when the default applied.
func (t *RuleTable) Lookup(kind taxonomy.Kind) (actions []Action, matched taxonomy.Kind) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if a, ok := t.rules[kind]; ok {
		return append([]Action(nil), a...), kind
	}
	for _, k := range t.order {
		if k != kind && taxonomy.IsA(kind, k) {
			return append([]Action(nil), t.rules[k]...), k
		}
	}
	return append([]Action(nil), DefaultActions...), ""
}

// Rules returns the table in registration order.
func (t *RuleTable) Rules() []Rule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Rule, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, Rule{Kind: k, Actions: append([]Action(nil), t.rules[k]...)})
	}
	return out
}

// Load validates rules and adds them in order.
func (t *RuleTable) Load(rules []Rule) error {
	for _, r := range rules {
		if _, ok := taxonomy.Lookup(r.Kind); !ok {
			return fmt.Errorf("rule for unknown error kind %q", r.Kind)
		}
		for _, a := range r.Actions {
			if !a.Valid() {
				return fmt.Errorf("rule for %s: unknown recovery action %q", r.Kind, a)
			}
		}
	}
	for _, r := range rules {
		t.Add(r.Kind, r.Actions...)
	}
	return nil
}
