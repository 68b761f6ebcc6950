package recovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
)

func TestRuleTableLookupPrecedence(t *testing.T) {
	table := DefaultRuleTable()

	steps := []struct {
		name    string
		remove  taxonomy.Kind
		matched taxonomy.Kind
		actions []Action
	}{
		{
			name:    "exact kind",
			matched: taxonomy.KindFontDescriptor,
			actions: []Action{ActionValidateFirst, ActionFallback, ActionUserIntervention},
		},
		{
			name:    "nearest registered supertype",
			remove:  taxonomy.KindFontDescriptor,
			matched: taxonomy.KindPDFParsing,
			actions: []Action{ActionRetry, ActionFallback, ActionSkipFile},
		},
		{
			name:    "abstract supertype",
			remove:  taxonomy.KindPDFParsing,
			matched: taxonomy.KindRecoverable,
			actions: []Action{ActionRetry, ActionFallback, ActionSkipFile},
		},
		{
			name:    "default",
			remove:  taxonomy.KindRecoverable,
			matched: "",
			actions: DefaultActions,
		},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			if step.remove != "" {
				require.True(t, table.Remove(step.remove))
			}
			actions, matched := table.Lookup(taxonomy.KindFontDescriptor)
			assert.Equal(t, step.matched, matched)
			assert.Equal(t, step.actions, actions)
		})
	}
}

func TestRuleTableFirstRegisteredSupertypeWins(t *testing.T) {
	table := NewRuleTable()
	table.Add(taxonomy.KindRecoverable, ActionSkipFile)
	table.Add(taxonomy.KindPDFParsing, ActionRetry)

	actions, matched := table.Lookup(taxonomy.KindFontDescriptor)
	assert.Equal(t, taxonomy.KindRecoverable, matched)
	assert.Equal(t, []Action{ActionSkipFile}, actions)
}

func TestRuleTableAddKeepsPosition(t *testing.T) {
	table := NewRuleTable()
	table.Add(taxonomy.KindPDFParsing, ActionRetry)
	table.Add(taxonomy.KindRecoverable, ActionSkipFile)
	table.Add(taxonomy.KindPDFParsing, ActionFallback)

	rules := table.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, Rule{Kind: taxonomy.KindPDFParsing, Actions: []Action{ActionFallback}}, rules[0])
	assert.Equal(t, taxonomy.KindRecoverable, rules[1].Kind)
}

func TestRuleTableLookupReturnsCopy(t *testing.T) {
	table := DefaultRuleTable()

	actions, _ := table.Lookup(taxonomy.KindPDFParsing)
	actions[0] = ActionAbortBatch

	again, _ := table.Lookup(taxonomy.KindPDFParsing)
	assert.Equal(t, ActionRetry, again[0])
}

func TestRemoveRecoveryRuleRoundTrip(t *testing.T) {
	o := New(nil, nil)
	cause := taxonomy.New(taxonomy.KindFileNotFound, "gone")

	o.AddRecoveryRule(taxonomy.KindFileNotFound, ActionAbortBatch)
	_, err := o.RecoverFromError(context.Background(), cause, pdf, "/out/scan.md", nil, 3)
	assert.ErrorIs(t, err, ErrBatchAborted)

	assert.True(t, o.RemoveRecoveryRule(taxonomy.KindFileNotFound))
	assert.False(t, o.RemoveRecoveryRule(taxonomy.KindFileNotFound))

	actions, matched := o.Rules().Lookup(taxonomy.KindFileNotFound)
	assert.Equal(t, taxonomy.KindUnrecoverable, matched)
	assert.Equal(t, []Action{ActionSkipFile}, actions)

	res, err := o.RecoverFromError(context.Background(), cause, pdf, "/out/scan.md", nil, 3)
	require.NoError(t, err)
	assert.True(t, res.Skipped())

	o.AddRecoveryRule(taxonomy.KindFileNotFound, ActionAbortBatch)
	_, err = o.RecoverFromError(context.Background(), cause, pdf, "/out/scan.md", nil, 3)
	assert.ErrorIs(t, err, ErrBatchAborted)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("validate_first")
	require.NoError(t, err)
	assert.Equal(t, ActionValidateFirst, a)

	_, err = ParseAction("reboot")
	assert.Error(t, err)
}
