package ui

import (
	"strings"
	"testing"

	"jrdev/internal/agents"
	"jrdev/internal/editor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func term(input string) (*Terminal, *strings.Builder) {
	out := &strings.Builder{}
	return NewTerminal(strings.NewReader(input), out), out
}

func TestConfirmChangeChoices(t *testing.T) {
	cases := []struct {
		input string
		want  editor.ConfirmChoice
	}{
		{"y\n", editor.ChoiceYes},
		{"yes\n", editor.ChoiceYes},
		{"n\n", editor.ChoiceNo},
		{"a\n", editor.ChoiceAcceptAll},
	}
	for _, tc := range cases {
		tt, _ := term(tc.input)
		got, err := tt.ConfirmChange("apply?", []string{"+added"})
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Choice)
	}
}

func TestConfirmChangeRequestCollectsFeedback(t *testing.T) {
	tt, _ := term("r\nuse a helper instead\n")
	got, err := tt.ConfirmChange("apply?", nil)
	require.NoError(t, err)
	assert.Equal(t, editor.ChoiceRequestChange, got.Choice)
	assert.Equal(t, "use a helper instead", got.Message)
}

func TestConfirmChangeEditCollectsBlock(t *testing.T) {
	tt, _ := term("e\nline one\nline two\n.\n")
	got, err := tt.ConfirmChange("apply?", nil)
	require.NoError(t, err)
	assert.Equal(t, editor.ChoiceEdit, got.Choice)
	assert.Equal(t, []string{"line one", "line two"}, got.EditedLines)
}

func TestConfirmChangeRepromptsOnGarbage(t *testing.T) {
	tt, out := term("what\ny\n")
	got, err := tt.ConfirmChange("apply?", nil)
	require.NoError(t, err)
	assert.Equal(t, editor.ChoiceYes, got.Choice)
	assert.Contains(t, out.String(), "Please answer")
}

func TestConfirmPlanAcceptAndCancel(t *testing.T) {
	steps := []agents.Step{{OperationType: "ADD", Filename: "x.go", TargetLocation: "end", Description: "add helper"}}

	tt, out := term("a\n")
	got, err := tt.ConfirmPlan(steps)
	require.NoError(t, err)
	assert.Equal(t, agents.PlanAccept, got.Choice)
	assert.Contains(t, out.String(), "1. ADD x.go @ end: add helper")

	tt, _ = term("c\n")
	got, err = tt.ConfirmPlan(steps)
	require.NoError(t, err)
	assert.Equal(t, agents.PlanCancel, got.Choice)
}

func TestConfirmPlanEditParsesJSON(t *testing.T) {
	input := "e\n" +
		`[{"operation_type":"NEW","filename":"y.go","target_location":"-","description":"create"}]` +
		"\n.\n"
	tt, _ := term(input)
	got, err := tt.ConfirmPlan(nil)
	require.NoError(t, err)
	assert.Equal(t, agents.PlanEdit, got.Choice)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "NEW", got.Steps[0].OperationType)
}

func TestConfirmPlanEditRejectsBadJSONAndAsksAgain(t *testing.T) {
	tt, out := term("e\nnot json\n.\nc\n")
	got, err := tt.ConfirmPlan(nil)
	require.NoError(t, err)
	assert.Equal(t, agents.PlanCancel, got.Choice)
	assert.Contains(t, out.String(), "Invalid JSON")
}

func TestConfirmCommand(t *testing.T) {
	tt, _ := term("y\n")
	ok, err := tt.ConfirmCommand("ls -la")
	require.NoError(t, err)
	assert.True(t, ok)

	tt, _ = term("\n")
	ok, err = tt.ConfirmCommand("rm -rf /")
	require.NoError(t, err)
	assert.False(t, ok, "default is no")
}

func TestRenderDiffMarksLines(t *testing.T) {
	got := renderDiff([]string{"@@ -1,2 +1,2 @@", "-old", "+new", " ctx"})
	assert.Contains(t, got, "old")
	assert.Contains(t, got, "new")
	assert.Contains(t, got, " ctx")
}

func TestPrintTagsWorker(t *testing.T) {
	tt, out := term("")
	tt.Print("w7", "hello")
	assert.Contains(t, out.String(), "w7")
	assert.Contains(t, out.String(), "hello")
}
