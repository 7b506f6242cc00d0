package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"jrdev/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport answers by matching a phrase in the system prompt.
type scriptedTransport struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []string
	requests  map[string][]llm.Message
}

func (s *scriptedTransport) GenerateResponse(ctx context.Context, model string, messages []llm.Message, workerID string, opts llm.StreamOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	system := messages[0].Content
	for key, resp := range s.responses {
		if strings.Contains(system, key) {
			s.calls = append(s.calls, key)
			if s.requests == nil {
				s.requests = make(map[string][]llm.Message)
			}
			s.requests[key] = messages
			return resp, nil
		}
	}
	return "", fmt.Errorf("no scripted response for prompt: %.50s", system)
}

func (s *scriptedTransport) StreamRequest(ctx context.Context, model string, messages []llm.Message, workerID string, opts llm.StreamOptions) (llm.ChunkStream, error) {
	return nil, fmt.Errorf("streaming not scripted")
}

func (s *scriptedTransport) callCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == key {
			n++
		}
	}
	return n
}

type testProfiles struct{}

func (testProfiles) Model(role string) string { return "test-model" }
func (testProfiles) ChatModel() string        { return "test-chat-model" }

// recordingSink collects UI output.
type recordingSink struct {
	mu    sync.Mutex
	lines []string
	warns []string
}

func (s *recordingSink) Print(workerID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
}
func (s *recordingSink) Markdown(workerID, text string) { s.Print(workerID, text) }
func (s *recordingSink) Warn(workerID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warns = append(s.warns, text)
}

func TestParseGetFiles(t *testing.T) {
	files, ok := parseGetFiles(`I need context. get_files ["src/a.py", "src/b.py"]`)
	require.True(t, ok)
	assert.Equal(t, []string{"src/a.py", "src/b.py"}, files)

	files, ok = parseGetFiles("get_files [main.go, util.go]")
	require.True(t, ok)
	assert.Equal(t, []string{"main.go", "util.go"}, files)

	_, ok = parseGetFiles("this task needs no files")
	assert.False(t, ok)
}

func TestParsePlanValidation(t *testing.T) {
	good := "```json\n" + `{"steps":[{"operation_type":"REPLACE","filename":"x.py","target_location":"foo","description":"fix it"}]}` + "\n```"
	steps, err := parsePlan(good)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "REPLACE", steps[0].OperationType)

	_, err = parsePlan("```json\n{\"steps\":[]}\n```")
	assert.Error(t, err)

	missing := "```json\n" + `{"steps":[{"operation_type":"ADD","filename":"x.py","target_location":"","description":"d"}]}` + "\n```"
	_, err = parsePlan(missing)
	assert.Error(t, err)

	_, err = parsePlan("no json here")
	assert.Error(t, err)
}

type scriptedPlanner struct {
	decisions []PlanDecision
	seen      [][]Step
}

func (p *scriptedPlanner) ConfirmPlan(steps []Step) (PlanDecision, error) {
	p.seen = append(p.seen, steps)
	d := p.decisions[0]
	if len(p.decisions) > 1 {
		p.decisions = p.decisions[1:]
	}
	return d, nil
}

func TestCodeAgentPlanCancel(t *testing.T) {
	transport := &scriptedTransport{responses: map[string]string{
		"Analyze the task": `get_files ["x.py"]`,
		"planning assistant": "```json\n" +
			`{"steps":[{"operation_type":"REPLACE","filename":"x.py","target_location":"foo","description":"swap"}]}` + "\n```",
	}}
	planner := &scriptedPlanner{decisions: []PlanDecision{{Choice: PlanCancel}}}
	sink := &recordingSink{}

	agent := NewCodeAgent(transport, testProfiles{}, nil, planner, sink, nil, "", "w1")
	_, err := agent.Run(context.Background(), "swap foo")
	assert.ErrorIs(t, err, ErrPlanCancelled)

	// No step execution and no validation after a cancel.
	assert.Zero(t, transport.callCount("code editor executing"))
	assert.Zero(t, transport.callCount("validation assistant"))
}

func TestCodeAgentNoCodeAction(t *testing.T) {
	transport := &scriptedTransport{responses: map[string]string{
		"Analyze the task": "This is a question, not a code task.",
	}}
	agent := NewCodeAgent(transport, testProfiles{}, nil, nil, &recordingSink{}, nil, "", "w1")
	_, err := agent.Run(context.Background(), "what is a monad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no code action requested")
}

func TestCodeAgentRepromptLoopsPlanPhase(t *testing.T) {
	transport := &scriptedTransport{responses: map[string]string{
		"Analyze the task": `get_files ["x.py"]`,
		"planning assistant": "```json\n" +
			`{"steps":[{"operation_type":"REPLACE","filename":"x.py","target_location":"foo","description":"swap"}]}` + "\n```",
	}}
	planner := &scriptedPlanner{decisions: []PlanDecision{
		{Choice: PlanReprompt, Prompt: "also rename the variable"},
		{Choice: PlanCancel},
	}}
	agent := NewCodeAgent(transport, testProfiles{}, nil, planner, &recordingSink{}, nil, "", "w1")

	_, err := agent.Run(context.Background(), "swap foo")
	assert.ErrorIs(t, err, ErrPlanCancelled)
	assert.Equal(t, 2, transport.callCount("planning assistant"))
	assert.Len(t, planner.seen, 2)
}

func TestCodeAgentUnparseablePlanReturnsToUser(t *testing.T) {
	transport := &scriptedTransport{responses: map[string]string{
		"Analyze the task":   `get_files ["x.py"]`,
		"planning assistant": "sorry, here is prose instead of a plan",
	}}
	planner := &scriptedPlanner{decisions: []PlanDecision{
		{Choice: PlanAccept},
		{Choice: PlanReprompt, Prompt: "emit the steps as json"},
		{Choice: PlanCancel},
	}}
	sink := &recordingSink{}
	agent := NewCodeAgent(transport, testProfiles{}, nil, planner, sink, nil, "", "w1")

	_, err := agent.Run(context.Background(), "swap foo")
	assert.ErrorIs(t, err, ErrPlanCancelled)

	// The bad plan is reported and review continues with an empty plan
	// instead of aborting the run.
	require.GreaterOrEqual(t, len(sink.warns), 3)
	assert.Contains(t, sink.warns[0], "plan response unparseable")
	assert.Contains(t, sink.warns[1], "no valid plan to accept")
	assert.Contains(t, sink.warns[2], "plan response unparseable")
	assert.Len(t, planner.seen, 3)
	assert.Equal(t, 2, transport.callCount("planning assistant"))
}

func TestCodeAgentEditedPlanValidated(t *testing.T) {
	transport := &scriptedTransport{responses: map[string]string{
		"Analyze the task": `get_files ["x.py"]`,
		"planning assistant": "```json\n" +
			`{"steps":[{"operation_type":"REPLACE","filename":"x.py","target_location":"foo","description":"swap"}]}` + "\n```",
	}}
	planner := &scriptedPlanner{decisions: []PlanDecision{
		{Choice: PlanEdit, Steps: []Step{{OperationType: "ADD"}}},
		{Choice: PlanCancel},
	}}
	sink := &recordingSink{}
	agent := NewCodeAgent(transport, testProfiles{}, nil, planner, sink, nil, "", "w1")

	_, err := agent.Run(context.Background(), "swap foo")
	assert.ErrorIs(t, err, ErrPlanCancelled)
	require.NotEmpty(t, sink.warns)
	assert.Contains(t, sink.warns[0], "edited plan invalid")
}
