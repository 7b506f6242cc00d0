package agents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"jrdev/internal/editor"
	"jrdev/internal/jsonutil"
	"jrdev/internal/llm"
	"jrdev/internal/logging"
	"jrdev/internal/message"
	"jrdev/internal/prompts"
)

const (
	// Re-issues of a step after the user requests changes.
	maxFeedbackRetries = 2
	// Model calls allowed for one step when its JSON cannot be parsed.
	maxParseAttempts = 2
)

type stepState string

const (
	stepPending       stepState = "pending"
	stepSent          stepState = "sent"
	stepParsed        stepState = "parsed"
	stepApplied       stepState = "applied"
	stepNeedsFeedback stepState = "needs_feedback"
	stepFailed        stepState = "failed"
)

// CodeAgent runs the plan-then-apply loop for one /code task.
type CodeAgent struct {
	transport Transport
	profiles  Profiles
	editor    *editor.Editor
	planner   PlanConfirmer
	sink      Sink
	project   message.ProjectContext
	root      string
	workerID  string
}

// CodeResult summarizes a finished run.
type CodeResult struct {
	StepsApplied int
	StepsFailed  int
	FilesChanged []string
	Validation   string
}

// NewCodeAgent builds an agent for a single invocation. root anchors
// relative file paths, matching the editor's root.
func NewCodeAgent(transport Transport, profiles Profiles, ed *editor.Editor, planner PlanConfirmer, sink Sink, project message.ProjectContext, root, workerID string) *CodeAgent {
	return &CodeAgent{
		transport: transport,
		profiles:  profiles,
		editor:    ed,
		planner:   planner,
		sink:      sink,
		project:   project,
		root:      root,
		workerID:  workerID,
	}
}

// abs anchors model-supplied relative paths at the workspace root, so
// reads and the editor's writes agree on location.
func (a *CodeAgent) abs(path string) string {
	if filepath.IsAbs(path) || a.root == "" {
		return path
	}
	return filepath.Join(a.root, path)
}

// Run executes the full task: intent, file request, plan, confirmation,
// per-step application, a retry pass for zero-change steps, validation.
func (a *CodeAgent) Run(ctx context.Context, task string) (*CodeResult, error) {
	model := a.profiles.Model("advanced_coding")

	files, err := a.requestFiles(ctx, model, task)
	if err != nil {
		return nil, err
	}
	logging.Coder("task requested %d files: %v", len(files), files)

	steps, err := a.confirmPlan(ctx, model, task, files)
	if err != nil {
		return nil, err
	}

	result := &CodeResult{}
	changed := make(map[string]bool)
	var retryQueue []Step

	runStep := func(step Step) error {
		outcome, err := a.executeStep(ctx, step, "")
		if err != nil {
			return err
		}
		switch outcome.state {
		case stepApplied:
			result.StepsApplied++
			for _, f := range outcome.files {
				changed[f] = true
			}
		case stepFailed:
			result.StepsFailed++
			a.sink.Warn(a.workerID, fmt.Sprintf("step failed: %s (%s)", step.Description, outcome.reason))
		case stepPending:
			// No changes produced; try once more in the retry pass.
			retryQueue = append(retryQueue, step)
		}
		return nil
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := runStep(step); err != nil {
			return result, err
		}
	}
	retries := retryQueue
	retryQueue = nil
	for _, step := range retries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := runStep(step); err != nil {
			return result, err
		}
	}
	for _, step := range retryQueue {
		result.StepsFailed++
		a.sink.Warn(a.workerID, "step produced no changes: "+step.Description)
	}

	for f := range changed {
		result.FilesChanged = append(result.FilesChanged, f)
	}
	sort.Strings(result.FilesChanged)

	if len(result.FilesChanged) > 0 {
		result.Validation = a.validate(ctx, result.FilesChanged)
	}
	return result, nil
}

// requestFiles runs the intent phase and parses the get_files token.
func (a *CodeAgent) requestFiles(ctx context.Context, model, task string) ([]string, error) {
	b := message.NewBuilder()
	if err := b.LoadSystemPrompt("analyze_task"); err != nil {
		return nil, err
	}
	if a.project != nil {
		b.AddProjectFiles(a.project)
	}
	b.StartUserSection()
	b.AppendToUserSection(task)
	b.FinalizeUserSection()

	resp, err := a.transport.GenerateResponse(ctx, model, b.Build(), a.workerID, llm.StreamOptions{})
	if err != nil {
		return nil, fmt.Errorf("intent phase: %w", err)
	}

	files, ok := parseGetFiles(resp)
	if !ok {
		return nil, fmt.Errorf("no code action requested")
	}
	return files, nil
}

var getFilesRe = regexp.MustCompile(`get_files\s*\[([^\]]*)\]`)

// parseGetFiles extracts the paths from a "get_files [p1, p2]" token.
// Entries may be quoted or bare.
func parseGetFiles(response string) ([]string, bool) {
	m := getFilesRe.FindStringSubmatch(response)
	if m == nil {
		return nil, false
	}
	var files []string
	for _, part := range strings.Split(m[1], ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part != "" {
			files = append(files, part)
		}
	}
	return files, true
}

// errPlanUnparseable marks a plan response that failed JSON validation;
// the user is asked to reprompt or cancel rather than aborting the run.
var errPlanUnparseable = errors.New("plan response unparseable")

// confirmPlan loops plan generation and human review until the user
// accepts, supplies an edited plan, or cancels.
func (a *CodeAgent) confirmPlan(ctx context.Context, model, task string, files []string) ([]Step, error) {
	extra := ""
	for {
		steps, err := a.generatePlan(ctx, model, task, files, extra)
		if err != nil {
			if !errors.Is(err, errPlanUnparseable) {
				return nil, err
			}
			// A bad plan goes back to the user, not up the stack.
			a.sink.Warn(a.workerID, err.Error())
			steps = nil
		}

		for {
			decision, err := a.planner.ConfirmPlan(steps)
			if err != nil {
				return nil, err
			}
			switch decision.Choice {
			case PlanAccept:
				if len(steps) == 0 {
					a.sink.Warn(a.workerID, "no valid plan to accept; edit, reprompt, or cancel")
					continue
				}
				return steps, nil
			case PlanEdit:
				if err := validateSteps(decision.Steps); err != nil {
					a.sink.Warn(a.workerID, "edited plan invalid: "+err.Error())
					continue
				}
				return decision.Steps, nil
			case PlanReprompt:
				extra = decision.Prompt
			case PlanCancel:
				return nil, ErrPlanCancelled
			default:
				return nil, fmt.Errorf("unknown plan choice %q", decision.Choice)
			}
			break
		}
	}
}

func (a *CodeAgent) generatePlan(ctx context.Context, model, task string, files []string, extra string) ([]Step, error) {
	system, err := prompts.Load("create_steps")
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, path := range files {
		content, err := os.ReadFile(a.abs(path))
		if err != nil {
			logging.CoderWarn("requested file unreadable: %s: %v", path, err)
			continue
		}
		fmt.Fprintf(&sb, "FILE: %s\n```\n%s\n```\n\n", path, string(content))
	}
	fmt.Fprintf(&sb, "TASK: %s", task)
	if extra != "" {
		fmt.Fprintf(&sb, "\n\nADDITIONAL INSTRUCTIONS: %s", extra)
	}

	resp, err := a.transport.GenerateResponse(ctx, model, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: sb.String()},
	}, a.workerID, llm.StreamOptions{JSONOutput: true})
	if err != nil {
		return nil, fmt.Errorf("plan phase: %w", err)
	}

	steps, err := parsePlan(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPlanUnparseable, err)
	}
	return steps, nil
}

type stepOutcome struct {
	state  stepState
	files  []string
	reason string
}

// executeStep materializes one step into file changes and applies them.
// feedback carries the user's change request from a prior round.
func (a *CodeAgent) executeStep(ctx context.Context, step Step, feedback string) (stepOutcome, error) {
	model := a.profiles.Model("advanced_coding")
	system, err := a.operationPrompt(step.OperationType)
	if err != nil {
		return stepOutcome{state: stepFailed, reason: err.Error()}, nil
	}

	var fileContent string
	if data, err := os.ReadFile(a.abs(step.Filename)); err == nil {
		fileContent = string(data)
	}

	instruction := fmt.Sprintf("apply %s to %s@%s to %s",
		step.OperationType, step.Filename, step.TargetLocation, step.Description)
	if feedback != "" {
		instruction += "\n\nUSER FEEDBACK ON PREVIOUS ATTEMPT: " + feedback
	}

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: fmt.Sprintf("FILE: %s\n```\n%s\n```", step.Filename, fileContent)},
		{Role: llm.RoleUser, Content: instruction},
	}

	var changes []editor.FileChange
	for attempt := 1; ; attempt++ {
		resp, err := a.transport.GenerateResponse(ctx, model, msgs, a.workerID, llm.StreamOptions{JSONOutput: true})
		if err != nil {
			return stepOutcome{}, err
		}
		block, err := jsonutil.ExtractFenced(resp)
		if err == nil {
			changes, err = editor.ParseChanges([]byte(block))
			if err != nil && strings.Contains(err.Error(), "no changes") {
				// The model declined to change anything; retry pass handles it.
				return stepOutcome{state: stepPending}, nil
			}
		}
		if err == nil {
			break
		}
		logging.CoderWarn("step response unparseable (attempt %d): %v", attempt, err)
		if attempt >= maxParseAttempts {
			return stepOutcome{state: stepFailed, reason: "could not parse code response"}, nil
		}
	}

	if len(changes) == 0 {
		return stepOutcome{state: stepPending}, nil
	}

	result, err := a.editor.Apply(changes)
	if err != nil {
		return stepOutcome{}, err
	}
	switch result.Status {
	case editor.StatusApplied:
		return stepOutcome{state: stepApplied, files: result.FilesChanged}, nil
	case editor.StatusChangeRequested:
		if feedbackDepth(feedback) >= maxFeedbackRetries {
			return stepOutcome{state: stepFailed, reason: "change requests exhausted"}, nil
		}
		return a.executeStep(ctx, step, appendFeedback(feedback, result.RejectionReason))
	case editor.StatusRejected:
		return stepOutcome{state: stepFailed, reason: "rejected by user"}, nil
	default:
		return stepOutcome{state: stepPending}, nil
	}
}

func (a *CodeAgent) operationPrompt(op string) (string, error) {
	key := "operations/" + strings.ToLower(strings.TrimSpace(op))
	if text, err := prompts.Load(key); err == nil {
		return text, nil
	}
	// Location-addressed inserts and unknown variants share the add prompt.
	return prompts.Load("operations/add")
}

func feedbackDepth(feedback string) int {
	if feedback == "" {
		return 0
	}
	return strings.Count(feedback, "\n---\n") + 1
}

func appendFeedback(prior, next string) string {
	if prior == "" {
		return next
	}
	return prior + "\n---\n" + next
}

// validate concatenates the modified files and asks a coding model to
// check them. Returns a warning string, empty when the result is VALID.
func (a *CodeAgent) validate(ctx context.Context, files []string) string {
	system, err := prompts.Load("validate_changes")
	if err != nil {
		return "validation unavailable: " + err.Error()
	}

	var sb strings.Builder
	for _, path := range files {
		content, err := os.ReadFile(a.abs(path))
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "FILE: %s\n```\n%s\n```\n\n", path, string(content))
	}

	resp, err := a.transport.GenerateResponse(ctx, a.profiles.Model("intermediate_coding"), []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: sb.String()},
	}, a.workerID, llm.StreamOptions{})
	if err != nil {
		return "validation call failed: " + err.Error()
	}

	trimmed := strings.TrimSpace(resp)
	switch {
	case strings.HasPrefix(trimmed, "VALID"):
		return ""
	case strings.Contains(trimmed, "INVALID:"):
		idx := strings.Index(trimmed, "INVALID:")
		return strings.TrimSpace(trimmed[idx+len("INVALID:"):])
	default:
		return "validation result indeterminate"
	}
}
