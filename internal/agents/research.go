package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"jrdev/internal/jsonutil"
	"jrdev/internal/llm"
	"jrdev/internal/logging"
	"jrdev/internal/prompts"
)

// Tool-loop rounds before the agent is forced to summarize.
const maxResearchIterations = 8

// ToolCall records one tool invocation within a research session, used
// for deduplication and for the final summary context.
type ToolCall struct {
	ActionType string            `json:"action_type"`
	Command    string            `json:"command"`
	Args       map[string]string `json:"args"`
	Reasoning  string            `json:"reasoning"`
	Result     string            `json:"result,omitempty"`
	HasNext    bool              `json:"has_next"`
}

func (c ToolCall) key() string {
	keys := make([]string, 0, len(c.Args))
	for k := range c.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(c.Command)
	for _, k := range keys {
		fmt.Fprintf(&sb, "|%s=%s", k, c.Args[k])
	}
	return sb.String()
}

// WebTools is the research agent's access to the outside world.
type WebTools interface {
	Search(ctx context.Context, query string) (string, error)
	Scrape(ctx context.Context, url string) (string, error)
}

// ResearchAgent drives a bounded tool loop and summarizes what it found.
type ResearchAgent struct {
	transport Transport
	profiles  Profiles
	tools     WebTools
	sink      Sink
	workerID  string
}

// NewResearchAgent builds an agent for a single query.
func NewResearchAgent(transport Transport, profiles Profiles, tools WebTools, sink Sink, workerID string) *ResearchAgent {
	return &ResearchAgent{
		transport: transport,
		profiles:  profiles,
		tools:     tools,
		sink:      sink,
		workerID:  workerID,
	}
}

// Run answers a research query. Each round the model picks a tool call or
// declares it is done; repeated (command, args) pairs are refused.
func (a *ResearchAgent) Run(ctx context.Context, query string) (string, error) {
	system, err := prompts.Load("research")
	if err != nil {
		return "", err
	}
	model := a.profiles.Model("advanced_reasoning")

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: query},
	}
	seen := make(map[string]bool)
	var history []ToolCall

	for i := 0; i < maxResearchIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := a.transport.GenerateResponse(ctx, model, msgs, a.workerID, llm.StreamOptions{JSONOutput: true})
		if err != nil {
			return "", fmt.Errorf("research round %d: %w", i+1, err)
		}

		var call ToolCall
		if err := jsonutil.UnmarshalFenced(resp, &call); err != nil {
			logging.ResearcherDebug("unparseable action, summarizing: %v", err)
			break
		}
		if call.ActionType != "tool" || !call.HasNext {
			break
		}

		if seen[call.key()] {
			msgs = append(msgs,
				llm.Message{Role: llm.RoleAssistant, Content: resp},
				llm.Message{Role: llm.RoleUser, Content: "That tool call was already made. Use its earlier result or finish."})
			continue
		}
		seen[call.key()] = true

		result, err := a.invoke(ctx, call)
		if err != nil {
			result = "TOOL ERROR: " + err.Error()
		}
		call.Result = result
		history = append(history, call)
		logging.Researcher("%s(%v): %d bytes", call.Command, call.Args, len(result))
		a.sink.Print(a.workerID, fmt.Sprintf("[research] %s: %s", call.Command, call.Reasoning))

		msgs = append(msgs,
			llm.Message{Role: llm.RoleAssistant, Content: resp},
			llm.Message{Role: llm.RoleUser, Content: "TOOL RESULT:\n" + result})
	}

	return a.summarize(ctx, model, query, history)
}

func (a *ResearchAgent) invoke(ctx context.Context, call ToolCall) (string, error) {
	switch call.Command {
	case "web_search":
		query := call.Args["query"]
		if query == "" {
			return "", fmt.Errorf("web_search requires a query argument")
		}
		return a.tools.Search(ctx, query)
	case "web_scrape":
		url := call.Args["url"]
		if url == "" {
			return "", fmt.Errorf("web_scrape requires a url argument")
		}
		return a.tools.Scrape(ctx, url)
	default:
		return "", fmt.Errorf("unknown research tool %q", call.Command)
	}
}

func (a *ResearchAgent) summarize(ctx context.Context, model, query string, history []ToolCall) (string, error) {
	system, err := prompts.Load("research_summary")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "QUERY: %s\n", query)
	for _, call := range history {
		fmt.Fprintf(&sb, "\n%s(%v):\n%s\n", call.Command, call.Args, call.Result)
	}

	summary, err := a.transport.GenerateResponse(ctx, model, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: sb.String()},
	}, a.workerID, llm.StreamOptions{})
	if err != nil {
		return "", fmt.Errorf("research summary: %w", err)
	}
	return summary, nil
}
