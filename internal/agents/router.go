package agents

import (
	"context"
	"fmt"
	"strings"

	"jrdev/internal/jsonutil"
	"jrdev/internal/llm"
	"jrdev/internal/logging"
	"jrdev/internal/prompts"
	"jrdev/internal/threads"
)

// routerThreadID names the router's private history thread.
const routerThreadID = "router_log"

// CommandInfo is one catalogue entry shown to the routing model.
type CommandInfo struct {
	Name    string
	Summary string
}

// DecisionKind is the router's verdict on a piece of user input.
type DecisionKind string

const (
	DecideExecute DecisionKind = "execute_command"
	DecideClarify DecisionKind = "clarify"
	DecideChat    DecisionKind = "chat"
)

// Decision is what the kernel acts on after routing.
type Decision struct {
	Kind        DecisionKind
	CommandLine string
	Question    string
	Response    string
}

// Router turns free-form user input into a command dispatch, a clarifying
// question, or a chat reply. It keeps its own persisted thread so routing
// history never pollutes the user-facing conversation.
type Router struct {
	transport Transport
	profiles  Profiles
	store     *threads.Store
	catalogue []CommandInfo
	workerID  string
}

// NewRouter loads or creates the router's private thread.
func NewRouter(transport Transport, profiles Profiles, store *threads.Store, catalogue []CommandInfo, workerID string) (*Router, error) {
	if _, ok := store.Get(routerThreadID); !ok {
		if _, err := store.CreateThread(routerThreadID); err != nil {
			return nil, fmt.Errorf("create router thread: %w", err)
		}
	}
	return &Router{
		transport: transport,
		profiles:  profiles,
		store:     store,
		catalogue: catalogue,
		workerID:  workerID,
	}, nil
}

type routerResponse struct {
	Decision string   `json:"decision"`
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	Question string   `json:"question"`
	Response string   `json:"response"`
}

// Route classifies one user input. For chat decisions the user and
// assistant turns are appended to userThread; clarify touches nothing.
func (r *Router) Route(ctx context.Context, input string, userThread *threads.Thread) (*Decision, error) {
	system, err := prompts.Load("select_command")
	if err != nil {
		return nil, err
	}

	var catalogue strings.Builder
	for _, c := range r.catalogue {
		fmt.Fprintf(&catalogue, "%s - %s\n", c.Name, c.Summary)
	}

	private, _ := r.store.Get(routerThreadID)
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleSystem, Content: "AVAILABLE COMMANDS:\n" + catalogue.String()},
	}
	if private != nil {
		msgs = append(msgs, private.History()...)
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: input})

	resp, err := r.transport.GenerateResponse(ctx, r.profiles.Model("intent_router"), msgs, r.workerID, llm.StreamOptions{JSONOutput: true})
	if err != nil {
		return nil, fmt.Errorf("router call: %w", err)
	}

	var decoded routerResponse
	if err := jsonutil.UnmarshalFenced(resp, &decoded); err != nil {
		// An unparseable verdict degrades to chat with the raw text.
		logging.RouterError("unparseable router response, treating as chat: %v", err)
		decoded = routerResponse{Decision: string(DecideChat), Response: resp}
	}

	if private != nil {
		private.AppendMessage(llm.RoleUser, input)
		private.AppendMessage(llm.RoleAssistant, resp)
		if err := r.store.Save(private); err != nil {
			logging.RouterError("persist router thread: %v", err)
		}
	}

	switch DecisionKind(decoded.Decision) {
	case DecideExecute:
		line := decoded.Command
		if len(decoded.Args) > 0 {
			line += " " + strings.Join(decoded.Args, " ")
		}
		logging.Router("dispatching: %s", line)
		return &Decision{Kind: DecideExecute, CommandLine: line}, nil
	case DecideClarify:
		return &Decision{Kind: DecideClarify, Question: decoded.Question}, nil
	case DecideChat:
		if userThread != nil {
			userThread.AppendMessage(llm.RoleUser, input)
			userThread.AppendMessage(llm.RoleAssistant, decoded.Response)
			if err := r.store.Save(userThread); err != nil {
				logging.RouterError("persist user thread: %v", err)
			}
		}
		return &Decision{Kind: DecideChat, Response: decoded.Response}, nil
	default:
		return nil, fmt.Errorf("router returned unknown decision %q", decoded.Decision)
	}
}
