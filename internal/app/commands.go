package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"jrdev/internal/agents"
	"jrdev/internal/gitcmd"
	"jrdev/internal/models"
)

// Command is one /slash entry. Handlers receive the already-split args
// and the worker id tracking this dispatch.
type Command struct {
	Name    string
	Summary string
	Usage   string
	Handle  func(ctx context.Context, k *Kernel, argv []string, workerID string) error
}

// registry holds the static command table in display order.
var registry []Command

func init() {
	registry = []Command{
		{
			Name:    "/addcontext",
			Summary: "stage files (glob supported) onto the current thread",
			Usage:   "/addcontext <path-or-glob>",
			Handle:  handleAddContext,
		},
		{
			Name:    "/viewcontext",
			Summary: "show the current thread's staged and embedded files",
			Usage:   "/viewcontext",
			Handle:  handleViewContext,
		},
		{
			Name:    "/clearcontext",
			Summary: "clear staged and embedded files on the current thread",
			Usage:   "/clearcontext",
			Handle:  handleClearContext,
		},
		{
			Name:    "/clearmessages",
			Summary: "clear the current thread's message history",
			Usage:   "/clearmessages",
			Handle:  handleClearMessages,
		},
		{
			Name:    "/code",
			Summary: "run the code agent on a task",
			Usage:   "/code <task description>",
			Handle:  handleCode,
		},
		{
			Name:    "/cost",
			Summary: "show session token usage and cost per model",
			Usage:   "/cost",
			Handle:  handleCost,
		},
		{
			Name:    "/exit",
			Summary: "quit",
			Usage:   "/exit",
			Handle: func(context.Context, *Kernel, []string, string) error {
				return ErrExit
			},
		},
		{
			Name:    "/help",
			Summary: "list available commands",
			Usage:   "/help",
			Handle:  handleHelp,
		},
		{
			Name:    "/init",
			Summary: "index the project: file tree, summaries, conventions, overview",
			Usage:   "/init",
			Handle:  handleInit,
		},
		{
			Name:    "/model",
			Summary: "manage model profiles and the registry",
			Usage:   "/model list | set <model> | set <role> <model> | chat <model> | add <name> <provider> <think> <in$/1M> <out$/1M> <ctx> | remove <name>",
			Handle:  handleModel,
		},
		{
			Name:    "/models",
			Summary: "list registered models with pricing",
			Usage:   "/models",
			Handle:  handleModels,
		},
		{
			Name:    "/projectcontext",
			Summary: "control the project context index",
			Usage:   "/projectcontext on | off | status | list | view <path> | refresh <path>",
			Handle:  handleProjectContext,
		},
		{
			Name:    "/stateinfo",
			Summary: "show session state: thread, providers, profiles, context",
			Usage:   "/stateinfo",
			Handle:  handleStateInfo,
		},
		{
			Name:    "/tasks",
			Summary: "list active background tasks",
			Usage:   "/tasks",
			Handle:  handleTasks,
		},
		{
			Name:    "/cancel",
			Summary: "cancel a background task, or all of them",
			Usage:   "/cancel <worker-id> | all",
			Handle:  handleCancel,
		},
		{
			Name:    "/asyncsend",
			Summary: "send a chat prompt in the background",
			Usage:   "/asyncsend [filepath] <prompt>",
			Handle:  handleAsyncSend,
		},
		{
			Name:    "/thread",
			Summary: "manage conversation threads",
			Usage:   "/thread new [name] | list | switch <name> | rename <old> <new> | delete <name> | info | view",
			Handle:  handleThread,
		},
		{
			Name:    "/git",
			Summary: "PR summary/review of the branch diff, and git settings",
			Usage:   "/git pr summary | pr review | config get | config set <base> | config list",
			Handle:  handleGit,
		},
		{
			Name:    "/login",
			Summary: "where API keys live, and reload them",
			Usage:   "/login",
			Handle:  handleLogin,
		},
		{
			Name:    "/provider",
			Summary: "provider registry operations",
			Usage:   "/provider reload | list",
			Handle:  handleProvider,
		},
		{
			Name:    "/research",
			Summary: "answer a question using web search and scraping",
			Usage:   "/research <query>",
			Handle:  handleResearch,
		},
	}
	registryByName = make(map[string]*Command, len(registry))
	for i := range registry {
		registryByName[registry[i].Name] = &registry[i]
	}
}

var registryByName map[string]*Command

func lookup(name string) (*Command, bool) {
	c, ok := registryByName[strings.ToLower(name)]
	return c, ok
}

// Catalogue returns the command table in the form the router's prompt
// consumes.
func Catalogue() []agents.CommandInfo {
	out := make([]agents.CommandInfo, 0, len(registry))
	for _, c := range registry {
		out = append(out, agents.CommandInfo{Name: c.Name, Summary: c.Summary})
	}
	return out
}

func usageErr(name string) error {
	c, _ := lookup(name)
	return fmt.Errorf("usage: %s", c.Usage)
}

func handleAddContext(_ context.Context, k *Kernel, argv []string, workerID string) error {
	if len(argv) == 0 {
		return usageErr("/addcontext")
	}
	pattern := strings.Join(argv, " ")
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(k.root, pattern)
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("bad glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no files match %s", pattern)
	}

	th := k.store.Current()
	staged := 0
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if th.StageFile(m) {
			staged++
		}
	}
	if err := k.store.Save(th); err != nil {
		return err
	}
	k.terminal.Print(workerID, fmt.Sprintf("staged %d file(s) on thread %s", staged, th.ID))
	return nil
}

func handleViewContext(_ context.Context, k *Kernel, _ []string, workerID string) error {
	th := k.store.Current()
	var sb strings.Builder
	fmt.Fprintf(&sb, "thread %s\n", th.ID)
	sb.WriteString("staged:\n")
	for _, p := range th.Staged() {
		fmt.Fprintf(&sb, "  %s\n", p)
	}
	sb.WriteString("embedded:\n")
	for _, p := range th.Embedded() {
		fmt.Fprintf(&sb, "  %s\n", p)
	}
	k.terminal.Print(workerID, sb.String())
	return nil
}

func handleClearContext(_ context.Context, k *Kernel, _ []string, workerID string) error {
	th := k.store.Current()
	th.ClearContext()
	if err := k.store.Save(th); err != nil {
		return err
	}
	k.terminal.Print(workerID, "context cleared")
	return nil
}

func handleClearMessages(_ context.Context, k *Kernel, _ []string, workerID string) error {
	th := k.store.Current()
	th.ClearMessages()
	if err := k.store.Save(th); err != nil {
		return err
	}
	k.terminal.Print(workerID, "message history cleared")
	return nil
}

func handleCode(ctx context.Context, k *Kernel, argv []string, workerID string) error {
	if len(argv) == 0 {
		return usageErr("/code")
	}
	task := strings.Join(argv, " ")

	runCtx, cancel := context.WithCancel(ctx)
	k.registerCancel(workerID, cancel)
	defer k.unregisterCancel(workerID)
	defer cancel()

	agent := agents.NewCodeAgent(k.trans, k.profiles, k.editor, k.terminal, k.terminal, k.ctxMgr, k.root, workerID)
	result, err := agent.Run(runCtx, task)
	if errors.Is(err, agents.ErrPlanCancelled) {
		k.terminal.Print(workerID, "plan cancelled, no changes made")
		return nil
	}
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "steps applied: %d, failed: %d\n", result.StepsApplied, result.StepsFailed)
	for _, f := range result.FilesChanged {
		fmt.Fprintf(&sb, "  changed %s\n", f)
	}
	if result.Validation != "" {
		fmt.Fprintf(&sb, "validation: %s\n", result.Validation)
	}
	k.terminal.Print(workerID, sb.String())
	return nil
}

func handleCost(_ context.Context, k *Kernel, _ []string, workerID string) error {
	totals := k.tracker.Usage()
	if len(totals) == 0 {
		k.terminal.Print(workerID, "no usage this session")
		return nil
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	var grand float64
	for _, name := range names {
		counts := totals[name]
		entry, ok := k.list.Get(name)
		if !ok {
			fmt.Fprintf(&sb, "%s: in %d, out %d (no pricing)\n", name, counts.InputTokens, counts.OutputTokens)
			continue
		}
		// Stored costs are per ten million tokens.
		cost := float64(int64(counts.InputTokens)*entry.InputCost+int64(counts.OutputTokens)*entry.OutputCost) / 10_000_000
		grand += cost
		fmt.Fprintf(&sb, "%s: in %d, out %d, $%.4f\n", name, counts.InputTokens, counts.OutputTokens, cost)
	}
	fmt.Fprintf(&sb, "total: $%.4f", grand)
	k.terminal.Print(workerID, sb.String())
	return nil
}

func handleHelp(_ context.Context, k *Kernel, _ []string, workerID string) error {
	var sb strings.Builder
	for _, c := range registry {
		fmt.Fprintf(&sb, "%-16s %s\n", c.Name, c.Summary)
	}
	k.terminal.Print(workerID, sb.String())
	return nil
}

func handleInit(ctx context.Context, k *Kernel, _ []string, workerID string) error {
	runCtx, cancel := context.WithCancel(ctx)
	k.registerCancel(workerID, cancel)
	defer k.unregisterCancel(workerID)
	defer cancel()

	k.terminal.Print(workerID, "indexing project, this runs several model calls...")
	if err := k.ctxMgr.Init(runCtx, workerID); err != nil {
		return err
	}
	k.terminal.Print(workerID, "project context ready (/projectcontext status)")
	return nil
}

func handleModel(_ context.Context, k *Kernel, argv []string, workerID string) error {
	if len(argv) == 0 {
		argv = []string{"list"}
	}
	switch argv[0] {
	case "list":
		var sb strings.Builder
		for _, p := range k.profiles.Profiles() {
			fmt.Fprintf(&sb, "%-20s %s\n", p.Role, p.Model)
		}
		fmt.Fprintf(&sb, "%-20s %s\n", "chat", k.profiles.ChatModel())
		k.terminal.Print(workerID, sb.String())
		return nil
	case "set":
		switch len(argv) {
		case 2:
			// set <model> picks the chat model.
			if err := k.profiles.SetChatModel(argv[1]); err != nil {
				return err
			}
			k.terminal.Print(workerID, "chat model -> "+argv[1])
			return nil
		case 3:
			if err := k.profiles.SetProfile(argv[1], argv[2]); err != nil {
				return err
			}
			k.terminal.Print(workerID, fmt.Sprintf("%s -> %s", argv[1], argv[2]))
			return nil
		default:
			return usageErr("/model")
		}
	case "chat":
		if len(argv) != 2 {
			return usageErr("/model")
		}
		if err := k.profiles.SetChatModel(argv[1]); err != nil {
			return err
		}
		k.terminal.Print(workerID, "chat model -> "+argv[1])
		return nil
	case "add":
		entry, err := parseModelEntry(argv[1:])
		if err != nil {
			return err
		}
		if err := k.list.Add(entry); err != nil {
			return err
		}
		k.terminal.Print(workerID, "added "+entry.Name)
		return nil
	case "remove":
		if len(argv) != 2 {
			return usageErr("/model")
		}
		if err := k.list.Remove(argv[1]); err != nil {
			return err
		}
		k.terminal.Print(workerID, "removed "+argv[1])
		return nil
	default:
		return usageErr("/model")
	}
}

// parseModelEntry parses: <name> <provider> <think> <in$/1M> <out$/1M> <ctx>.
func parseModelEntry(argv []string) (models.ModelEntry, error) {
	if len(argv) != 6 {
		return models.ModelEntry{}, fmt.Errorf("usage: /model add <name> <provider> <think> <in$/1M> <out$/1M> <ctx>")
	}
	think, err := strconv.ParseBool(argv[2])
	if err != nil {
		return models.ModelEntry{}, fmt.Errorf("think must be true or false: %q", argv[2])
	}
	inCost, err := strconv.ParseFloat(argv[3], 64)
	if err != nil {
		return models.ModelEntry{}, fmt.Errorf("bad input cost %q: %w", argv[3], err)
	}
	outCost, err := strconv.ParseFloat(argv[4], 64)
	if err != nil {
		return models.ModelEntry{}, fmt.Errorf("bad output cost %q: %w", argv[4], err)
	}
	ctxTokens, err := strconv.Atoi(argv[5])
	if err != nil {
		return models.ModelEntry{}, fmt.Errorf("bad context window %q: %w", argv[5], err)
	}
	return models.ModelEntry{
		Name:          argv[0],
		Provider:      argv[1],
		IsThink:       think,
		InputCost:     models.CostPerTenMillion(inCost),
		OutputCost:    models.CostPerTenMillion(outCost),
		ContextTokens: ctxTokens,
	}, nil
}

func handleModels(_ context.Context, k *Kernel, _ []string, workerID string) error {
	var sb strings.Builder
	for _, e := range k.list.Models() {
		think := ""
		if e.IsThink {
			think = " [think]"
		}
		fmt.Fprintf(&sb, "%-40s %-12s in $%.2f/1M out $%.2f/1M ctx %d%s\n",
			e.Name, e.Provider,
			models.DisplayCostPerMillion(e.InputCost),
			models.DisplayCostPerMillion(e.OutputCost),
			e.ContextTokens, think)
	}
	k.terminal.Print(workerID, sb.String())
	return nil
}

func handleProjectContext(ctx context.Context, k *Kernel, argv []string, workerID string) error {
	if len(argv) == 0 {
		argv = []string{"status"}
	}
	switch argv[0] {
	case "on":
		k.ctxMgr.SetEnabled(true)
		k.terminal.Print(workerID, "project context enabled")
		return nil
	case "off":
		k.ctxMgr.SetEnabled(false)
		k.terminal.Print(workerID, "project context disabled")
		return nil
	case "status":
		indexed := k.ctxMgr.Index().FilePaths()
		outdated := k.ctxMgr.Index().OutdatedFiles()
		msg := fmt.Sprintf("enabled: %v, indexed files: %d, outdated: %d",
			k.ctxMgr.Enabled(), len(indexed), len(outdated))
		if k.watcher != nil {
			if stale := k.watcher.Stale(); len(stale) > 0 {
				msg += fmt.Sprintf(", changed since index: %s", strings.Join(stale, ", "))
			}
		}
		k.terminal.Print(workerID, msg)
		return nil
	case "list":
		outdated := make(map[string]bool)
		for _, p := range k.ctxMgr.Index().OutdatedFiles() {
			outdated[p] = true
		}
		var sb strings.Builder
		for _, p := range k.ctxMgr.Index().FilePaths() {
			mark := ""
			if outdated[p] {
				mark = " (outdated)"
			}
			fmt.Fprintf(&sb, "%s%s\n", p, mark)
		}
		k.terminal.Print(workerID, sb.String())
		return nil
	case "view":
		if len(argv) != 2 {
			return usageErr("/projectcontext")
		}
		summary, err := k.ctxMgr.Summary(argv[1])
		if err != nil {
			return err
		}
		k.terminal.Markdown(workerID, summary)
		return nil
	case "refresh":
		if len(argv) != 2 {
			return usageErr("/projectcontext")
		}
		if err := k.ctxMgr.GenerateContext(ctx, argv[1], workerID); err != nil {
			return err
		}
		if k.watcher != nil {
			k.watcher.Reset(argv[1])
		}
		k.terminal.Print(workerID, "refreshed "+argv[1])
		return nil
	default:
		return usageErr("/projectcontext")
	}
}

func handleStateInfo(_ context.Context, k *Kernel, _ []string, workerID string) error {
	th := k.store.Current()
	msgs, staged, embedded := th.Stats()
	var sb strings.Builder
	fmt.Fprintf(&sb, "workspace: %s\n", k.root)
	fmt.Fprintf(&sb, "thread: %s (%d messages, %d staged, %d embedded)\n",
		th.ID, msgs, staged, embedded)
	var active []string
	for _, p := range k.registry.Active() {
		active = append(active, p.Name)
	}
	fmt.Fprintf(&sb, "providers: %s\n", strings.Join(active, ", "))
	for _, p := range k.profiles.Profiles() {
		fmt.Fprintf(&sb, "profile %s: %s\n", p.Role, p.Model)
	}
	fmt.Fprintf(&sb, "chat model: %s\n", k.profiles.ChatModel())
	fmt.Fprintf(&sb, "project context: %v (%d files indexed)\n",
		k.ctxMgr.Enabled(), len(k.ctxMgr.Index().FilePaths()))
	fmt.Fprintf(&sb, "git base branch: %s", k.gitCfg.BaseBranch)
	k.terminal.Print(workerID, sb.String())
	return nil
}

func handleTasks(_ context.Context, k *Kernel, _ []string, workerID string) error {
	active := k.monitor.Active()
	if len(active) == 0 {
		k.terminal.Print(workerID, "no active tasks")
		return nil
	}
	sort.Slice(active, func(i, j int) bool { return active[i].WorkerID < active[j].WorkerID })
	var sb strings.Builder
	for _, t := range active {
		fmt.Fprintf(&sb, "%-12s %-30s %s in %d out %d (%.0f tok/s)\n",
			t.WorkerID, t.Name, t.Model, t.InputTokens, t.OutputTokens, t.TokPerSec)
	}
	k.terminal.Print(workerID, sb.String())
	return nil
}

func handleCancel(_ context.Context, k *Kernel, argv []string, workerID string) error {
	if len(argv) != 1 {
		return usageErr("/cancel")
	}
	if argv[0] == "all" {
		k.CancelAll()
		k.terminal.Print(workerID, "cancelled all background tasks")
		return nil
	}
	if !k.Cancel(argv[0]) {
		return fmt.Errorf("no cancellable task %s", argv[0])
	}
	k.terminal.Print(workerID, "cancelled "+argv[0])
	return nil
}

func handleAsyncSend(_ context.Context, k *Kernel, argv []string, workerID string) error {
	if len(argv) == 0 {
		return usageErr("/asyncsend")
	}
	th := k.store.Current()

	// A leading existing file path is staged before the send.
	if len(argv) > 1 {
		candidate := argv[0]
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(k.root, candidate)
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			th.StageFile(candidate)
			argv = argv[1:]
		}
	}
	prompt := strings.Join(argv, " ")

	asyncID := k.monitor.AddTask("", "async chat")
	runCtx, cancel := context.WithCancel(context.Background())
	k.registerCancel(asyncID, cancel)
	go func() {
		defer cancel()
		defer k.unregisterCancel(asyncID)
		err := k.Chat(runCtx, th, prompt, asyncID)
		k.monitor.MarkDone(asyncID, err)
		if err != nil {
			k.terminal.Warn(asyncID, "async send failed: "+err.Error())
		}
	}()

	k.terminal.Print(workerID, "sending in background as "+asyncID)
	return nil
}

func handleThread(_ context.Context, k *Kernel, argv []string, workerID string) error {
	if len(argv) == 0 {
		argv = []string{"list"}
	}
	switch argv[0] {
	case "new":
		name := ""
		if len(argv) > 1 {
			name = argv[1]
		}
		id, err := k.store.CreateThread(name)
		if err != nil {
			return err
		}
		if err := k.store.Switch(id); err != nil {
			return err
		}
		k.terminal.Print(workerID, "created and switched to "+id)
		return nil
	case "list":
		var sb strings.Builder
		for i, id := range k.store.List() {
			marker := "  "
			if i == 0 {
				marker = "* "
			}
			fmt.Fprintf(&sb, "%s%s\n", marker, id)
		}
		k.terminal.Print(workerID, sb.String())
		return nil
	case "switch":
		if len(argv) != 2 {
			return usageErr("/thread")
		}
		if err := k.store.Switch(argv[1]); err != nil {
			return err
		}
		k.terminal.Print(workerID, "switched to "+argv[1])
		return nil
	case "rename":
		if len(argv) != 3 {
			return usageErr("/thread")
		}
		if err := k.store.Rename(argv[1], argv[2]); err != nil {
			return err
		}
		k.terminal.Print(workerID, fmt.Sprintf("renamed %s to %s", argv[1], argv[2]))
		return nil
	case "delete":
		if len(argv) != 2 {
			return usageErr("/thread")
		}
		if err := k.store.Delete(argv[1]); err != nil {
			return err
		}
		k.terminal.Print(workerID, "deleted "+argv[1])
		return nil
	case "info":
		th := k.store.Current()
		msgs, staged, embedded := th.Stats()
		k.terminal.Print(workerID, fmt.Sprintf(
			"thread %s: %d messages, %d staged, %d embedded, created %s",
			th.ID, msgs, staged, embedded,
			th.CreatedAt.Format("2006-01-02 15:04")))
		return nil
	case "view":
		th := k.store.Current()
		var sb strings.Builder
		for _, m := range th.History() {
			fmt.Fprintf(&sb, "[%s] %s\n", m.Role, m.Content)
		}
		k.terminal.Print(workerID, sb.String())
		return nil
	default:
		return usageErr("/thread")
	}
}

func handleGit(ctx context.Context, k *Kernel, argv []string, workerID string) error {
	if len(argv) < 2 {
		return usageErr("/git")
	}
	switch argv[0] {
	case "pr":
		reviewer := gitcmd.NewReviewer(k.root, k.gitCfg.BaseBranch, k.trans, k.profiles)
		var (
			text string
			err  error
		)
		switch argv[1] {
		case "summary":
			text, err = reviewer.Summary(ctx, workerID)
		case "review":
			text, err = reviewer.Review(ctx, workerID)
		default:
			return usageErr("/git")
		}
		if err != nil {
			return err
		}
		k.terminal.Markdown(workerID, text)
		return nil
	case "config":
		switch argv[1] {
		case "get", "list":
			k.terminal.Print(workerID, "base_branch = "+k.gitCfg.BaseBranch)
			return nil
		case "set":
			if len(argv) != 3 {
				return usageErr("/git")
			}
			k.gitCfg.BaseBranch = argv[2]
			if err := gitcmd.SaveConfig(filepath.Join(k.root, ".jrdev"), k.gitCfg); err != nil {
				return err
			}
			k.terminal.Print(workerID, "base_branch = "+argv[2])
			return nil
		default:
			return usageErr("/git")
		}
	default:
		return usageErr("/git")
	}
}

func handleLogin(_ context.Context, k *Kernel, _ []string, workerID string) error {
	k.terminal.Print(workerID, fmt.Sprintf(
		"API keys are read from %s (OPEN_ROUTER_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY, VENICE_API_KEY, DEEPSEEK_API_KEY).\nReloading keys now.",
		k.envPath))
	if err := k.ReloadKeys(); err != nil {
		return err
	}
	var active []string
	for _, p := range k.registry.Active() {
		active = append(active, p.Name)
	}
	k.terminal.Print(workerID, "active providers: "+strings.Join(active, ", "))
	return nil
}

func handleProvider(_ context.Context, k *Kernel, argv []string, workerID string) error {
	if len(argv) == 0 {
		argv = []string{"list"}
	}
	switch argv[0] {
	case "reload":
		if err := k.ReloadKeys(); err != nil {
			return err
		}
		k.terminal.Print(workerID, "provider clients rebuilt")
		return nil
	case "list":
		active := make(map[string]bool)
		for _, p := range k.registry.Active() {
			active[p.Name] = true
		}
		var sb strings.Builder
		for _, p := range k.registry.Providers() {
			state := "inactive (set " + p.EnvKey + ")"
			if active[p.Name] {
				state = "active"
			}
			fmt.Fprintf(&sb, "%-14s %s\n", p.Name, state)
		}
		k.terminal.Print(workerID, sb.String())
		return nil
	default:
		return usageErr("/provider")
	}
}

func handleResearch(ctx context.Context, k *Kernel, argv []string, workerID string) error {
	if len(argv) == 0 {
		return usageErr("/research")
	}
	query := strings.Join(argv, " ")

	runCtx, cancel := context.WithCancel(ctx)
	k.registerCancel(workerID, cancel)
	defer k.unregisterCancel(workerID)
	defer cancel()

	agent := agents.NewResearchAgent(k.trans, k.profiles, agents.NewWebTools(), k.terminal, workerID)
	summary, err := agent.Run(runCtx, query)
	if err != nil {
		return err
	}
	k.terminal.Markdown(workerID, summary)

	th := k.store.Current()
	th.AppendMessage("user", "/research "+query)
	th.AppendMessage("assistant", summary)
	return k.store.Save(th)
}
