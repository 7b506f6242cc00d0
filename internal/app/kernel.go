// Package app wires the kernel: it owns the provider registry, model
// list, profiles, threads, context index, task monitor and editor, and
// dispatches user input to commands or the router.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"jrdev/internal/agents"
	"jrdev/internal/editor"
	"jrdev/internal/gitcmd"
	"jrdev/internal/llm"
	"jrdev/internal/logging"
	"jrdev/internal/message"
	"jrdev/internal/models"
	"jrdev/internal/projectctx"
	"jrdev/internal/tasks"
	"jrdev/internal/threads"
	"jrdev/internal/ui"
	"jrdev/internal/usage"
)

// ErrExit signals a clean shutdown request from /exit.
var ErrExit = errors.New("exit requested")

// Options configure kernel construction.
type Options struct {
	Root      string // project root; defaults to the working directory
	HomeDir   string // ~/.jrdev; defaults under the user home
	AcceptAll bool   // pre-arm diff auto-acceptance (one-shot --accept-all)
	In        io.Reader
	Out       io.Writer
}

// Kernel owns the long-lived state and hands capabilities to transient
// agents.
type Kernel struct {
	root     string
	homeDir  string
	envPath  string
	registry *llm.Registry
	list     *models.List
	profiles *models.ProfileManager
	tracker  *usage.Tracker
	trans    *llm.Transport
	store    *threads.Store
	ctxMgr   *projectctx.Manager
	watcher  *projectctx.Watcher
	monitor  *tasks.Monitor
	editor   *editor.Editor
	terminal *ui.Terminal
	gitCfg   gitcmd.Config

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New builds and wires a kernel. The dotenv file is loaded before the
// provider registry so keys are visible to client construction.
func New(opts Options) (*Kernel, error) {
	root := opts.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		root = wd
	}
	homeDir := opts.HomeDir
	if homeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		homeDir = filepath.Join(home, ".jrdev")
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	if err := logging.Initialize(root); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	logging.Boot("starting in %s", root)

	envPath := filepath.Join(homeDir, ".env")
	if err := llm.LoadEnvFile(envPath); err != nil {
		return nil, err
	}
	registry, err := llm.NewRegistry(llm.DefaultProviders())
	if err != nil {
		return nil, err
	}

	list, err := models.NewList(homeDir)
	if err != nil {
		return nil, err
	}
	profiles, err := models.NewProfileManager(homeDir, list, registry)
	if err != nil {
		return nil, err
	}

	monitor := tasks.NewMonitor()
	tracker := usage.NewTracker()
	trans := llm.NewTransport(registry, list, tracker, monitor)

	store, err := threads.NewStore(filepath.Join(root, ".jrdev", "threads"))
	if err != nil {
		return nil, err
	}
	ctxMgr, err := projectctx.NewManager(root, trans, profiles, monitor)
	if err != nil {
		return nil, err
	}
	watcher, err := projectctx.NewWatcher(root, ctxMgr.Index())
	if err != nil {
		logging.ContextWarn("file watcher unavailable: %v", err)
		watcher = nil
	}
	gitCfg, err := gitcmd.LoadConfig(filepath.Join(root, ".jrdev"))
	if err != nil {
		return nil, err
	}

	terminal := ui.NewTerminal(opts.In, opts.Out)
	ed := editor.New(root, terminal)
	ed.SetAcceptAll(opts.AcceptAll)

	if err := ensureGitignore(root); err != nil {
		logging.BootError("update .gitignore: %v", err)
	}

	return &Kernel{
		root:     root,
		homeDir:  homeDir,
		envPath:  envPath,
		registry: registry,
		list:     list,
		profiles: profiles,
		tracker:  tracker,
		trans:    trans,
		store:    store,
		ctxMgr:   ctxMgr,
		watcher:  watcher,
		monitor:  monitor,
		editor:   ed,
		terminal: terminal,
		gitCfg:   gitCfg,
		cancels:  make(map[string]context.CancelFunc),
	}, nil
}

// Close releases background resources.
func (k *Kernel) Close() {
	k.CancelAll()
	if k.watcher != nil {
		if err := k.watcher.Close(); err != nil {
			logging.ContextWarn("close watcher: %v", err)
		}
	}
	k.monitor.Close()
	logging.Sync()
}

// ensureGitignore appends a .jrdev* line when missing so the tool's
// artifacts stay out of version control.
func ensureGitignore(root string) error {
	path := filepath.Join(root, ".gitignore")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == ".jrdev*" {
			return nil
		}
	}
	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += ".jrdev*\n"
	return os.WriteFile(path, []byte(content), 0o644)
}

// registerCancel tracks a worker's cancel func for /cancel.
func (k *Kernel) registerCancel(workerID string, cancel context.CancelFunc) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cancels[workerID] = cancel
}

func (k *Kernel) unregisterCancel(workerID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.cancels, workerID)
}

// Cancel aborts one worker. Reports whether it was known.
func (k *Kernel) Cancel(workerID string) bool {
	k.mu.Lock()
	cancel, ok := k.cancels[workerID]
	delete(k.cancels, workerID)
	k.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// CancelAll aborts every tracked worker.
func (k *Kernel) CancelAll() {
	k.mu.Lock()
	cancels := k.cancels
	k.cancels = make(map[string]context.CancelFunc)
	k.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// HandleInput dispatches one line of user input: explicit /commands go
// straight to the registry, everything else through the router.
func (k *Kernel) HandleInput(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	if strings.HasPrefix(input, "/") {
		return k.Dispatch(ctx, input, "")
	}

	workerID := k.monitor.AddTask("", "route input")
	defer k.monitor.MarkDone(workerID, nil)

	router, err := agents.NewRouter(k.trans, k.profiles, k.store, Catalogue(), workerID)
	if err != nil {
		return err
	}
	decision, err := router.Route(ctx, input, k.store.Current())
	if err != nil {
		return err
	}
	switch decision.Kind {
	case agents.DecideExecute:
		return k.Dispatch(ctx, decision.CommandLine, workerID)
	case agents.DecideClarify:
		k.terminal.Print(workerID, decision.Question)
		return nil
	default:
		k.terminal.Markdown(workerID, decision.Response)
		return nil
	}
}

// Dispatch parses a "/name args..." line and runs the command.
func (k *Kernel) Dispatch(ctx context.Context, line, workerID string) error {
	argv := strings.Fields(line)
	if len(argv) == 0 {
		return nil
	}
	cmd, ok := lookup(argv[0])
	if !ok {
		return fmt.Errorf("unknown command %s (try /help)", argv[0])
	}
	if workerID == "" {
		workerID = k.monitor.AddTask("", cmd.Name)
		defer k.monitor.MarkDone(workerID, nil)
	}
	logging.Commands("%s (worker %s)", line, workerID)
	return cmd.Handle(ctx, k, argv[1:], workerID)
}

// Chat sends a prompt on a thread: staged files are embedded once, the
// response streams to the terminal, and on success the staged set moves
// to embedded.
func (k *Kernel) Chat(ctx context.Context, th *threads.Thread, prompt, workerID string) error {
	b := message.NewBuilder()
	if err := b.LoadSystemPrompt("chat"); err != nil {
		return err
	}
	if k.ctxMgr.Enabled() {
		b.AddProjectFiles(k.ctxMgr)
	}
	b.AddHistoricalMessages(th.History())
	b.SetEmbeddedFiles(th.EmbeddedCopy())
	b.AddContext(th.Staged())
	b.StartUserSection()
	b.AppendToUserSection(prompt)
	b.FinalizeUserSection()

	stream, err := k.trans.StreamRequest(ctx, k.profiles.ChatModel(), b.Build(), workerID, llm.StreamOptions{})
	if err != nil {
		return err
	}
	defer stream.Close()

	th.AppendMessage(llm.RoleUser, prompt)
	var full strings.Builder
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		full.WriteString(chunk)
		th.AppendToLastAssistant(chunk)
	}
	k.terminal.Markdown(workerID, full.String())

	th.MarkEmbedded(b.Files())
	return k.store.Save(th)
}

// ReadLine reads one line of user input through the shared terminal.
func (k *Kernel) ReadLine(prompt string) (string, error) {
	return k.terminal.ReadLine(prompt)
}

// Printf writes a plain line to the user.
func (k *Kernel) Printf(format string, args ...any) {
	k.terminal.Print("main", fmt.Sprintf(format, args...))
}

// ReloadKeys re-reads the dotenv file and rebuilds provider clients.
func (k *Kernel) ReloadKeys() error {
	if err := llm.LoadEnvFile(k.envPath); err != nil {
		return err
	}
	return k.registry.Reload()
}
