// Package logging provides categorized file-based logging for jrdev.
// Each category writes to its own file under <workspace>/.jrdev/logs/.
// Before Initialize is called every logger is a no-op, so library code can
// log unconditionally.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup and wiring
	CategoryAPI        Category = "api"        // LLM transport
	CategoryRouter     Category = "router"     // Router agent decisions
	CategoryCoder      Category = "coder"      // Code agent activity
	CategoryResearcher Category = "researcher" // Research agent activity
	CategoryEditor     Category = "editor"     // File-edit application
	CategoryThreads    Category = "threads"    // Thread store
	CategoryContext    Category = "context"    // Project context index
	CategoryTasks      Category = "tasks"      // Background task monitor
	CategoryCommands   Category = "commands"   // Command dispatch
)

// Logger wraps a zap sugared logger bound to one category file.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu          sync.RWMutex
	loggers     = make(map[Category]*Logger)
	logsDir     string
	debugLevel  bool
	initialized bool
)

// Initialize sets up the logging directory. Call once at startup with the
// workspace path. Debug logging is enabled by the JRDEV_DEBUG env variable
// or a later SetDebug call.
func Initialize(workspace string) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	dir := filepath.Join(workspace, ".jrdev", "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	mu.Lock()
	logsDir = dir
	debugLevel = os.Getenv("JRDEV_DEBUG") != ""
	initialized = true
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	Boot("=== jrdev logging initialized ===")
	Boot("workspace: %s", workspace)
	return nil
}

// SetDebug toggles debug-level output for all categories.
func SetDebug(enabled bool) {
	mu.Lock()
	debugLevel = enabled
	loggers = make(map[Category]*Logger)
	mu.Unlock()
}

// Get returns the logger for a category, creating it on first use.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := newLogger(category)
	loggers[category] = l
	return l
}

func newLogger(category Category) *Logger {
	if !initialized {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	path := filepath.Join(logsDir, string(category)+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", path, err)
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	level := zapcore.InfoLevel
	if debugLevel {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(file)),
		level,
	)
	sugar := zap.New(core).Named(string(category)).Sugar()
	return &Logger{category: category, sugar: sugar}
}

// Debug logs at debug level with Printf-style formatting.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs at info level with Printf-style formatting.
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs at warn level with Printf-style formatting.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs at error level with Printf-style formatting.
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes all open category loggers.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, l := range loggers {
		_ = l.sugar.Sync()
	}
}
