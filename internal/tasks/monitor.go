// Package tasks tracks background work units for the UI.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"jrdev/internal/logging"
)

// State of a tracked task.
type State string

const (
	StateActive State = "active"
	StateDone   State = "done"
	StateFailed State = "failed"
)

// Task is a snapshot of one work unit.
type Task struct {
	WorkerID     string
	Name         string
	Model        string
	InputTokens  int
	OutputTokens int
	TokPerSec    float64
	StartTime    time.Time
	State        State
	Err          error
}

// Monitor tracks active workers, implements the transport's progress
// callbacks, and sweeps finished tasks once a second.
type Monitor struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	nextID atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor starts the sweep loop.
func NewMonitor() *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		tasks:  make(map[string]*Task),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go m.sweep(ctx)
	return m
}

// Close stops the sweep loop and waits for it to exit.
func (m *Monitor) Close() {
	m.cancel()
	<-m.done
}

func (m *Monitor) sweep(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reap()
		}
	}
}

// reap drops finished tasks after logging any failure once.
func (m *Monitor) reap() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		if t.State == StateActive {
			continue
		}
		if t.State == StateFailed && t.Err != nil {
			logging.Tasks("worker %s failed: %v", id, t.Err)
		}
		delete(m.tasks, id)
	}
}

// AddTask registers a new worker. An empty id gets a generated one.
func (m *Monitor) AddTask(workerID, name string) string {
	if workerID == "" {
		workerID = fmt.Sprintf("w%d", m.nextID.Add(1))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[workerID] = &Task{
		WorkerID:  workerID,
		Name:      name,
		StartTime: time.Now(),
		State:     StateActive,
	}
	logging.TasksDebug("task added: %s (%s)", workerID, name)
	return workerID
}

// NewSubTask registers a child worker under parent, id joined by ":".
func (m *Monitor) NewSubTask(parentID, description string) string {
	childID := fmt.Sprintf("%s:%d", parentID, m.nextID.Add(1))
	return m.AddTask(childID, description)
}

// UpdateInputTokens records the prompt estimate for a worker's request.
func (m *Monitor) UpdateInputTokens(workerID, model string, tokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[workerID]; ok {
		t.Model = model
		t.InputTokens += tokens
	}
}

// UpdateOutputTokens records streaming progress for a worker.
func (m *Monitor) UpdateOutputTokens(workerID string, tokens int, tokensPerSec float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[workerID]; ok {
		t.OutputTokens = tokens
		t.TokPerSec = tokensPerSec
	}
}

// MarkDone finalizes a worker. A non-nil err marks it failed.
func (m *Monitor) MarkDone(workerID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[workerID]
	if !ok {
		return
	}
	if err != nil {
		t.State = StateFailed
		t.Err = err
		return
	}
	t.State = StateDone
}

// Active returns snapshots of the live tasks.
func (m *Monitor) Active() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Task
	for _, t := range m.tasks {
		if t.State == StateActive {
			out = append(out, *t)
		}
	}
	return out
}

// Get returns a snapshot of one task.
func (m *Monitor) Get(workerID string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[workerID]
	if !ok {
		return Task{}, false
	}
	return *t, true
}
