// Package ui implements the terminal side of the confirmation and output
// capabilities: colored diffs, markdown rendering, and interactive
// prompts for diff, plan and command review.
package ui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"jrdev/internal/agents"
	"jrdev/internal/editor"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	workerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Terminal reads decisions from stdin and writes styled output. It
// implements the editor confirmer, the plan and command confirmers, and
// the agent output sink.
type Terminal struct {
	in       *bufio.Reader
	out      io.Writer
	renderer *glamour.TermRenderer
}

// NewTerminal wires a terminal over the given streams. Markdown is
// rendered with glamour when out is a TTY, passed through raw otherwise.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{in: bufio.NewReader(in), out: out}
	if f, ok := out.(*os.File); ok && isTerminal(f) {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err == nil {
			t.renderer = r
		}
	}
	return t
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Print writes a worker-tagged line.
func (t *Terminal) Print(workerID, text string) {
	fmt.Fprintf(t.out, "%s %s\n", workerStyle.Render("["+workerID+"]"), text)
}

// Markdown renders text as markdown when possible.
func (t *Terminal) Markdown(workerID, text string) {
	if t.renderer != nil {
		if rendered, err := t.renderer.Render(text); err == nil {
			fmt.Fprint(t.out, rendered)
			return
		}
	}
	t.Print(workerID, text)
}

// Warn writes a highlighted warning line.
func (t *Terminal) Warn(workerID, text string) {
	fmt.Fprintf(t.out, "%s %s\n", workerStyle.Render("["+workerID+"]"), warnStyle.Render(text))
}

// renderDiff colorizes unified diff lines.
func renderDiff(diffLines []string) string {
	var sb strings.Builder
	for _, line := range diffLines {
		switch {
		case strings.HasPrefix(line, "+"):
			sb.WriteString(addedStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			sb.WriteString(removedStyle.Render(line))
		case strings.HasPrefix(line, "@@"):
			sb.WriteString(hunkStyle.Render(line))
		default:
			sb.WriteString(line)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ReadLine prints a prompt and reads one trimmed input line. The REPL
// shares this reader so buffered input is never split across readers.
func (t *Terminal) ReadLine(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	return t.readLine()
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ConfirmChange shows a diff and collects the user's decision.
func (t *Terminal) ConfirmChange(prompt string, diffLines []string) (editor.Confirmation, error) {
	fmt.Fprintln(t.out, prompt)
	fmt.Fprint(t.out, renderDiff(diffLines))
	fmt.Fprintln(t.out, "[y]es / [n]o / [r]equest change / [e]dit / [a]ccept all?")

	for {
		answer, err := t.readLine()
		if err != nil {
			return editor.Confirmation{}, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return editor.Confirmation{Choice: editor.ChoiceYes}, nil
		case "n", "no":
			return editor.Confirmation{Choice: editor.ChoiceNo}, nil
		case "a", "accept all", "accept_all":
			return editor.Confirmation{Choice: editor.ChoiceAcceptAll}, nil
		case "r", "request":
			fmt.Fprintln(t.out, "Describe the change you want:")
			feedback, err := t.readLine()
			if err != nil {
				return editor.Confirmation{}, err
			}
			return editor.Confirmation{Choice: editor.ChoiceRequestChange, Message: feedback}, nil
		case "e", "edit":
			lines, err := t.readBlock("Enter replacement content, end with a single '.' line:")
			if err != nil {
				return editor.Confirmation{}, err
			}
			return editor.Confirmation{Choice: editor.ChoiceEdit, EditedLines: lines}, nil
		default:
			fmt.Fprintln(t.out, "Please answer y, n, r, e or a.")
		}
	}
}

func (t *Terminal) readBlock(prompt string) ([]string, error) {
	fmt.Fprintln(t.out, prompt)
	var lines []string
	for {
		line, err := t.in.ReadString('\n')
		if err != nil && line == "" {
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\n")
		if trimmed == "." {
			return lines, nil
		}
		lines = append(lines, trimmed)
	}
}

// ConfirmPlan presents numbered steps and collects the plan decision.
func (t *Terminal) ConfirmPlan(steps []agents.Step) (agents.PlanDecision, error) {
	fmt.Fprintln(t.out, "Proposed plan:")
	for i, s := range steps {
		fmt.Fprintf(t.out, "  %d. %s %s @ %s: %s\n", i+1, s.OperationType, s.Filename, s.TargetLocation, s.Description)
	}
	fmt.Fprintln(t.out, "[a]ccept / [e]dit JSON / [r]eprompt / [c]ancel?")

	for {
		answer, err := t.readLine()
		if err != nil {
			return agents.PlanDecision{}, err
		}
		switch strings.ToLower(answer) {
		case "a", "accept":
			return agents.PlanDecision{Choice: agents.PlanAccept}, nil
		case "c", "cancel":
			return agents.PlanDecision{Choice: agents.PlanCancel}, nil
		case "r", "reprompt":
			fmt.Fprintln(t.out, "Additional instructions:")
			prompt, err := t.readLine()
			if err != nil {
				return agents.PlanDecision{}, err
			}
			return agents.PlanDecision{Choice: agents.PlanReprompt, Prompt: prompt}, nil
		case "e", "edit":
			lines, err := t.readBlock("Paste the edited steps JSON array, end with a single '.' line:")
			if err != nil {
				return agents.PlanDecision{}, err
			}
			var edited []agents.Step
			if err := json.Unmarshal([]byte(strings.Join(lines, "\n")), &edited); err != nil {
				fmt.Fprintf(t.out, "Invalid JSON: %v\n", err)
				continue
			}
			return agents.PlanDecision{Choice: agents.PlanEdit, Steps: edited}, nil
		default:
			fmt.Fprintln(t.out, "Please answer a, e, r or c.")
		}
	}
}

// ConfirmCommand gates a terminal command run.
func (t *Terminal) ConfirmCommand(command string) (bool, error) {
	fmt.Fprintf(t.out, "Run command? %s [y/N] ", command)
	answer, err := t.readLine()
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}
