package agents

import (
	"errors"
	"fmt"
	"strings"

	"jrdev/internal/jsonutil"
)

// ErrPlanCancelled reports that the user cancelled at plan review. It is
// a user decision, not a failure.
var ErrPlanCancelled = errors.New("plan cancelled")

// Step is one planned unit of work produced by the planner and later
// materialized into file changes by a per-step model call.
type Step struct {
	OperationType  string `json:"operation_type"`
	Filename       string `json:"filename"`
	TargetLocation string `json:"target_location"`
	Description    string `json:"description"`
}

// PlanChoice is the user's decision on a presented plan.
type PlanChoice string

const (
	PlanAccept   PlanChoice = "accept"
	PlanEdit     PlanChoice = "edit"
	PlanReprompt PlanChoice = "reprompt"
	PlanCancel   PlanChoice = "cancel"
)

// PlanDecision carries the choice plus its payload: edited steps for
// PlanEdit, an extra instruction for PlanReprompt.
type PlanDecision struct {
	Choice PlanChoice
	Steps  []Step
	Prompt string
}

// PlanConfirmer is the human-in-the-loop capability for plan review.
type PlanConfirmer interface {
	ConfirmPlan(steps []Step) (PlanDecision, error)
}

// CommandConfirmer gates terminal command execution.
type CommandConfirmer interface {
	ConfirmCommand(command string) (bool, error)
}

// parsePlan extracts and validates the steps from a planner response.
func parsePlan(response string) ([]Step, error) {
	var decoded struct {
		Steps []Step `json:"steps"`
	}
	if err := jsonutil.UnmarshalFenced(response, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Steps) == 0 {
		return nil, fmt.Errorf("plan contains no steps")
	}
	if err := validateSteps(decoded.Steps); err != nil {
		return nil, err
	}
	return decoded.Steps, nil
}

func validateSteps(steps []Step) error {
	for i, s := range steps {
		switch {
		case strings.TrimSpace(s.OperationType) == "":
			return fmt.Errorf("step %d missing operation_type", i+1)
		case strings.TrimSpace(s.Filename) == "":
			return fmt.Errorf("step %d missing filename", i+1)
		case strings.TrimSpace(s.TargetLocation) == "":
			return fmt.Errorf("step %d missing target_location", i+1)
		case strings.TrimSpace(s.Description) == "":
			return fmt.Errorf("step %d missing description", i+1)
		}
	}
	return nil
}
