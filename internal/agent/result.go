package agent

import (
	"fmt"

	"github.com/scribeagent/scribe/internal/message"
)

// StepResult reports what one Step call added to the trajectory.
type StepResult struct {
	// StepIndex is the zero-based index of the step within the agent's
	// lifetime.
	StepIndex int `json:"step_index"`

	// Finished reports whether the turn is complete. When false the
	// caller is expected to call Step again, unless Exhausted is set.
	Finished bool `json:"finished"`

	// Exhausted reports that the step gave up: every allowed generation
	// called functions that do not exist. The turn cannot make progress,
	// so callers must stop stepping and report a failure instead.
	Exhausted bool `json:"exhausted,omitempty"`

	// NewMessages are the messages appended during the step, in order.
	// Never empty: every step produces at least the model's reply.
	NewMessages []message.Message `json:"new_messages"`
}

// NewStepResult validates and builds a StepResult. A step that produced
// no messages indicates an engine bug, so zero messages is an error.
func NewStepResult(stepIndex int, finished bool, newMessages []message.Message) (*StepResult, error) {
	if stepIndex < 0 {
		return nil, fmt.Errorf("agent: step index %d is negative", stepIndex)
	}
	if len(newMessages) == 0 {
		return nil, fmt.Errorf("agent: step %d produced no messages", stepIndex)
	}
	return &StepResult{
		StepIndex:   stepIndex,
		Finished:    finished,
		NewMessages: newMessages,
	}, nil
}

// LastMessage returns the final message appended during the step. For a
// finished step this is the model's answer to the user.
func (r *StepResult) LastMessage() message.Message {
	return r.NewMessages[len(r.NewMessages)-1]
}
