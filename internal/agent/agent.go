// Package agent implements the single-step agent engine that mediates
// between the model and the ability registry.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/scribeagent/scribe/internal/ability"
	"github.com/scribeagent/scribe/internal/message"
)

// DefaultMaxStepRetries bounds the number of model generations per step
// when the model keeps calling functions that do not exist.
const DefaultMaxStepRetries = 3

// GenerateRequest is the model input for one generation.
type GenerateRequest struct {
	Messages          []message.Message
	SystemInstruction string
	Declarations      []ability.Declaration
}

// Generator produces the next model message for a trajectory. Provider
// clients implement this; tests substitute scripted fakes.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (message.Message, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (message.Message, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (message.Message, error) {
	return f(ctx, req)
}

// Options configures an Agent.
type Options struct {
	// MaxStepRetries is the maximum number of generations per step.
	// Zero means DefaultMaxStepRetries.
	MaxStepRetries int

	SystemInstruction string

	Logger *slog.Logger
}

// Agent executes one conversational turn as a sequence of steps. It
// owns a private copy of the trajectory; callers observe progress
// through the returned StepResults.
type Agent struct {
	gen        Generator
	registry   *ability.Registry
	trajectory []message.Message
	opts       Options

	stepIndex int
}

// New creates an agent over a snapshot of abilities and an initial
// trajectory. The trajectory must already contain the message the
// model should respond to.
func New(gen Generator, registry *ability.Registry, trajectory []message.Message, opts Options) *Agent {
	if opts.MaxStepRetries <= 0 {
		opts.MaxStepRetries = DefaultMaxStepRetries
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if registry == nil {
		registry = ability.NewRegistry()
	}
	a := &Agent{
		gen:      gen,
		registry: registry,
		opts:     opts,
	}
	a.trajectory = append(a.trajectory, trajectory...)
	return a
}

// Trajectory returns a copy of the full trajectory accumulated so far.
func (a *Agent) Trajectory() []message.Message {
	out := make([]message.Message, len(a.trajectory))
	copy(out, a.trajectory)
	return out
}

// stepState is one node of the per-step state machine.
type stepState int

const (
	stateDrafting stepState = iota
	stateRetrying
	stateExecuting
	stateDone
)

// stepRun carries the mutable state of a single Step invocation
// between state transitions.
type stepRun struct {
	newMessages []message.Message
	pending     []pendingCall
	generations int
	finished    bool
	exhausted   bool
}

type pendingCall struct {
	call    message.FunctionCall
	ability *ability.Ability
}

// Step runs one step: generate a model message, retry while it calls
// unknown functions, then execute any valid calls and bundle their
// responses into a single user message. Generation errors are returned
// to the caller; ability failures never are, they surface as response
// payloads instead.
func (a *Agent) Step(ctx context.Context) (*StepResult, error) {
	run := &stepRun{}
	state := stateDrafting

	for state != stateDone {
		var err error
		switch state {
		case stateDrafting, stateRetrying:
			state, err = a.draft(ctx, run)
		case stateExecuting:
			state, err = a.execute(ctx, run)
		}
		if err != nil {
			return nil, err
		}
	}

	a.trajectory = append(a.trajectory, run.newMessages...)

	result, err := NewStepResult(a.stepIndex, run.finished, run.newMessages)
	if err != nil {
		return nil, err
	}
	result.Exhausted = run.exhausted
	a.stepIndex++
	return result, nil
}

// draft asks the model for its next message and classifies the result.
// A reply containing unknown function names is kept in history, answered
// with one corrective user message, and retried; the batch is not
// executed partially.
func (a *Agent) draft(ctx context.Context, run *stepRun) (stepState, error) {
	run.generations++

	input := make([]message.Message, 0, len(a.trajectory)+len(run.newMessages))
	input = append(input, a.trajectory...)
	input = append(input, run.newMessages...)

	reply, err := a.gen.Generate(ctx, GenerateRequest{
		Messages:          input,
		SystemInstruction: a.opts.SystemInstruction,
		Declarations:      a.registry.Declarations(),
	})
	if err != nil {
		return stateDone, fmt.Errorf("agent: generation failed on step %d: %w", a.stepIndex, err)
	}
	reply = message.NormalizeForStorage(reply)
	run.newMessages = append(run.newMessages, reply)

	pending, invalid := a.resolveCalls(reply)
	if len(invalid) > 0 {
		a.opts.Logger.Warn("model called unavailable functions",
			"step", a.stepIndex,
			"generation", run.generations,
			"names", invalid,
		)
		run.newMessages = append(run.newMessages, correctionMessage(invalid))
		if run.generations >= a.opts.MaxStepRetries {
			run.finished = false
			run.exhausted = true
			return stateDone, nil
		}
		return stateRetrying, nil
	}

	if len(pending) == 0 {
		run.finished = a.isFinished(run.newMessages)
		return stateDone, nil
	}

	run.pending = pending
	return stateExecuting, nil
}

// execute runs the pending calls concurrently and appends their
// responses as a single user message, in the order the model requested
// them.
func (a *Agent) execute(ctx context.Context, run *stepRun) (stepState, error) {
	responses := make([]message.FunctionResponse, len(run.pending))

	var wg sync.WaitGroup
	for i, p := range run.pending {
		wg.Add(1)
		go func(i int, p pendingCall) {
			defer wg.Done()
			responses[i] = ability.Invoke(ctx, p.ability, p.call)
		}(i, p)
	}
	wg.Wait()

	parts := make([]message.Part, 0, len(responses))
	for _, resp := range responses {
		parts = append(parts, message.FunctionResponsePart(resp))
	}
	run.newMessages = append(run.newMessages, message.Message{
		Role:  message.RoleUser,
		Parts: parts,
	})
	run.pending = nil

	run.finished = a.isFinished(run.newMessages)
	return stateDone, nil
}

// resolveCalls splits a model reply's function calls into resolvable
// calls and the names that match no registered ability. Duplicate
// unknown names are kept so the correction reflects the reply verbatim.
func (a *Agent) resolveCalls(reply message.Message) ([]pendingCall, []string) {
	var pending []pendingCall
	var invalid []string
	for _, call := range reply.FunctionCalls() {
		ab := a.registry.Find(call.Name)
		if ab == nil {
			invalid = append(invalid, call.Name)
			continue
		}
		pending = append(pending, pendingCall{call: call, ability: ab})
	}
	return pending, invalid
}

// isFinished reports whether the step ended the turn: the last appended
// message must be a model message with no function calls awaiting
// responses. A trailing user message (function responses or a
// correction) always means another step is needed.
func (a *Agent) isFinished(newMessages []message.Message) bool {
	if len(newMessages) == 0 {
		return false
	}
	last := newMessages[len(newMessages)-1]
	if last.Role != message.RoleModel {
		return false
	}
	return len(last.FunctionCalls()) == 0
}

// correctionMessage builds the user message that tells the model which
// function names were unavailable and that the whole batch must be
// re-sent.
func correctionMessage(invalidNames []string) message.Message {
	var b strings.Builder
	if len(invalidNames) > 1 {
		b.WriteString("You called some functions that are not available: ")
	} else {
		b.WriteString("You called a function that is not available: ")
	}
	b.WriteString(strings.Join(invalidNames, ", "))
	b.WriteString("\n")
	b.WriteString("Please try again. Make sure to only call functions that are available.\n")
	b.WriteString("None of the function calls from your last message were executed. You must re-send all of them, including the invalid ones, in your next message.")

	return message.NewTextMessage(message.RoleUser, b.String())
}
