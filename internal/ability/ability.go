// Package ability defines the capability registry exposed to the agent.
//
// Abilities keep their namespaced source names (e.g.
// "scribe/search-posts"); the registry derives the function identifier
// the model sees by sanitizing that name, and maps between the two in
// both directions.
package ability

import (
	"context"
	"fmt"
	"strings"

	"github.com/scribeagent/scribe/internal/message"
)

// Ability is a single capability the agent can invoke.
type Ability struct {
	// Name is the namespaced source name, e.g. "scribe/create-post-draft".
	Name        string
	Description string

	// InputSchema is a JSON Schema object describing the arguments.
	// Nil means the ability takes no arguments.
	InputSchema map[string]any

	// Permission reports whether the current caller may run the
	// ability. Nil means always permitted.
	Permission func(ctx context.Context, args map[string]any) (bool, error)

	// Execute runs the ability. The returned value becomes the
	// function-response payload.
	Execute func(ctx context.Context, args map[string]any) (any, error)
}

// Declaration is the function declaration shape sent to the model.
type Declaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SanitizeName converts a namespaced ability name into a function
// identifier models can call: "/" and "-" become "_".
func SanitizeName(name string) string {
	return strings.NewReplacer("/", "_", "-", "_").Replace(name)
}

// emptySchema is the declaration parameter block for abilities without
// an input schema.
func emptySchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}
}

// Invoke runs one function call against an ability. Permission denials
// and execution failures are not returned as errors; they become
// human-readable string payloads in the function response, so a failed
// call never aborts the conversation.
func Invoke(ctx context.Context, ab *Ability, call message.FunctionCall) message.FunctionResponse {
	resp := message.FunctionResponse{
		ID:   call.ID,
		Name: call.Name,
	}

	if ab == nil {
		resp.Response = (&ErrUnavailable{Name: call.Name}).Error()
		return resp
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	if ab.Permission != nil {
		allowed, err := ab.Permission(ctx, args)
		if err != nil {
			resp.Response = fmt.Sprintf("Error checking permission for %s: %v", call.Name, err)
			return resp
		}
		if !allowed {
			resp.Response = (&ErrPermissionDenied{Name: call.Name}).Error()
			return resp
		}
	}

	result, err := ab.Execute(ctx, args)
	if err != nil {
		resp.Response = fmt.Sprintf("Error executing %s: %v", call.Name, err)
		return resp
	}

	resp.Response = result
	return resp
}
