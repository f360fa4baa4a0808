// Package message defines the canonical conversation message model and
// the normalizer that converts provider-specific message shapes into it.
//
// Every message that enters persistent history passes through this
// package first. The canonical format is provider-agnostic: a message is
// a role plus an ordered list of typed parts, and function-call
// arguments and function-response payloads always serialize as JSON
// objects, never arrays, even when empty.
package message

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks messages authored by the end user, including the
	// function-result bundles the agent injects on the user's behalf.
	RoleUser Role = "user"

	// RoleModel marks messages produced by an LLM.
	RoleModel Role = "model"

	// RoleSystem marks system instructions.
	RoleSystem Role = "system"
)

// IsValid reports whether r is one of the three known roles.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleModel || r == RoleSystem
}

// Channel distinguishes user-visible content from model reasoning.
type Channel string

const (
	// ChannelContent is the default channel for user-visible output.
	ChannelContent Channel = "content"

	// ChannelThought carries model reasoning that is not rendered to
	// the user.
	ChannelThought Channel = "thought"
)

// PartType tags the variant of a message part.
type PartType string

const (
	PartText             PartType = "text"
	PartFile             PartType = "file"
	PartFunctionCall     PartType = "function_call"
	PartFunctionResponse PartType = "function_response"

	// PartOpaque marks a part whose shape was not recognized by the
	// normalizer. Opaque parts round-trip through storage unchanged
	// (minus provider-specific fields) so one odd historical entry
	// never blocks a conversation from loading.
	PartOpaque PartType = "opaque"
)

// FunctionCall is a model's request to invoke a named function.
type FunctionCall struct {
	// ID is the provider-assigned call identifier, when present. It is
	// preserved so the paired FunctionResponse can be correlated.
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`

	// Args always serializes as a JSON object. The normalizer coerces
	// nil and empty-array inputs to an empty map.
	Args map[string]any `json:"args"`
}

// FunctionResponse is the result of executing a function call.
type FunctionResponse struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`

	// Response is the function's payload. Error results are plain
	// strings describing the failure; exactly-empty payloads are
	// coerced to an empty object.
	Response any `json:"response"`
}

// File is an inline (base64) or remote (URL) file payload.
type File struct {
	MimeType   string `json:"mimeType,omitempty"`
	Base64Data string `json:"base64Data,omitempty"`
	URL        string `json:"url,omitempty"`
}

// IsInline reports whether the file carries inline base64 data rather
// than a remote URL.
func (f File) IsInline() bool {
	return f.Base64Data != ""
}

// Part is one element of a message. It is a tagged union: exactly one
// of Text, File, FunctionCall, FunctionResponse, or Opaque is set,
// according to Type.
type Part struct {
	Channel Channel
	Type    PartType

	Text             string
	File             *File
	FunctionCall     *FunctionCall
	FunctionResponse *FunctionResponse

	// Opaque holds the cleaned raw shape for unrecognized parts.
	Opaque map[string]any
}

// Message is one turn in a conversation trajectory.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage builds a single-part text message on the content channel.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:  role,
		Parts: []Part{TextPart(text)},
	}
}

// TextPart builds a content-channel text part.
func TextPart(text string) Part {
	return Part{
		Channel: ChannelContent,
		Type:    PartText,
		Text:    text,
	}
}

// FunctionCallPart builds a content-channel function-call part with
// normalized arguments.
func FunctionCallPart(call FunctionCall) Part {
	if call.Args == nil {
		call.Args = map[string]any{}
	}
	return Part{
		Channel:      ChannelContent,
		Type:         PartFunctionCall,
		FunctionCall: &call,
	}
}

// FunctionResponsePart builds a content-channel function-response part
// with a normalized payload.
func FunctionResponsePart(resp FunctionResponse) Part {
	resp.Response = coerceEmptyToObject(resp.Response)
	return Part{
		Channel:          ChannelContent,
		Type:             PartFunctionResponse,
		FunctionResponse: &resp,
	}
}

// FilePart builds a content-channel file part.
func FilePart(file File) Part {
	return Part{
		Channel: ChannelContent,
		Type:    PartFile,
		File:    &file,
	}
}

// FunctionCalls returns the function-call payloads of all function-call
// parts, in part order.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if p.Type == PartFunctionCall && p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return calls
}

// Text concatenates the text of all content-channel text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText && p.Channel != ChannelThought {
			out += p.Text
		}
	}
	return out
}

// MarshalJSON renders the part in its canonical storage shape. Opaque
// parts marshal as their cleaned raw map.
func (p Part) MarshalJSON() ([]byte, error) {
	if p.Type == PartOpaque {
		if p.Opaque == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(p.Opaque)
	}

	out := map[string]any{
		"type": string(p.Type),
	}
	if p.Channel != "" {
		out["channel"] = string(p.Channel)
	}

	switch p.Type {
	case PartText:
		out["text"] = p.Text
	case PartFile:
		if p.File != nil {
			out["file"] = p.File
		}
	case PartFunctionCall:
		if p.FunctionCall != nil {
			fc := *p.FunctionCall
			if fc.Args == nil {
				fc.Args = map[string]any{}
			}
			out["function_call"] = fc
		}
	case PartFunctionResponse:
		if p.FunctionResponse != nil {
			fr := *p.FunctionResponse
			fr.Response = coerceEmptyToObject(fr.Response)
			out["function_response"] = fr
		}
	default:
		return nil, fmt.Errorf("message: cannot marshal part of type %q", p.Type)
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes a part from any of the recognized source
// shapes, normalizing it into the canonical union in the process.
func (p *Part) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("message: decode part: %w", err)
	}
	*p = NormalizePart(raw)
	return nil
}
