package message

import "encoding/json"

// Provider-specific top-level fields that must never reach storage.
// These show up when a raw provider payload (OpenAI tool_calls,
// Anthropic tool_use blocks) is passed through without conversion.
var providerFields = []string{"tool_calls", "function", "tool_use", "tool_result", "content"}

// NormalizeForStorage returns a copy of m safe for persistence: every
// part is in canonical shape, function-call arguments and
// function-response payloads satisfy the empty-object invariant, and no
// provider-specific fields remain.
//
// The function is idempotent: applying it twice yields the same result
// as applying it once.
func NormalizeForStorage(m Message) Message {
	out := Message{Role: m.Role}
	if m.Parts == nil {
		return out
	}
	out.Parts = make([]Part, 0, len(m.Parts))
	for _, p := range m.Parts {
		out.Parts = append(out.Parts, normalizePartValue(p))
	}
	return out
}

// NormalizeAll normalizes a batch of messages for storage.
func NormalizeAll(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NormalizeForStorage(m))
	}
	return out
}

// ValidateMessage fills a missing role (default user) and missing parts
// (empty sequence), then normalizes for storage.
func ValidateMessage(m Message) Message {
	if !m.Role.IsValid() {
		m.Role = RoleUser
	}
	if m.Parts == nil {
		m.Parts = []Part{}
	}
	out := NormalizeForStorage(m)
	if out.Parts == nil {
		out.Parts = []Part{}
	}
	return out
}

// PrepareForProvider prepares canonical messages for submission to a
// provider. Today every provider client consumes the canonical format
// directly, so this is a pass-through re-normalization; it exists as
// the seam where provider-specific re-encoding would live without
// touching the storage format.
func PrepareForProvider(msgs []Message, providerID string) []Message {
	_ = providerID
	return NormalizeAll(msgs)
}

// NormalizePart converts a raw part shape from any known source (stored
// history, provider payloads, transport input) into a canonical Part.
// Unrecognized shapes become an opaque part with provider-specific
// fields stripped; normalization never fails.
func NormalizePart(raw map[string]any) Part {
	switch rawString(raw, "type") {
	case string(PartText):
		return textPartFrom(raw)
	case string(PartFile):
		return filePartFrom(raw)
	case string(PartFunctionCall):
		return callPartFromCanonical(raw)
	case string(PartFunctionResponse):
		return responsePartFromCanonical(raw)
	case "tool_use":
		return callPartFromToolUse(raw)
	case "tool_result":
		return responsePartFromToolResult(raw)
	}

	// No usable type tag: detect the shape structurally.
	switch {
	case hasMap(raw, "function_call"):
		return callPartFromCanonical(raw)
	case hasMap(raw, "function"):
		return callPartFromNestedFunction(raw)
	case hasKey(raw, "tool_use"):
		return callPartFromToolUse(raw)
	case hasMap(raw, "function_response"):
		return responsePartFromCanonical(raw)
	case hasKey(raw, "tool_result"), hasKey(raw, "tool_use_id"):
		return responsePartFromToolResult(raw)
	case hasKey(raw, "text"):
		return textPartFrom(raw)
	case hasKey(raw, "file"):
		return filePartFrom(raw)
	}

	return opaquePart(raw)
}

// Source-shape translators. One per recognized shape, each mapping into
// exactly one canonical variant.

func textPartFrom(raw map[string]any) Part {
	return Part{
		Channel: channelFrom(raw),
		Type:    PartText,
		Text:    rawString(raw, "text"),
	}
}

func filePartFrom(raw map[string]any) Part {
	f := &File{}
	if fm, ok := raw["file"].(map[string]any); ok {
		f.MimeType = rawString(fm, "mimeType")
		f.Base64Data = rawString(fm, "base64Data")
		f.URL = rawString(fm, "url")
	}
	return Part{
		Channel: channelFrom(raw),
		Type:    PartFile,
		File:    f,
	}
}

// callPartFromCanonical handles the already-canonical shape and the
// legacy untagged variant that spells the payload "arguments", possibly
// as an embedded JSON string:
//
//	{type?: "function_call", function_call: {id?, name, args|arguments}}
func callPartFromCanonical(raw map[string]any) Part {
	fc, ok := raw["function_call"].(map[string]any)
	if !ok {
		return opaquePart(raw)
	}
	args, ok := fc["args"]
	if !ok {
		args = tryJSONDecode(fc["arguments"])
	}
	return Part{
		Channel: channelFrom(raw),
		Type:    PartFunctionCall,
		FunctionCall: &FunctionCall{
			ID:   rawString(fc, "id"),
			Name: rawString(fc, "name"),
			Args: coerceArgs(args),
		},
	}
}

// callPartFromToolUse handles the Anthropic content-block shape:
//
//	{type: "tool_use", id, name, input}
func callPartFromToolUse(raw map[string]any) Part {
	return Part{
		Channel: channelFrom(raw),
		Type:    PartFunctionCall,
		FunctionCall: &FunctionCall{
			ID:   rawString(raw, "id"),
			Name: rawString(raw, "name"),
			Args: coerceArgs(raw["input"]),
		},
	}
}

// callPartFromNestedFunction handles the OpenAI-style nested shape:
//
//	{id, function: {name, arguments: "<json>"|{...}}}
func callPartFromNestedFunction(raw map[string]any) Part {
	fn, ok := raw["function"].(map[string]any)
	if !ok || rawString(fn, "name") == "" {
		return opaquePart(raw)
	}
	return Part{
		Channel: channelFrom(raw),
		Type:    PartFunctionCall,
		FunctionCall: &FunctionCall{
			ID:   rawString(raw, "id"),
			Name: rawString(fn, "name"),
			Args: coerceArgs(tryJSONDecode(fn["arguments"])),
		},
	}
}

// responsePartFromCanonical handles both the canonical shape and the
// legacy variant without an explicit type tag:
//
//	{type?: "function_response", function_response: {id?, name, response|output}}
func responsePartFromCanonical(raw map[string]any) Part {
	fr, ok := raw["function_response"].(map[string]any)
	if !ok {
		return opaquePart(raw)
	}
	payload, ok := fr["response"]
	if !ok {
		payload = fr["output"]
	}
	return Part{
		Channel: channelFrom(raw),
		Type:    PartFunctionResponse,
		FunctionResponse: &FunctionResponse{
			ID:       rawString(fr, "id"),
			Name:     rawString(fr, "name"),
			Response: coerceEmptyToObject(tryJSONDecode(payload)),
		},
	}
}

// responsePartFromToolResult handles the Anthropic tool_result shape:
//
//	{type: "tool_result", tool_use_id, name?, content|output}
func responsePartFromToolResult(raw map[string]any) Part {
	payload, ok := raw["content"]
	if !ok {
		payload = raw["output"]
	}
	return Part{
		Channel: channelFrom(raw),
		Type:    PartFunctionResponse,
		FunctionResponse: &FunctionResponse{
			ID:       rawString(raw, "tool_use_id"),
			Name:     rawString(raw, "name"),
			Response: coerceEmptyToObject(tryJSONDecode(payload)),
		},
	}
}

// opaquePart wraps an unrecognized shape, stripping provider-specific
// fields so they cannot leak into storage.
func opaquePart(raw map[string]any) Part {
	cleaned := make(map[string]any, len(raw))
	for k, v := range raw {
		cleaned[k] = v
	}
	for _, field := range providerFields {
		delete(cleaned, field)
	}
	return Part{Type: PartOpaque, Opaque: cleaned}
}

// normalizePartValue enforces the canonical invariants on a typed part,
// covering parts constructed in code rather than decoded from JSON.
func normalizePartValue(p Part) Part {
	switch p.Type {
	case PartFunctionCall:
		if p.FunctionCall == nil {
			return opaquePart(nil)
		}
		fc := *p.FunctionCall
		fc.Args = coerceArgs(fc.Args)
		p.FunctionCall = &fc
	case PartFunctionResponse:
		if p.FunctionResponse == nil {
			return opaquePart(nil)
		}
		fr := *p.FunctionResponse
		fr.Response = coerceEmptyToObject(tryJSONDecode(fr.Response))
		p.FunctionResponse = &fr
	case PartText, PartFile, PartOpaque:
		// Already canonical.
	default:
		// A part with an unknown tag was constructed in code; treat it
		// like any other unrecognized shape.
		return opaquePart(p.Opaque)
	}
	return p
}

// coerceEmptyToObject applies the empty-object invariant: nil, an empty
// array, or a JSON-decodable empty-array string becomes an empty map
// (which serializes as {}). Non-empty payloads pass through unchanged,
// and strings that are not valid JSON are preserved as-is.
func coerceEmptyToObject(v any) any {
	if v == nil {
		return map[string]any{}
	}
	if s, ok := v.(string); ok {
		decoded, ok := decodeJSONString(s)
		if !ok {
			return s
		}
		v = decoded
	}
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return map[string]any{}
		}
	case map[string]any:
		if t == nil {
			return map[string]any{}
		}
	}
	return v
}

// coerceArgs converts an arbitrary arguments payload into the canonical
// object form. Values that decode to a JSON object are used directly;
// anything else non-empty is preserved under a "_raw" key rather than
// dropped, so malformed model output stays inspectable.
func coerceArgs(v any) map[string]any {
	coerced := coerceEmptyToObject(v)
	switch t := coerced.(type) {
	case map[string]any:
		return t
	default:
		return map[string]any{"_raw": t}
	}
}

// tryJSONDecode best-effort decodes a string payload as JSON. On decode
// failure (or non-string input) the original value is returned
// unchanged; malformed embedded JSON never raises.
func tryJSONDecode(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	decoded, ok := decodeJSONString(s)
	if !ok {
		return s
	}
	return decoded
}

func decodeJSONString(s string) (any, bool) {
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}

func channelFrom(raw map[string]any) Channel {
	switch rawString(raw, "channel") {
	case string(ChannelThought):
		return ChannelThought
	case string(ChannelContent):
		return ChannelContent
	}
	return ""
}

func rawString(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func hasKey(raw map[string]any, key string) bool {
	_, ok := raw[key]
	return ok
}

func hasMap(raw map[string]any, key string) bool {
	_, ok := raw[key].(map[string]any)
	return ok
}
