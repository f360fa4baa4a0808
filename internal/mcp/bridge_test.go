package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/scribeagent/scribe/internal/ability"
)

func TestAbilityName(t *testing.T) {
	tests := []struct {
		server string
		tool   string
		want   string
	}{
		{"github", "create_issue", "mcp_github_create_issue"},
		{"site-tools", "flush-cache", "mcp_site_tools_flush_cache"},
		{"My Server", "Do Thing", "mcp_my_server_do_thing"},
		{"test", "UPPERCASE", "mcp_test_uppercase"},
		{"a--b", "c--d", "mcp_a_b_c_d"},
		{"special!@#", "chars$%^", "mcp_special_chars"},
	}

	for _, tt := range tests {
		t.Run(tt.server+"/"+tt.tool, func(t *testing.T) {
			if got := AbilityName(tt.server, tt.tool); got != tt.want {
				t.Errorf("AbilityName(%q, %q) = %q, want %q", tt.server, tt.tool, got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello", "hello"},
		{"Hello-World", "hello_world"},
		{"a--b", "a_b"},
		{"_leading_", "leading"},
		{"special!chars", "special_chars"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sanitize(tt.input); got != tt.want {
				t.Errorf("sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// transportWithTools returns a mock transport whose tools/list reply
// advertises one object-schema tool per given name.
func transportWithTools(names ...string) *mockTransport {
	mt := newMockTransport()
	defs := make([]ToolDefinition, len(names))
	for i, name := range names {
		defs[i] = ToolDefinition{Name: name, InputSchema: map[string]any{"type": "object"}}
	}
	mt.addResponse("tools/list", toolsListResult{Tools: defs})
	return mt
}

func bridge(t *testing.T, mt *mockTransport, server string, include, exclude []string) (*ability.Registry, int, error) {
	t.Helper()
	registry := ability.NewRegistry()
	count, err := BridgeAbilities(context.Background(), NewClient(server, mt, nil), server, registry, include, exclude, nil)
	return registry, count, err
}

func TestBridgeAbilities_RegistersEveryTool(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse("tools/list", toolsListResult{
		Tools: []ToolDefinition{
			{
				Name:        "create_issue",
				Description: "Create a GitHub issue",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title": map[string]any{"type": "string"},
						"body":  map[string]any{"type": "string"},
					},
				},
			},
			{Name: "list_issues", Description: "List open issues", InputSchema: map[string]any{"type": "object"}},
		},
	})

	registry, count, err := bridge(t, mt, "github", nil, nil)
	if err != nil {
		t.Fatalf("BridgeAbilities: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if registry.Find("mcp_github_list_issues") == nil {
		t.Error("mcp_github_list_issues missing from registry")
	}

	ab := registry.Find("mcp_github_create_issue")
	if ab == nil {
		t.Fatal("mcp_github_create_issue missing from registry")
	}
	props, ok := ab.InputSchema["properties"].(map[string]any)
	if !ok {
		t.Fatal("InputSchema lost its properties")
	}
	if _, ok := props["title"]; !ok {
		t.Error("schema properties missing 'title'")
	}
}

func TestBridgeAbilities_Filters(t *testing.T) {
	t.Run("include keeps only listed tools", func(t *testing.T) {
		mt := transportWithTools("create_issue", "close_issue", "list_issues")
		registry, count, err := bridge(t, mt, "github", []string{"create_issue", "list_issues"}, nil)
		if err != nil {
			t.Fatalf("BridgeAbilities: %v", err)
		}
		if count != 2 {
			t.Errorf("count = %d, want 2", count)
		}
		if registry.Find("mcp_github_close_issue") != nil {
			t.Error("close_issue escaped the include filter")
		}
	})

	t.Run("exclude drops listed tools", func(t *testing.T) {
		mt := transportWithTools("create_issue", "close_issue")
		registry, count, err := bridge(t, mt, "github", nil, []string{"close_issue"})
		if err != nil {
			t.Fatalf("BridgeAbilities: %v", err)
		}
		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
		if registry.Find("mcp_github_close_issue") != nil {
			t.Error("close_issue escaped the exclude filter")
		}
	})
}

func TestBridgeAbilities_ProxyCallsOriginalName(t *testing.T) {
	mt := transportWithTools("get_issue")
	mt.addResponse("tools/call", callToolResult{
		Content: []ContentBlock{{Type: "text", Text: "issue #12: open"}},
	})

	registry, _, err := bridge(t, mt, "github", nil, nil)
	if err != nil {
		t.Fatalf("BridgeAbilities: %v", err)
	}

	ab := registry.Find("mcp_github_get_issue")
	if ab == nil {
		t.Fatal("ability not found")
	}

	result, err := ab.Execute(context.Background(), map[string]any{"number": float64(12)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "issue #12: open" {
		t.Errorf("result = %q", result)
	}

	// The wire call must carry the server's own tool name, not the
	// namespaced ability name.
	mt.mu.Lock()
	defer mt.mu.Unlock()
	var calledName any
	for _, req := range mt.sent {
		if req.Method == "tools/call" {
			raw, _ := json.Marshal(req.Params)
			var params map[string]any
			json.Unmarshal(raw, &params)
			calledName = params["name"]
			break
		}
	}
	if calledName != "get_issue" {
		t.Errorf("tools/call used name %v, want %q", calledName, "get_issue")
	}
}

func TestBridgeAbilities_CollisionSurfaces(t *testing.T) {
	// do-thing and do_thing sanitize to the same ability name.
	mt := transportWithTools("do-thing", "do_thing")

	_, count, err := bridge(t, mt, "srv", nil, nil)
	if err == nil {
		t.Fatal("expected collision error")
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (first registration succeeds)", count)
	}
}
