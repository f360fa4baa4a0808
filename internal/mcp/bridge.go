package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/scribeagent/scribe/internal/ability"
)

var nonIdentRe = regexp.MustCompile(`[^a-z0-9_]`)

// toolFilter decides which of a server's tools get bridged. An include
// list wins over an exclude list; with neither, everything passes.
type toolFilter struct {
	include map[string]bool
	exclude map[string]bool
}

func newToolFilter(include, exclude []string) toolFilter {
	f := toolFilter{}
	if len(include) > 0 {
		f.include = make(map[string]bool, len(include))
		for _, name := range include {
			f.include[name] = true
		}
	}
	if len(exclude) > 0 {
		f.exclude = make(map[string]bool, len(exclude))
		for _, name := range exclude {
			f.exclude[name] = true
		}
	}
	return f
}

func (f toolFilter) allows(name string) bool {
	if f.include != nil {
		return f.include[name]
	}
	return !f.exclude[name]
}

// BridgeAbilities lists the tools an MCP server exposes and registers a
// proxy ability for each one that passes the include/exclude filter.
// Registered names take the form "mcp_{server}_{tool}" so remote tools
// can never shadow a builtin. Returns the number registered.
func BridgeAbilities(ctx context.Context, client *Client, serverName string, registry *ability.Registry, include, exclude []string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	defs, err := client.ListTools(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tools from %s: %w", serverName, err)
	}

	filter := newToolFilter(include, exclude)

	count := 0
	for _, td := range defs {
		if !filter.allows(td.Name) {
			continue
		}

		name := AbilityName(serverName, td.Name)
		if err := registry.Register(proxyAbility(client, name, td)); err != nil {
			return count, fmt.Errorf("register %s: %w", name, err)
		}
		count++

		logger.Debug("bridged MCP tool",
			"mcp_name", td.Name,
			"ability", name,
			"server", serverName,
		)
	}

	return count, nil
}

// AbilityName builds the namespaced ability name for a server's tool.
// Both parts are lowercased and reduced to [a-z0-9_].
func AbilityName(serverName, mcpToolName string) string {
	return "mcp_" + sanitize(serverName) + "_" + sanitize(mcpToolName)
}

// proxyAbility wraps one remote tool as an ability. Remote tools carry
// no local capability gate; the server enforces its own access control.
func proxyAbility(client *Client, name string, td ToolDefinition) *ability.Ability {
	mcpName := td.Name

	return &ability.Ability{
		Name:        name,
		Description: td.Description,
		InputSchema: td.InputSchema,
		Permission: func(context.Context, map[string]any) (bool, error) {
			return true, nil
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return client.CallTool(ctx, mcpName, args)
		},
	}
}

func sanitize(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "-", "_")
	s = nonIdentRe.ReplaceAllString(s, "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}
