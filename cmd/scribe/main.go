// Scribe is a conversational assistant for a WordPress site.
//
// It serves an HTTP API the chat frontend talks to. Each turn the agent
// can call abilities: built-in WordPress operations (search, drafting,
// publishing, featured images, permalinks), web page fetching, and any
// tools bridged from configured MCP servers. Configuration is loaded
// from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	scribe serve             Start the API server
//	scribe init [dir]        Initialize a working directory with defaults
//	scribe version           Print version and build information
//	scribe -o json version   Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/scribeagent/scribe/internal/ability"
	"github.com/scribeagent/scribe/internal/api"
	"github.com/scribeagent/scribe/internal/buildinfo"
	"github.com/scribeagent/scribe/internal/config"
	"github.com/scribeagent/scribe/internal/fetch"
	"github.com/scribeagent/scribe/internal/llm"
	"github.com/scribeagent/scribe/internal/mcp"
	"github.com/scribeagent/scribe/internal/prompts"
	"github.com/scribeagent/scribe/internal/router"
	"github.com/scribeagent/scribe/internal/session"
	"github.com/scribeagent/scribe/internal/wordpress"
)

// main constructs the OS-level environment and delegates to [run],
// keeping os.Exit and os.Args out of the application logic so the full
// lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Scribe - WordPress Writing Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: scribe [flags] <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	return nil
}

func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Scribe", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"site", cfg.WordPress.URL,
		"provider", cfg.Models.DefaultProvider,
		"model", cfg.Models.DefaultModel,
	)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	// --- Conversation store ---
	dbPath := filepath.Join(cfg.DataDir, "scribe.db")
	store, err := session.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open conversation database %s: %w", dbPath, err)
	}
	defer store.Close()
	logger.Info("conversation database opened", "path", dbPath)

	// --- Model clients and router ---
	clients := createLLMClients(cfg, logger)
	rtr := router.New(logger, router.Config{Entries: routerEntries(cfg)})

	// --- WordPress client and built-in abilities ---
	if cfg.WordPress.URL == "" {
		return errors.New("wordpress.url is required")
	}
	wp := wordpress.NewClient(cfg.WordPress.URL, cfg.WordPress.Username, cfg.WordPress.AppPassword, logger)
	if err := wp.Ping(ctx); err != nil {
		logger.Warn("WordPress site unreachable at startup", "url", cfg.WordPress.URL, "error", err)
	}

	registry := ability.NewRegistry()
	images := imageSource(cfg, rtr, logger)
	if images == nil {
		logger.Info("no image generation model available, featured images disabled")
	}
	perms := wordpress.Permissions(cfg.WordPress.Permissions)
	for _, ab := range wordpress.Abilities(wp, perms, images) {
		if err := registry.Register(ab); err != nil {
			return fmt.Errorf("register ability: %w", err)
		}
	}

	if cfg.Fetch.Enabled {
		if err := registry.Register(fetch.PageMarkdownAbility(fetch.New())); err != nil {
			return fmt.Errorf("register fetch ability: %w", err)
		}
	}

	// --- MCP bridges ---
	mcpClients, err := connectMCPServers(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range mcpClients {
			c.Close()
		}
	}()

	logger.Info("abilities registered", "count", registry.Len())

	// --- API server ---
	server := api.NewServer(api.Config{
		Address:         cfg.Listen.Address,
		Port:            cfg.Listen.Port,
		Store:           store,
		Registry:        registry,
		Clients:         clients,
		Router:          rtr,
		Prompts:         prompts.NewManager(cfg.PromptsDir),
		DefaultProvider: cfg.Models.DefaultProvider,
		DefaultModel:    cfg.Models.DefaultModel,
		SiteURL:         cfg.WordPress.URL,
		MaxStepRetries:  cfg.Agent.MaxStepRetries,
	}, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used and must exist.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// createLLMClients builds the multi-provider client. Ollama is always
// present as the fallback backend; Anthropic is added when an API key
// is configured.
func createLLMClients(cfg *config.Config, logger *slog.Logger) *llm.MultiClient {
	ollama := llm.NewOllamaClient(cfg.Models.OllamaURL, logger)
	multi := llm.NewMultiClient(ollama)
	multi.AddProvider("ollama", ollama)

	if cfg.Anthropic.APIKey != "" {
		multi.AddProvider("anthropic", llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger))
		logger.Info("Anthropic provider configured")
	}

	return multi
}

func routerEntries(cfg *config.Config) []router.Entry {
	entries := make([]router.Entry, 0, len(cfg.Models.Available))
	for _, m := range cfg.Models.Available {
		caps := make([]router.Capability, 0, len(m.Capabilities))
		for _, c := range m.Capabilities {
			caps = append(caps, router.Capability(c))
		}
		entries = append(entries, router.Entry{
			Provider:     m.Provider,
			Model:        m.Model,
			Capabilities: caps,
		})
	}
	return entries
}

// imageSource wires the featured-image ability to an image-capable
// model, if one is registered. Only the OpenAI image backend is
// supported today.
func imageSource(cfg *config.Config, rtr *router.Router, logger *slog.Logger) wordpress.ImageSource {
	sel, _, err := rtr.FindByRequirements([]router.Capability{router.CapImageGeneration})
	if err != nil {
		return nil
	}
	if sel.Provider != "openai" || cfg.OpenAI.APIKey == "" {
		logger.Warn("image model is not usable", "provider", sel.Provider, "model", sel.Model)
		return nil
	}
	return &routedImageSource{
		client: llm.NewOpenAIImageClient(cfg.OpenAI.APIKey, logger),
		model:  sel.Model,
	}
}

type routedImageSource struct {
	client *llm.OpenAIImageClient
	model  string
}

func (r *routedImageSource) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	return r.client.GenerateImage(ctx, r.model, prompt)
}

// connectMCPServers initializes each configured MCP server and bridges
// its tools into the registry. A server that fails to connect is
// skipped with a warning rather than aborting startup.
func connectMCPServers(ctx context.Context, cfg *config.Config, registry *ability.Registry, logger *slog.Logger) ([]*mcp.Client, error) {
	var clients []*mcp.Client
	for _, sc := range cfg.MCPServers {
		var transport mcp.Transport
		switch sc.Transport {
		case "stdio":
			transport = mcp.NewStdioTransport(mcp.StdioConfig{
				Command: sc.Command,
				Args:    sc.Args,
				Env:     sc.Env,
				Logger:  logger,
			})
		case "http":
			transport = mcp.NewHTTPTransport(mcp.HTTPConfig{
				URL:     sc.URL,
				Headers: sc.Headers,
				Logger:  logger,
			})
		default:
			return clients, fmt.Errorf("mcp server %q: unknown transport %q", sc.Name, sc.Transport)
		}

		client := mcp.NewClient(sc.Name, transport, logger)
		if err := client.Initialize(ctx); err != nil {
			logger.Warn("MCP server unavailable", "server", sc.Name, "error", err)
			client.Close()
			continue
		}

		count, err := mcp.BridgeAbilities(ctx, client, sc.Name, registry, sc.Include, sc.Exclude, logger)
		if err != nil {
			client.Close()
			return clients, fmt.Errorf("bridge mcp server %q: %w", sc.Name, err)
		}
		logger.Info("MCP server bridged", "server", sc.Name, "tools", count)
		clients = append(clients, client)
	}
	return clients, nil
}
