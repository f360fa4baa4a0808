// Package config handles Scribe configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/scribe/config.yaml, /etc/scribe/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "scribe", "config.yaml"))
	}

	paths = append(paths, "/etc/scribe/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Scribe configuration.
type Config struct {
	Listen      ListenConfig      `yaml:"listen"`
	WordPress   WordPressConfig   `yaml:"wordpress"`
	Models      ModelsConfig      `yaml:"models"`
	Anthropic   AnthropicConfig   `yaml:"anthropic"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Agent       AgentConfig       `yaml:"agent"`
	MCPServers  []MCPServerConfig `yaml:"mcp_servers"`
	Fetch       FetchConfig       `yaml:"fetch"`
	DataDir     string            `yaml:"data_dir"`
	PromptsDir  string            `yaml:"prompts_dir"`
	LogLevel    string            `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// WordPressConfig defines the connection to the managed site.
type WordPressConfig struct {
	URL         string            `yaml:"url"`
	Username    string            `yaml:"username"`
	AppPassword string            `yaml:"app_password"`
	Permissions PermissionsConfig `yaml:"permissions"`
}

// PermissionsConfig grants site capabilities to the chat user. Abilities
// whose capability is not granted refuse execution at the permission gate.
type PermissionsConfig struct {
	ReadPosts     bool `yaml:"read_posts"`
	EditPosts     bool `yaml:"edit_posts"`
	PublishPosts  bool `yaml:"publish_posts"`
	ManageOptions bool `yaml:"manage_options"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// OpenAIConfig defines OpenAI API settings (used for image generation).
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// AgentConfig tunes the step engine.
type AgentConfig struct {
	// MaxStepRetries bounds how many generations a single step may burn
	// recovering from invalid function calls. 0 uses the default.
	MaxStepRetries int `yaml:"max_step_retries"`
}

// FetchConfig tunes the page-fetching ability.
type FetchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ModelsConfig defines model routing settings.
type ModelsConfig struct {
	DefaultProvider string        `yaml:"default_provider"`
	DefaultModel    string        `yaml:"default_model"`
	OllamaURL       string        `yaml:"ollama_url"`
	Available       []ModelConfig `yaml:"available"`
}

// ModelConfig defines a single model and its capabilities.
type ModelConfig struct {
	Provider     string   `yaml:"provider"` // ollama, anthropic, openai
	Model        string   `yaml:"model"`
	Capabilities []string `yaml:"capabilities"` // text_generation, chat_history, image_generation
}

// MCPServerConfig defines one external MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // stdio or http
	Command   string            `yaml:"command"`   // stdio: executable
	Args      []string          `yaml:"args"`      // stdio: arguments
	Env       []string          `yaml:"env"`       // stdio: extra environment (KEY=VALUE)
	URL       string            `yaml:"url"`       // http: endpoint
	Headers   map[string]string `yaml:"headers"`   // http: extra headers
	Include   []string          `yaml:"include"`   // bridge only these tools
	Exclude   []string          `yaml:"exclude"`   // skip these tools
}

// Load reads configuration from a YAML file. Environment variables in
// the file are expanded, so secrets can live outside the config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Port: 8080},
		DataDir: ".",
		Fetch:   FetchConfig{Enabled: true},
		WordPress: WordPressConfig{
			Permissions: PermissionsConfig{
				ReadPosts: true,
				EditPosts: true,
			},
		},
		Models: ModelsConfig{
			DefaultProvider: "ollama",
			DefaultModel:    "qwen3:8b",
			OllamaURL:       "http://localhost:11434",
			Available: []ModelConfig{
				{
					Provider:     "ollama",
					Model:        "qwen3:8b",
					Capabilities: []string{"text_generation", "chat_history"},
				},
			},
		},
	}
}
