// Package config holds Tandem's persisted settings: agent presets and
// external tool server definitions, stored as YAML in the config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tandemhq/tandem-core/paths"
	"github.com/tandemhq/tandem-core/registry"
)

// AgentPreset describes how to launch one kind of agent CLI.
type AgentPreset struct {
	Command          string   `yaml:"command"`
	Args             []string `yaml:"args,omitempty"`
	StructuredStream bool     `yaml:"structured_stream"`
}

// Config is the application configuration. All accessors copy, so callers
// never hold references into the guarded state.
type Config struct {
	AgentPresets map[string]AgentPreset  `yaml:"agent_presets"`
	ToolServers  []registry.ServerConfig `yaml:"tool_servers,omitempty"`

	mu       sync.RWMutex
	filePath string
}

// defaultPresets are the built-in launch configurations for the supported
// agent CLIs. A config file overrides them per agent type.
func defaultPresets() map[string]AgentPreset {
	return map[string]AgentPreset{
		"claude": {
			Command:          "claude",
			Args:             []string{"--print", "--verbose", "--output-format", "stream-json", "--include-partial-messages"},
			StructuredStream: true,
		},
		"gemini": {
			Command:          "gemini",
			Args:             []string{"--output-format", "stream-json"},
			StructuredStream: true,
		},
		"codex": {
			Command:          "codex",
			Args:             []string{"proto"},
			StructuredStream: true,
		},
	}
}

// Load reads the config from disk, or returns one with defaults if no file
// exists yet.
func Load() (*Config, error) {
	path, err := paths.ConfigFilePath()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AgentPresets: defaultPresets(),
		filePath:     path,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// A partial file keeps the defaults for agents it does not mention.
	if cfg.AgentPresets == nil {
		cfg.AgentPresets = defaultPresets()
	} else {
		for name, preset := range defaultPresets() {
			if _, ok := cfg.AgentPresets[name]; !ok {
				cfg.AgentPresets[name] = preset
			}
		}
	}

	return cfg, nil
}

// Save writes the config to disk, creating the config directory if needed.
func (c *Config) Save() error {
	c.mu.RLock()
	data, err := yaml.Marshal(c)
	path := c.filePath
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// GetAgentPreset returns a copy of the preset for the agent type.
func (c *Config) GetAgentPreset(agentType string) (AgentPreset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	preset, ok := c.AgentPresets[agentType]
	if !ok {
		return AgentPreset{}, false
	}
	preset.Args = append([]string(nil), preset.Args...)
	return preset, true
}

// SetAgentPreset stores a preset for the agent type.
func (c *Config) SetAgentPreset(agentType string, preset AgentPreset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.AgentPresets == nil {
		c.AgentPresets = make(map[string]AgentPreset)
	}
	c.AgentPresets[agentType] = preset
}

// GetToolServers returns a copy of the configured tool server definitions.
func (c *Config) GetToolServers() []registry.ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	servers := make([]registry.ServerConfig, len(c.ToolServers))
	copy(servers, c.ToolServers)
	return servers
}

// AddToolServer appends a server definition, replacing any existing one with
// the same name.
func (c *Config) AddToolServer(server registry.ServerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.ToolServers {
		if existing.Name == server.Name {
			c.ToolServers[i] = server
			return
		}
	}
	c.ToolServers = append(c.ToolServers, server)
}

// RemoveToolServer deletes the server definition by name. Returns whether it
// was present.
func (c *Config) RemoveToolServer(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.ToolServers {
		if existing.Name == name {
			c.ToolServers = append(c.ToolServers[:i], c.ToolServers[i+1:]...)
			return true
		}
	}
	return false
}
