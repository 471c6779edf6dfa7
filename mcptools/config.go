// MCP server configuration file support.
//
// Uses the common mcpServers format, with two additions per server:
// "tools" limits which tools are imported and "exploratory" (default true)
// decides whether their calls count against the research limit.
//
//	{
//	  "mcpServers": {
//	    "search": {
//	      "command": "npx",
//	      "args": ["-y", "@modelcontextprotocol/server-brave-search"],
//	      "env": {"BRAVE_API_KEY": "..."},
//	      "tools": ["brave_web_search"]
//	    }
//	  }
//	}
package mcptools

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Config represents the MCP configuration file format.
type Config struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// ServerConfig represents a single MCP server configuration.
type ServerConfig struct {
	Command     string            `json:"command"`
	Args        []string          `json:"args"`
	Env         map[string]string `json:"env,omitempty"`
	Tools       []string          `json:"tools,omitempty"`
	Exploratory *bool             `json:"exploratory,omitempty"`
}

// LoadConfig loads MCP configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	for name, server := range config.MCPServers {
		if server.Command == "" {
			return nil, fmt.Errorf("mcp server %q has no command", name)
		}
	}
	return &config, nil
}

// ServerNames returns the configured server names in sorted order.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsExploratory reports whether the server's tools count as research.
func (s ServerConfig) IsExploratory() bool {
	return s.Exploratory == nil || *s.Exploratory
}

// environ renders Env as KEY=VALUE pairs.
func (s ServerConfig) environ() []string {
	env := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}
