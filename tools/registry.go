// Tool registry.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Registration and discovery mechanisms abstracted

package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/richinex/reportflow/llm"
)

// Registry manages available tools with dynamic registration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a new tool to the registry.
// Returns error if a tool with the same name already exists.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Metadata().Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool '%s' already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns metadata for all registered tools, sorted by name.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata := make([]ToolMetadata, 0, len(r.tools))
	for _, tool := range r.tools {
		metadata = append(metadata, tool.Metadata())
	}
	sort.Slice(metadata, func(i, j int) bool { return metadata[i].Name < metadata[j].Name })
	return metadata
}

// Definitions returns model-facing definitions for the named tools.
// Unknown names are skipped. With no names, every tool is included.
func (r *Registry) Definitions(names ...string) []llm.ToolDefinition {
	if len(names) == 0 {
		names = r.Names()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			defs = append(defs, tool.Metadata().Definition())
		}
	}
	return defs
}

// Exploratory reports whether the named tool is a research tool.
func (r *Registry) Exploratory(name string) bool {
	tool, ok := r.Get(name)
	return ok && tool.Metadata().Exploratory
}

// Description returns a formatted description of all tools for prompts.
func (r *Registry) Description() string {
	var descriptions []string
	for _, meta := range r.List() {
		var params []string
		for _, p := range meta.Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			params = append(params, fmt.Sprintf("  - %s (%s): %s [%s]",
				p.Name, p.ParamType, p.Description, required))
		}

		descriptions = append(descriptions, fmt.Sprintf(
			"Tool: %s\nDescription: %s\nParameters:\n%s",
			meta.Name, meta.Description, strings.Join(params, "\n")))
	}

	return strings.Join(descriptions, "\n\n")
}

// RegisterAll registers each tool, stopping at the first failure.
func (r *Registry) RegisterAll(tools ...Tool) error {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return fmt.Errorf("failed to register tools: %w", err)
		}
	}
	return nil
}

// Options configures the drafting tool set.
type Options struct {
	// FetchEnabled registers fetch_url.
	FetchEnabled bool

	// FetchDomains restricts fetch_url. Empty allows every domain.
	FetchDomains []string

	// FetchTimeoutSecs bounds each fetch. Zero uses the default.
	FetchTimeoutSecs uint64
}

// DefaultToolTimeout is the default fetch timeout in seconds.
const DefaultToolTimeout = 30

// NewDraftingRegistry creates the registry used by the drafting loop.
func NewDraftingRegistry(committer SectionCommitter, opts Options) (*Registry, error) {
	registry := NewRegistry()

	toolset := []Tool{
		NewCommitSectionTool(committer),
		NewSearchSourcesTool(),
		NewReadSourceTool(),
	}
	if opts.FetchEnabled {
		timeout := opts.FetchTimeoutSecs
		if timeout == 0 {
			timeout = DefaultToolTimeout
		}
		toolset = append(toolset, NewFetchURLTool(timeout).WithAllowedDomains(opts.FetchDomains))
	}

	if err := registry.RegisterAll(toolset...); err != nil {
		return nil, err
	}
	return registry, nil
}
