// Source research tools.
//
// Information Hiding:
// - Index structures (suffix array, radix tree) hidden behind SourceIndex
// - Index lookup is scoped to the session through the context

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/reportflow/internal/dsa"
	"github.com/richinex/reportflow/model"
)

// Tool names of the research tools.
const (
	SearchSourcesName = "search_sources"
	ReadSourceName    = "read_source"
)

const (
	snippetWidth   = 120
	maxSearchHits  = 8
	maxSourceBytes = 16 * 1024
)

// SourceIndex answers research queries over one session's content items.
type SourceIndex struct {
	items  []model.ContentItem
	corpus *dsa.Corpus
	ids    *dsa.Trie[int]
}

// NewSourceIndex indexes items by id and by searchable text.
func NewSourceIndex(items []model.ContentItem) *SourceIndex {
	docs := make([]string, len(items))
	ids := dsa.NewTrie[int]()
	for i, it := range items {
		docs[i] = strings.Join([]string{it.Title, it.Description, it.Body}, "\n")
		ids.Insert(it.ID, i)
	}
	return &SourceIndex{items: items, corpus: dsa.NewCorpus(docs), ids: ids}
}

// Search returns formatted hits for query.
func (s *SourceIndex) Search(query string) []string {
	var out []string
	for _, h := range s.corpus.Search(query, snippetWidth, maxSearchHits) {
		it := s.items[h.Doc]
		out = append(out, fmt.Sprintf("[%s] %s: %s", it.ID, it.Title, h.Snippet))
	}
	return out
}

// Lookup resolves an id or unambiguous id prefix.
func (s *SourceIndex) Lookup(id string) (model.ContentItem, []string, bool) {
	i, key, candidates := s.ids.Resolve(id)
	if key == "" {
		return model.ContentItem{}, candidates, false
	}
	return s.items[i], nil, true
}

type sourceIndexKey struct{}

// WithSourceIndex attaches the session's index to ctx.
func WithSourceIndex(ctx context.Context, idx *SourceIndex) context.Context {
	return context.WithValue(ctx, sourceIndexKey{}, idx)
}

func sourceIndexFrom(ctx context.Context) (*SourceIndex, error) {
	idx, ok := ctx.Value(sourceIndexKey{}).(*SourceIndex)
	if !ok || idx == nil {
		return nil, fmt.Errorf("no source index for this session")
	}
	return idx, nil
}

// SearchSourcesTool runs substring search over the session's sources.
type SearchSourcesTool struct {
	BaseTool
}

// NewSearchSourcesTool creates the search tool.
func NewSearchSourcesTool() *SearchSourcesTool {
	return &SearchSourcesTool{}
}

// Metadata returns the tool metadata.
func (t *SearchSourcesTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        SearchSourcesName,
		Description: "Search the session's source material for a phrase and return matching excerpts with their source ids",
		Parameters: []ToolParameter{
			{Name: "query", ParamType: "string", Description: "Phrase to search for (case-insensitive)", Required: true},
		},
		Exploratory: true,
	}
}

type queryArgs struct {
	Query string `json:"query"`
}

// Execute runs the search.
func (t *SearchSourcesTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a queryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if strings.TrimSpace(a.Query) == "" {
		return FailureResultf("query cannot be empty"), nil
	}
	idx, err := sourceIndexFrom(ctx)
	if err != nil {
		return FailureResult(err), nil
	}

	hits := idx.Search(a.Query)
	if len(hits) == 0 {
		return SuccessResult(fmt.Sprintf("no matches for %q", a.Query)), nil
	}
	return SuccessResult(strings.Join(hits, "\n")), nil
}

// ReadSourceTool returns the full text of one source item.
type ReadSourceTool struct {
	BaseTool
}

// NewReadSourceTool creates the read tool.
func NewReadSourceTool() *ReadSourceTool {
	return &ReadSourceTool{}
}

// Metadata returns the tool metadata.
func (t *ReadSourceTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        ReadSourceName,
		Description: "Read the full text of a source item by id (an unambiguous id prefix is accepted)",
		Parameters: []ToolParameter{
			{Name: "id", ParamType: "string", Description: "Source item id", Required: true},
		},
		Exploratory: true,
	}
}

type idArgs struct {
	ID string `json:"id"`
}

// Execute reads the item.
func (t *ReadSourceTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a idArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.ID == "" {
		return FailureResultf("id cannot be empty"), nil
	}
	idx, err := sourceIndexFrom(ctx)
	if err != nil {
		return FailureResult(err), nil
	}

	item, candidates, ok := idx.Lookup(a.ID)
	if !ok {
		if len(candidates) > 1 {
			return FailureResultf("id %q is ambiguous: %s", a.ID, strings.Join(candidates, ", ")), nil
		}
		return FailureResultf("source %q not found", a.ID), nil
	}
	return SuccessResult(RenderItem(item, maxSourceBytes)), nil
}

// RenderItem formats a content item for a prompt, truncating the body to
// limit bytes (limit <= 0 means no limit).
func RenderItem(item model.ContentItem, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", item.ID, item.Title)
	if item.Kind != "" && item.Kind != model.ContentText {
		fmt.Fprintf(&b, " (%s)", item.Kind)
	}
	b.WriteString("\n")
	if item.Description != "" {
		b.WriteString(item.Description + "\n")
	}
	if item.MediaURI != "" {
		b.WriteString("media: " + item.MediaURI + "\n")
	}
	body := item.Body
	if limit > 0 && len(body) > limit {
		body = body[:limit] + "\n[truncated]"
	}
	b.WriteString(body)
	return strings.TrimRight(b.String(), "\n")
}

var (
	_ Tool = (*SearchSourcesTool)(nil)
	_ Tool = (*ReadSourceTool)(nil)
)
