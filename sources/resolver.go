package sources

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/tools"
)

// Resolver renders assigned items into drafting prompts. Metadata is listed
// after the body so tables keep their units and captions.
type Resolver struct {
	MaxBytes int
}

// Resolve renders one item.
func (r Resolver) Resolve(ctx context.Context, item model.ContentItem) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if item.Kind == model.ContentImage && item.Description == "" {
		return "", fmt.Errorf("image %s has no description", item.ID)
	}

	var b strings.Builder
	b.WriteString(tools.RenderItem(item, r.MaxBytes))
	for _, k := range slices.Sorted(maps.Keys(item.Metadata)) {
		fmt.Fprintf(&b, "\n%s: %s", k, item.Metadata[k])
	}
	return b.String(), nil
}
