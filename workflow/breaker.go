package workflow

import (
	"encoding/json"
	"fmt"
)

// DefaultSearchLimit is the number of exploratory calls allowed per task.
const DefaultSearchLimit = 4

// Breaker caps exploratory tool calls within one task. The count lives in
// the session state and is reset when a task commits or is skipped.
type Breaker struct {
	Limit int
}

func (b Breaker) limit() int {
	if b.Limit <= 0 {
		return DefaultSearchLimit
	}
	return b.Limit
}

// Allow reports whether another exploratory call may run after count calls.
func (b Breaker) Allow(count int) bool {
	return count < b.limit()
}

// Placeholder is returned to the model instead of running a blocked call.
func (b Breaker) Placeholder(args json.RawMessage) string {
	return fmt.Sprintf("[research limit reached] no further searches for query %q; write with the material you have", queryOf(args))
}

// queryOf picks the most descriptive argument of a research call.
func queryOf(args json.RawMessage) string {
	var a map[string]interface{}
	if err := json.Unmarshal(args, &a); err != nil {
		return string(args)
	}
	for _, key := range []string{"query", "url", "id"} {
		if v, ok := a[key].(string); ok {
			return v
		}
	}
	return string(args)
}
