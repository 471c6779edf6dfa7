package dsa

import (
	"github.com/armon/go-radix"
)

// Trie is a typed wrapper over a radix tree.
type Trie[V any] struct {
	tree *radix.Tree
}

// NewTrie creates an empty tree.
func NewTrie[V any]() *Trie[V] {
	return &Trie[V]{tree: radix.New()}
}

// Insert adds or replaces a key.
func (t *Trie[V]) Insert(key string, value V) {
	t.tree.Insert(key, value)
}

// Get looks up an exact key.
func (t *Trie[V]) Get(key string) (V, bool) {
	var zero V
	val, found := t.tree.Get(key)
	if !found {
		return zero, false
	}
	v, ok := val.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// WithPrefix returns the keys that start with prefix, in lexical order.
func (t *Trie[V]) WithPrefix(prefix string) []string {
	var keys []string
	t.tree.WalkPrefix(prefix, func(k string, _ interface{}) bool {
		keys = append(keys, k)
		return false
	})
	return keys
}

// Resolve returns the value for key, or for the single key starting with
// key when the match is unambiguous. Candidates holds every matching key
// when resolution fails.
func (t *Trie[V]) Resolve(key string) (value V, resolved string, candidates []string) {
	if v, ok := t.Get(key); ok {
		return v, key, nil
	}
	candidates = t.WithPrefix(key)
	if len(candidates) == 1 {
		v, _ := t.Get(candidates[0])
		return v, candidates[0], nil
	}
	var zero V
	return zero, "", candidates
}

// Len returns the number of keys.
func (t *Trie[V]) Len() int {
	return t.tree.Len()
}
