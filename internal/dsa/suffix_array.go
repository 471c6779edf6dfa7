// Package dsa provides the search structures behind the source index:
// a suffix array for substring search across documents and a radix tree
// for identifier prefix lookup.
package dsa

import (
	"sort"
	"strings"
)

// SuffixArray supports O(m log n) substring search over a text.
type SuffixArray struct {
	text string
	sa   []int // sa[i] = start of the i-th smallest suffix
	rank []int // inverse of sa
}

// BuildSuffixArray constructs a suffix array by prefix doubling, O(n log² n).
func BuildSuffixArray(text string) *SuffixArray {
	n := len(text)
	s := &SuffixArray{text: text, sa: make([]int, n), rank: make([]int, n)}
	if n == 0 {
		return s
	}

	for i := 0; i < n; i++ {
		s.sa[i] = i
		s.rank[i] = int(text[i])
	}

	second := func(pos, k int) int {
		if pos+k < n {
			return s.rank[pos+k]
		}
		return -1
	}

	next := make([]int, n)
	for k := 1; k < n; k *= 2 {
		sort.Slice(s.sa, func(i, j int) bool {
			a, b := s.sa[i], s.sa[j]
			if s.rank[a] != s.rank[b] {
				return s.rank[a] < s.rank[b]
			}
			return second(a, k) < second(b, k)
		})

		next[s.sa[0]] = 0
		for i := 1; i < n; i++ {
			prev, cur := s.sa[i-1], s.sa[i]
			next[cur] = next[prev]
			if s.rank[prev] != s.rank[cur] || second(prev, k) != second(cur, k) {
				next[cur]++
			}
		}
		copy(s.rank, next)

		if s.rank[s.sa[n-1]] == n-1 {
			break
		}
	}

	return s
}

// Search returns every start offset of pattern in ascending order.
func (s *SuffixArray) Search(pattern string) []int {
	m := len(pattern)
	n := len(s.sa)
	if m == 0 || n == 0 {
		return nil
	}

	prefix := func(i int) string {
		suffix := s.text[s.sa[i]:]
		if len(suffix) > m {
			return suffix[:m]
		}
		return suffix
	}

	left := sort.Search(n, func(i int) bool { return prefix(i) >= pattern })
	right := sort.Search(n, func(i int) bool { return prefix(i) > pattern })

	var matches []int
	for i := left; i < right; i++ {
		if prefix(i) == pattern {
			matches = append(matches, s.sa[i])
		}
	}
	sort.Ints(matches)
	return matches
}

// Count returns the number of occurrences of pattern.
func (s *SuffixArray) Count(pattern string) int {
	return len(s.Search(pattern))
}

// Hit is one match of a corpus search.
type Hit struct {
	Doc     int    // index of the document passed to NewCorpus
	Offset  int    // byte offset of the match within the document
	Snippet string // surrounding text
}

// Corpus indexes several documents for case-insensitive substring search.
type Corpus struct {
	sa     *SuffixArray
	docs   []string
	starts []int // start offset of each document in the joined text
}

// corpusSep never occurs in folded document text.
const corpusSep = "\x00"

// NewCorpus builds an index over docs.
func NewCorpus(docs []string) *Corpus {
	c := &Corpus{docs: docs, starts: make([]int, len(docs))}
	var b strings.Builder
	for i, d := range docs {
		c.starts[i] = b.Len()
		b.WriteString(strings.ToLower(strings.ReplaceAll(d, corpusSep, " ")))
		b.WriteString(corpusSep)
	}
	c.sa = BuildSuffixArray(b.String())
	return c
}

// Search returns hits for query in document order, at most limit hits
// (limit <= 0 means no limit). Snippets carry width bytes of context on
// each side.
func (c *Corpus) Search(query string, width, limit int) []Hit {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || strings.Contains(q, corpusSep) {
		return nil
	}

	var hits []Hit
	for _, pos := range c.sa.Search(q) {
		doc := sort.Search(len(c.starts), func(i int) bool { return c.starts[i] > pos }) - 1
		if doc < 0 {
			continue
		}
		off := pos - c.starts[doc]
		hits = append(hits, Hit{Doc: doc, Offset: off, Snippet: snippet(c.docs[doc], off, len(q), width)})
		if limit > 0 && len(hits) == limit {
			break
		}
	}
	return hits
}

func snippet(doc string, off, n, width int) string {
	start := max(off-width, 0)
	end := min(off+n+width, len(doc))
	out := strings.TrimSpace(doc[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(doc) {
		out += "..."
	}
	return out
}
