package dsa

import (
	"reflect"
	"testing"
)

func TestSuffixArraySearch(t *testing.T) {
	sa := BuildSuffixArray("banana")

	tests := []struct {
		pattern string
		want    []int
	}{
		{"ana", []int{1, 3}},
		{"a", []int{1, 3, 5}},
		{"banana", []int{0}},
		{"nab", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := sa.Search(tt.pattern)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Search(%q) = %v, want %v", tt.pattern, got, tt.want)
		}
	}
	if sa.Count("an") != 2 {
		t.Errorf("Count(an) = %d", sa.Count("an"))
	}
}

func TestCorpusSearch(t *testing.T) {
	c := NewCorpus([]string{
		"Pump P-101 showed cavitation at low suction head.",
		"Valve V-7 leaks. Pump P-102 is nominal.",
	})

	hits := c.Search("pump", 10, 0)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Doc != 0 || hits[1].Doc != 1 {
		t.Errorf("unexpected docs: %+v", hits)
	}
	if hits[1].Offset != 17 {
		t.Errorf("expected offset 17, got %d", hits[1].Offset)
	}

	if got := c.Search("pump", 10, 1); len(got) != 1 {
		t.Errorf("limit not applied: %d hits", len(got))
	}
	if got := c.Search("compressor", 10, 0); len(got) != 0 {
		t.Errorf("expected no hits, got %+v", got)
	}
}

func TestCorpusSearchDoesNotSpanDocuments(t *testing.T) {
	c := NewCorpus([]string{"abc", "def"})
	if hits := c.Search("cd", 5, 0); len(hits) != 0 {
		t.Errorf("match spanned documents: %+v", hits)
	}
}

func TestTrieResolve(t *testing.T) {
	tr := NewTrie[int]()
	tr.Insert("img-001", 1)
	tr.Insert("img-002", 2)
	tr.Insert("table-1", 3)

	if v, key, _ := tr.Resolve("table"); v != 3 || key != "table-1" {
		t.Errorf("Resolve(table) = %d, %q", v, key)
	}
	if _, key, cands := tr.Resolve("img"); key != "" || len(cands) != 2 {
		t.Errorf("expected ambiguous prefix, got %q %v", key, cands)
	}
	if v, _, _ := tr.Resolve("img-002"); v != 2 {
		t.Errorf("exact lookup failed: %d", v)
	}
	if tr.Len() != 3 {
		t.Errorf("Len = %d", tr.Len())
	}
}
