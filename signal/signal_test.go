package signal

import (
	"strings"
	"testing"
)

func TestNewCopiesAttributes(t *testing.T) {
	attrs := map[string]any{"data": "x", "nested": map[string]any{"k": "v"}}
	s := New(attrs)

	attrs["data"] = "mutated"
	attrs["nested"].(map[string]any)["k"] = "mutated"

	if v, _ := s.Get("data"); v != "x" {
		t.Fatalf("signal attribute changed after source mutation: %v", v)
	}
	nested, _ := s.Get("nested")
	if nested.(map[string]any)["k"] != "v" {
		t.Fatal("nested attribute changed after source mutation")
	}
}

func TestAttributesReturnsCopy(t *testing.T) {
	s := New(map[string]any{"list": []any{"a", "b"}})
	out := s.Attributes()
	out["list"].([]any)[0] = "mutated"

	fresh := s.Attributes()
	if fresh["list"].([]any)[0] != "a" {
		t.Fatal("mutating a returned copy affected the signal")
	}
}

func TestSequenceMonotonic(t *testing.T) {
	a := New(map[string]any{"n": 1})
	b := New(map[string]any{"n": 2})
	if b.Sequence() <= a.Sequence() {
		t.Fatalf("sequence not increasing: %d then %d", a.Sequence(), b.Sequence())
	}
}

func TestEqualStructural(t *testing.T) {
	a := New(map[string]any{"data": "x", "n": 1})
	b := New(map[string]any{"n": 1, "data": "x"})
	if !a.Equal(b) {
		t.Fatal("structurally equal signals reported unequal")
	}
	c := New(map[string]any{"data": "y", "n": 1})
	if a.Equal(c) {
		t.Fatal("different signals reported equal")
	}
	if a.Equal(nil) {
		t.Fatal("nil comparison should be false")
	}
}

func TestEqualAttributesExactMatch(t *testing.T) {
	s := New(map[string]any{"data": "x", "extra": 1})
	if s.EqualAttributes(map[string]any{"data": "x"}) {
		t.Fatal("subset match should not succeed; equality is exact")
	}
	if !s.EqualAttributes(map[string]any{"data": "x", "extra": 1}) {
		t.Fatal("exact match should succeed")
	}
}

func TestCloneDeepCopiesAndReorders(t *testing.T) {
	s := New(map[string]any{"nested": map[string]any{"k": "v"}})
	c := s.Clone()

	if !s.Equal(c) {
		t.Fatal("clone should be structurally equal")
	}
	if c.Sequence() <= s.Sequence() {
		t.Fatal("clone should get a fresh sequence number")
	}

	c.Attributes() // copies, no aliasing possible through the API
	if &s.attrs == &c.attrs {
		t.Fatal("clone aliases original attributes")
	}
}

func TestStringSortedKeys(t *testing.T) {
	s := New(map[string]any{"b": 2, "a": 1})
	if got := s.String(); got != `{"a": 1, "b": 2}` {
		t.Fatalf("unexpected String output: %s", got)
	}
}

func TestFormat(t *testing.T) {
	sigs := []*Signal{New(map[string]any{"data": "x"}), New(map[string]any{"data": "y"})}
	got := Format(sigs)
	if !strings.Contains(got, `{"data": "x"}`) || !strings.HasPrefix(got, "[") {
		t.Fatalf("unexpected Format output: %s", got)
	}
}
