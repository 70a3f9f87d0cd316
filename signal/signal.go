package signal

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"
)

// sequence orders signals by creation across the whole process. Ordering
// is the only thing the counter is used for, so sharing it between
// harness instances is harmless.
var sequence atomic.Uint64

// Signal is an immutable structured message payload.
type Signal struct {
	attrs map[string]any
	seq   uint64
}

// New creates a Signal from the given attributes. The attribute map is
// deep-copied, so the caller may reuse or mutate it afterward.
func New(attrs map[string]any) *Signal {
	return &Signal{
		attrs: copyMap(attrs),
		seq:   sequence.Add(1),
	}
}

// Sequence returns the creation-sequence number of the signal.
func (s *Signal) Sequence() uint64 { return s.seq }

// Get returns the named attribute value.
func (s *Signal) Get(name string) (any, bool) {
	v, ok := s.attrs[name]
	return v, ok
}

// Attributes returns a deep copy of the signal's attributes.
func (s *Signal) Attributes() map[string]any {
	return copyMap(s.attrs)
}

// Clone returns a signal with a deep copy of the payload and a fresh
// sequence number. The router clones per receiver so a downstream block
// mutating what it received cannot alias another block's view.
func (s *Signal) Clone() *Signal {
	return New(s.attrs)
}

// Equal reports structural equality of the two signals' attributes.
// Sequence numbers are ignored.
func (s *Signal) Equal(other *Signal) bool {
	if other == nil {
		return false
	}
	return reflect.DeepEqual(s.attrs, other.attrs)
}

// EqualAttributes reports whether the signal's attributes structurally
// equal the given map. The match is exact: every key must be present on
// both sides with a deeply equal value.
func (s *Signal) EqualAttributes(attrs map[string]any) bool {
	return reflect.DeepEqual(s.attrs, attrs)
}

// String renders the attributes with sorted keys for stable test output.
func (s *Signal) String() string {
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		if str, ok := s.attrs[k].(string); ok {
			fmt.Fprintf(&b, "%q: %q", k, str)
		} else {
			fmt.Fprintf(&b, "%q: %v", k, s.attrs[k])
		}
	}
	b.WriteByte('}')
	return b.String()
}

// Format renders a list of signals for assertion failure messages.
func Format(signals []*Signal) string {
	parts := make([]string, len(signals))
	for i, s := range signals {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
