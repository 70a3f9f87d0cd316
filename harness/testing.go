package harness

import "testing"

// NewT builds a harness bound to a test: construction failures fail the
// test, and the service is stopped automatically when the test ends.
func NewT(t *testing.T, cfg Config) *Harness {
	t.Helper()
	h, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to build harness: %v", err)
	}
	t.Cleanup(func() {
		if err := h.Stop(); err != nil {
			t.Errorf("failed to stop service %s: %v", h.ServiceName(), err)
		}
	})
	return h
}
