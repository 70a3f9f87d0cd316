package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := Configuration("service %q not found", "Example")
	if got := err.Error(); !strings.Contains(got, "CONFIGURATION") || !strings.Contains(got, "Example") {
		t.Fatalf("unexpected error string: %s", got)
	}
}

func TestErrorStringWithCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := SchemaValidation("test_topic", cause)
	if got := err.Error(); !strings.Contains(got, "cause: boom") {
		t.Fatalf("expected cause in error string, got: %s", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := SchemaValidation("topic", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
}

func TestWrappedCodeOf(t *testing.T) {
	err := fmt.Errorf("context: %w", Assertion("count mismatch"))
	if CodeOf(err) != CodeAssertion {
		t.Fatalf("expected ASSERTION code through wrapping, got %s", CodeOf(err))
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		err  error
		pred func(error) bool
		want bool
	}{
		{Configuration("bad"), IsConfiguration, true},
		{AmbiguousBlock("logger", []string{"a", "b"}), IsAmbiguousBlock, true},
		{AmbiguousBlock("logger", []string{"a", "b"}), IsConfiguration, true},
		{NotFound("block", "nope"), IsNotFound, true},
		{NotFound("block", "nope"), IsConfiguration, true},
		{SchemaValidation("t", stderrors.New("x")), IsSchemaValidation, true},
		{SchemaValidation("t", stderrors.New("x")), IsAssertion, false},
		{Assertion("nope"), IsAssertion, true},
		{Assertion("nope"), IsConfiguration, false},
		{stderrors.New("plain"), IsAssertion, false},
	}
	for i, tc := range tests {
		if got := tc.pred(tc.err); got != tc.want {
			t.Fatalf("case %d: got %v, want %v (err: %v)", i, got, tc.want, tc.err)
		}
	}
}

func TestCountMismatchDetails(t *testing.T) {
	err := CountMismatch("published signals", 2, 5)
	if err.Details["expected"] != 2 || err.Details["actual"] != 5 {
		t.Fatalf("unexpected details: %v", err.Details)
	}
	if !strings.Contains(err.Error(), "not equal to 2") || !strings.Contains(err.Error(), "actual: 5") {
		t.Fatalf("expected counts in message: %s", err.Error())
	}
}

func TestWithDetail(t *testing.T) {
	err := Assertion("missing signal").WithDetail("topic", "topic3")
	if err.Details["topic"] != "topic3" {
		t.Fatalf("unexpected details: %v", err.Details)
	}
}
