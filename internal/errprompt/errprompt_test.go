package errprompt

import (
	"strings"
	"testing"
)

func TestNewMatcher_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewMatcher([]Rule{{Pattern: "([unclosed", Message: "m"}})
	if err == nil {
		t.Fatal("expected error for invalid pattern")
	}
	if !strings.Contains(err.Error(), "invalid regex pattern") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEvaluate_NoMatch(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher([]Rule{{Pattern: "no such table", Message: "check the schema"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, patterns := m.Evaluate("Error executing query: syntax error")
	if msg != "" {
		t.Fatalf("expected empty message, got %q", msg)
	}
	if len(patterns) != 0 {
		t.Fatalf("expected no patterns, got %v", patterns)
	}
}

func TestEvaluate_SingleMatch(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher([]Rule{
		{Pattern: "no such table", Message: "check the schema"},
		{Pattern: "syntax error", Message: "check your SQL"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, patterns := m.Evaluate("Error executing query: no such table: foo")
	if msg != "check the schema" {
		t.Fatalf("expected single message, got %q", msg)
	}
	if len(patterns) != 1 || patterns[0] != "no such table" {
		t.Fatalf("expected matched pattern, got %v", patterns)
	}
}

func TestEvaluate_MultipleMatchesJoined(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher([]Rule{
		{Pattern: "table", Message: "first"},
		{Pattern: "foo", Message: "second"},
		{Pattern: "nomatch", Message: "third"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, patterns := m.Evaluate("no such table: foo")
	if msg != "first\nsecond" {
		t.Fatalf("expected joined messages, got %q", msg)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %v", patterns)
	}
}

func TestEvaluate_EmptyRules(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, patterns := m.Evaluate("anything")
	if msg != "" || len(patterns) != 0 {
		t.Fatalf("expected no output, got %q %v", msg, patterns)
	}
}
