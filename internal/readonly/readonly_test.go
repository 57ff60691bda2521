package readonly

import "testing"

func TestAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"plain select", "SELECT * FROM startups", true},
		{"lowercase", "select 1", true},
		{"mixed case", "SeLeCt 1", true},
		{"leading whitespace", "   SELECT 1", true},
		{"leading tab and newline", "\t\nSELECT 1", true},
		{"trailing whitespace only trimmed", "SELECT 1   ", true},
		{"prefix not word boundary", "selective 1", true},
		{"selectx", "selectx", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"insert", "INSERT INTO t VALUES (1)", false},
		{"update", "UPDATE t SET a = 1", false},
		{"delete", "DELETE FROM t", false},
		{"drop", "DROP TABLE t", false},
		{"pragma", "PRAGMA table_info(t)", false},
		{"with cte", "WITH x AS (SELECT 1) SELECT * FROM x", false},
		{"explain", "EXPLAIN QUERY PLAN SELECT 1", false},
		{"leading comment", "-- note\nSELECT 1", false},
		{"embedded select", "DELETE FROM t WHERE id IN (SELECT id FROM u)", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allowed(tc.query); got != tc.want {
				t.Fatalf("Allowed(%q) = %v, want %v", tc.query, got, tc.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	if err := Check("SELECT 1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Check("DELETE FROM t"); err != ErrNotSelect {
		t.Fatalf("expected ErrNotSelect, got %v", err)
	}
}

func TestRejectionMessage(t *testing.T) {
	t.Parallel()

	// The message is a contract with existing clients. Byte-exact.
	if RejectionMessage != "Error: Only SELECT queries are allowed." {
		t.Fatalf("rejection message changed: %q", RejectionMessage)
	}
}
