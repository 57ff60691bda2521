// Package readonly implements the select-only gate applied to every
// client-supplied query before execution.
//
// The policy is a textual prefix check: trim surrounding whitespace,
// lower-case, accept iff the text starts with the literal keyword "select".
// It is NOT a parser — it does not catch writes hidden behind a SELECT-shaped
// prefix (multi-statement batches, functions with side effects). The check is
// kept exactly as-is because tightening it would change which queries
// existing clients see rejected; store-level enforcement belongs to the
// query_only pragma, not here.
package readonly

import (
	"errors"
	"strings"
)

// RejectionMessage is the fixed text returned to clients when a statement is
// rejected. It is a contract: returned verbatim, on the normal result
// channel, never wrapped.
const RejectionMessage = "Error: Only SELECT queries are allowed."

// ErrNotSelect reports that a query failed the select-only prefix check.
var ErrNotSelect = errors.New("only SELECT queries are allowed")

// Check validates a query against the select-only policy.
// Returns nil for accepted queries and ErrNotSelect otherwise.
func Check(query string) error {
	if !Allowed(query) {
		return ErrNotSelect
	}
	return nil
}

// Allowed reports whether the trimmed, lower-cased query starts with
// "select".
func Allowed(query string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(query)), "select")
}
