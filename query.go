package sqlitemcp

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prayanks/mcp-sqlite-server/internal/readonly"
)

// Query executes the full query pipeline and returns only QueryOutput.
// All failures (gate rejections, SQLite errors, hook rejections, Go errors)
// are converted to output.Error with a machine-readable output.ErrorCode.
// Execution errors are evaluated against error_prompts patterns — any
// matching prompt messages are appended. Callers only need to check
// output.Error, never a Go error.
func (s *SqliteMcp) Query(ctx context.Context, input QueryInput) *QueryOutput {
	startTime := time.Now()
	query := input.Query

	// 1. Check SQL length before any other processing
	if len(query) > s.config.Query.MaxSQLLength {
		return s.handleError(fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(query), s.config.Query.MaxSQLLength))
	}

	// 2. Select-only gate on the inbound client text. Rejection short-circuits:
	// the database is never touched, and the fixed rejection message goes back
	// as a normal response. The gate is a textual prefix check kept bug-for-bug
	// compatible with existing clients; see internal/readonly.
	if err := readonly.Check(query); err != nil {
		s.logger.Warn().
			Str("query", truncateForLog(query, 200)).
			Msg("query rejected by select-only gate")
		return &QueryOutput{Error: readonly.RejectionMessage, ErrorCode: ErrCodeRejected}
	}

	// --- Pipeline tracking ---
	var beforeHooks, afterHooks []string
	timeoutRule := ""
	sanitized := false

	// 3. Run BeforeQuery hooks (middleware chain) on the accepted query
	var err error
	if len(s.goBeforeHooks) > 0 {
		query, err = s.runGoBeforeHooks(ctx, query)
		for _, entry := range s.goBeforeHooks {
			beforeHooks = append(beforeHooks, entry.Name)
		}
	} else if s.cmdHooks != nil {
		query, beforeHooks, err = s.cmdHooks.RunBeforeQuery(ctx, query)
	}
	if err != nil {
		return s.handleError(err)
	}

	// 4. Re-check the select-only gate on the hook-modified query. Hooks can
	// rewrite the text, and the rewritten statement is what executes; it must
	// satisfy the same policy as the inbound text.
	if err := readonly.Check(query); err != nil {
		s.logger.Warn().
			Str("query", truncateForLog(query, 200)).
			Msg("hook-modified query rejected by select-only gate")
		return &QueryOutput{Error: readonly.RejectionMessage, ErrorCode: ErrCodeRejected}
	}

	// 5. Determine timeout
	var timeout time.Duration
	timeout, timeoutRule = s.timeoutMgr.Resolve(query)
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 6. Execute. Single implicit statement, no transaction; the shared
	// connection is serialized by database/sql.
	rows, err := s.db.QueryContext(queryCtx, query)
	if err != nil {
		return s.handleError(err)
	}

	// 7. Collect results into ordered rows
	result, err := collectRows(rows)
	if err != nil {
		return s.handleError(err)
	}

	// 8. AfterQuery hooks
	var finalResult *QueryOutput
	if len(s.goAfterHooks) > 0 {
		finalResult, err = s.runGoAfterHooks(ctx, result)
		if err != nil {
			return s.handleError(err)
		}
		for _, entry := range s.goAfterHooks {
			afterHooks = append(afterHooks, entry.Name)
		}
	} else if s.cmdHooks != nil && s.cmdHooks.HasAfterQueryHooks() {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return s.handleError(err)
		}

		modifiedJSON, executed, err := s.cmdHooks.RunAfterQuery(ctx, string(resultJSON))
		if err != nil {
			return s.handleError(err)
		}
		afterHooks = executed

		finalResult = &QueryOutput{}
		dec := json.NewDecoder(strings.NewReader(modifiedJSON))
		dec.UseNumber()
		if err := dec.Decode(finalResult); err != nil {
			return s.handleError(err)
		}
	} else {
		finalResult = result
	}

	// 9. Apply sanitization (per-field, recursive into nested values)
	sanitized = s.sanitizer.HasRules()
	finalResult.Rows = s.sanitizer.SanitizeRows(finalResult.Rows)

	// 10. Apply max result length truncation
	s.truncateIfNeeded(finalResult)

	// 11. Log successful query execution with pipeline details
	logEvent := s.logger.Info().
		Str("query", truncateForLog(query, 200)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(finalResult.Rows))
	if len(beforeHooks) > 0 {
		logEvent = logEvent.Strs("before_hooks", beforeHooks)
	}
	if len(afterHooks) > 0 {
		logEvent = logEvent.Strs("after_hooks", afterHooks)
	}
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if sanitized {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("query executed")

	return finalResult
}

// runGoBeforeHooks runs Go-interface BeforeQuery hooks in middleware chain.
func (s *SqliteMcp) runGoBeforeHooks(ctx context.Context, query string) (string, error) {
	for _, entry := range s.goBeforeHooks {
		timeout := entry.Timeout
		if timeout == 0 {
			timeout = time.Duration(s.config.DefaultHookTimeoutSeconds) * time.Second
		}
		hookCtx, cancel := context.WithTimeout(ctx, timeout)

		modified, err := entry.Hook.Run(hookCtx, query)
		cancel()
		if err != nil {
			if hookCtx.Err() == context.DeadlineExceeded {
				return "", fmt.Errorf("before_query hook error: hook timed out (name: %s, timeout: %s)", entry.Name, timeout)
			}
			return "", fmt.Errorf("before_query hook error: hook rejected query (name: %s): %w", entry.Name, err)
		}
		query = modified
	}
	return query, nil
}

// runGoAfterHooks runs Go-interface AfterQuery hooks in middleware chain.
func (s *SqliteMcp) runGoAfterHooks(ctx context.Context, result *QueryOutput) (*QueryOutput, error) {
	for _, entry := range s.goAfterHooks {
		timeout := entry.Timeout
		if timeout == 0 {
			timeout = time.Duration(s.config.DefaultHookTimeoutSeconds) * time.Second
		}
		hookCtx, cancel := context.WithTimeout(ctx, timeout)

		modified, err := entry.Hook.Run(hookCtx, result)
		cancel()
		if err != nil {
			if hookCtx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("after_query hook error: hook timed out (name: %s, timeout: %s)", entry.Name, timeout)
			}
			return nil, fmt.Errorf("after_query hook error: hook rejected result (name: %s): %w", entry.Name, err)
		}
		result = modified
	}
	return result, nil
}

// collectRows reads all rows from sql.Rows into ordered rows and returns a
// QueryOutput. Rows is never nil: an empty result serializes as [].
func collectRows(rows *sql.Rows) (*QueryOutput, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	resultRows := make([]Row, 0)
	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}
		row := NewRow()
		for i, col := range columns {
			// Duplicate column names overwrite earlier ones, matching the
			// behavior of building a dict from a row.
			row.Set(col, convertValue(values[i]))
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryOutput{Columns: columns, Rows: resultRows}, nil
}

// handleError converts any error into a QueryOutput with an execution error
// message matching the historical textual contract. The message is evaluated
// against error_prompts — matching prompt messages are appended.
func (s *SqliteMcp) handleError(err error) *QueryOutput {
	errMsg := fmt.Sprintf("Error executing query: %v", err)
	prompt, patterns := s.errPrompts.Evaluate(errMsg)

	logEvent := s.logger.Error().Err(err)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_prompts", patterns)
	}
	logEvent.Msg("query error")

	if prompt != "" {
		errMsg = errMsg + "\n\n" + prompt
	}
	return &QueryOutput{Error: errMsg, ErrorCode: ErrCodeExecution}
}

// truncateIfNeeded truncates query output rows if their JSON form exceeds
// MaxResultLength (in characters). The limit is measured against the compact
// JSON encoding; the MCP layer re-renders rows indented, so the text that
// reaches the client can exceed the limit by the indentation overhead.
func (s *SqliteMcp) truncateIfNeeded(output *QueryOutput) {
	jsonBytes, _ := json.Marshal(output.Rows)
	jsonStr := string(jsonBytes)
	if utf8.RuneCountInString(jsonStr) <= s.config.Query.MaxResultLength {
		return
	}
	runes := []rune(jsonStr)
	truncated := string(runes[:s.config.Query.MaxResultLength])
	output.Rows = nil
	output.Error = truncated + "...[truncated] Result is too long! Add limits in your query!"
	output.ErrorCode = ErrCodeExecution
}

// convertValue converts a driver-returned value to a JSON-friendly Go type.
// SQLite's scalar domain (null, integer, real, text) passes through; values
// outside the JSON-representable domain are coerced to strings.
func convertValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float64:
		if math.IsNaN(val) {
			return "NaN"
		}
		if math.IsInf(val, 1) {
			return "Infinity"
		}
		if math.IsInf(val, -1) {
			return "-Infinity"
		}
		return val
	case []byte:
		// BLOB — base64 encode
		return base64.StdEncoding.EncodeToString(val)
	default:
		return val
	}
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
