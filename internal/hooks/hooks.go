// Package hooks executes operator-configured commands before and after query
// execution.
//
// A hook is an external program: it receives the query text (before_query) or
// the result JSON (after_query) on stdin and must print a JSON response on
// stdout — {"accept": bool, "modified_query"/"modified_result": string,
// "error_message": string}. Hooks are guardrails: any failure (non-zero exit,
// crash, timeout, unparseable response) stops the pipeline.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the hook runner configuration.
type Config struct {
	DefaultTimeout time.Duration
	BeforeQuery    []HookEntry
	AfterQuery     []HookEntry
}

// HookEntry defines a single command-based hook.
type HookEntry struct {
	Pattern string
	Command string
	Args    []string
	Timeout time.Duration // 0 means use DefaultTimeout
}

// beforeResponse is the JSON response expected from a before_query hook.
type beforeResponse struct {
	Accept        bool   `json:"accept"`
	ModifiedQuery string `json:"modified_query,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// afterResponse is the JSON response expected from an after_query hook.
type afterResponse struct {
	Accept         bool   `json:"accept"`
	ModifiedResult string `json:"modified_result,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

type compiledHook struct {
	pattern *regexp.Regexp
	command string
	args    []string
	timeout time.Duration
}

// Runner executes command-based hooks as a middleware chain.
type Runner struct {
	beforeQuery []compiledHook
	afterQuery  []compiledHook
	logger      zerolog.Logger
}

// NewRunner creates a new Runner. Returns an error on invalid regex patterns
// or a missing default timeout.
func NewRunner(config Config, logger zerolog.Logger) (*Runner, error) {
	if config.DefaultTimeout == 0 && (len(config.BeforeQuery) > 0 || len(config.AfterQuery) > 0) {
		return nil, errors.New("hooks: default_hook_timeout_seconds must be > 0 when hooks are configured")
	}

	compile := func(entries []HookEntry) ([]compiledHook, error) {
		compiled := make([]compiledHook, len(entries))
		for i, e := range entries {
			re, err := regexp.Compile(e.Pattern)
			if err != nil {
				return nil, fmt.Errorf("hooks: invalid regex pattern %q: %v", e.Pattern, err)
			}
			timeout := e.Timeout
			if timeout == 0 {
				timeout = config.DefaultTimeout
			}
			compiled[i] = compiledHook{
				pattern: re,
				command: e.Command,
				args:    e.Args,
				timeout: timeout,
			}
		}
		return compiled, nil
	}

	before, err := compile(config.BeforeQuery)
	if err != nil {
		return nil, err
	}
	after, err := compile(config.AfterQuery)
	if err != nil {
		return nil, err
	}

	return &Runner{beforeQuery: before, afterQuery: after, logger: logger}, nil
}

// HasAfterQueryHooks returns true if any AfterQuery hooks are configured.
func (r *Runner) HasAfterQueryHooks() bool {
	return len(r.afterQuery) > 0
}

// RunBeforeQuery runs matching BeforeQuery hooks in order, each seeing the
// previous hook's modified query. Returns the final query text and the
// commands that ran.
func (r *Runner) RunBeforeQuery(ctx context.Context, query string) (string, []string, error) {
	current := query
	var executed []string
	for _, hook := range r.beforeQuery {
		if !hook.pattern.MatchString(current) {
			continue
		}
		output, err := r.executeHook(ctx, hook, current)
		if err != nil {
			return "", executed, fmt.Errorf("before_query hook error: %w", err)
		}
		executed = append(executed, hook.command)

		var resp beforeResponse
		if err := json.Unmarshal(output, &resp); err != nil {
			return "", executed, fmt.Errorf("before_query hook returned unparseable response (command: %s): %w", hook.command, err)
		}
		if !resp.Accept {
			msg := "query rejected by hook"
			if resp.ErrorMessage != "" {
				msg = resp.ErrorMessage
			}
			return "", executed, errors.New(msg)
		}
		if resp.ModifiedQuery != "" {
			current = resp.ModifiedQuery
		}
	}
	return current, executed, nil
}

// RunAfterQuery runs matching AfterQuery hooks in order over the result JSON.
// Returns the final result JSON and the commands that ran.
func (r *Runner) RunAfterQuery(ctx context.Context, resultJSON string) (string, []string, error) {
	current := resultJSON
	var executed []string
	for _, hook := range r.afterQuery {
		if !hook.pattern.MatchString(current) {
			continue
		}
		output, err := r.executeHook(ctx, hook, current)
		if err != nil {
			return "", executed, fmt.Errorf("after_query hook error: %w", err)
		}
		executed = append(executed, hook.command)

		var resp afterResponse
		if err := json.Unmarshal(output, &resp); err != nil {
			return "", executed, fmt.Errorf("after_query hook returned unparseable response (command: %s): %w", hook.command, err)
		}
		if !resp.Accept {
			msg := "result rejected by hook"
			if resp.ErrorMessage != "" {
				msg = resp.ErrorMessage
			}
			return "", executed, errors.New(msg)
		}
		if resp.ModifiedResult != "" {
			current = resp.ModifiedResult
		}
	}
	return current, executed, nil
}

func (r *Runner) executeHook(ctx context.Context, hook compiledHook, input string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, hook.timeout)
	defer cancel()

	// Command and args are passed separately — no shell interpretation.
	cmd := exec.CommandContext(ctx, hook.command, hook.args...)
	cmd.Stdin = strings.NewReader(input)

	// Stdout is the JSON response; stderr is captured for logging only.
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if stderr.Len() > 0 {
			r.logger.Warn().Str("command", hook.command).Str("stderr", stderr.String()).Msg("hook stderr output")
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("hook timed out: %s", hook.command)
		}
		return nil, fmt.Errorf("hook failed (command: %s): %w", hook.command, err)
	}
	if stderr.Len() > 0 {
		r.logger.Debug().Str("command", hook.command).Str("stderr", stderr.String()).Msg("hook stderr output")
	}
	return output, nil
}
