package sqlitemcp

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/prayanks/mcp-sqlite-server/internal/errprompt"
	"github.com/prayanks/mcp-sqlite-server/internal/hooks"
	"github.com/prayanks/mcp-sqlite-server/internal/sanitize"
	"github.com/prayanks/mcp-sqlite-server/internal/timeout"
)

// SqliteMcp is the core engine behind the sql_query tool, the schema
// resources, and the prompt templates. All exported methods are safe for
// concurrent use from multiple goroutines: the engine owns exactly one SQLite
// connection, and database/sql serializes access to it.
type SqliteMcp struct {
	config        Config
	db            *sql.DB
	cmdHooks      *hooks.Runner          // command-based hooks (CLI mode)
	goBeforeHooks []BeforeQueryHookEntry // Go function hooks (library mode)
	goAfterHooks  []AfterQueryHookEntry  // Go function hooks (library mode)
	sanitizer     *sanitize.Sanitizer
	errPrompts    *errprompt.Matcher
	timeoutMgr    *timeout.Manager
	logger        zerolog.Logger
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	serverHooks *ServerHooksConfig
}

// WithServerHooks passes command-based hook configuration to SqliteMcp.
// Mutually exclusive with Config.BeforeQueryHooks/AfterQueryHooks (Go hooks).
func WithServerHooks(h ServerHooksConfig) Option {
	return func(o *options) {
		o.serverHooks = &h
	}
}

// New creates a new SqliteMcp instance.
// dsn is the modernc.org/sqlite connection string (see BuildDSN); in library
// mode it is required — the CLI is responsible for building it from
// ServerConfig.Connection. Panics on invalid config. Returns an error only
// for runtime failures (opening the database, compiling configured patterns).
//
// The database handle is capped at a single connection: one live SQLite
// connection per process, shared by every logical request for the lifetime of
// the instance.
func New(ctx context.Context, dsn string, config Config, logger zerolog.Logger, opts ...Option) (*SqliteMcp, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// --- Config validation (panics on invalid config) ---

	if dsn == "" {
		panic("sqlitemcp: dsn must be non-empty")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("sqlitemcp: query.default_timeout_seconds must be > 0")
	}
	if config.Query.SchemaTimeoutSeconds <= 0 {
		panic("sqlitemcp: query.schema_timeout_seconds must be > 0")
	}

	// Apply defaults for zero values
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = 100000
	}
	if config.Query.MaxResultLength == 0 {
		config.Query.MaxResultLength = 100000
	}
	if config.Query.MaxSQLLength < 0 {
		panic("sqlitemcp: query.max_sql_length must be > 0")
	}
	if config.Query.MaxResultLength < 0 {
		panic("sqlitemcp: query.max_result_length must be > 0")
	}

	// Validate hook configuration: Go hooks and command hooks are mutually exclusive
	hasGoHooks := len(config.BeforeQueryHooks) > 0 || len(config.AfterQueryHooks) > 0
	hasCmdHooks := o.serverHooks != nil && (len(o.serverHooks.BeforeQuery) > 0 || len(o.serverHooks.AfterQuery) > 0)
	if hasGoHooks && hasCmdHooks {
		panic("sqlitemcp: Go hooks (Config.BeforeQueryHooks/AfterQueryHooks) and command hooks (WithServerHooks) are mutually exclusive")
	}
	if hasGoHooks && config.DefaultHookTimeoutSeconds <= 0 {
		panic("sqlitemcp: default_hook_timeout_seconds must be > 0 when Go hooks are configured")
	}
	for _, entry := range config.BeforeQueryHooks {
		if entry.Timeout < 0 {
			panic(fmt.Sprintf("sqlitemcp: before_query hook %q has negative timeout", entry.Name))
		}
	}
	for _, entry := range config.AfterQueryHooks {
		if entry.Timeout < 0 {
			panic(fmt.Sprintf("sqlitemcp: after_query hook %q has negative timeout", entry.Name))
		}
	}
	for _, rule := range config.Query.TimeoutRules {
		if rule.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("sqlitemcp: timeout_rule with pattern %q has timeout_seconds <= 0", rule.Pattern))
		}
	}

	// --- Open database ---

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection per process. database/sql hands the same underlying
	// SQLite connection to every caller and serializes statements on it,
	// which stands in for an explicit lock around execute.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// --- Initialize internal components ---

	san, err := sanitize.NewSanitizer(mapSanitizationRules(config.Sanitization))
	if err != nil {
		db.Close()
		return nil, err
	}
	matcher, err := errprompt.NewMatcher(mapErrorPromptRules(config.ErrorPrompts))
	if err != nil {
		db.Close()
		return nil, err
	}

	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	tmgr, err := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	var cmdHooks *hooks.Runner
	if hasCmdHooks {
		hookEntries := func(entries []HookEntry) []hooks.HookEntry {
			result := make([]hooks.HookEntry, len(entries))
			for i, e := range entries {
				result[i] = hooks.HookEntry{
					Pattern: e.Pattern,
					Command: e.Command,
					Args:    e.Args,
					Timeout: time.Duration(e.TimeoutSeconds) * time.Second,
				}
			}
			return result
		}
		cmdHooks, err = hooks.NewRunner(hooks.Config{
			DefaultTimeout: time.Duration(config.DefaultHookTimeoutSeconds) * time.Second,
			BeforeQuery:    hookEntries(o.serverHooks.BeforeQuery),
			AfterQuery:     hookEntries(o.serverHooks.AfterQuery),
		}, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &SqliteMcp{
		config:        config,
		db:            db,
		cmdHooks:      cmdHooks,
		goBeforeHooks: config.BeforeQueryHooks,
		goAfterHooks:  config.AfterQueryHooks,
		sanitizer:     san,
		errPrompts:    matcher,
		timeoutMgr:    tmgr,
		logger:        logger,
	}, nil
}

// Ping verifies the database is reachable. Called once at startup; a failure
// here is fatal — the server must not begin accepting requests.
func (s *SqliteMcp) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle. Safe to call more than once; database/sql
// makes Close idempotent. Accepts context for API forward-compatibility.
func (s *SqliteMcp) Close(ctx context.Context) {
	_ = s.db.Close()
}

// mapSanitizationRules converts sqlitemcp SanitizationRules to internal sanitize.Rules.
func mapSanitizationRules(rules []SanitizationRule) []sanitize.Rule {
	result := make([]sanitize.Rule, len(rules))
	for i, r := range rules {
		result[i] = sanitize.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}

// mapErrorPromptRules converts sqlitemcp ErrorPromptRules to internal errprompt.Rules.
func mapErrorPromptRules(rules []ErrorPromptRule) []errprompt.Rule {
	result := make([]errprompt.Rule, len(rules))
	for i, r := range rules {
		result[i] = errprompt.Rule{
			Pattern: r.Pattern,
			Message: r.Message,
		}
	}
	return result
}
