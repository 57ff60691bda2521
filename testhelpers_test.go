package sqlitemcp_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	sqlitemcp "github.com/prayanks/mcp-sqlite-server"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func defaultConfig() sqlitemcp.Config {
	return sqlitemcp.Config{
		Query: sqlitemcp.QueryConfig{
			DefaultTimeoutSeconds: 30,
			SchemaTimeoutSeconds:  10,
			MaxSQLLength:          100000,
			MaxResultLength:       100000,
		},
	}
}

// createTestDB creates a fresh SQLite database in a temp directory, executes
// the given statements against it, and returns its path.
func createTestDB(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	defer db.Close()
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("setup statement failed: %v\n%s", err, stmt)
		}
	}
	return path
}

// createStartupsDB creates a database with the startups funding table used by
// most tests.
func createStartupsDB(t *testing.T) string {
	t.Helper()
	return createTestDB(t,
		`CREATE TABLE startups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			startup_name TEXT NOT NULL,
			description TEXT,
			website TEXT,
			funding_amount REAL,
			funding_date TEXT,
			investors TEXT
		)`,
		`INSERT INTO startups (startup_name, description, website, funding_amount, funding_date, investors) VALUES
			('AlphaTech', 'Innovative AI startup', 'https://alphatech.io', 5000000, '2023-05-15', 'Investor A, Investor B'),
			('BetaSoft', 'Enterprise SaaS solution', 'https://betasoft.com', 12000000, '2023-06-20', 'Investor C'),
			('Gamma Innovations', 'Cutting-edge biotech research', 'https://gammainnovations.org', 7500000, '2023-07-10', 'Investor D, Investor E, Investor F'),
			('Delta Ventures', 'Fintech disrupting traditional banking', 'https://deltaventures.net', 20000000, '2023-08-25', 'Investor G'),
			('Epsilon Dynamics', 'Sustainability through green energy', 'https://epsilondynamics.com', 10000000, '2023-09-05', 'Investor H, Investor I')`,
	)
}

func newTestInstance(t *testing.T, dbPath string, config sqlitemcp.Config) *sqlitemcp.SqliteMcp {
	t.Helper()
	ctx := context.Background()
	dsn, err := sqlitemcp.BuildDSN(sqlitemcp.ConnectionConfig{Path: dbPath}, config.ReadOnly)
	if err != nil {
		t.Fatalf("failed to build DSN: %v", err)
	}
	s, err := sqlitemcp.New(ctx, dsn, config, testLogger())
	if err != nil {
		t.Fatalf("failed to create SqliteMcp: %v", err)
	}
	t.Cleanup(func() { s.Close(ctx) })
	return s
}

func newStartupsInstance(t *testing.T) *sqlitemcp.SqliteMcp {
	t.Helper()
	return newTestInstance(t, createStartupsDB(t), defaultConfig())
}

// rowValue reads a column value from an ordered row, failing the test when the
// column is absent.
func rowValue(t *testing.T, row sqlitemcp.Row, col string) any {
	t.Helper()
	v, ok := row.Get(col)
	if !ok {
		t.Fatalf("column %q not present in row", col)
	}
	return v
}

// createTableDirect runs a DDL statement with a direct connection, bypassing
// the query pipeline.
func createTableDirect(t *testing.T, dbPath, stmt string) {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(stmt); err != nil {
		t.Fatalf("statement failed: %v", err)
	}
}

// countTableRows counts rows in a table with a direct connection, bypassing
// the query pipeline.
func countTableRows(t *testing.T, dbPath, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT count(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}
