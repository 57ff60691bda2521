package sqlitemcp_test

import (
	"context"
	"sync"
	"testing"

	sqlitemcp "github.com/prayanks/mcp-sqlite-server"
)

// Concurrent callers share the single SQLite connection; database/sql
// serializes statements on it, so parallel queries must all succeed with
// consistent results.
func TestQuery_ConcurrentReads(t *testing.T) {
	t.Parallel()
	s := newStartupsInstance(t)

	const goroutines = 10
	const queriesPerGoroutine = 20

	var wg sync.WaitGroup
	errCh := make(chan string, goroutines*queriesPerGoroutine)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < queriesPerGoroutine; i++ {
				output := s.Query(context.Background(), sqlitemcp.QueryInput{Query: "SELECT count(*) AS n FROM startups"})
				if output.Error != "" {
					errCh <- output.Error
					return
				}
				n, ok := output.Rows[0].Get("n")
				if !ok || n != int64(5) {
					errCh <- "unexpected count result"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for msg := range errCh {
		t.Fatalf("concurrent query failed: %s", msg)
	}
}

// Schema reads and queries interleaved from multiple goroutines.
func TestSchema_ConcurrentWithQueries(t *testing.T) {
	t.Parallel()
	s := newStartupsInstance(t)

	var wg sync.WaitGroup
	errCh := make(chan string, 40)
	for g := 0; g < 5; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if _, err := s.AllTableSchemas(context.Background()); err != nil {
					errCh <- err.Error()
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				output := s.Query(context.Background(), sqlitemcp.QueryInput{Query: "SELECT id FROM startups LIMIT 1"})
				if output.Error != "" {
					errCh <- output.Error
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for msg := range errCh {
		t.Fatalf("concurrent access failed: %s", msg)
	}
}
