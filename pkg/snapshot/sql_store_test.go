package snapshot

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

type loggedStatement struct {
	query string
	args  []driver.NamedValue
}

// sqlRecorder captures every statement a store issues through the fake
// driver, with whitespace-normalized query text.
type sqlRecorder struct {
	mu sync.Mutex

	execs   []loggedStatement
	queries []loggedStatement

	// Queue of responses returned by QueryContext, in order.
	rowQueue []stubRows
}

type stubRows struct {
	columns []string
	rows    [][]driver.Value
}

func (r *sqlRecorder) logExec(query string, args []driver.NamedValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs = append(r.execs, loggedStatement{query: normalizeQuery(query), args: append([]driver.NamedValue(nil), args...)})
}

func (r *sqlRecorder) logQuery(query string, args []driver.NamedValue) stubRows {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, loggedStatement{query: normalizeQuery(query), args: append([]driver.NamedValue(nil), args...)})
	if len(r.rowQueue) == 0 {
		return stubRows{columns: []string{"data"}, rows: nil}
	}
	resp := r.rowQueue[0]
	r.rowQueue = r.rowQueue[1:]
	return resp
}

func (r *sqlRecorder) queueRows(rows stubRows) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rowQueue = append(r.rowQueue, rows)
}

type recordingDriver struct{}

var (
	recDriverOnce sync.Once
	recDriverMu   sync.Mutex
	recDriverDBs  = map[string]*sqlRecorder{}
)

func (d recordingDriver) Open(name string) (driver.Conn, error) {
	recDriverMu.Lock()
	rec := recDriverDBs[name]
	recDriverMu.Unlock()
	if rec == nil {
		return nil, fmt.Errorf("unknown fake db name: %s", name)
	}
	return &recordingConn{rec: rec}, nil
}

type recordingConn struct {
	rec *sqlRecorder
}

func (c *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}
func (c *recordingConn) Close() error { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *recordingConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return recordingTx{}, nil
}

func (c *recordingConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.rec.logExec(query, args)
	return driver.RowsAffected(1), nil
}

func (c *recordingConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	resp := c.rec.logQuery(query, args)
	return &recordingRows{columns: resp.columns, rows: resp.rows}, nil
}

func (c *recordingConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	return &recordingStmt{rec: c.rec, query: query}, nil
}

type recordingTx struct{}

func (recordingTx) Commit() error   { return nil }
func (recordingTx) Rollback() error { return nil }

type recordingStmt struct {
	rec   *sqlRecorder
	query string
}

func (s *recordingStmt) Close() error  { return nil }
func (s *recordingStmt) NumInput() int { return -1 }
func (s *recordingStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}
func (s *recordingStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}
func (s *recordingStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	s.rec.logExec(s.query, args)
	return driver.RowsAffected(1), nil
}
func (s *recordingStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	resp := s.rec.logQuery(s.query, args)
	return &recordingRows{columns: resp.columns, rows: resp.rows}, nil
}

func namedValues(values []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, 0, len(values))
	for i, v := range values {
		out = append(out, driver.NamedValue{Ordinal: i + 1, Value: v})
	}
	return out
}

type recordingRows struct {
	columns []string
	rows    [][]driver.Value
	idx     int
}

func (r *recordingRows) Columns() []string { return r.columns }
func (r *recordingRows) Close() error      { return nil }
func (r *recordingRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func openRecordedDB(t *testing.T) (*sql.DB, *sqlRecorder) {
	t.Helper()

	// Register driver once per test binary.
	recDriverOnce.Do(func() {
		sql.Register("portico_snapshot_fake", recordingDriver{})
	})

	rec := &sqlRecorder{}
	name := t.Name()

	recDriverMu.Lock()
	recDriverDBs[name] = rec
	recDriverMu.Unlock()

	t.Cleanup(func() {
		recDriverMu.Lock()
		delete(recDriverDBs, name)
		recDriverMu.Unlock()
	})

	db, err := sql.Open("portico_snapshot_fake", name)
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db, rec
}

func TestSQLStore_Placeholders(t *testing.T) {
	db, _ := openRecordedDB(t)

	pg := NewSQLStore(db, WithSQLDialect(DialectPostgreSQL), WithSQLCleanupInterval(24*time.Hour))
	t.Cleanup(func() { _ = pg.Close() })
	if got := pg.placeholder(3); got != "$3" {
		t.Fatalf("placeholder() got %q want %q", got, "$3")
	}

	my := NewSQLStore(db, WithSQLDialect(DialectMySQL), WithSQLCleanupInterval(24*time.Hour))
	t.Cleanup(func() { _ = my.Close() })
	if got := my.placeholder(3); got != "?" {
		t.Fatalf("placeholder() got %q want %q", got, "?")
	}
}

func TestSQLStore_PostgresQueries(t *testing.T) {
	db, rec := openRecordedDB(t)
	store := NewSQLStore(db, WithSQLDialect(DialectPostgreSQL), WithSQLCleanupInterval(24*time.Hour))
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	expiresAt := time.Now().Add(time.Minute)

	if err := store.Save(ctx, "s1", []byte("payload"), expiresAt); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	rec.mu.Lock()
	if len(rec.execs) != 1 {
		rec.mu.Unlock()
		t.Fatalf("execs got %d want 1", len(rec.execs))
	}
	saveQuery := rec.execs[0].query
	rec.mu.Unlock()
	if !strings.Contains(saveQuery, "INSERT INTO portico_snapshots") || !strings.Contains(saveQuery, "ON CONFLICT (id) DO UPDATE") {
		t.Fatalf("unexpected Save query: %q", saveQuery)
	}

	rec.queueRows(stubRows{
		columns: []string{"data"},
		rows:    [][]driver.Value{{[]byte("blob")}},
	})

	loaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if string(loaded) != "blob" {
		t.Fatalf("Load() got %q want %q", string(loaded), "blob")
	}

	if err := store.Touch(ctx, "s1", expiresAt.Add(time.Minute)); err != nil {
		t.Fatalf("Touch() error: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.queries) != 1 {
		t.Fatalf("queries got %d want 1", len(rec.queries))
	}
	if !strings.Contains(rec.queries[0].query, "WHERE id = $1 AND expires_at > NOW()") {
		t.Fatalf("unexpected Load query: %q", rec.queries[0].query)
	}

	if len(rec.execs) != 3 {
		t.Fatalf("exec count got %d want 3", len(rec.execs))
	}
	if !strings.Contains(rec.execs[1].query, "UPDATE portico_snapshots SET expires_at = $1") {
		t.Fatalf("unexpected Touch query: %q", rec.execs[1].query)
	}
	if got := rec.execs[2].query; !strings.Contains(got, "DELETE FROM portico_snapshots WHERE id = $1") {
		t.Fatalf("unexpected Delete query: %q", got)
	}
}

func TestSQLStore_LoadNoRowsReturnsNil(t *testing.T) {
	db, rec := openRecordedDB(t)
	store := NewSQLStore(db, WithSQLDialect(DialectSQLite), WithSQLCleanupInterval(24*time.Hour))
	t.Cleanup(func() { _ = store.Close() })

	rec.queueRows(stubRows{columns: []string{"data"}, rows: nil})

	data, err := store.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if data != nil {
		t.Fatalf("Load() got %v want nil", data)
	}
}

func TestSQLStore_SQLiteUsesLocalTime(t *testing.T) {
	db, rec := openRecordedDB(t)
	store := NewSQLStore(db, WithSQLDialect(DialectSQLite), WithSQLCleanupInterval(24*time.Hour))
	t.Cleanup(func() { _ = store.Close() })

	rec.queueRows(stubRows{columns: []string{"data"}, rows: nil})
	if _, err := store.Load(context.Background(), "s1"); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !strings.Contains(rec.queries[0].query, "expires_at > datetime('now')") {
		t.Fatalf("unexpected sqlite Load query: %q", rec.queries[0].query)
	}
}

func TestSQLStore_SaveAllUsesTransaction(t *testing.T) {
	db, rec := openRecordedDB(t)
	store := NewSQLStore(db, WithSQLDialect(DialectSQLite), WithSQLCleanupInterval(24*time.Hour))
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	expiresAt := time.Now().Add(time.Minute)
	if err := store.SaveAll(ctx, map[string]Record{
		"a": {Data: []byte("1"), ExpiresAt: expiresAt},
		"b": {Data: []byte("2"), ExpiresAt: expiresAt},
	}); err != nil {
		t.Fatalf("SaveAll() error: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.execs) != 2 {
		t.Fatalf("exec count got %d want 2", len(rec.execs))
	}
	if !strings.Contains(rec.execs[0].query, "INSERT OR REPLACE INTO portico_snapshots") {
		t.Fatalf("unexpected SaveAll query: %q", rec.execs[0].query)
	}
}

func TestSQLStore_SweepAndCreateTable(t *testing.T) {
	db, rec := openRecordedDB(t)
	store := NewSQLStore(db, WithSQLDialect(DialectMySQL), WithSQLCleanupInterval(24*time.Hour))
	t.Cleanup(func() { _ = store.Close() })

	store.sweep()

	if err := store.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable() error: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.execs) != 3 {
		t.Fatalf("exec count got %d want 3", len(rec.execs))
	}
	if got := rec.execs[0].query; !strings.Contains(got, "DELETE FROM portico_snapshots WHERE expires_at < NOW()") {
		t.Fatalf("sweep query got %q", got)
	}
	if got := rec.execs[1].query; !strings.Contains(got, "CREATE TABLE IF NOT EXISTS portico_snapshots") {
		t.Fatalf("CreateTable query got %q", got)
	}
	if got := rec.execs[2].query; !strings.Contains(got, "CREATE INDEX idx_portico_snapshots_expires") {
		t.Fatalf("index query got %q", got)
	}
}

func TestSQLStore_CloseMakesOperationsFail(t *testing.T) {
	db, _ := openRecordedDB(t)
	store := NewSQLStore(db, WithSQLDialect(DialectPostgreSQL), WithSQLCleanupInterval(24*time.Hour))

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() second call error: %v", err)
	}

	ctx := context.Background()
	expiresAt := time.Now().Add(time.Minute)
	if err := store.Save(ctx, "s", []byte("x"), expiresAt); err == nil {
		t.Fatal("Save() expected error after Close, got nil")
	}
	if _, err := store.Load(ctx, "s"); err == nil {
		t.Fatal("Load() expected error after Close, got nil")
	}
	if err := store.Delete(ctx, "s"); err == nil {
		t.Fatal("Delete() expected error after Close, got nil")
	}
	if err := store.Touch(ctx, "s", expiresAt); err == nil {
		t.Fatal("Touch() expected error after Close, got nil")
	}
	if err := store.SaveAll(ctx, map[string]Record{}); err == nil {
		t.Fatal("SaveAll() expected error after Close, got nil")
	}
}
