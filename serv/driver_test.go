package serv

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeDriver is a scripted database/sql connector used to exercise the
// connection scope without a real database.
type fakeDriver struct {
	mu       sync.Mutex
	opened   int
	closed   int
	pings    int
	pingErr  error
	queryErr error
	now      time.Time
}

func (d *fakeDriver) Connect(context.Context) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened++
	return &fakeConn{d: d}, nil
}

func (d *fakeDriver) Driver() driver.Driver { return nil }

func (d *fakeDriver) setPingErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pingErr = err
}

func (d *fakeDriver) setQueryErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queryErr = err
}

func (d *fakeDriver) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

func (d *fakeDriver) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *fakeDriver) pingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pings
}

type fakeConn struct {
	d *fakeDriver
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, driver.ErrSkip
}

func (c *fakeConn) Close() error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.closed++
	return nil
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, driver.ErrSkip
}

func (c *fakeConn) Ping(ctx context.Context) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.pings++
	return c.d.pingErr
}

func (c *fakeConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.d.queryErr != nil {
		return nil, c.d.queryErr
	}
	return &fakeRows{now: c.d.now}, nil
}

type fakeRows struct {
	now  time.Time
	done bool
}

func (r *fakeRows) Columns() []string { return []string{"now()"} }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = r.now
	return nil
}

// newTestDB returns a pool over the fake driver. Idle pooling is off so
// releasing a connection closes it for real and the close counts line up.
func newTestDB(t *testing.T, fd *fakeDriver) *sql.DB {
	t.Helper()

	db := sql.OpenDB(fd)
	db.SetMaxIdleConns(0)
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestService builds a service over the given pool with an observed
// logger so tests can assert on emitted records.
func newTestService(t *testing.T, db *sql.DB) (*Service, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	zlog := zap.New(core)

	conf := &Config{}
	conf.LogLevel = "debug"

	s1, err := NewService(conf, OptionSetDB(db), OptionSetZapLogger(zlog))
	require.NoError(t, err)

	return s1, logs
}
