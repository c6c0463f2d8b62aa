package serv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestAcquireConnIdempotent(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	db := newTestDB(t, fd)
	s1, _ := newTestService(t, db)
	s := s1.Load().(*service)

	c := context.WithValue(context.Background(), connKey, &connScope{db: db})

	c1, err := s.acquireConn(c)
	require.NoError(t, err)

	c2, err := s.acquireConn(c)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, fd.openCount())
	assert.Equal(t, 1, fd.pingCount())
}

func TestAcquireConnNoScope(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	db := newTestDB(t, fd)
	s1, _ := newTestService(t, db)
	s := s1.Load().(*service)

	_, err := s.acquireConn(context.Background())
	assert.ErrorIs(t, err, ErrNoConnScope)
	assert.Equal(t, 0, fd.openCount())
}

func TestAcquireConnDeadConnection(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	fd.setPingErr(errors.New("server has gone away"))

	db := newTestDB(t, fd)
	s1, _ := newTestService(t, db)
	s := s1.Load().(*service)

	c := context.WithValue(context.Background(), connKey, &connScope{db: db})

	_, err := s.acquireConn(c)
	assert.ErrorIs(t, err, ErrConnect)
	assert.ErrorContains(t, err, "server has gone away")

	// the dead connection must not be left checked out
	assert.Equal(t, 1, fd.closeCount())
}

func TestAcquireConnErrorWrapping(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	fd.setPingErr(&mysql.MySQLError{Number: 1045, Message: "access denied"})

	db := newTestDB(t, fd)
	s1, _ := newTestService(t, db)
	s := s1.Load().(*service)

	c := context.WithValue(context.Background(), connKey, &connScope{db: db})

	_, err := s.acquireConn(c)
	require.Error(t, err)

	// the sentinel and the driver error both survive the wrap
	assert.ErrorIs(t, err, ErrConnect)

	var me *mysql.MySQLError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, uint16(1045), me.Number)
}

func TestAcquireConnRetriesAfterFailure(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	fd.setPingErr(errors.New("server has gone away"))

	db := newTestDB(t, fd)
	s1, _ := newTestService(t, db)
	s := s1.Load().(*service)

	c := context.WithValue(context.Background(), connKey, &connScope{db: db})

	_, err := s.acquireConn(c)
	require.ErrorIs(t, err, ErrConnect)

	fd.setPingErr(nil)

	conn, err := s.acquireConn(c)
	require.NoError(t, err)
	assert.NotNil(t, conn)
}

func TestReleaseConnClosesOnce(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	db := newTestDB(t, fd)
	s1, logs := newTestService(t, db)
	s := s1.Load().(*service)

	c := context.WithValue(context.Background(), connKey, &connScope{db: db})

	_, err := s.acquireConn(c)
	require.NoError(t, err)

	s.releaseConn(c)
	assert.Equal(t, 1, fd.closeCount())

	// releasing again is a logged no-op
	s.releaseConn(c)
	assert.Equal(t, 1, fd.closeCount())

	rel := logs.FilterMessage("DB Release").All()
	require.Len(t, rel, 1)
	assert.Equal(t, "no connection held", rel[0].ContextMap()["state"])
}

func TestAcquireConnAfterRelease(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	db := newTestDB(t, fd)
	s1, _ := newTestService(t, db)
	s := s1.Load().(*service)

	c := context.WithValue(context.Background(), connKey, &connScope{db: db})

	c1, err := s.acquireConn(c)
	require.NoError(t, err)

	s.releaseConn(c)
	require.Equal(t, 1, fd.closeCount())

	// a released scope starts over with a fresh physical connection
	c2, err := s.acquireConn(c)
	require.NoError(t, err)

	assert.NotSame(t, c1, c2)
	assert.Equal(t, 2, fd.openCount())
}

func TestReleaseConnCloseError(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	db := newTestDB(t, fd)
	s1, logs := newTestService(t, db)
	s := s1.Load().(*service)

	c := context.WithValue(context.Background(), connKey, &connScope{db: db})

	conn, err := s.acquireConn(c)
	require.NoError(t, err)

	// close behind the scope's back so the teardown close fails
	require.NoError(t, conn.Close())

	// the failure is logged, never raised
	s.releaseConn(c)

	rel := logs.FilterMessage("DB Release").All()
	require.Len(t, rel, 1)
	assert.Equal(t, zapcore.ErrorLevel, rel[0].Level)
	assert.Contains(t, rel[0].ContextMap()["error"], "closed")
}

func TestReleaseConnNeverAcquired(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	db := newTestDB(t, fd)
	s1, logs := newTestService(t, db)
	s := s1.Load().(*service)

	c := context.WithValue(context.Background(), connKey, &connScope{db: db})

	s.releaseConn(c)
	assert.Equal(t, 0, fd.closeCount())
	assert.Len(t, logs.FilterMessage("DB Release").All(), 1)

	// no scope on the context at all
	s.releaseConn(context.Background())
	assert.Equal(t, 0, fd.closeCount())
}
