package serv

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

var (
	// ErrConnect is returned when a database connection cannot be
	// established or fails the liveness check
	ErrConnect = fmt.Errorf("database connect failed")

	// ErrNoConnScope is returned when a connection is requested outside
	// of a request scope
	ErrNoConnScope = fmt.Errorf("no connection scope on context")
)

// connScope holds the single database connection checked out for the
// lifetime of one request
type connScope struct {
	db   *sql.DB
	conn *sql.Conn
}

// acquireConn returns the database connection bound to the request scope,
// checking one out on first use. Every later call within the same request
// returns the same connection. The connection is verified with a ping
// before it is handed out so a dead one is never returned.
func (s *service) acquireConn(c context.Context) (*sql.Conn, error) {
	cs, ok := c.Value(connKey).(*connScope)
	if !ok {
		return nil, ErrNoConnScope
	}

	if cs.conn != nil {
		return cs.conn, nil
	}

	s.reqLog(c).Info("Connecting to database")

	conn, err := cs.db.Conn(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	if err := conn.PingContext(c); err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	cs.conn = conn
	return conn, nil
}

// releaseConn returns the request scoped connection to the pool. It is
// safe to call when no connection was ever acquired and it never fails,
// a close error is logged and swallowed.
func (s *service) releaseConn(c context.Context) {
	cs, ok := c.Value(connKey).(*connScope)
	if !ok || cs.conn == nil {
		s.reqLog(c).Debug("DB Release", zap.String("state", "no connection held"))
		return
	}

	s.reqLog(c).Info("Closing db connection")

	if err := cs.conn.Close(); err != nil {
		s.reqLog(c).Error("DB Release", zap.Error(err))
	}
	cs.conn = nil
}

// requestConn opens a connection scope for each request and guarantees
// its release when the request ends, panics included.
func requestConn(s1 *Service, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)

		c := context.WithValue(r.Context(), connKey, &connScope{db: s.db})
		defer s.releaseConn(c)

		h.ServeHTTP(w, r.WithContext(c))
	}

	return http.HandlerFunc(fn)
}
