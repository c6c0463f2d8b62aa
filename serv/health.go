package serv

import (
	"context"
	"database/sql/driver"
	"errors"
	"net/http"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	healthyResponse   = []byte("OK")
	unhealthyResponse = []byte("BAD")
)

func healthV1Handler(s1 *Service) http.Handler {
	h := func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)
		ct, cancel := context.WithTimeout(r.Context(), s.conf.DB.PingTimeout)
		defer cancel()

		span := s.spanStart(ct, "Health Check Request")
		spanAttr(span, "db", s.conf.DB.Type)

		err := s.checkDB(ct)
		if err != nil {
			spanError(span, err)
		}
		span.End()

		w.Header().Set(headers.ContentType, "text/plain")

		// A failing check does not fail the route. The body carries the
		// verdict, the status stays 200 either way.
		if err != nil {
			s.reqLog(ct).Error("Health Check", []zapcore.Field{
				zap.String("reason", healthFailReason(err)),
				zap.Error(err),
			}...)
			_, _ = w.Write(unhealthyResponse)
			return
		}

		_, _ = w.Write(healthyResponse)
	}

	return http.HandlerFunc(h)
}

// checkDB acquires the request scoped connection and runs a trivial
// query over it
func (s *service) checkDB(c context.Context) error {
	conn, err := s.acquireConn(c)
	if err != nil {
		return err
	}

	var now time.Time
	if err := conn.QueryRowContext(c, "SELECT now()").Scan(&now); err != nil {
		return err
	}

	if s.logLevel >= logLevelDebug {
		s.reqLog(c).Debug("Health Check", zap.Time("db_time", now))
	}
	return nil
}

// healthFailReason labels err as an operational database failure or a
// bug in the service itself. Both render the same response, the log
// line is what tells them apart.
func healthFailReason(err error) string {
	var me *mysql.MySQLError
	var pe *pgconn.PgError

	switch {
	case errors.As(err, &me), errors.As(err, &pe):
		return "database error"
	case errors.Is(err, ErrConnect), errors.Is(err, driver.ErrBadConn):
		return "database error"
	case errors.Is(err, mysql.ErrInvalidConn), errors.Is(err, context.DeadlineExceeded):
		return "database error"
	}

	return "unexpected error"
}
