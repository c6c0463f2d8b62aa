package serv

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-http-utils/headers"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

type ctxkey int

const (
	connKey ctxkey = iota
	reqInfoKey
)

// requestInfo holds the request fields logged with every record emitted
// while the request is being served
type requestInfo struct {
	id         string
	remoteAddr string
	method     string
	url        string
}

// reqLog returns the service logger enriched with the fields of the
// request bound to the context. Outside of a request it returns the
// plain service logger, the request fields are simply absent.
func (s *service) reqLog(c context.Context) *zap.Logger {
	ri, ok := c.Value(reqInfoKey).(*requestInfo)
	if !ok {
		return s.zlog
	}

	return s.zlog.With(
		zap.String("req_id", ri.id),
		zap.String("remote_addr", ri.remoteAddr),
		zap.String("method", ri.method),
		zap.String("url", ri.url),
	)
}

// withRequestInfo tags each request with an id and binds the request
// fields to the context for logging
func withRequestInfo(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ri := &requestInfo{
			id:         xid.New().String(),
			remoteAddr: r.RemoteAddr,
			method:     r.Method,
			url:        r.URL.String(),
		}

		c := context.WithValue(r.Context(), reqInfoKey, ri)
		h.ServeHTTP(w, r.WithContext(c))
	}

	return http.HandlerFunc(fn)
}

// panicRecovery logs a single critical record for a panicking request
// and replies with a 500. http.ErrAbortHandler is passed through so the
// server can abort the connection the way the standard library expects.
func panicRecovery(s1 *Service, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)

		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				err, ok := rvr.(error)
				if !ok {
					err = fmt.Errorf("%v", rvr)
				}

				s.reqLog(r.Context()).DPanic("Uncaught Exception",
					zap.Error(err),
					zap.String("stack", string(debug.Stack())),
				)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		h.ServeHTTP(w, r)
	}

	return http.HandlerFunc(fn)
}

func setServerHeader(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headers.Server, serverName)
		h.ServeHTTP(w, r)
	}

	return http.HandlerFunc(fn)
}
