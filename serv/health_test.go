package serv

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckOK(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	db := newTestDB(t, fd)
	s1, _ := newTestService(t, db)

	h, err := routesHandler(s1, chi.NewRouter())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", healthRoute, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, serverName, w.Header().Get("Server"))

	// the request scoped connection was released at teardown
	assert.Equal(t, 1, fd.openCount())
	assert.Equal(t, 1, fd.closeCount())
}

func TestHealthCheckDatabaseError(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	fd.setQueryErr(&mysql.MySQLError{Number: 1045, Message: "access denied"})

	db := newTestDB(t, fd)
	s1, logs := newTestService(t, db)

	h, err := routesHandler(s1, chi.NewRouter())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", healthRoute, nil))

	// an unhealthy database still answers 200, the body flips
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BAD", w.Body.String())

	rec := logs.FilterMessage("Health Check").All()
	require.Len(t, rec, 1)
	assert.Equal(t, "database error", rec[0].ContextMap()["reason"])
}

func TestHealthCheckConnectError(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	fd.setPingErr(errors.New("server has gone away"))

	db := newTestDB(t, fd)
	s1, logs := newTestService(t, db)

	h, err := routesHandler(s1, chi.NewRouter())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", healthRoute, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BAD", w.Body.String())

	rec := logs.FilterMessage("Health Check").All()
	require.Len(t, rec, 1)
	assert.Equal(t, "database error", rec[0].ContextMap()["reason"])
}

func TestHealthCheckUnexpectedError(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	fd.setQueryErr(errors.New("boom"))

	db := newTestDB(t, fd)
	s1, logs := newTestService(t, db)

	h, err := routesHandler(s1, chi.NewRouter())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", healthRoute, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BAD", w.Body.String())

	rec := logs.FilterMessage("Health Check").All()
	require.Len(t, rec, 1)
	assert.Equal(t, "unexpected error", rec[0].ContextMap()["reason"])
}

func TestHealthCheckLogsRequestFields(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	fd.setQueryErr(errors.New("boom"))

	db := newTestDB(t, fd)
	s1, logs := newTestService(t, db)

	h, err := routesHandler(s1, chi.NewRouter())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", healthRoute, nil)
	r.RemoteAddr = "10.1.2.3:4567"
	h.ServeHTTP(w, r)

	rec := logs.FilterMessage("Health Check").All()
	require.Len(t, rec, 1)

	fields := rec[0].ContextMap()
	assert.Equal(t, "10.1.2.3:4567", fields["remote_addr"])
	assert.Equal(t, healthRoute, fields["url"])
	assert.NotEmpty(t, fields["req_id"])
}

func TestHealthCheckHandlerMount(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	db := newTestDB(t, fd)
	s1, _ := newTestService(t, db)

	// embedding apps mount the handler on their own router and path
	r := chi.NewRouter()
	r.Handle("/healthz", s1.HealthCheck())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, 1, fd.closeCount())
}

func TestIndexRoute(t *testing.T) {
	fd := &fakeDriver{now: time.Now()}
	db := newTestDB(t, fd)
	s1, _ := newTestService(t, db)

	h, err := routesHandler(s1, chi.NewRouter())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", indexRoute, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello from")

	// nothing on the index route touches the database
	assert.Equal(t, 0, fd.openCount())
}
