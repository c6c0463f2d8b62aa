// Package serv provides the Vitals HTTP service. It serves a health
// check backed by a per request database connection and can be embedded
// into an existing server with Attach.
package serv

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vitals-run/vitals/internal/util"
)

const (
	serverName         = "Vitals"
	defaultHP          = "0.0.0.0:8080"
	defaultPingTimeout = 5 * time.Second
)

type Option func(*service) error

// Service struct holds the Vitals service
type Service struct {
	atomic.Value
	opt   []Option
	cpath string
}

type service struct {
	log      *zap.SugaredLogger // logger
	zlog     *zap.Logger        // faster logger
	logLevel int                // log level
	conf     *Config            // parsed config
	db       *sql.DB            // database connection pool
	fs       afero.Fs           // filesystem
	srv      *http.Server       // http server
	tracer   trace.Tracer
}

// NewService creates a new Vitals service. A nil config starts the
// service on built in defaults.
func NewService(conf *Config, options ...Option) (*Service, error) {
	s, err := newService(conf, options...)
	if err != nil {
		return nil, err
	}

	s1 := &Service{opt: options, cpath: s.conf.cpath}
	s1.Store(s)

	if s.conf.WatchAndReload {
		initConfigWatcher(s1)
	}

	return s1, nil
}

func newService(conf *Config, options ...Option) (*service, error) {
	// a nil config behaves like a missing config file, the built in
	// defaults and VT_ environment variables apply
	if conf == nil {
		var err error
		if conf, err = readInConfig(GetConfigName(), nil); err != nil {
			return nil, err
		}
	}

	zlog := util.NewLogger(conf.LogFormat == "json", zapLevel(conf.LogLevel)).
		Named("vitals")

	s := &service{
		conf:   conf,
		zlog:   zlog,
		log:    zlog.Sugar(),
		tracer: otel.Tracer("vitals-run/vitals/serv"),
	}
	initLogLevel(s)

	for _, op := range options {
		if err := op(s); err != nil {
			return nil, err
		}
	}

	if err := s.initFS(); err != nil {
		return nil, err
	}

	if err := s.initConfig(); err != nil {
		return nil, err
	}

	if err := s.initDB(); err != nil {
		return nil, err
	}

	return s, nil
}

// OptionSetFS sets the filesystem the service reads certificates and
// other assets from
func OptionSetFS(fs afero.Fs) Option {
	return func(s *service) error {
		s.fs = fs
		return nil
	}
}

// OptionSetDB sets the database connection pool for the service to use
// instead of opening its own
func OptionSetDB(db *sql.DB) Option {
	return func(s *service) error {
		s.db = db
		return nil
	}
}

// OptionSetZapLogger replaces the logger the service logs with
func OptionSetZapLogger(zlog *zap.Logger) Option {
	return func(s *service) error {
		s.zlog = zlog
		s.log = zlog.Sugar()
		return nil
	}
}

// Start starts the Vitals service listening on the configured host and
// port. It returns after a shutdown signal has been handled.
func (s *Service) Start() error {
	startHTTP(s)
	return nil
}

// Attach mounts the service routes on the given router
func (s *Service) Attach(mux Mux) error {
	_, err := routesHandler(s, mux)
	return err
}

// HealthCheck returns the health check http handler wrapped in the
// service middleware so it can be mounted on any router
func (s *Service) HealthCheck() http.Handler {
	return routeChain(s, healthV1Handler(s))
}

func startHTTP(s1 *Service) {
	s := s1.Load().(*service)

	routes, err := routesHandler(s1, chi.NewRouter())
	if err != nil {
		s.log.Fatalf("Error setting up routes: %s", err)
	}

	srv := &http.Server{
		Addr:           s.conf.hostPort,
		Handler:        routes,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if s.conf.EnableTracing {
		srv.Handler = otelhttp.NewHandler(routes, "vitals")
	}
	s.srv = srv

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		if err := srv.Shutdown(context.Background()); err != nil {
			s.log.Warn("Shutdown signal received")
		}
		close(idleConnsClosed)
	}()

	srv.RegisterOnShutdown(func() {
		if s.db != nil {
			s.db.Close() //nolint:errcheck
		}
		s.log.Info("Shutdown complete")
	})

	s.log.Infof("%s started, version: %s, host-port: %s, app-name: %s, env: %s",
		serverName, version, s.conf.hostPort, s.conf.AppName, s.conf.Env)

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		s.log.Fatal("Server stopped")
	}

	<-idleConnsClosed
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
