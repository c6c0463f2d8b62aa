package serv

import (
	"fmt"
	"net/http"

	"github.com/go-http-utils/headers"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
)

const (
	healthRoute = "/health"
	indexRoute  = "/"
)

// Mux is the interface a router must implement for the service routes
// to be mounted on it. The chi router and http.ServeMux both satisfy it.
type Mux interface {
	Handle(string, http.Handler)
	ServeHTTP(http.ResponseWriter, *http.Request)
}

func routesHandler(s1 *Service, mux Mux) (http.Handler, error) {
	s := s1.Load().(*service)

	// Healthcheck API
	mux.Handle(healthRoute, routeChain(s1, healthV1Handler(s1)))

	h1 := indexHandler(s1)

	if s.conf.rateLimiterEnable() {
		h1 = rateLimiter(s1, h1)
	}

	if s.conf.HTTPGZip {
		if gz, err := gzhttp.NewWrapper(gzhttp.CompressionLevel(6)); err != nil {
			return nil, err
		} else {
			h1 = gz(h1)
		}
	}

	mux.Handle(indexRoute, routeChain(s1, h1))

	return mux, nil
}

// routeChain wraps a route handler with the common middleware. Request
// info is bound first so the recovery and connection teardown logs all
// carry the request fields.
func routeChain(s1 *Service, h http.Handler) http.Handler {
	s := s1.Load().(*service)

	h = setServerHeader(h)
	h = requestConn(s1, h)

	if len(s.conf.AllowedOrigins) != 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   s.conf.AllowedOrigins,
			AllowedHeaders:   s.conf.AllowedHeaders,
			AllowCredentials: true,
			Debug:            s.conf.DebugCORS,
		})
		h = c.Handler(h)
	}

	h = panicRecovery(s1, h)
	h = withRequestInfo(h)

	return h
}

func indexHandler(s1 *Service) http.Handler {
	h := func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)

		w.Header().Set(headers.ContentType, "text/plain")
		if s.conf.CacheControl != "" {
			w.Header().Set(headers.CacheControl, s.conf.CacheControl)
		}

		name := s.conf.AppName
		if name == "" {
			name = serverName
		}
		fmt.Fprintf(w, "Hello from %s\n", name)
	}

	return http.HandlerFunc(h)
}
