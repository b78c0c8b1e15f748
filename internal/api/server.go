// Package api serves geographic area mapping and auto-response template
// lookups over HTTP.
package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/airtable-api/internal/catalog"
	"github.com/sells-group/airtable-api/internal/geoarea"
	"github.com/sells-group/airtable-api/internal/metrics"
)

// templatesKind labels template resolutions in metrics.
const templatesKind geoarea.Kind = "auto_response_email_templates"

// areaRoute binds an area kind to its URL prefix.
type areaRoute struct {
	kind     geoarea.Kind
	path     string
	resource string
}

var areaRoutes = []areaRoute{
	{kind: geoarea.KindContacts, path: "/geo_mapping/contacts", resource: "Geographic Area Contact"},
	{kind: geoarea.KindTargetCommunities, path: "/geo_mapping/target_communities", resource: "Geographic Area Target Community"},
	{kind: geoarea.KindGeographicAreas, path: "/geo_mapping/areas", resource: "Geographic Area"},
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(r *http.Request) error

// Option configures a Server.
type Option func(*Server)

// WithMetrics records resolutions and requests in m and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithStrictPolygons fails resolutions on malformed polygon areas.
func WithStrictPolygons(strict bool) Option {
	return func(s *Server) {
		s.strict = strict
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRequestTimeout bounds each request's context.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.health[name] = check
	}
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	catalog     catalog.Source
	geocoder    geoarea.Geocoder
	metrics     *metrics.Metrics
	strict      bool
	corsOrigins []string
	timeout     time.Duration
	health      map[string]HealthCheck

	resolvers map[geoarea.Kind]*geoarea.Resolver
}

// NewServer creates a Server over src, geocoding addresses with geocoder.
func NewServer(src catalog.Source, geocoder geoarea.Geocoder, opts ...Option) *Server {
	s := &Server{
		catalog:  src,
		geocoder: geocoder,
		timeout:  30 * time.Second,
		health:   map[string]HealthCheck{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.resolvers = make(map[geoarea.Kind]*geoarea.Resolver, len(areaRoutes)+1)
	for _, kind := range append(slices.Clone(geoarea.Kinds), templatesKind) {
		ropts := []geoarea.ResolverOption{geoarea.WithStrictPolygons(s.strict)}
		if s.metrics != nil {
			ropts = append(ropts, geoarea.WithMatchObserver(s.metrics.MatchObserver(kind)))
		}
		s.resolvers[kind] = geoarea.NewResolver(geocoder, ropts...)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{requestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	for _, route := range areaRoutes {
		r.Route(route.path, func(r chi.Router) {
			r.Get("/", s.handleListAreas(route))
			r.Get("/for_address", s.handleAreaForAddress(route))
			r.Get("/{id}", s.handleGetArea(route))
		})
	}

	r.Route("/auto_response_email_templates", func(r chi.Router) {
		r.Get("/", s.handleListTemplates)
		r.Get("/for_address", s.handleTemplateForAddress)
		r.Get("/{id}", s.handleGetTemplate)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}
