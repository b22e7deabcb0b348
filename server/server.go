package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jonwraymond/datahub/auth"
	"github.com/jonwraymond/datahub/dispatch"
	"github.com/jonwraymond/datahub/health"
	"github.com/jonwraymond/datahub/observe"
	"github.com/jonwraymond/datahub/output"
	"github.com/jonwraymond/datahub/query"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

var (
	ErrNilRegistry   = errors.New("server: registry is nil")
	ErrNilDispatcher = errors.New("server: dispatcher is nil")
)

// Config wires the HTTP boundary.
type Config struct {
	Registry   *query.Registry
	Dispatcher *dispatch.Dispatcher

	// Health backs /healthz, /readyz and /health. Nil serves an aggregator
	// without checks.
	Health *health.Aggregator

	// Metrics is served on /metrics when set.
	Metrics http.Handler

	// Auth authenticates /, module listings and queries.
	Auth auth.MiddlewareConfig

	// Authorizer decides module access. Nil allows everything.
	Authorizer auth.Authorizer

	Logger observe.Logger

	// Debug shows cache paths in error responses.
	Debug bool
}

// Server is the DataHub HTTP handler.
type Server struct {
	registry   *query.Registry
	dispatcher *dispatch.Dispatcher
	authorizer auth.Authorizer
	logger     observe.Logger
	redact     redactor
	debug      bool
	router     chi.Router
}

var _ http.Handler = (*Server)(nil)

// New builds the router.
//
// Routes:
//
//	GET /healthz, /readyz, /health, /health/{name}
//	GET /metrics
//	GET /                          module listing
//	GET /<module>                  query listing
//	GET /<module>?qid=<q>&...      run a query
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, ErrNilRegistry
	}
	if cfg.Dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Health == nil {
		cfg.Health = health.NewAggregator(health.AggregatorConfig{})
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = auth.AllowAllAuthorizer{}
	}

	var roots []string
	for _, m := range cfg.Registry.Modules() {
		roots = append(roots, m.CacheRoot)
	}

	s := &Server{
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		authorizer: cfg.Authorizer,
		logger:     cfg.Logger,
		redact:     newRedactor(roots),
		debug:      cfg.Debug,
	}

	authCfg := cfg.Auth
	if authCfg.OnFailure == nil {
		authCfg.OnFailure = func(r *http.Request, err error) {
			s.logger.Warn(r.Context(), "authentication failed",
				observe.F("path", r.URL.Path),
				observe.F("request_id", dispatch.RequestIDFromContext(r.Context())),
				observe.F("error", err))
		}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)

	health.Mount(r, cfg.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(authCfg))
		r.Get("/", s.listModules)
		r.Get("/*", s.serveModule)
	})
	s.router = r
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestID reuses the client's X-Request-Id or assigns a new one, echoes
// it and hands it to the dispatcher through the context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(dispatch.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) listModules(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	listing := ModuleListing{Modules: []ModuleSummary{}}
	for _, m := range s.registry.Modules() {
		if s.authorizer.Authorize(r.Context(), &auth.AuthzRequest{Subject: id, Module: m.Path}) != nil {
			continue
		}
		listing.Modules = append(listing.Modules, ModuleSummary{Path: m.Path, Doc: m.Doc, URL: moduleURL(m.Path)})
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) serveModule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	module := query.CleanPath(chi.URLParam(r, "*"))
	params := firstValues(r)
	qid := params[query.ParamQueryID]

	if err := s.authorizer.Authorize(ctx, &auth.AuthzRequest{
		Subject: auth.IdentityFromContext(ctx),
		Module:  module,
		Query:   qid,
	}); err != nil {
		s.fail(w, r, module, err)
		return
	}

	if qid == "" {
		s.describeModule(w, r, module)
		return
	}

	res, err := s.dispatcher.Dispatch(ctx, module, params)
	if err != nil {
		s.fail(w, r, module, err)
		return
	}
	writeFormatted(w, res)
}

func (s *Server) describeModule(w http.ResponseWriter, r *http.Request, module string) {
	mod, err := s.registry.Module(module)
	if err != nil {
		s.fail(w, r, module, err)
		return
	}
	qs, err := s.registry.Queries(module)
	if err != nil {
		s.fail(w, r, module, err)
		return
	}
	writeJSON(w, http.StatusOK, documentModule(mod, qs))
}

// firstValues flattens the query string; repeated keys keep their first
// value.
func firstValues(r *http.Request) query.Params {
	values := r.URL.Query()
	params := make(query.Params, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func writeFormatted(w http.ResponseWriter, res output.Formatted) {
	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	if res.ContentEncoding != "" {
		h.Set("Content-Encoding", res.ContentEncoding)
	}
	h.Set("Content-Length", strconv.Itoa(len(res.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, module string, err error) {
	ctx := r.Context()
	code := StatusFor(err)
	resp := ErrorResponse{
		Error:     err.Error(),
		Status:    code,
		Chain:     chain(err),
		RequestID: dispatch.RequestIDFromContext(ctx),
	}
	if !s.debug {
		resp.Error = s.redact.apply(resp.Error)
		for i := range resp.Chain {
			resp.Chain[i] = s.redact.apply(resp.Chain[i])
		}
	}

	fields := []observe.Field{
		observe.F("module", module),
		observe.F("status", code),
		observe.F("request_id", resp.RequestID),
		observe.F("caller", auth.CallerIDFromContext(ctx)),
		observe.F("user", auth.PrincipalFromContext(ctx)),
		observe.F("error", err),
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error(ctx, "request failed", fields...)
	} else {
		s.logger.Debug(ctx, "request rejected", fields...)
	}
	writeJSON(w, code, resp)
}
