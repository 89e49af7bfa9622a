package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/raisekit/pkg/authevents"
	"github.com/dmitrymomot/raisekit/pkg/cookie"
	"github.com/dmitrymomot/raisekit/pkg/handler"
	"github.com/dmitrymomot/raisekit/pkg/jwt"
	"github.com/dmitrymomot/raisekit/pkg/logger"
	"github.com/dmitrymomot/raisekit/pkg/pagestate"
	"github.com/dmitrymomot/raisekit/pkg/statemachine"
	"github.com/dmitrymomot/raisekit/svc/profile"
	"github.com/dmitrymomot/raisekit/svc/reconciler"
)

var browserIDKey = handler.NewContextKey("browser_id")

// BrowserIDFromContext returns the browser identified for the request.
func BrowserIDFromContext(ctx context.Context) string {
	return handler.ContextValue[string](ctx, browserIDKey)
}

// BrowserIDExtractor adds the browser id to log records.
func BrowserIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := BrowserIDFromContext(ctx); id != "" {
			return logger.BrowserID(id), true
		}
		return slog.Attr{}, false
	}
}

// Module is the HTTP surface of the coordinator.
type Module struct {
	registry  *Registry
	publisher authevents.Publisher
	cookies   *cookie.Manager
	tokens    *jwt.Service
	cfg       Config
	log       *slog.Logger
	debug     bool
	onError   handler.ErrorHandler
}

type ModuleOption func(*Module)

// WithPublisher replaces the in-process event publisher, e.g. with a
// Redis bridge.
func WithPublisher(p authevents.Publisher) ModuleOption {
	return func(m *Module) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithDebug exposes the debug controller routes.
func WithDebug(enabled bool) ModuleOption {
	return func(m *Module) { m.debug = enabled }
}

func WithModuleLogger(l *slog.Logger) ModuleOption {
	return func(m *Module) {
		if l != nil {
			m.log = l
		}
	}
}

// NewModule builds the HTTP surface. Sessions reach it only as provider
// access tokens verified by tokens.
func NewModule(registry *Registry, cookies *cookie.Manager, tokens *jwt.Service, cfg Config, opts ...ModuleOption) *Module {
	m := &Module{
		registry:  registry,
		publisher: authevents.NewLocalPublisher(registry.Hub),
		cookies:   cookies,
		tokens:    tokens,
		cfg:       cfg,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.onError = handler.NewErrorHandler(m.log, classify)
	return m
}

// Handle returns the module router.
//
//	r := chi.NewRouter()
//	r.Use(handler.RequestID)
//	r.Mount("/api", coordinator.NewModule(registry, cookies, tokens, cfg).Handle())
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(m.identify)

	bind := handler.WithBinders(handler.BindPath(chi.URLParam), handler.BindJSON())
	onErr := handler.WithErrorHandler(m.onError)

	r.With(m.verifyProvider).Post("/auth/events", handler.Wrap(m.publishEvent, bind, onErr))
	r.Post("/tabs", handler.Wrap(m.openTab, bind, onErr))
	r.Route("/tabs/{tab}", func(r chi.Router) {
		r.Get("/", handler.Wrap(m.getTab, bind, onErr))
		r.Delete("/", handler.Wrap(m.closeTab, bind, onErr))
		r.Post("/navigate", handler.Wrap(m.navigate, bind, onErr))
		r.Post("/transitions", handler.Wrap(m.fire, bind, onErr))
		r.Post("/view", handler.Wrap(m.setView, bind, onErr))
		r.Get("/profiles", handler.Wrap(m.listProfiles, bind, onErr))
		r.Post("/profiles/active", handler.Wrap(m.switchProfile, bind, onErr))

		r.Route("/debug", func(r chi.Router) {
			r.Get("/", handler.Wrap(m.debugSnapshot, bind, onErr))
			r.Post("/reload", handler.Wrap(m.debugReload, bind, onErr))
			r.Post("/dedup/clear", handler.Wrap(m.debugClearDedup, bind, onErr))
			r.Post("/resume", handler.Wrap(m.debugResume, bind, onErr))
			r.Post("/replay", handler.Wrap(m.debugReplay, bind, onErr))
		})
	})
	return r
}

// identify reads the signed browser cookie, issuing a new browser id when it
// is missing or tampered with.
func (m *Module) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, err := m.cookies.GetSigned(r, m.cfg.BrowserCookie)
		if err != nil {
			current = ""
		}
		id, err := m.registry.Browser(current)
		if err != nil {
			m.onError(handler.NewContext(w, r), err)
			return
		}
		if id != current {
			m.cookies.SetSigned(w, m.cfg.BrowserCookie, id, m.cfg.BrowserCookieTTL)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), browserIDKey, id)))
	})
}

// verifyProvider decodes the provider's bearer token, when present, into
// authevents.ProviderClaims. A token that fails verification rejects the
// request.
func (m *Module) verifyProvider(next http.Handler) http.Handler {
	return jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
		Service:   m.tokens,
		NewClaims: func() jwt.Claims { return &authevents.ProviderClaims{} },
		Optional:  true,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			m.onError(handler.NewContext(w, r), errors.Join(ErrUnverifiedSession, err))
		},
	})(next)
}

func (m *Module) tab(ctx context.Context, tabID string) (*reconciler.Tab, error) {
	return m.registry.Tab(BrowserIDFromContext(ctx), tabID)
}

// debugController returns the debug controller of a tab when debug mode is on.
func (m *Module) debugController(ctx context.Context, tabID string) (reconciler.DebugController, error) {
	if !m.debug {
		return nil, reconciler.ErrDebugDisabled
	}
	tab, err := m.tab(ctx, tabID)
	if err != nil {
		return nil, err
	}
	return tab, nil
}

func classify(err error) (handler.HTTPError, bool) {
	var e handler.HTTPError
	switch {
	case errors.Is(err, ErrTabNotFound), errors.Is(err, profile.ErrNotFound):
		e = handler.ErrNotFound
	case errors.Is(err, ErrTabNotOwned),
		errors.Is(err, profile.ErrNotOwned),
		errors.Is(err, reconciler.ErrDebugDisabled),
		errors.Is(err, reconciler.ErrEmailNotConfirmed):
		e = handler.ErrForbidden
	case errors.Is(err, reconciler.ErrNotSignedIn), errors.Is(err, ErrUnverifiedSession):
		e = handler.ErrUnauthorized
	case errors.Is(err, ErrTooManyTabs):
		e = handler.NewHTTPError(http.StatusTooManyRequests, "too_many_tabs")
	case errors.Is(err, ErrRegistryClosed):
		e = handler.NewHTTPError(http.StatusServiceUnavailable, "unavailable")
	case errors.Is(err, ErrInvalidURL),
		errors.Is(err, pagestate.ErrInvalidTrigger),
		errors.Is(err, pagestate.ErrInvalidView),
		errors.Is(err, authevents.ErrInvalidEvent),
		errors.Is(err, authevents.ErrNoSession),
		errors.Is(err, profile.ErrEmptyProfileID):
		e = handler.ErrBadRequest
	case statemachine.IsNoTransitionAvailableError(err), statemachine.IsTransitionRejectedError(err):
		e = handler.ErrConflict
	default:
		return handler.HTTPError{}, false
	}
	return e.WithMessage(err.Error()), true
}
