package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ent0n29/coldcall/internal/call"
	"github.com/ent0n29/coldcall/internal/config"
	"github.com/ent0n29/coldcall/internal/game"
	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/observability"
	"github.com/ent0n29/coldcall/internal/session"
)

// CallRunner runs one call to completion over the given message channels.
type CallRunner interface {
	RunCall(ctx context.Context, sessionID string, lead leads.Lead, voice leads.VoiceSettings, inbound <-chan any, outbound chan<- any) (call.Result, error)
}

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	catalog  *leads.Catalog
	calls    CallRunner
	metrics  *observability.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
	static   http.Handler
	limiter  *rate.Limiter

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(cfg config.Config, sessions *session.Manager, catalog *leads.Catalog, calls CallRunner, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if catalog == nil {
		catalog = leads.NewCatalog()
	}
	callRate := rate.Inf
	if cfg.CallStartRate > 0 {
		callRate = rate.Limit(cfg.CallStartRate)
	}
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		catalog:  catalog,
		calls:    calls,
		metrics:  metrics,
		logger:   logger,
		static:   newStaticHandler(),
		limiter:  rate.NewLimiter(callRate, max(cfg.CallStartBurst, 1)),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a microphone session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/onboarding/status", s.handleOnboardingStatus)
		r.Get("/ui/settings", s.handleUISettings)
		r.Get("/perf/calls", s.handlePerfCalls)

		r.Get("/industries", s.handleListIndustries)
		r.Get("/leads", s.handleListLeads)
		r.Get("/leads/{id}", s.handleGetLead)

		r.Post("/games", s.handleCreateGame)
		r.Route("/games/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetGame)
			r.Delete("/", s.handleDeleteGame)
			r.Post("/industry", s.handleSelectIndustry)
			r.Post("/difficulty", s.handleSetDifficulty)
			r.Post("/lead", s.handleSelectLead)
			r.Post("/begin", s.handleBeginCall)
			r.Post("/back", s.handleBack)
			r.Post("/reset", s.handleReset)
			r.Get("/call", s.handleCallWS)
		})
	})

	return otelhttp.NewHandler(r, "coldcall.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"live_provider": s.liveProvider(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.calls == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"reason": "call runner not configured",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"live_provider": s.liveProvider(),
		"active_games":  s.sessions.ActiveCount(),
	})
}

func (s *Server) liveProvider() string {
	if s.cfg.UseGemini() {
		return config.ProviderGemini
	}
	return config.ProviderScript
}

func (s *Server) randomVoice() leads.VoiceSettings {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return leads.RandomVoiceSettings(s.rng)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondDomainError maps package sentinel errors onto HTTP status codes.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, leads.ErrUnknownLead):
		respondError(w, http.StatusNotFound, "lead_not_found", err.Error())
	case errors.Is(err, leads.ErrUnknownIndustry), errors.Is(err, leads.ErrUnknownDifficulty):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, game.ErrBackDisabled):
		respondError(w, http.StatusConflict, "back_disabled", err.Error())
	case errors.Is(err, game.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, session.ErrCallInProgress):
		respondError(w, http.StatusConflict, "call_in_progress", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
