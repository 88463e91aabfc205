package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/coldcall/internal/config"
	"github.com/ent0n29/coldcall/internal/httpapi"
	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/observability"
	"github.com/ent0n29/coldcall/internal/session"
)

type ProviderInfo struct {
	Live      string
	Evaluator string
	Detail    string
}

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Catalog  *leads.Catalog
	Calls    *CallRunner
	Metrics  *observability.Metrics
	Provider ProviderInfo
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	setup, err := resolveProviders(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	// Status endpoints report the backend that actually resolved.
	cfg.LiveProvider = setup.resolvedProvider

	catalog := leads.NewCatalog()
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		metrics.ObserveSessionEvent("expired")
		metrics.SetActiveGames(sessions.ActiveCount())
		logger.Debug("game session expired", zap.String("session_id", s.ID))
	})

	calls := NewCallRunner(setup.dialer, setup.evaluator, setup.evaluatorName,
		cfg.ConnectionGrace, cfg.EvalTimeout, metrics, logger.Named("call"))

	api := httpapi.New(cfg, sessions, catalog, calls, metrics, logger.Named("http"))

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Catalog:  catalog,
		Calls:    calls,
		Metrics:  metrics,
		Provider: ProviderInfo{
			Live:      setup.resolvedProvider,
			Evaluator: setup.evaluatorName,
			Detail:    setup.detail,
		},
	}, nil
}

// JanitorInterval picks how often expired game sessions are swept.
func JanitorInterval(inactivity time.Duration) time.Duration {
	interval := inactivity / 4
	if interval < 5*time.Second {
		return 5 * time.Second
	}
	if interval > time.Minute {
		return time.Minute
	}
	return interval
}
