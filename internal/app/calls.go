package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/coldcall/internal/call"
	"github.com/ent0n29/coldcall/internal/coach"
	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/live"
	"github.com/ent0n29/coldcall/internal/observability"
)

// CallRunner starts one call.Session per websocket connection.
type CallRunner struct {
	dialer        live.Dialer
	evaluator     coach.Evaluator
	evaluatorName string
	grace         time.Duration
	evalTimeout   time.Duration
	metrics       *observability.Metrics
	logger        *zap.Logger
}

func NewCallRunner(dialer live.Dialer, evaluator coach.Evaluator, evaluatorName string, grace, evalTimeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *CallRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallRunner{
		dialer:        dialer,
		evaluator:     evaluator,
		evaluatorName: evaluatorName,
		grace:         grace,
		evalTimeout:   evalTimeout,
		metrics:       metrics,
		logger:        logger,
	}
}

func (r *CallRunner) RunCall(ctx context.Context, sessionID string, lead leads.Lead, voice leads.VoiceSettings, inbound <-chan any, outbound chan<- any) (call.Result, error) {
	sess := call.NewSession(call.Config{
		SessionID:         sessionID,
		Lead:              lead,
		Voice:             voice,
		ConnectionGrace:   r.grace,
		EvaluationTimeout: r.evalTimeout,
		EvaluatorName:     r.evaluatorName,
	}, r.dialer, r.evaluator,
		call.WithLogger(r.logger),
		call.WithMetrics(r.metrics),
	)
	return sess.Run(ctx, inbound, outbound)
}
