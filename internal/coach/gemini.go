package coach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/prompt"
	"github.com/ent0n29/coldcall/internal/transcript"
)

const (
	DefaultGeminiModel       = "gemini-3.1-pro-preview"
	DefaultGeminiTemperature = 0.3
)

// ContentGenerator is the slice of the genai Models service the evaluator needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiConfig struct {
	Model       string
	Temperature float32
}

// GeminiEvaluator asks a Gemini text model for the scorecard.
type GeminiEvaluator struct {
	models ContentGenerator
	cfg    GeminiConfig
	logger *zap.Logger
}

func NewGeminiEvaluator(models ContentGenerator, cfg GeminiConfig, logger *zap.Logger) *GeminiEvaluator {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultGeminiTemperature
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiEvaluator{models: models, cfg: cfg, logger: logger}
}

func (e *GeminiEvaluator) Evaluate(ctx context.Context, msgs []transcript.Message, lead leads.Lead) (string, error) {
	ctx, span := otel.Tracer("coldcall/coach").Start(ctx, "GeminiEvaluator.Evaluate",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("lead.id", lead.ID),
		attribute.String("model", e.cfg.Model),
		attribute.Int("transcript.messages", len(msgs)),
	)

	temperature := e.cfg.Temperature
	started := time.Now()
	resp, err := e.models.GenerateContent(ctx, e.cfg.Model, genai.Text(prompt.EvaluationContent(msgs, lead)), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: prompt.EvaluationInstruction()}}},
		Temperature:       &temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content failed")
		e.logger.Error("evaluation request failed", zap.String("lead_id", lead.ID), zap.Error(err))
		return "", fmt.Errorf("generate evaluation: %w", err)
	}

	text := ""
	if resp != nil {
		text = resp.Text()
	}
	if strings.TrimSpace(text) == "" {
		span.AddEvent("EmptyResponse", trace.WithAttributes(
			attribute.Int64("latency_ms", time.Since(started).Milliseconds()),
		))
		e.logger.Warn("evaluation response was empty", zap.String("lead_id", lead.ID))
		text = EmptyEvaluation
	}
	e.logger.Info("evaluation received",
		zap.String("lead_id", lead.ID),
		zap.Int("chars", len(text)),
		zap.Duration("latency", time.Since(started)),
	)
	return prompt.StripFormatting(text), nil
}
