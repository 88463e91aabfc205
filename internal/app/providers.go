package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ent0n29/coldcall/internal/coach"
	"github.com/ent0n29/coldcall/internal/config"
	"github.com/ent0n29/coldcall/internal/live"
)

type providerSetup struct {
	dialer           live.Dialer
	evaluator        coach.Evaluator
	evaluatorName    string
	resolvedProvider string
	detail           string
}

func resolveProviders(ctx context.Context, cfg config.Config, logger *zap.Logger) (providerSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.LiveProvider))
	if mode == "" {
		mode = config.ProviderAuto
	}

	tryGemini := func() (providerSetup, error) {
		client, err := newGeminiClient(ctx, cfg)
		if err != nil {
			return providerSetup{}, err
		}
		return providerSetup{
			dialer:           live.NewGeminiDialer(client, cfg.LiveModel, logger.Named("live")),
			evaluator:        newGeminiEvaluator(client, cfg, logger),
			evaluatorName:    "gemini",
			resolvedProvider: config.ProviderGemini,
			detail:           fmt.Sprintf("gemini live (%s), coach %s", cfg.LiveModel, cfg.EvalModel),
		}, nil
	}

	tryScript := func() (providerSetup, error) {
		script := live.DefaultScript()
		source := "built-in script"
		if path := strings.TrimSpace(cfg.ScriptPath); path != "" {
			loaded, err := live.LoadScript(path)
			if err != nil {
				return providerSetup{}, fmt.Errorf("live script load failed: %w", err)
			}
			script = loaded
			source = path
		}
		return providerSetup{
			dialer:           live.NewScriptDialer(script, logger.Named("live")),
			evaluator:        coach.NewRubricEvaluator(),
			evaluatorName:    "rubric",
			resolvedProvider: config.ProviderScript,
			detail:           fmt.Sprintf("offline (%s), rubric coach", source),
		}, nil
	}

	switch mode {
	case config.ProviderGemini:
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return providerSetup{}, fmt.Errorf("live provider %q requires GEMINI_API_KEY", mode)
		}
		return tryGemini()
	case config.ProviderScript:
		return tryScript()
	case config.ProviderAuto:
		if cfg.UseGemini() {
			return tryGemini()
		}
		return tryScript()
	default:
		return providerSetup{}, fmt.Errorf("unsupported live provider %q", cfg.LiveProvider)
	}
}

// ResolveEvaluator picks the coach for offline replays: Gemini when asked for
// and a key is configured, the local rubric otherwise.
func ResolveEvaluator(ctx context.Context, cfg config.Config, useGemini bool, logger *zap.Logger) (coach.Evaluator, string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !useGemini {
		return coach.NewRubricEvaluator(), "rubric", nil
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, "", fmt.Errorf("gemini coach requires GEMINI_API_KEY")
	}
	client, err := newGeminiClient(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	return newGeminiEvaluator(client, cfg, logger), "gemini", nil
}

func newGeminiClient(ctx context.Context, cfg config.Config) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client init failed: %w", err)
	}
	return client, nil
}

func newGeminiEvaluator(client *genai.Client, cfg config.Config, logger *zap.Logger) *coach.GeminiEvaluator {
	return coach.NewGeminiEvaluator(client.Models, coach.GeminiConfig{
		Model:       cfg.EvalModel,
		Temperature: float32(cfg.EvalTemperature),
	}, logger.Named("coach"))
}
