package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/ent0n29/coldcall/internal/config"
)

type onboardingCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type onboardingStatusResponse struct {
	LiveProvider      string            `json:"live_provider"`
	EvaluatorProvider string            `json:"evaluator_provider"`
	LeadCount         int               `json:"lead_count"`
	Checks            []onboardingCheck `json:"checks"`
}

func (s *Server) handleOnboardingStatus(w http.ResponseWriter, _ *http.Request) {
	provider := s.liveProvider()
	evaluator := "rubric"
	if s.cfg.UseGemini() {
		evaluator = "gemini"
	}

	checks := make([]onboardingCheck, 0, 6)
	checks = append(checks, onboardingCheck{
		ID:     "live_provider",
		Status: "ok",
		Label:  "Prospect voice",
		Detail: provider,
	})
	checks = append(checks, s.credentialCheck())
	if provider == config.ProviderScript {
		checks = append(checks, s.scriptCheck())
	} else {
		checks = append(checks, onboardingCheck{
			ID:     "live_model",
			Status: "ok",
			Label:  "Live model",
			Detail: s.cfg.LiveModel,
		})
	}
	checks = append(checks, s.evaluatorCheck(evaluator))
	if s.cfg.AllowAnyOrigin {
		checks = append(checks, onboardingCheck{
			ID:     "origin",
			Status: "warn",
			Label:  "Websocket origin",
			Detail: "any origin may open a call",
			Fix:    "Unset APP_ALLOW_ANY_ORIGIN outside local development.",
		})
	}
	if s.calls == nil {
		checks = append(checks, onboardingCheck{
			ID:     "call_runner",
			Status: "error",
			Label:  "Call runner",
			Detail: "not configured",
		})
	}

	respondJSON(w, http.StatusOK, onboardingStatusResponse{
		LiveProvider:      provider,
		EvaluatorProvider: evaluator,
		LeadCount:         s.catalog.Len(),
		Checks:            checks,
	})
}

func (s *Server) credentialCheck() onboardingCheck {
	if strings.TrimSpace(s.cfg.GeminiAPIKey) != "" {
		return onboardingCheck{
			ID:     "gemini_api_key",
			Status: "ok",
			Label:  "Gemini credentials",
			Detail: "configured",
		}
	}
	status := "warn"
	if s.cfg.LiveProvider == config.ProviderGemini {
		status = "error"
	}
	return onboardingCheck{
		ID:     "gemini_api_key",
		Status: status,
		Label:  "Gemini credentials",
		Detail: "missing, running offline",
		Fix:    "Set GEMINI_API_KEY to talk to a live prospect.",
	}
}

func (s *Server) scriptCheck() onboardingCheck {
	path := strings.TrimSpace(s.cfg.ScriptPath)
	if path == "" {
		return onboardingCheck{
			ID:     "live_script",
			Status: "ok",
			Label:  "Offline script",
			Detail: "built-in",
		}
	}
	if _, err := os.Stat(path); err != nil {
		return onboardingCheck{
			ID:     "live_script",
			Status: "error",
			Label:  "Offline script",
			Detail: fmt.Sprintf("%s: %v", path, err),
			Fix:    "Point LIVE_SCRIPT_PATH at a readable YAML script.",
		}
	}
	return onboardingCheck{
		ID:     "live_script",
		Status: "ok",
		Label:  "Offline script",
		Detail: path,
	}
}

func (s *Server) evaluatorCheck(evaluator string) onboardingCheck {
	if evaluator == "gemini" {
		return onboardingCheck{
			ID:     "evaluator",
			Status: "ok",
			Label:  "Coach",
			Detail: fmt.Sprintf("%s (timeout %s)", s.cfg.EvalModel, s.cfg.EvalTimeout),
		}
	}
	return onboardingCheck{
		ID:     "evaluator",
		Status: "warn",
		Label:  "Coach",
		Detail: "local rubric",
		Fix:    "Set GEMINI_API_KEY for model-written coaching.",
	}
}
