package httpapi

import (
	"net/http"

	"github.com/ent0n29/coldcall/internal/audio"
	"github.com/ent0n29/coldcall/internal/prompt"
)

type uiSettingsResponse struct {
	LiveProvider      string `json:"live_provider"`
	InputSampleRate   int    `json:"input_sample_rate"`
	OutputSampleRate  int    `json:"output_sample_rate"`
	ConnectionGraceMS int64  `json:"connection_grace_ms"`
	TerminationPhrase string `json:"termination_phrase"`
}

func (s *Server) handleUISettings(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, uiSettingsResponse{
		LiveProvider:      s.liveProvider(),
		InputSampleRate:   audio.InputSampleRate,
		OutputSampleRate:  audio.OutputSampleRate,
		ConnectionGraceMS: s.cfg.ConnectionGrace.Milliseconds(),
		TerminationPhrase: prompt.TerminationPhrase,
	})
}
