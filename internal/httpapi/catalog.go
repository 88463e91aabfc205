package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/coldcall/internal/leads"
)

type industryResponse struct {
	Name      leads.Industry `json:"name"`
	Briefing  string         `json:"briefing"`
	LeadCount int            `json:"lead_count"`
}

func (s *Server) handleListIndustries(w http.ResponseWriter, _ *http.Request) {
	out := make([]industryResponse, 0, len(leads.Industries()))
	for _, ind := range leads.Industries() {
		out = append(out, industryResponse{
			Name:      ind,
			Briefing:  leads.Briefing(ind),
			LeadCount: len(s.catalog.Filter(ind, "")),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"industries": out})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	var (
		ind  leads.Industry
		diff leads.Difficulty
		err  error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("industry")); raw != "" {
		if ind, err = leads.ParseIndustry(raw); err != nil {
			respondDomainError(w, err)
			return
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("difficulty")); raw != "" {
		if diff, err = leads.ParseDifficulty(raw); err != nil {
			respondDomainError(w, err)
			return
		}
	}
	found := s.catalog.Filter(ind, diff)
	respondJSON(w, http.StatusOK, map[string]any{
		"leads": found,
		"count": len(found),
	})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"lead":     lead,
		"briefing": leads.Briefing(lead.Industry),
		"voice":    leads.VoiceForName(lead.Name),
	})
}
