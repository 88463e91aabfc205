package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/coldcall/internal/game"
	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/session"
)

type industryRequest struct {
	Industry string `json:"industry"`
}

type difficultyRequest struct {
	Difficulty string `json:"difficulty"`
}

type leadRequest struct {
	LeadID string `json:"lead_id"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sess := s.sessions.Create(strings.TrimSpace(req.UserID))
	s.metrics.SetActiveGames(s.sessions.ActiveCount())
	s.metrics.ObserveSessionEvent("game_created")
	respondJSON(w, http.StatusCreated, s.sessions.View(sess))
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.sessions.View(sess))
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.End(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	s.metrics.SetActiveGames(s.sessions.ActiveCount())
	s.metrics.ObserveSessionEvent("game_ended")
	respondJSON(w, http.StatusOK, s.sessions.View(sess))
}

func (s *Server) handleSelectIndustry(w http.ResponseWriter, r *http.Request) {
	var req industryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.transition(w, r, func(g game.State) (game.State, error) {
		return g.SelectIndustry(leads.Industry(req.Industry))
	})
}

func (s *Server) handleSetDifficulty(w http.ResponseWriter, r *http.Request) {
	var req difficultyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.transition(w, r, func(g game.State) (game.State, error) {
		return g.SetDifficulty(leads.Difficulty(req.Difficulty))
	})
}

func (s *Server) handleSelectLead(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	lead, err := s.catalog.Get(strings.TrimSpace(req.LeadID))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	voice := s.randomVoice()
	s.transition(w, r, func(g game.State) (game.State, error) {
		return g.SelectLead(lead, voice)
	})
}

func (s *Server) handleBeginCall(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(g game.State) (game.State, error) { return g.BeginCall() })
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(g game.State) (game.State, error) { return g.Back() })
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(g game.State) (game.State, error) { return g.Reset(), nil })
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, fn func(game.State) (game.State, error)) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.UpdateIdle(id, fn)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	s.metrics.ObserveSessionEvent("game_" + strings.ReplaceAll(sess.Game.Screen(), ".", "_"))
	respondJSON(w, http.StatusOK, s.sessions.View(sess))
}
