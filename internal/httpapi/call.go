package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/coldcall/internal/call"
	"github.com/ent0n29/coldcall/internal/game"
	"github.com/ent0n29/coldcall/internal/protocol"
)

const (
	wsReadLimit    = 2 << 20
	wsReadTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsQueueSize    = 256
)

var errWriteFailed = errors.New("websocket write failed")

func (s *Server) handleCallWS(w http.ResponseWriter, r *http.Request) {
	if s.calls == nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "call runner not configured")
		return
	}
	sessionID := chi.URLParam(r, "id")
	current, err := s.sessions.Get(sessionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if current.Game.Step != game.StepRoleplay || current.Game.CurrentLead == nil {
		respondError(w, http.StatusConflict, "invalid_transition", "game is not on the roleplay screen")
		return
	}
	if !s.limiter.Allow() {
		respondError(w, http.StatusTooManyRequests, "rate_limited", "too many calls are starting, retry shortly")
		return
	}
	sess, err := s.sessions.AcquireCall(sessionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	released := false
	release := func() {
		if !released {
			released = true
			s.sessions.ReleaseCall(sessionID)
		}
	}
	defer release()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logger := s.logger.With(zap.String("session_id", sessionID), zap.String("lead_id", sess.Game.CurrentLead.ID))
	s.metrics.ObserveSessionEvent("ws_connected")
	callEnded := s.metrics.CallStarted()
	defer callEnded()

	inbound := make(chan any, wsQueueSize)
	outbound := make(chan any, wsQueueSize)
	runDone := make(chan struct{})

	g, ctx := errgroup.WithContext(r.Context())

	var (
		result call.Result
		runErr error
	)
	g.Go(func() error {
		defer close(runDone)
		result, runErr = s.calls.RunCall(ctx, sessionID, *sess.Game.CurrentLead, sess.Game.VoiceSettings, inbound, outbound)
		return nil
	})

	g.Go(func() error {
		// Closing the socket unblocks the reader once writing stops.
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-outbound:
				if err := s.writeMessage(conn, msg); err != nil {
					return err
				}
			case <-runDone:
				for {
					select {
					case msg := <-outbound:
						if err := s.writeMessage(conn, msg); err != nil {
							return err
						}
					default:
						_ = conn.WriteControl(websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call finished"),
							time.Now().Add(time.Second))
						return nil
					}
				}
			}
		}
	})

	g.Go(func() error {
		defer close(inbound)
		s.readLoop(ctx, conn, sessionID, inbound, outbound, runDone)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Debug("call websocket closed", zap.Error(err))
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Warn("call ended abnormally", zap.Error(runErr))
	}

	if runErr == nil && result.Status == call.StatusClosed {
		if _, err := s.sessions.Update(sessionID, func(gs game.State) (game.State, error) {
			return gs.EndCall(result.Messages, result.Evaluation)
		}); err != nil {
			logger.Warn("store call result", zap.Error(err))
		}
	}
	release()
	s.metrics.ObserveSessionEvent("ws_disconnected")
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string, inbound, outbound chan<- any, runDone <-chan struct{}) {
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
				s.metrics.ObserveOutboundMessage(string(protocol.TypeErrorEvent), "queued")
			default:
				s.metrics.ObserveOutboundMessage(string(protocol.TypeErrorEvent), "drop_full")
			}
			continue
		}

		if t, ok := protocol.TypeOf(parsed); ok {
			s.metrics.ObserveWSMessage("inbound", string(t))
		}
		_ = s.sessions.Touch(sessionID)
		select {
		case <-ctx.Done():
			return
		case <-runDone:
			return
		case inbound <- parsed:
		}
	}
}

func (s *Server) writeMessage(conn *websocket.Conn, msg any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		return errors.Join(errWriteFailed, err)
	}
	if t, ok := protocol.TypeOf(msg); ok {
		s.metrics.ObserveWSMessage("outbound", string(t))
	}
	return nil
}
