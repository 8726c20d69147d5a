// Package telegram exposes the conversation controller as a Bot API webhook.
package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "asset-lookup-bot/internal/common/errors"
	"asset-lookup-bot/internal/common/logger"
	"asset-lookup-bot/internal/common/validation"
	"asset-lookup-bot/internal/lookup/conversation"
)

const maxBodyBytes = 1 << 20

// TurnHandler runs one conversation turn.
type TurnHandler interface {
	Handle(ctx context.Context, msg conversation.Inbound) conversation.Reply
}

// Sender delivers a reply to a chat.
type Sender interface {
	SendReply(ctx context.Context, chatID int64, reply conversation.Reply) error
}

// Check is a named readiness probe.
type Check func(ctx context.Context) error

type Server struct {
	webhookPath string
	turns       TurnHandler
	sender      Sender
	validator   *validation.Validator
	checks      map[string]Check
	logger      logger.Logger
}

func NewServer(webhookPath string, turns TurnHandler, sender Sender, log logger.Logger) (*Server, error) {
	v, err := validation.NewValidator(validation.UpdateSchema)
	if err != nil {
		return nil, err
	}
	return &Server{
		webhookPath: webhookPath,
		turns:       turns,
		sender:      sender,
		validator:   v,
		checks:      make(map[string]Check),
		logger:      log.WithFields(map[string]interface{}{"component": "webhook"}),
	}, nil
}

// AddCheck registers a dependency probe for /ready.
func (s *Server) AddCheck(name string, check Check) {
	s.checks[name] = check
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post(s.webhookPath, s.handleUpdate)
	r.Get(s.webhookPath, s.handlePing)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewInvalidPayloadError(err.Error()))
		return
	}

	if result := s.validator.ValidateBytes(body); !result.Valid {
		s.logger.Warn("rejected update", map[string]interface{}{
			"requestId": middleware.GetReqID(r.Context()),
			"errors":    result.Errors,
		})
		writeError(w, http.StatusBadRequest, apperrors.NewInvalidPayloadError(result.Error()))
		return
	}

	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewInvalidPayloadError(err.Error()))
		return
	}

	if update.Message == nil || update.Message.Text == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	msg := update.Message
	reply := s.turns.Handle(r.Context(), conversation.Inbound{OperatorID: msg.From.ID, Text: msg.Text})

	if err := s.sender.SendReply(r.Context(), msg.Chat.ID, reply); err != nil {
		// Still 200: Telegram redelivers on non-2xx, which would re-run the turn.
		s.logger.Error("failed to deliver reply", map[string]interface{}{
			"updateId":   update.UpdateID,
			"operatorId": msg.From.ID,
			"error":      err,
		})
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, status, map[string]interface{}{"ready": status == http.StatusOK, "checks": results})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err *apperrors.StandardError) {
	writeJSON(w, status, err)
}
