package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/claralabs/clara/internal/agent"
	"github.com/claralabs/clara/internal/identity"
	"github.com/claralabs/clara/internal/session"
	"github.com/claralabs/clara/internal/tools"
)

// sessionCookie carries the opaque session token.
const sessionCookie = "sid"

// TurnRunner processes one conversation turn.
type TurnRunner interface {
	Run(ctx context.Context, req agent.Request, turn *tools.Turn, emit func(string) error) error
}

// SessionResolver maps a session token to its identity.
type SessionResolver interface {
	Resolve(ctx context.Context, token uuid.UUID) (*identity.Identity, error)
}

type agentRequest struct {
	Query string          `json:"query"`
	Files []agent.FileRef `json:"uploadedFiles"`
}

type agentHandler struct {
	runner   TurnRunner
	sessions SessionResolver
	isDev    bool
	logger   *slog.Logger
}

// handle processes POST /api/agent. The answer is streamed as chunked
// plain text; all cookie mutations happen during tool dispatch, before
// the first body write.
func (h *agentHandler) handle(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query is required")
		return
	}

	caller, token := h.resolveSession(r)
	turn := tools.NewTurn(caller, token,
		func(tok uuid.UUID) { h.setSessionCookie(w, tok) },
		func() { h.clearSessionCookie(w) },
	)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	rc := http.NewResponseController(w)
	wrote := false
	emit := func(chunk string) error {
		if chunk == "" {
			return nil
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err
		}
		wrote = true
		return rc.Flush()
	}

	err := h.runner.Run(r.Context(), agent.Request{Query: req.Query, Files: req.Files}, turn, emit)
	if err != nil {
		h.logger.Error("turn failed", "error", err, "authenticated", caller != nil)
		if !wrote {
			writeError(w, http.StatusInternalServerError, "internal_error", "could not process the message")
		}
	}
}

// resolveSession reads the session cookie and resolves it to an identity.
// Any failure (missing cookie, malformed token, expired session) yields
// an anonymous turn, never an error response.
func (h *agentHandler) resolveSession(r *http.Request) (*identity.Identity, *uuid.UUID) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, nil
	}

	token, err := uuid.Parse(cookie.Value)
	if err != nil {
		return nil, nil
	}

	caller, err := h.sessions.Resolve(r.Context(), token)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			h.logger.Warn("session resolution failed", "error", err)
		}
		return nil, &token
	}
	return caller, &token
}

func (h *agentHandler) setSessionCookie(w http.ResponseWriter, token uuid.UUID) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token.String(),
		Path:     "/",
		MaxAge:   int(session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   !h.isDev,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *agentHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !h.isDev,
		SameSite: http.SameSiteLaxMode,
	})
}
