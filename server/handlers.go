package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
	"github.com/xhad/handbook/pkg/rag"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type titleRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	s.answer(w, r, s.chat.Ask)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.answer(w, r, s.chat.Chat)
}

func (s *Server) handleSessionChat(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	s.answer(w, r, func(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
		return s.chat.SessionChat(ctx, id, req)
	})
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request, run func(context.Context, models.ChatRequest) (models.ChatResponse, error)) {
	var req models.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := run(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, err)
		return
	}

	id, err := s.conversations.Create(r.Context(), req.Title)
	if err != nil {
		s.writeError(w, r, &rag.PersistenceError{Op: "create", Err: err})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": id})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.conversations.List(r.Context())
	if err != nil {
		s.writeError(w, r, &rag.PersistenceError{Op: "list", Err: err})
		return
	}
	if sessions == nil {
		sessions = []models.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.conversations.Rename(r.Context(), id, req.Title); err != nil {
		s.writeError(w, r, storeError("rename", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if err := s.conversations.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, storeError("delete", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	limit := s.config.MessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, &rag.ValidationError{Field: "limit", Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	if _, err := s.conversations.Get(r.Context(), id); err != nil {
		s.writeError(w, r, storeError("get", err))
		return
	}
	messages, err := s.conversations.GetMessages(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, storeError("get_messages", err))
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, &rag.ValidationError{Field: "id", Message: "id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// storeError keeps caller mistakes visible and wraps everything else as a
// store outage.
func storeError(op string, err error) error {
	if errors.Is(err, types.ErrConversationNotFound) ||
		errors.Is(err, types.ErrInvalidTitle) ||
		errors.Is(err, types.ErrInvalidRole) {
		return err
	}
	return &rag.PersistenceError{Op: op, Err: err}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "request_id", middleware.GetReqID(r.Context()), "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

// errorResponse maps a pipeline or store error to its HTTP status. Upstream
// and store details stay in the logs.
func errorResponse(err error) (int, errorBody) {
	var (
		validationErr  *rag.ValidationError
		upstreamErr    *rag.UpstreamError
		persistenceErr *rag.PersistenceError
		syntaxErr      *json.SyntaxError
		typeErr        *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, errorBody{Error: validationErr.Message, Field: validationErr.Field}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest, errorBody{Error: "malformed JSON body"}
	case errors.Is(err, types.ErrInvalidTitle):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Field: "title"}
	case errors.Is(err, types.ErrInvalidRole):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Field: "role"}
	case errors.Is(err, types.ErrConversationNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Error: "request timed out"}
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway, errorBody{Error: "upstream " + upstreamErr.Stage + " step failed"}
	case errors.As(err, &persistenceErr):
		return http.StatusServiceUnavailable, errorBody{Error: "conversation store unavailable"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
