package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/pkg/rag"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the UI is served from another origin in development
	},
}

// Message is one websocket frame sent to the client: "status" frames carry
// a pipeline state, then one "response" or "error" frame ends the request.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// handleWebSocket answers every inbound ChatRequest frame with the
// history-aware pipeline. Frames are handled in order so writes never
// interleave.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := s.log.With("request_id", middleware.GetReqID(r.Context()))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read ended", "error", err)
			}
			return
		}

		var req models.ChatRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: "malformed JSON frame"})
			continue
		}

		s.handleFrame(r.Context(), conn, req)
	}
}

func (s *Server) handleFrame(parent context.Context, conn *websocket.Conn, req models.ChatRequest) {
	ctx, cancel := context.WithTimeout(parent, s.config.RequestTimeout)
	defer cancel()

	ctx = rag.WithStateObserver(ctx, func(state rag.State) {
		s.sendMessage(conn, Message{Type: "status", Content: string(state)})
	})

	resp, err := s.chat.Chat(ctx, req)
	if err != nil {
		_, body := errorResponse(err)
		s.sendMessage(conn, Message{Type: "error", Content: body.Error})
		return
	}
	s.sendMessage(conn, Message{Type: "response", Data: resp})
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn("error sending websocket message", "type", msg.Type, "error", err)
	}
}
