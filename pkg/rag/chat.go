package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
	"github.com/xhad/handbook/pkg/conversation"
	"github.com/xhad/handbook/pkg/logger"
	"github.com/xhad/handbook/pkg/metrics"
)

type State string

const (
	StateReceived   State = "received"
	StateCondensing State = "condensing"
	StateRetrieving State = "retrieving"
	StateNoContext  State = "short_circuit_no_context"
	StateComposing  State = "composing"
	StateDone       State = "done"
)

// Sessions still called "New chat" take their title from the first question.
const autoTitleRuneLength = 40

// StateObserver is told about every pipeline transition of one request.
type StateObserver func(State)

type observerKey struct{}

// WithStateObserver attaches an observer to ctx. The websocket transport
// uses it to stream progress.
func WithStateObserver(ctx context.Context, observer StateObserver) context.Context {
	return context.WithValue(ctx, observerKey{}, observer)
}

func notify(ctx context.Context, state State) {
	if observer, ok := ctx.Value(observerKey{}).(StateObserver); ok && observer != nil {
		observer(state)
	}
}

type Option func(*Service)

func WithDefaultTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.defaultTopK = k
		}
	}
}

func WithFetchKFloor(n int) Option {
	return func(s *Service) {
		s.retriever = NewRetriever(s.retriever.store, n)
	}
}

// Service runs the condense, retrieve and compose pipeline, statelessly or
// against a stored conversation.
type Service struct {
	condenser     *Condenser
	retriever     *Retriever
	composer      *Composer
	conversations types.ConversationStore
	defaultTopK   int
	log           *logger.Logger
}

func NewService(model types.ChatModel, chunks types.ChunkStore, conversations types.ConversationStore, opts ...Option) *Service {
	s := &Service{
		condenser:     NewCondenser(model),
		retriever:     NewRetriever(chunks, DefaultFetchKFloor),
		composer:      NewComposer(model),
		conversations: conversations,
		defaultTopK:   models.DefaultTopK,
		log:           logger.New("rag"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers a single question with no conversational context.
func (s *Service) Ask(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	req.History = nil
	return s.run(ctx, req, false)
}

// Chat condenses the question against the caller's history before
// retrieval and reports the standalone query it searched with.
func (s *Service) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	return s.run(ctx, req, true)
}

// SessionChat is Chat against a stored conversation: the user turn is
// recorded before the pipeline runs and the answer, with its citations,
// after it succeeds.
func (s *Service) SessionChat(ctx context.Context, conversationID uuid.UUID, req models.ChatRequest) (models.ChatResponse, error) {
	req, err := s.validate(req)
	if err != nil {
		return models.ChatResponse{}, err
	}

	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return models.ChatResponse{}, persistenceError("get", err)
	}

	if err := s.conversations.AppendMessage(ctx, conversationID, models.RoleUser, req.Query, nil); err != nil {
		return models.ChatResponse{}, persistenceError("append_user", err)
	}

	if conv.Title == conversation.DefaultTitle {
		if err := s.conversations.Rename(ctx, conversationID, autoTitle(req.Query)); err != nil {
			s.log.Warn("could not title conversation", "conversation_id", conversationID, "error", err)
		}
	}

	resp, err := s.run(ctx, req, true)
	if err != nil {
		return models.ChatResponse{}, err
	}

	if err := s.conversations.AppendMessage(ctx, conversationID, models.RoleAssistant, resp.Answer, resp.Citations); err != nil {
		return models.ChatResponse{}, persistenceError("append_assistant", err)
	}
	return resp, nil
}

func (s *Service) run(ctx context.Context, req models.ChatRequest, condense bool) (models.ChatResponse, error) {
	log := s.log.With("request_id", middleware.GetReqID(ctx))
	notify(ctx, StateReceived)

	req, err := s.validate(req)
	if err != nil {
		return models.ChatResponse{}, err
	}

	query := req.Query
	if condense {
		notify(ctx, StateCondensing)
		start := time.Now()
		query, err = s.condenser.Condense(ctx, req.History, req.Query)
		metrics.CaptureStep("condense", time.Since(start))
		if err != nil {
			return s.fail(log, "condense", err)
		}
		log.Debug("condensed query", "query", req.Query, "standalone", query)
	}

	notify(ctx, StateRetrieving)
	start := time.Now()
	chunks, err := s.retriever.Retrieve(ctx, query, req.TopK)
	metrics.CaptureStep("retrieve", time.Since(start))
	if errors.Is(err, ErrNoContext) {
		notify(ctx, StateNoContext)
		notify(ctx, StateDone)
		metrics.CaptureOutcome(metrics.OutcomeNoContext)
		log.Info("no relevant context", "query", query)

		resp := models.ChatResponse{Answer: NoContextAnswer, Citations: []models.Citation{}}
		if condense {
			resp.Standalone = query
		}
		return resp, nil
	}
	if err != nil {
		return s.fail(log, "retrieve", err)
	}

	notify(ctx, StateComposing)
	start = time.Now()
	answer, err := s.composer.Compose(ctx, query, chunks, req.History)
	metrics.CaptureStep("compose", time.Since(start))
	if err != nil {
		return s.fail(log, "compose", err)
	}

	notify(ctx, StateDone)
	metrics.CaptureOutcome(metrics.OutcomeAnswered)
	log.Info("answered", "chunks", len(chunks), "top_k", req.TopK)

	resp := models.ChatResponse{Answer: answer.Text, Citations: answer.Citations}
	if condense {
		resp.Standalone = query
	}
	return resp, nil
}

func (s *Service) validate(req models.ChatRequest) (models.ChatRequest, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, &ValidationError{Field: "query", Message: "query must not be empty"}
	}
	if req.TopK == 0 {
		req.TopK = s.defaultTopK
	}
	if req.TopK < 1 {
		return req, &ValidationError{Field: "top_k", Message: "top_k must be at least 1"}
	}
	return req, nil
}

func (s *Service) fail(log *logger.Logger, stage string, err error) (models.ChatResponse, error) {
	metrics.CaptureOutcome(metrics.OutcomeError)
	log.Error("pipeline step failed", "stage", stage, "error", err)
	return models.ChatResponse{}, &UpstreamError{Stage: stage, Err: err}
}

func persistenceError(op string, err error) error {
	if errors.Is(err, types.ErrConversationNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func autoTitle(query string) string {
	runes := []rune(strings.TrimSpace(query))
	if len(runes) > autoTitleRuneLength {
		runes = runes[:autoTitleRuneLength]
	}
	return string(runes)
}
