package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cmazet/ragchat/internal/chat"
	"github.com/cmazet/ragchat/internal/conversation"
	"github.com/cmazet/ragchat/internal/knowledge"
	"github.com/cmazet/ragchat/internal/log"
	"github.com/cmazet/ragchat/internal/provider"
)

// Asker answers questions. *chat.Engine satisfies this.
type Asker interface {
	Ask(ctx context.Context, userID, question string, usePublicData bool) (*chat.Answer, error)
}

// ConversationReader exposes stored history. *conversation.Store satisfies
// this.
type ConversationReader interface {
	History(ctx context.Context, userID string, limit int) ([]conversation.Turn, error)
	Stats(ctx context.Context, userID string) (conversation.Stats, error)
}

// ChatHandler handles chat, history, stats and budget endpoints.
type ChatHandler struct {
	engine        Asker
	conversations ConversationReader
	budget        *provider.Budget
	logger        log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(engine Asker, conversations ConversationReader, budget *provider.Budget, logger log.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, conversations: conversations, budget: budget, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.ask)
	mux.HandleFunc("GET /api/chat/history", h.history)
	mux.HandleFunc("GET /api/chat/stats", h.stats)
	mux.HandleFunc("GET /api/budget", h.budgetStatus)
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Question      string `json:"question"`
	UsePublicData *bool  `json:"use_public_data,omitempty"`
}

func (h *ChatHandler) ask(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(h.logger, w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(h.logger, w, http.StatusBadRequest, "empty question", "the question field is required")
		return
	}

	// Public data is included unless the caller opts out.
	usePublic := true
	if req.UsePublicData != nil {
		usePublic = *req.UsePublicData
	}

	answer, err := h.engine.Ask(r.Context(), userID, req.Question, usePublic)
	if err != nil {
		h.writeChatError(w, r, err)
		return
	}

	h.logger.Info("chat answered",
		"user_id", userID,
		"chunks_used", answer.ChunksUsed,
		"question_type", answer.QuestionType,
		"elapsed", answer.Elapsed)

	writeJSON(h.logger, w, http.StatusOK, answer)
}

// writeChatError maps pipeline failures onto HTTP status codes.
func (h *ChatHandler) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("chat request failed", "path", r.URL.Path, "error", err)

	switch {
	case errors.Is(err, provider.ErrBudgetExceeded):
		writeError(h.logger, w, http.StatusPaymentRequired, "budget exceeded", err.Error())
	case errors.Is(err, provider.ErrProvider):
		writeError(h.logger, w, http.StatusBadGateway, "model provider failed", err.Error())
	case errors.Is(err, conversation.ErrStore), errors.Is(err, knowledge.ErrStore):
		writeError(h.logger, w, http.StatusServiceUnavailable, "storage unavailable", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(h.logger, w, http.StatusGatewayTimeout, "request cancelled", err.Error())
	default:
		writeError(h.logger, w, http.StatusInternalServerError, "chat failed", err.Error())
	}
}

func (h *ChatHandler) history(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(h.logger, w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(h.logger, w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	turns, err := h.conversations.History(r.Context(), userID, limit)
	if err != nil {
		h.writeChatError(w, r, err)
		return
	}

	type turnPayload struct {
		TurnID    string   `json:"turn_id"`
		Question  string   `json:"question"`
		Answer    string   `json:"answer"`
		ChunkIDs  []string `json:"context_chunk_ids,omitempty"`
		CreatedAt string   `json:"created_at"`
	}
	payload := make([]turnPayload, len(turns))
	for i, t := range turns {
		payload[i] = turnPayload{
			TurnID:    t.ID.String(),
			Question:  t.Question,
			Answer:    t.Answer,
			ChunkIDs:  t.ChunkIDs,
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(h.logger, w, http.StatusOK, map[string]any{"turns": payload})
}

func (h *ChatHandler) stats(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(h.logger, w, r)
	if !ok {
		return
	}

	stats, err := h.conversations.Stats(r.Context(), userID)
	if err != nil {
		h.writeChatError(w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, stats)
}

func (h *ChatHandler) budgetStatus(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := requireUser(h.logger, w, r); !ok {
		return
	}
	writeJSON(h.logger, w, http.StatusOK, h.budget.Status())
}
