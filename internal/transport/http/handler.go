package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/stackshub/relay-service/internal/domain"
	"github.com/stackshub/relay-service/internal/postgres"
	"github.com/stackshub/relay-service/internal/service"
	httpmw "github.com/stackshub/relay-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	chatSvc *service.ChatService
	convSvc *service.ConversationService
}

func NewHandler(chat *service.ChatService, conv *service.ConversationService) *Handler {
	return &Handler{
		chatSvc: chat,
		convSvc: conv,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /conversations/{id}/messages?after=&limit=
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	convID := chi.URLParam(r, "id")
	after := r.URL.Query().Get("after")
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, next, err := h.chatSvc.History(r.Context(), convID, after, limit)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.GetMessages:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := MessagesResponse{Items: make([]MessageItem, 0, len(items)), NextCursor: next}
	for _, m := range items {
		resp.Items = append(resp.Items, MessageItem{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			SenderAddress:  m.SenderAddress,
			Content:        m.Content,
			IsEncrypted:    m.IsEncrypted,
			Status:         string(m.Status),
			CreatedAt:      m.CreatedAt.Truncate(time.Millisecond),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /conversations/{id}/details
func (h *Handler) GetDetails(w http.ResponseWriter, r *http.Request) {
	convID := chi.URLParam(r, "id")

	conv, parts, err := h.convSvc.Details(r.Context(), convID)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
			return
		}
		slog.Error("handler.GetDetails:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := ConversationDetailsResponse{
		ID:           conv.ID,
		Type:         string(conv.Type),
		Status:       string(conv.Status),
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		Participants: make([]ParticipantItem, 0, len(parts)),
	}
	for _, p := range parts {
		resp.Participants = append(resp.Participants, ParticipantItem{
			UserAddress: p.UserAddress,
			JoinedAt:    p.JoinedAt,
			LastReadAt:  p.LastReadAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /conversations/{id}/accept
func (h *Handler) AcceptConversation(w http.ResponseWriter, r *http.Request) {
	convID := chi.URLParam(r, "id")
	address := httpmw.AddressFromCtx(r.Context())
	if address == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing wallet address"})
		return
	}

	err := h.convSvc.Accept(r.Context(), convID, address)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConversationNotFound):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
		case errors.Is(err, domain.ErrNotParticipant):
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "not a participant"})
		case errors.Is(err, domain.ErrNotRequested):
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: "conversation already accepted"})
		default:
			slog.Error("handler.AcceptConversation:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.ConversationActive)})
}
