package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/o2a/bapsim/internal/services"
	"go.uber.org/zap"
)

const chatbotServiceName = "밥심이 챗봇"

// ChatbotHandler relays messages to the cooking assistant.
type ChatbotHandler struct {
	chat   *services.ChatService
	logger *zap.Logger
}

func NewChatbotHandler(chat *services.ChatService, logger *zap.Logger) *ChatbotHandler {
	return &ChatbotHandler{chat: chat, logger: logger}
}

// ChatbotRouter registers chatbot routes on the given router.
func ChatbotRouter(r chi.Router, chat *services.ChatService, logger *zap.Logger) {
	handler := NewChatbotHandler(chat, logger)

	r.Post("/api/chatbot", handler.Chat)
	r.Get("/api/chatbot/health", handler.Health)
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
}

type ChatHealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *ChatbotHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	reply, err := h.chat.Chat(r.Context(), req.Message)
	if err != nil {
		writeServiceError(w, h.logger, err, "not found", "chatbot failed, please try again later")
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Success: true, Response: reply})
}

func (h *ChatbotHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.chat.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, ChatHealthResponse{
			Status: "unhealthy",
			Error:  services.ErrChatDisabled.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, ChatHealthResponse{Status: "healthy", Service: chatbotServiceName})
}
