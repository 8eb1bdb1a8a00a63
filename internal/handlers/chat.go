package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/ki-backend/internal/services"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// streamSink adapts the gin response writer into a delta sink. Headers are
// written lazily on the first delta so pre-stream failures can still produce
// a JSON error response.
type streamSink struct {
	c       *gin.Context
	started bool
}

func (s *streamSink) start() {
	if s.started {
		return
	}
	header := s.c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	s.c.Writer.WriteHeader(http.StatusOK)
	s.started = true
}

func (s *streamSink) Write(delta string) error {
	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}
	s.start()
	if _, err := s.c.Writer.WriteString(delta); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

func (ch *ChatHandler) Chat(c *gin.Context) {
	var req struct {
		DocumentID string `json:"documentId"`
		Message    string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "Missing documentId or message")
		return
	}
	documentID, parseErr := uuid.Parse(req.DocumentID)
	if parseErr != nil {
		RespondError(c, http.StatusBadRequest, "Missing documentId or message")
		return
	}

	sink := &streamSink{c: c}
	err := ch.chatService.StreamChat(c.Request.Context(), documentID, req.Message, sink)
	if err != nil && !sink.started {
		switch {
		case errors.Is(err, services.ErrMissingInput):
			RespondError(c, http.StatusBadRequest, "Missing documentId or message")
		case errors.Is(err, services.ErrUnauthorized):
			RespondError(c, http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, services.ErrDocumentNotFound):
			RespondError(c, http.StatusNotFound, "Document not found")
		default:
			RespondError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	// A turn that produced no deltas still responds with stream headers and
	// an empty body.
	sink.start()
}

func (ch *ChatHandler) GetConversationMessages(c *gin.Context) {
	documentID, parseErr := uuid.Parse(c.Param("documentId"))
	if parseErr != nil {
		RespondError(c, http.StatusBadRequest, "invalid document id")
		return
	}
	messages, err := ch.chatService.GetConversationMessages(c.Request.Context(), documentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthorized):
			RespondError(c, http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, services.ErrDocumentNotFound):
			RespondError(c, http.StatusNotFound, "Document not found")
		default:
			RespondError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	RespondOK(c, gin.H{"messages": messages})
}
