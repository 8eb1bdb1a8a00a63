package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/ki-backend/internal/services"
	"github.com/yungbote/ki-backend/internal/types"
)

type stubChatService struct {
	deltas []string
	err    error
}

func (s *stubChatService) StreamChat(ctx context.Context, documentID uuid.UUID, message string, sink services.DeltaSink) error {
	if s.err != nil {
		return s.err
	}
	if strings.TrimSpace(message) == "" {
		return services.ErrMissingInput
	}
	for _, d := range s.deltas {
		if wErr := sink.Write(d); wErr != nil {
			break
		}
	}
	return nil
}

func (s *stubChatService) GetConversationMessages(ctx context.Context, documentID uuid.UUID) ([]*types.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*types.Message{}, nil
}

func newChatRouter(svc services.ChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewChatHandler(svc)
	router.POST("/api/chat", handler.Chat)
	router.GET("/api/conversations/:documentId/messages", handler.GetConversationMessages)
	return router
}

func TestChatHandlerStreamsDeltas(t *testing.T) {
	router := newChatRouter(&stubChatService{deltas: []string{"Hel", "lo"}})

	body := `{"documentId":"` + uuid.NewString() + `","message":"hi"}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "Hello" {
		t.Fatalf("body=%q, want raw delta concatenation", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type=%q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("Cache-Control=%q", cc)
	}
}

func TestChatHandlerMissingDocumentID(t *testing.T) {
	router := newChatRouter(&stubChatService{})

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Missing documentId or message") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestChatHandlerWhitespaceMessageRejected(t *testing.T) {
	router := newChatRouter(&stubChatService{})

	body := `{"documentId":"` + uuid.NewString() + `","message":"   "}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Missing documentId or message") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestChatHandlerDocumentNotFound(t *testing.T) {
	router := newChatRouter(&stubChatService{err: services.ErrDocumentNotFound})

	body := `{"documentId":"` + uuid.NewString() + `","message":"hi"}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Document not found") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestChatHandlerUnauthorized(t *testing.T) {
	router := newChatRouter(&stubChatService{err: services.ErrUnauthorized})

	body := `{"documentId":"` + uuid.NewString() + `","message":"hi"}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestGetConversationMessagesBadID(t *testing.T) {
	router := newChatRouter(&stubChatService{})

	req := httptest.NewRequest("GET", "/api/conversations/not-a-uuid/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}
