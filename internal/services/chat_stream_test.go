package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ki-backend/internal/clients/anthropic"
	"github.com/yungbote/ki-backend/internal/logger"
	"github.com/yungbote/ki-backend/internal/requestdata"
	"github.com/yungbote/ki-backend/internal/types"
)

// The stubs below share an ops trace so tests can assert ordering between
// message persistence and upstream reads.

type stubDocumentRepo struct {
	doc *types.Document
}

func (r *stubDocumentRepo) Create(ctx context.Context, tx *gorm.DB, documents []*types.Document) ([]*types.Document, error) {
	return documents, nil
}

func (r *stubDocumentRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (*types.Document, error) {
	return r.doc, nil
}

func (r *stubDocumentRepo) GetWithCaptureForUser(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (*types.Document, error) {
	return r.doc, nil
}

func (r *stubDocumentRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Document, error) {
	return nil, nil
}

func (r *stubDocumentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID, fields map[string]interface{}) (int64, error) {
	return 0, nil
}

func (r *stubDocumentRepo) SoftDeleteByIDForUser(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type stubCaptureRepo struct{}

func (r *stubCaptureRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, captureID, userID uuid.UUID) (*types.Capture, error) {
	return nil, nil
}

func (r *stubCaptureRepo) ListTranscribedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Capture, error) {
	return nil, nil
}

type stubSettingsRepo struct {
	settings *types.UserSettings
}

func (r *stubSettingsRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserSettings, error) {
	return r.settings, nil
}

func (r *stubSettingsRepo) UpsertDefaultAgentPrompt(ctx context.Context, tx *gorm.DB, userID uuid.UUID, prompt string) error {
	return nil
}

type stubConversationRepo struct {
	conv *types.Conversation
}

func (r *stubConversationRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (*types.Conversation, error) {
	return r.conv, nil
}

func (r *stubConversationRepo) GetOrCreateByDocument(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (*types.Conversation, error) {
	return r.conv, nil
}

type stubMessageRepo struct {
	ops     *[]string
	created []*types.Message
}

func (r *stubMessageRepo) Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error) {
	for _, msg := range messages {
		if r.ops != nil {
			*r.ops = append(*r.ops, "persist:"+msg.Role)
		}
		r.created = append(r.created, msg)
	}
	return messages, nil
}

func (r *stubMessageRepo) ListRecent(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, limit int) ([]*types.Message, error) {
	return nil, nil
}

// traceStream records every Recv in the shared ops trace.
type traceStream struct {
	inner anthropic.Stream
	ops   *[]string
}

func (s *traceStream) Recv() (string, error) {
	*s.ops = append(*s.ops, "recv")
	return s.inner.Recv()
}

func (s *traceStream) Close() error { return s.inner.Close() }

type stubModel struct {
	stream anthropic.Stream
	err    error
	system string
	msgs   []anthropic.Message
}

func (m *stubModel) StreamMessage(ctx context.Context, system string, messages []anthropic.Message) (anthropic.Stream, error) {
	m.system = system
	m.msgs = messages
	if m.err != nil {
		return nil, m.err
	}
	return m.stream, nil
}

type chatFixture struct {
	ctx      context.Context
	service  *chatService
	model    *stubModel
	messages *stubMessageRepo
	ops      []string
	convID   uuid.UUID
}

func newChatFixture(t *testing.T, doc *types.Document, stream anthropic.Stream) *chatFixture {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	userID := uuid.New()
	if doc != nil {
		doc.UserID = userID
	}
	f := &chatFixture{convID: uuid.New()}
	f.messages = &stubMessageRepo{ops: &f.ops}
	if stream != nil {
		stream = &traceStream{inner: stream, ops: &f.ops}
	}
	f.model = &stubModel{stream: stream}
	f.service = &chatService{
		log:              log,
		documentRepo:     &stubDocumentRepo{doc: doc},
		captureRepo:      &stubCaptureRepo{},
		settingsRepo:     &stubSettingsRepo{},
		conversationRepo: &stubConversationRepo{conv: &types.Conversation{ID: f.convID}},
		messageRepo:      f.messages,
		model:            f.model,
	}
	f.ctx = requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: userID})
	return f
}

func TestStreamChatPersistsUserMessageBeforeFirstRecv(t *testing.T) {
	doc := &types.Document{ID: uuid.New(), Title: "Notes"}
	f := newChatFixture(t, doc, &scriptedStream{deltas: []string{"Hi ", "there"}, terminal: io.EOF})
	sink := &recordingSink{}

	if err := f.service.StreamChat(f.ctx, doc.ID, "what do you think?", sink); err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	if len(f.ops) == 0 || f.ops[0] != "persist:user" {
		t.Fatalf("user message must be persisted before the first upstream read, ops=%v", f.ops)
	}
	if f.ops[len(f.ops)-1] != "persist:assistant" {
		t.Fatalf("assistant message must be persisted last, ops=%v", f.ops)
	}
	if len(f.messages.created) != 2 {
		t.Fatalf("created %d messages, want 2", len(f.messages.created))
	}
	if got := f.messages.created[1].Content; got != "Hi there" {
		t.Fatalf("assistant content=%q, want concatenated deltas", got)
	}
	if got := f.messages.created[1].ConversationID; got != f.convID {
		t.Fatalf("assistant conversation_id=%s, want %s", got, f.convID)
	}
	last := f.model.msgs[len(f.model.msgs)-1]
	if last.Role != types.MessageRoleUser || last.Content != "what do you think?" {
		t.Fatalf("last model message=%+v, want the new user turn", last)
	}
}

func TestStreamChatMissingInput(t *testing.T) {
	doc := &types.Document{ID: uuid.New()}
	f := newChatFixture(t, doc, &scriptedStream{terminal: io.EOF})

	if err := f.service.StreamChat(f.ctx, doc.ID, "   \n", &recordingSink{}); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("whitespace message: err=%v, want ErrMissingInput", err)
	}
	if err := f.service.StreamChat(f.ctx, uuid.Nil, "hello", &recordingSink{}); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("nil document id: err=%v, want ErrMissingInput", err)
	}
	if len(f.messages.created) != 0 {
		t.Fatalf("nothing should be persisted on rejected input, got %d", len(f.messages.created))
	}
}

func TestStreamChatDocumentNotFound(t *testing.T) {
	f := newChatFixture(t, nil, &scriptedStream{terminal: io.EOF})

	err := f.service.StreamChat(f.ctx, uuid.New(), "hello", &recordingSink{})
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("err=%v, want ErrDocumentNotFound", err)
	}
}

func TestStreamChatProviderErrorBeforeDeltasPersistsNoAssistant(t *testing.T) {
	doc := &types.Document{ID: uuid.New()}
	apiErr := &anthropic.APIError{StatusCode: 529, Type: "overloaded_error", Message: "overloaded"}
	f := newChatFixture(t, doc, &scriptedStream{terminal: apiErr})
	sink := &recordingSink{}

	if err := f.service.StreamChat(f.ctx, doc.ID, "hello", sink); err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	if len(f.messages.created) != 1 || f.messages.created[0].Role != types.MessageRoleUser {
		t.Fatalf("only the user message should be persisted, created=%d", len(f.messages.created))
	}
	if len(sink.written) != 0 {
		t.Fatalf("no deltas should have been forwarded, got %d", len(sink.written))
	}
}

func TestStreamChatCustomAgentPromptWinsOverDefault(t *testing.T) {
	doc := &types.Document{ID: uuid.New(), CustomAgentPrompt: "You are a pirate."}
	f := newChatFixture(t, doc, &scriptedStream{deltas: []string{"arr"}, terminal: io.EOF})
	f.service.settingsRepo = &stubSettingsRepo{settings: &types.UserSettings{DefaultAgentPrompt: "You are a butler."}}

	if err := f.service.StreamChat(f.ctx, doc.ID, "hello", &recordingSink{}); err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if !strings.HasPrefix(f.model.system, "You are a pirate.") {
		t.Fatalf("system prompt should start with the document's custom prompt, got %q", f.model.system[:min(len(f.model.system), 40)])
	}
}
