package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/ki-backend/internal/clients/anthropic"
	redisclient "github.com/yungbote/ki-backend/internal/clients/redis"
	"github.com/yungbote/ki-backend/internal/logger"
	"github.com/yungbote/ki-backend/internal/repos"
	"github.com/yungbote/ki-backend/internal/sse"
	"github.com/yungbote/ki-backend/internal/types"
)

var (
	ErrDocumentNotFound = errors.New("Document not found")
	ErrMissingInput     = errors.New("Missing documentId or message")
)

// DeltaSink receives forwarded text deltas. A write error means the client is
// gone; the relay stops forwarding but keeps draining upstream.
type DeltaSink interface {
	Write(delta string) error
}

type relayState string

const (
	relayStreaming          relayState = "streaming"
	relayCompleted          relayState = "completed"
	relayClientDisconnected relayState = "client_disconnected"
	relayProviderError      relayState = "provider_error"
)

type relayResult struct {
	State       relayState
	Accumulated string
	Err         error
}

// relayStream bridges the provider's delta sequence to the sink while
// accumulating the full reply. Forwarding and accumulation share one
// sequential loop; after a sink failure the loop keeps draining upstream so
// the accumulator still sees the complete response.
func relayStream(stream anthropic.Stream, sink DeltaSink) relayResult {
	var accumulated strings.Builder
	forwarding := true
	state := relayStreaming

	for state == relayStreaming {
		delta, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if forwarding {
					state = relayCompleted
				} else {
					state = relayClientDisconnected
				}
				break
			}
			return relayResult{State: relayProviderError, Accumulated: accumulated.String(), Err: err}
		}
		accumulated.WriteString(delta)
		if forwarding {
			if sinkErr := sink.Write(delta); sinkErr != nil {
				forwarding = false
			}
		}
	}

	return relayResult{State: state, Accumulated: accumulated.String()}
}

type ChatService interface {
	// StreamChat runs one full chat turn: assemble context, persist the user
	// message, stream the reply into sink, and persist the accumulated reply.
	// Errors are returned only for failures before any delta was forwarded;
	// later failures are resolved internally per the relay rules.
	StreamChat(ctx context.Context, documentID uuid.UUID, message string, sink DeltaSink) error
	GetConversationMessages(ctx context.Context, documentID uuid.UUID) ([]*types.Message, error)
}

type chatService struct {
	db               *gorm.DB
	log              *logger.Logger
	documentRepo     repos.DocumentRepo
	captureRepo      repos.CaptureRepo
	settingsRepo     repos.UserSettingsRepo
	conversationRepo repos.ConversationRepo
	messageRepo      repos.MessageRepo
	model            anthropic.Client
	bus              redisclient.SSEBus
	hub              *sse.SSEHub
}

func NewChatService(
	db *gorm.DB,
	baseLog *logger.Logger,
	documentRepo repos.DocumentRepo,
	captureRepo repos.CaptureRepo,
	settingsRepo repos.UserSettingsRepo,
	conversationRepo repos.ConversationRepo,
	messageRepo repos.MessageRepo,
	model anthropic.Client,
	bus redisclient.SSEBus,
	hub *sse.SSEHub,
) ChatService {
	return &chatService{
		db:               db,
		log:              baseLog.With("service", "ChatService"),
		documentRepo:     documentRepo,
		captureRepo:      captureRepo,
		settingsRepo:     settingsRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		model:            model,
		bus:              bus,
		hub:              hub,
	}
}

func (cs *chatService) StreamChat(ctx context.Context, documentID uuid.UUID, message string, sink DeltaSink) error {
	userID, err := currentUserID(ctx)
	if err != nil {
		return err
	}
	message = strings.TrimSpace(message)
	if documentID == uuid.Nil || message == "" {
		return ErrMissingInput
	}

	document, dErr := cs.documentRepo.GetWithCaptureForUser(ctx, nil, documentID, userID)
	if dErr != nil {
		return fmt.Errorf("error fetching document: %w", dErr)
	}
	if document == nil {
		return ErrDocumentNotFound
	}

	// Settings and the capture database load in parallel; both are optional
	// context, so failures degrade the prompt rather than fail the turn.
	var settings *types.UserSettings
	var allCaptures []*types.Capture
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, sErr := cs.settingsRepo.GetByUserID(gctx, nil, userID)
		if sErr != nil {
			cs.log.Warn("Failed to load user settings", "error", sErr)
			return nil
		}
		settings = s
		return nil
	})
	g.Go(func() error {
		captures, cErr := cs.captureRepo.ListTranscribedByUser(gctx, nil, userID, 50)
		if cErr != nil {
			cs.log.Warn("Failed to load capture database", "error", cErr)
			return nil
		}
		allCaptures = captures
		return nil
	})
	_ = g.Wait()

	personality := strings.TrimSpace(document.CustomAgentPrompt)
	if personality == "" && settings != nil {
		personality = strings.TrimSpace(settings.DefaultAgentPrompt)
	}
	if personality == "" {
		personality = DefaultAgentPersonality
	}

	conversation, convErr := cs.conversationRepo.GetOrCreateByDocument(ctx, nil, documentID, userID)
	if convErr != nil {
		return fmt.Errorf("error resolving conversation: %w", convErr)
	}

	history, hErr := cs.messageRepo.ListRecent(ctx, nil, conversation.ID, 20)
	if hErr != nil {
		return fmt.Errorf("error loading conversation history: %w", hErr)
	}

	pc := PromptContext{
		DocumentTitle:   document.Title,
		DocumentContent: LinearizeContent(document.Content),
		History:         history,
		CaptureDatabase: FilterRelevantCaptures(allCaptures, message, document.CaptureID),
	}
	if document.Capture != nil {
		if document.Capture.Transcription != nil {
			pc.Transcription = *document.Capture.Transcription
		}
		for _, insight := range document.Capture.Insights {
			pc.Insights = append(pc.Insights, InsightItem{Type: insight.Type, Content: insight.Content})
		}
	}
	systemPrompt := BuildThinkingPartnerPrompt(personality, pc)

	modelMessages := make([]anthropic.Message, 0, len(history)+1)
	for _, msg := range history {
		modelMessages = append(modelMessages, anthropic.Message{Role: msg.Role, Content: msg.Content})
	}
	modelMessages = append(modelMessages, anthropic.Message{Role: types.MessageRoleUser, Content: message})

	// The user message is saved before the first delta is requested. A save
	// failure is logged and the turn continues, trading durability of that
	// one write for conversational continuity.
	userMessage := &types.Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		Role:           types.MessageRoleUser,
		Content:        message,
	}
	if _, mErr := cs.messageRepo.Create(ctx, nil, []*types.Message{userMessage}); mErr != nil {
		cs.log.Warn("Failed to save user message", "conversation_id", conversation.ID, "error", mErr)
	}

	// Client disconnect must not cancel the upstream call; the provider's
	// HTTP client timeout still bounds total hold time.
	upstreamCtx := context.WithoutCancel(ctx)
	stream, sErr := cs.model.StreamMessage(upstreamCtx, systemPrompt, modelMessages)
	if sErr != nil {
		return fmt.Errorf("Failed to get response from AI: %w", sErr)
	}
	defer stream.Close()

	result := relayStream(stream, sink)

	switch result.State {
	case relayProviderError:
		cs.log.Error("Provider stream failed",
			"conversation_id", conversation.ID,
			"accumulated_len", len(result.Accumulated),
			"error", result.Err,
		)
	case relayClientDisconnected:
		cs.log.Info("Client disconnected mid-stream; reply still persisted", "conversation_id", conversation.ID)
	}

	// Persist whatever accumulated, independent of how forwarding went. A
	// provider error before the first delta leaves nothing to persist.
	if result.Accumulated != "" {
		assistantMessage := &types.Message{
			ID:             uuid.New(),
			ConversationID: conversation.ID,
			Role:           types.MessageRoleAssistant,
			Content:        result.Accumulated,
		}
		if _, aErr := cs.messageRepo.Create(upstreamCtx, nil, []*types.Message{assistantMessage}); aErr != nil {
			cs.log.Error("Failed to save assistant message", "conversation_id", conversation.ID, "error", aErr)
		} else {
			cs.publishPersisted(upstreamCtx, userID, documentID, conversation.ID)
		}
	}

	return nil
}

func (cs *chatService) publishPersisted(ctx context.Context, userID, documentID, conversationID uuid.UUID) {
	publishEvent(ctx, cs.log, cs.bus, cs.hub, sse.SSEMessage{
		Channel: sse.UserChannel(userID),
		Event:   sse.SSEEventChatMessagePersisted,
		Data: map[string]any{
			"document_id":     documentID,
			"conversation_id": conversationID,
		},
	})
}

func (cs *chatService) GetConversationMessages(ctx context.Context, documentID uuid.UUID) ([]*types.Message, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	document, dErr := cs.documentRepo.GetByIDForUser(ctx, nil, documentID, userID)
	if dErr != nil {
		return nil, fmt.Errorf("error fetching document: %w", dErr)
	}
	if document == nil {
		return nil, ErrDocumentNotFound
	}
	conversation, cErr := cs.conversationRepo.GetByDocumentID(ctx, nil, documentID)
	if cErr != nil {
		return nil, fmt.Errorf("error fetching conversation: %w", cErr)
	}
	if conversation == nil {
		return []*types.Message{}, nil
	}
	messages, mErr := cs.messageRepo.ListRecent(ctx, nil, conversation.ID, 200)
	if mErr != nil {
		return nil, fmt.Errorf("error loading messages: %w", mErr)
	}
	return messages, nil
}
