package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mkravets/safedesk/internal/config"
	"github.com/mkravets/safedesk/internal/conversation"
	"github.com/mkravets/safedesk/internal/domain"
	"github.com/mkravets/safedesk/internal/index"
	"github.com/mkravets/safedesk/internal/llm"
	"github.com/mkravets/safedesk/internal/media"
	"github.com/mkravets/safedesk/internal/repository"
	"github.com/mkravets/safedesk/internal/stt"
	"go.uber.org/zap"
)

// imageFallbackQuery seeds retrieval when a photo arrives without a caption.
const imageFallbackQuery = "Analyze this image in the context of workplace safety."

// Transcriber is the speech-to-text collaborator contract.
type Transcriber interface {
	ConvertToWAV(ctx context.Context, inputPath string) (string, error)
	Transcribe(ctx context.Context, audioPath string) (*stt.Result, error)
}

// ChatService orchestrates retrieval, conversation history, and model calls
// into answers with citations.
type ChatService struct {
	cfg          *config.Config
	model        llm.Caller
	store        *index.Store
	window       *conversation.Window
	users        *repository.UserRepository
	interactions *repository.InteractionRepository
	transcriber  Transcriber
	logger       *zap.Logger

	convLocks *keyedMutex
}

// NewChatService creates a new chat service
func NewChatService(
	cfg *config.Config,
	model llm.Caller,
	store *index.Store,
	window *conversation.Window,
	users *repository.UserRepository,
	interactions *repository.InteractionRepository,
	transcriber Transcriber,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		cfg:          cfg,
		model:        model,
		store:        store,
		window:       window,
		users:        users,
		interactions: interactions,
		transcriber:  transcriber,
		logger:       logger,
		convLocks:    newKeyedMutex(),
	}
}

// AnswerText answers a user question: retrieve context, build the prompt,
// call the model, then commit the turn and audit. A model failure propagates
// untouched and leaves no state behind.
func (s *ChatService) AnswerText(ctx context.Context, conversationID string, user *domain.User, text string) (*domain.ChatResponse, error) {
	unlock := s.convLocks.Lock(conversationID)
	defer unlock()

	contexts := s.store.Search(text, s.cfg.Knowledge.SearchLimit)
	messages := s.window.BuildMessages(conversationID, text, s.cfg.LLM.SystemPrompt, contexts)

	reply, err := s.model.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	s.window.Commit(conversationID, text, reply)
	s.audit(user, text, reply, contexts)

	return &domain.ChatResponse{Answer: reply, Sources: contexts}, nil
}

// AnswerImage answers a photo question. Retrieval runs on the caption (or a
// fixed fallback), and the final user message carries the image inline.
func (s *ChatService) AnswerImage(ctx context.Context, conversationID string, user *domain.User, imagePath, caption string) (*domain.ChatResponse, error) {
	unlock := s.convLocks.Lock(conversationID)
	defer unlock()

	queryText := strings.TrimSpace(caption)
	if queryText == "" {
		queryText = imageFallbackQuery
	}

	contexts := s.store.Search(queryText, s.cfg.Knowledge.SearchLimit)
	messages := s.window.BuildMessages(conversationID, queryText, s.cfg.LLM.SystemPrompt, contexts)

	dataURL, err := media.ImageFileToDataURL(imagePath)
	if err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	messages[len(messages)-1] = domain.Message{
		Role: domain.RoleUser,
		Parts: []domain.ContentPart{
			{Type: domain.PartText, Text: queryText},
			{Type: domain.PartImageURL, ImageURL: dataURL},
		},
	}

	reply, err := s.model.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	promptLabel := "[Photo] " + queryText
	s.window.Commit(conversationID, promptLabel, reply)
	s.audit(user, promptLabel, reply, contexts)

	return &domain.ChatResponse{Answer: reply, Sources: contexts}, nil
}

// TranscribeVoice converts and transcribes an uploaded voice recording. The
// upload and the intermediate WAV are removed on every path, including a
// failed conversion.
func (s *ChatService) TranscribeVoice(ctx context.Context, audioPath string) (*stt.Result, error) {
	defer s.removeTempAudio(audioPath)

	wavPath, err := s.transcriber.ConvertToWAV(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	defer s.removeTempAudio(wavPath)

	result, err := s.transcriber.Transcribe(ctx, wavPath)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Voice transcription finished", zap.String("language", result.Language))
	return result, nil
}

func (s *ChatService) removeTempAudio(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove temp audio", zap.String("path", path), zap.Error(err))
	}
}

// ResetConversation clears the dialogue history for a conversation.
func (s *ChatService) ResetConversation(conversationID string) {
	s.window.Reset(conversationID)
}

// RegistrationStep advances an unregistered user through the full-name and
// profession prompts and returns the next instruction to show them.
func (s *ChatService) RegistrationStep(user *domain.User, text string) (string, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return "Please send a text message with the requested information.", nil
	}
	switch user.State {
	case domain.UserStatePendingName:
		if err := s.users.UpdateFullName(user.ID, clean); err != nil {
			return "", err
		}
		if err := s.users.UpdateState(user.ID, domain.UserStatePendingProfession); err != nil {
			return "", err
		}
		return "Thank you! Now state your position or profession.", nil
	case domain.UserStatePendingProfession:
		if err := s.users.UpdateProfession(user.ID, clean); err != nil {
			return "", err
		}
		if err := s.users.UpdateState(user.ID, domain.UserStateActive); err != nil {
			return "", err
		}
		return "Registration complete. You can now ask workplace safety questions.", nil
	}
	return "Registration is being processed. Please try again.", nil
}

// audit records the exchange and cited documents. Audit failures are logged,
// never surfaced: the answer has already been produced.
func (s *ChatService) audit(user *domain.User, userText, botText string, contexts []domain.DocumentChunk) {
	if err := s.interactions.LogInteraction(user.ID, userText, botText); err != nil {
		s.logger.Warn("Failed to log interaction", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if err := s.users.UpdateLastActive(user.ID); err != nil {
		s.logger.Warn("Failed to update last active", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	for _, chunk := range contexts {
		if err := s.interactions.LogDocumentUsage(user.ID, chunk.SourcePath); err != nil {
			s.logger.Warn("Failed to log document usage", zap.String("doc", chunk.SourcePath), zap.Error(err))
		}
	}
}
