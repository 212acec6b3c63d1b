package service

import (
	"context"
	"errors"
	"strings"

	"github.com/stackshub/relay-service/internal/domain"
	"github.com/stackshub/relay-service/internal/postgres"
)

// maxContentLen рассчитан на ciphertext: sealed box + base64 над длинным
// plaintext заметно толще исходного текста.
const maxContentLen = 16384

type ChatService struct {
	messageRepo *postgres.MessageRepository
}

func NewChatService(messageRepo *postgres.MessageRepository) *ChatService {
	return &ChatService{messageRepo: messageRepo}
}

// Save персистит сообщение и возвращает его с авторитетными id/created_at.
// Ciphertext не триммится — пробелы там значимы.
func (s *ChatService) Save(ctx context.Context, conversationID, senderAddress, content string, isEncrypted bool) (*domain.Message, error) {
	if !isEncrypted {
		content = strings.TrimSpace(content)
	}
	if content == "" {
		return nil, errors.New("empty message")
	}
	if len(content) > maxContentLen {
		return nil, errors.New("message too long")
	}

	m := &domain.Message{
		ConversationID: conversationID,
		SenderAddress:  senderAddress,
		Content:        content,
		IsEncrypted:    isEncrypted,
		Status:         domain.StatusSent,
	}
	if err := s.messageRepo.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *ChatService) History(ctx context.Context, conversationID, after string, limit int) ([]domain.Message, string, error) {
	return s.messageRepo.History(ctx, conversationID, after, limit)
}

func (s *ChatService) MarkDelivered(ctx context.Context, id string) error {
	return s.messageRepo.MarkDelivered(ctx, id)
}
