package service

import (
	"context"
	"fmt"

	"github.com/stackshub/relay-service/internal/domain"
	"github.com/stackshub/relay-service/internal/postgres"
)

type ConversationService struct {
	convRepo *postgres.ConversationRepository
}

func NewConversationService(convRepo *postgres.ConversationRepository) *ConversationService {
	return &ConversationService{convRepo: convRepo}
}

// Details возвращает метаданные диалога и его участников.
func (s *ConversationService) Details(ctx context.Context, id string) (*domain.Conversation, []domain.Participant, error) {
	conv, err := s.convRepo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	parts, err := s.convRepo.ListParticipants(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("convRepo.ListParticipants: %w", err)
	}
	return conv, parts, nil
}

// Accept — REQUESTED -> ACTIVE; принимать может только участник диалога.
func (s *ConversationService) Accept(ctx context.Context, id, byAddress string) error {
	parts, err := s.convRepo.ListParticipants(ctx, id)
	if err != nil {
		return err
	}
	member := false
	for _, p := range parts {
		if p.UserAddress == byAddress {
			member = true
			break
		}
	}
	if !member {
		return domain.ErrNotParticipant
	}

	return s.convRepo.Accept(ctx, id)
}
