package postgres

import (
	"context"

	"github.com/stackshub/relay-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	query := `SELECT id, type, status, created_at, updated_at FROM conversations WHERE id=$1`
	err := r.db.QueryRow(ctx, query, id).
		Scan(&c.ID, &c.Type, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Accept переводит REQUESTED -> ACTIVE. Повторный accept — ErrNotRequested.
func (r *ConversationRepository) Accept(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE conversations SET status=$1, updated_at=now()
		WHERE id=$2 AND status=$3
	`, domain.ConversationActive, id, domain.ConversationRequested)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return domain.ErrNotRequested
	}
	return nil
}

func (r *ConversationRepository) ListParticipants(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT conversation_id, user_address, joined_at, last_read_at
		FROM participants
		WHERE conversation_id=$1
		ORDER BY joined_at ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ConversationID, &p.UserAddress, &p.JoinedAt, &p.LastReadAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
