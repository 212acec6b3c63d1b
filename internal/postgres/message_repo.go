package postgres

import (
	"context"
	"fmt"

	"github.com/stackshub/relay-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Save — единственная точка записи; БД назначает авторитетные id и created_at.
// После вставки сообщение не мутирует (кроме status).
func (r *MessageRepository) Save(ctx context.Context, m *domain.Message) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_address, content, is_encrypted, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, m.ConversationID, m.SenderAddress, m.Content, m.IsEncrypted, m.Status)

	return row.Scan(&m.ID, &m.CreatedAt)
}

// History возвращает историю диалога с курсорной пагинацией (created_at,id DESC).
func (r *MessageRepository) History(ctx context.Context, conversationID, after string, limit int) ([]domain.Message, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const baseQuery = `
		SELECT id, conversation_id, sender_address, content, is_encrypted, status, created_at
		FROM messages
		WHERE conversation_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND id < $3)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, baseQuery, conversationID, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderAddress, &m.Content, &m.IsEncrypted, &m.Status, &m.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}

// MarkDelivered — advisory-статус, гонки допустимы.
func (r *MessageRepository) MarkDelivered(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE messages SET status=$1 WHERE id=$2 AND status=$3`,
		domain.StatusDelivered, id, domain.StatusSent)
	return err
}
