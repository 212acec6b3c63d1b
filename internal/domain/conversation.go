package domain

import "time"

type ConversationType string

const (
	ConversationDirect ConversationType = "DIRECT"
	ConversationGroup  ConversationType = "GROUP"
)

type ConversationStatus string

// Жизненный цикл диалога: запрошен → принят → архив.
const (
	ConversationRequested ConversationStatus = "REQUESTED"
	ConversationActive    ConversationStatus = "ACTIVE"
	ConversationArchived  ConversationStatus = "ARCHIVED"
)

type Conversation struct {
	ID        string             `db:"id"`
	Type      ConversationType   `db:"type"`
	Status    ConversationStatus `db:"status"`
	CreatedAt time.Time          `db:"created_at"`
	UpdatedAt time.Time          `db:"updated_at"`
}

type Participant struct {
	ConversationID string     `db:"conversation_id"`
	UserAddress    string     `db:"user_address"`
	JoinedAt       time.Time  `db:"joined_at"`
	LastReadAt     *time.Time `db:"last_read_at"`
}
