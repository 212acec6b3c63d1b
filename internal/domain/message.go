package domain

import "time"

type MessageStatus string

// Статусы доставки — advisory, сильных гарантий нет.
const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message — атомарная единица переписки. Content хранит либо plaintext,
// либо непрозрачный ciphertext (IsEncrypted=true); сервер его не расшифровывает.
type Message struct {
	ID             string        `db:"id"`
	ConversationID string        `db:"conversation_id"`
	SenderAddress  string        `db:"sender_address"`
	Content        string        `db:"content"`
	IsEncrypted    bool          `db:"is_encrypted"`
	Status         MessageStatus `db:"status"`
	CreatedAt      time.Time     `db:"created_at"`
}
