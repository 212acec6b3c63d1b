package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageItem struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderAddress  string    `json:"sender_address"`
	Content        string    `json:"content"`
	IsEncrypted    bool      `json:"is_encrypted"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type MessagesResponse struct {
	Items      []MessageItem `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type ParticipantItem struct {
	UserAddress string     `json:"user_address"`
	JoinedAt    time.Time  `json:"joined_at"`
	LastReadAt  *time.Time `json:"last_read_at,omitempty"`
}

type ConversationDetailsResponse struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Participants []ParticipantItem `json:"participants"`
}
