package ws

// Типы событий relay-протокола
const (
	TypeJoinRoom      = "join_room"      // клиент входит в комнату диалога
	TypeSendMessage   = "send_message"   // клиент -> relay; персист + ребродкаст
	TypeNewMessage    = "new_message"    // relay -> все участники комнаты (включая отправителя)
	TypeMarkDelivered = "mark_delivered" // клиент подтверждает доставку чужого сообщения
	TypeMessageStatus = "message_status" // relay -> комната; advisory-смена статуса
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type JoinRoomPayload struct {
	RoomID string `json:"room_id"`
}

type SendMessagePayload struct {
	// ClientID — оптимистичный локальный id; проезжает в new_message,
	// чтобы отправитель снял дедупликацией свою pending-запись.
	ClientID       string `json:"client_id"`
	ConversationID string `json:"conversation_id"`
	SenderAddress  string `json:"sender_address"`
	Content        string `json:"content"`
	IsEncrypted    bool   `json:"is_encrypted"`
}

type MarkDeliveredPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

type MessageStatusPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
}

type NewMessagePayload struct {
	// ID пустой, если персист не удался — best-effort доставка без обогащения.
	ID             string `json:"id,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	ConversationID string `json:"conversation_id"`
	SenderAddress  string `json:"sender_address"`
	Content        string `json:"content"`
	IsEncrypted    bool   `json:"is_encrypted"`
	Status         string `json:"status,omitempty"`
	CreatedAtUnix  int64  `json:"created_at_unix,omitempty"`
}
