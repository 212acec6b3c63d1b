package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stackshub/relay-service/internal/domain"

	"github.com/gorilla/websocket"
)

type ChatSvc interface {
	Save(ctx context.Context, conversationID, senderAddress, content string, isEncrypted bool) (*domain.Message, error)
	MarkDelivered(ctx context.Context, id string) error
}

// Broadcaster — точка расширения: Hub для одного инстанса,
// Bridge для рассылки через redis между инстансами.
type Broadcaster interface {
	Broadcast(roomID string, ev Event)
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	bcast    Broadcaster
	chatSvc  ChatSvc

	pingEvery time.Duration
}

func NewServer(hub *Hub, bcast Broadcaster, chat ChatSvc) *Server {
	if bcast == nil {
		bcast = hub
	}
	return &Server{
		hub:     hub,
		bcast:   bcast,
		chatSvc: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws?access_token=...&address=...
// Комнаты подключаются событиями join_room, не URL-ом: одно соединение
// мультиплексирует все открытые диалоги клиента.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accessToken := strings.TrimSpace(q.Get("access_token"))
	address := strings.TrimSpace(q.Get("address"))
	if accessToken == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	if address == "" {
		http.Error(w, "missing address", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, address)

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	// обрыв соединения не сообщается остальным участникам комнат
	s.hub.Remove(c)

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "address", address, "err", err)
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case TypeJoinRoom:
			var p JoinRoomPayload
			if decode(ev.Payload, &p) == nil && p.RoomID != "" {
				s.hub.Join(c, p.RoomID)
			}
		case TypeSendMessage:
			var p SendMessagePayload
			if decode(ev.Payload, &p) == nil {
				s.relayMessage(ctx, c, p)
			}
		case TypeMarkDelivered:
			var p MarkDeliveredPayload
			if decode(ev.Payload, &p) == nil {
				s.markDelivered(ctx, p)
			}
		default:
			// ignore
		}
	}
}

// relayMessage: персист -> обогащение -> broadcast. Отказ стора НЕ отменяет
// доставку: рассылаем исходный payload без id/created_at (best-effort).
func (s *Server) relayMessage(ctx context.Context, c *wsConn, p SendMessagePayload) {
	if p.ConversationID == "" || p.Content == "" {
		return
	}
	// identity соединения авторитетнее того, что прислал клиент
	p.SenderAddress = c.address

	out := NewMessagePayload{
		ClientID:       p.ClientID,
		ConversationID: p.ConversationID,
		SenderAddress:  p.SenderAddress,
		Content:        p.Content,
		IsEncrypted:    p.IsEncrypted,
		Status:         string(domain.StatusSent),
	}

	if s.chatSvc != nil {
		if m, err := s.chatSvc.Save(ctx, p.ConversationID, p.SenderAddress, p.Content, p.IsEncrypted); err == nil {
			out.ID = m.ID
			out.CreatedAtUnix = m.CreatedAt.Unix()
		} else {
			slog.Warn("ws message save failed, broadcasting unenriched",
				"conversation", p.ConversationID, "sender", p.SenderAddress, "err", err)
		}
	}

	// echo отправителю включён намеренно: его reconciliation снимет
	// оптимистичную запись по client_id
	s.bcast.Broadcast(p.ConversationID, Event{Type: TypeNewMessage, Payload: out})
}

// markDelivered: advisory-статус. Без персиста нечего раздавать —
// при отказе стора событие просто гаснет.
func (s *Server) markDelivered(ctx context.Context, p MarkDeliveredPayload) {
	if p.MessageID == "" || p.ConversationID == "" || s.chatSvc == nil {
		return
	}
	if err := s.chatSvc.MarkDelivered(ctx, p.MessageID); err != nil {
		slog.Warn("ws mark delivered failed", "message", p.MessageID, "err", err)
		return
	}

	s.bcast.Broadcast(p.ConversationID, Event{Type: TypeMessageStatus, Payload: MessageStatusPayload{
		MessageID:      p.MessageID,
		ConversationID: p.ConversationID,
		Status:         string(domain.StatusDelivered),
	}})
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// --- helpers ---

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn    *websocket.Conn
	address string
	sendMu  chan struct{}
	closed  chan struct{}
}

func newWsConn(c *websocket.Conn, address string) *wsConn {
	return &wsConn{
		conn:    c,
		address: address,
		sendMu:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

func (c *wsConn) Send(ev Event) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(ev)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) Address() string { return c.address }
