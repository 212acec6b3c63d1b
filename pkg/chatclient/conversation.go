package chatclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stackshub/relay-service/internal/domain"
	"github.com/stackshub/relay-service/internal/transport/ws"
	"github.com/stackshub/relay-service/pkg/e2e"

	"github.com/google/uuid"
)

// Conversation — состояние одного открытого диалога: ключ партнёра,
// локальный лог и кэш собственного plaintext-а. Всё состояние per-client,
// межсоединенческой синхронизации не требует.
type Conversation struct {
	id string
	s  *Session

	mu        sync.Mutex
	status    string
	peerKey   string            // latest-wins при ротации
	store     *entryStore
	sentPlain map[string]string // clientID -> plaintext: автору не нужен его приватный ключ
	onUpdate  func()
}

func newConversation(s *Session, id, status string) *Conversation {
	return &Conversation{
		id:        id,
		s:         s,
		status:    status,
		store:     newEntryStore(),
		sentPlain: make(map[string]string),
	}
}

func (c *Conversation) ID() string { return c.id }

// Encrypted — известен ли ключ партнёра; UI рисует locked/unlocked по нему.
func (c *Conversation) Encrypted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerKey != ""
}

func (c *Conversation) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Accept — REST-вызов внешнему коллаборатору, REQUESTED -> ACTIVE.
func (c *Conversation) Accept(ctx context.Context) error {
	if err := c.s.rest.Accept(ctx, c.id); err != nil {
		return err
	}
	c.mu.Lock()
	c.status = string(domain.ConversationActive)
	c.mu.Unlock()
	return nil
}

// OnUpdate регистрирует уведомление для UI; вызывается вне локов.
func (c *Conversation) OnUpdate(fn func()) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

func (c *Conversation) notify() {
	c.mu.Lock()
	fn := c.onUpdate
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// View — отображаемый лог: порядок вставки, без конвертов рукопожатия.
func (c *Conversation) View() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.view()
}

// Send шифрует исходящее, если ключ партнёра известен; отсутствие ключа
// отправку не блокирует — уходит plaintext с is_encrypted=false.
// Локальная запись всегда хранит plaintext.
func (c *Conversation) Send(plaintext string) (Entry, error) {
	if strings.TrimSpace(plaintext) == "" {
		return Entry{}, errors.New("empty message")
	}

	c.mu.Lock()
	peerKey := c.peerKey
	c.mu.Unlock()

	wire := plaintext
	encrypted := false
	if peerKey != "" {
		ct, err := e2e.Encrypt(plaintext, peerKey)
		if err != nil {
			return Entry{}, fmt.Errorf("encrypt: %w", err)
		}
		wire = ct
		encrypted = true
	}

	entry := Entry{
		ClientID:      uuid.NewString(),
		SenderAddress: c.s.opts.Address,
		Content:       plaintext,
		WireContent:   wire,
		IsEncrypted:   encrypted,
		Status:        string(domain.StatusSent),
		CreatedAt:     time.Now(),
		State:         StatePlain,
		Mine:          true,
	}

	c.mu.Lock()
	c.sentPlain[entry.ClientID] = plaintext
	c.store.insert(entry)
	c.mu.Unlock()
	c.notify()

	err := c.s.transport().Emit(ws.Event{
		Type: ws.TypeSendMessage,
		Payload: ws.SendMessagePayload{
			ClientID:       entry.ClientID,
			ConversationID: c.id,
			SenderAddress:  entry.SenderAddress,
			Content:        wire,
			IsEncrypted:    encrypted,
		},
	})
	if err != nil {
		return entry, fmt.Errorf("emit: %w", err)
	}
	return entry, nil
}

// sendHandshake публикует свой публичный ключ. Идемпотентно: повторный
// конверт безвреден, у получателя побеждает последний обработанный.
func (c *Conversation) sendHandshake() {
	err := c.s.transport().Emit(ws.Event{
		Type: ws.TypeSendMessage,
		Payload: ws.SendMessagePayload{
			ClientID:       uuid.NewString(),
			ConversationID: c.id,
			SenderAddress:  c.s.opts.Address,
			Content:        e2e.EncodeHandshake(c.s.opts.Keys.PublicKey),
			IsEncrypted:    false,
		},
	})
	if err != nil {
		c.s.log.Warn("handshake emit failed", "conversation", c.id, "err", err)
	}
}

// handleLive обрабатывает live-событие new_message (включая echo своих).
func (c *Conversation) handleLive(p ws.NewMessagePayload) {
	mine := p.SenderAddress == c.s.opts.Address

	// конверты диспатчатся до любой логики отображения
	if !p.IsEncrypted && e2e.IsHandshake(p.Content) {
		c.acceptHandshake(p.Content, mine)
		return
	}

	e := Entry{
		ID:            p.ID,
		ClientID:      p.ClientID,
		SenderAddress: p.SenderAddress,
		WireContent:   p.Content,
		IsEncrypted:   p.IsEncrypted,
		Status:        p.Status,
		Mine:          mine,
	}
	if p.CreatedAtUnix > 0 {
		e.CreatedAt = time.Unix(p.CreatedAtUnix, 0)
	} else {
		// персист не удался, relay доставил без обогащения
		e.CreatedAt = time.Now()
	}

	c.mu.Lock()
	switch {
	case mine:
		if plain, ok := c.sentPlain[p.ClientID]; ok {
			e.Content = plain
			e.State = StatePlain
		} else if !p.IsEncrypted {
			e.Content = p.Content
			e.State = StatePlain
		} else {
			// своё, зашифрованное чужим ключом, без локального кэша
			e.State = StateFailed
		}
	case !p.IsEncrypted:
		e.Content = p.Content
		e.State = StatePlain
	default:
		e.State = StateDecrypting
	}

	ptr, inserted := c.store.insert(e)
	needDecrypt := inserted && ptr.State == StateDecrypting
	wire := ptr.WireContent
	c.mu.Unlock()

	// подтверждаем только первую копию: merge дубликата повторного ack не шлёт
	if inserted && !mine && p.ID != "" {
		c.ackDelivered(p.ID)
	}
	if needDecrypt {
		go c.decryptEntry(ptr, wire)
	}
	c.notify()
}

// ingestHistory — durable-история при открытии диалога. Конверты из истории
// тоже несут ключи: поздний участник узнаёт ключ партнёра без live-рукопожатия.
func (c *Conversation) ingestHistory(m MessageRecord) {
	mine := m.SenderAddress == c.s.opts.Address

	if !m.IsEncrypted && e2e.IsHandshake(m.Content) {
		c.acceptHandshake(m.Content, mine)
		return
	}

	e := Entry{
		ID:            m.ID,
		SenderAddress: m.SenderAddress,
		WireContent:   m.Content,
		IsEncrypted:   m.IsEncrypted,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
		Mine:          mine,
	}

	c.mu.Lock()
	switch {
	case !m.IsEncrypted:
		e.Content = m.Content
		e.State = StatePlain
	case mine:
		// plaintext-кэш живёт в рамках сессии; свой ciphertext из истории
		// на этом устройстве не читается
		e.State = StateFailed
	default:
		e.State = StateDecrypting
	}

	ptr, inserted := c.store.insert(e)
	needDecrypt := inserted && ptr.State == StateDecrypting
	wire := ptr.WireContent
	c.mu.Unlock()

	if needDecrypt {
		go c.decryptEntry(ptr, wire)
	}
}

// ackDelivered — advisory-подтверждение доставки чужого сообщения;
// отказ транспорта пайплайн не трогает.
func (c *Conversation) ackDelivered(messageID string) {
	err := c.s.transport().Emit(ws.Event{
		Type: ws.TypeMarkDelivered,
		Payload: ws.MarkDeliveredPayload{
			MessageID:      messageID,
			ConversationID: c.id,
		},
	})
	if err != nil {
		c.s.log.Debug("delivery ack failed", "conversation", c.id, "message", messageID, "err", err)
	}
}

// handleStatus применяет advisory-смену статуса к уже известной записи;
// незнакомый id молча отбрасывается.
func (c *Conversation) handleStatus(p ws.MessageStatusPayload) {
	c.mu.Lock()
	changed := c.store.setStatus(p.MessageID, p.Status)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// acceptHandshake: latest-wins; битый конверт игнорируется молча,
// свой собственный ключом партнёра не становится.
func (c *Conversation) acceptHandshake(content string, mine bool) {
	if mine {
		return
	}
	pub, ok := e2e.ParseHandshake(content)
	if !ok {
		return
	}

	c.mu.Lock()
	changed := c.peerKey != pub
	c.peerKey = pub
	c.mu.Unlock()

	if changed {
		c.s.log.Debug("peer key updated", "conversation", c.id)
		c.notify()
	}
}

// decryptEntry — асинхронно, один раз; неудача терминальна для записи
// и не роняет пайплайн сведения.
func (c *Conversation) decryptEntry(ptr *Entry, wire string) {
	plain, err := e2e.Decrypt(wire, c.s.opts.Keys.PrivateKey)

	c.mu.Lock()
	if err != nil {
		ptr.State = StateFailed
	} else {
		ptr.Content = plain
		ptr.State = StatePlain
	}
	c.mu.Unlock()
	c.notify()
}
