// Package chatclient — клиентское ядро relay: одно живое соединение и одна
// identity на инстанс клиента, ключи диалогов, шифрование и сведение
// durable-истории с live-потоком. Инжектируется через composition root,
// никаких ambient-синглтонов.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/stackshub/relay-service/internal/transport/ws"
	"github.com/stackshub/relay-service/pkg/e2e"
)

type Options struct {
	ServerURL   string // http(s)://host relay-сервиса
	AccessToken string
	Address     string // своя chain-identity
	Keys        e2e.KeyPair
	Logger      *slog.Logger
	HTTPClient  *http.Client
}

type Session struct {
	opts Options
	log  *slog.Logger
	rest historySource
	tr   Transport

	mu    sync.Mutex
	convs map[string]*Conversation
}

func NewSession(opts Options) (*Session, error) {
	if opts.ServerURL == "" || opts.Address == "" {
		return nil, errors.New("chatclient: server url and address are required")
	}
	if opts.Keys.PublicKey == "" || opts.Keys.PrivateKey == "" {
		return nil, errors.New("chatclient: keypair is required")
	}

	s := newSession(opts, nil, nil)
	s.rest = newRESTClient(opts.ServerURL, opts.AccessToken, opts.Address, opts.HTTPClient)

	wsURL, err := wsEndpoint(opts.ServerURL, opts.AccessToken, opts.Address)
	if err != nil {
		return nil, err
	}
	tr, err := newWSTransport(wsURL, s.handleConnect, s.log)
	if err != nil {
		return nil, fmt.Errorf("connect relay: %w", err)
	}
	s.setTransport(tr)

	go s.dispatch()
	return s, nil
}

// newSession — общий скелет; тесты подставляют фейковые transport и source.
func newSession(opts Options, tr Transport, src historySource) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		opts:  opts,
		log:   log,
		rest:  src,
		tr:    tr,
		convs: make(map[string]*Conversation),
	}
}

func (s *Session) setTransport(tr Transport) {
	s.mu.Lock()
	s.tr = tr
	s.mu.Unlock()
}

func (s *Session) transport() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr
}

// Open: durable-история один раз -> вход в комнату -> рукопожатие.
func (s *Session) Open(ctx context.Context, conversationID string) (*Conversation, error) {
	s.mu.Lock()
	if c, ok := s.convs[conversationID]; ok {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	details, err := s.rest.Details(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("fetch details: %w", err)
	}

	conv := newConversation(s, conversationID, details.Status)

	records, err := s.rest.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	for _, m := range records {
		conv.ingestHistory(m)
	}

	s.mu.Lock()
	if existing, ok := s.convs[conversationID]; ok {
		// параллельный Open успел раньше
		s.mu.Unlock()
		return existing, nil
	}
	s.convs[conversationID] = conv
	s.mu.Unlock()

	// best-effort: при обрыве handleConnect повторит и join, и рукопожатие
	if err := s.joinRoom(conversationID); err != nil {
		s.log.Warn("join room failed", "conversation", conversationID, "err", err)
	}
	conv.sendHandshake()

	return conv, nil
}

func (s *Session) Conversation(id string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convs[id]
}

func (s *Session) Close() error {
	if tr := s.transport(); tr != nil {
		return tr.Close()
	}
	return nil
}

func (s *Session) joinRoom(roomID string) error {
	tr := s.transport()
	if tr == nil {
		return errors.New("transport not ready")
	}
	return tr.Emit(ws.Event{Type: ws.TypeJoinRoom, Payload: ws.JoinRoomPayload{RoomID: roomID}})
}

// handleConnect — после каждого (ре)коннекта: реконнект для участников
// комнаты неотличим от нового входа, поэтому join и конверт шлём заново.
func (s *Session) handleConnect() {
	s.mu.Lock()
	convs := make([]*Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		convs = append(convs, c)
	}
	s.mu.Unlock()

	for _, c := range convs {
		if err := s.joinRoom(c.id); err != nil {
			s.log.Warn("rejoin failed", "conversation", c.id, "err", err)
			continue
		}
		c.sendHandshake()
	}
}

// dispatch раздаёт live-события по открытым диалогам; события чужих
// (неоткрытых) диалогов отбрасываются.
func (s *Session) dispatch() {
	tr := s.transport()
	for ev := range tr.Events() {
		switch ev.Type {
		case ws.TypeNewMessage:
			var p ws.NewMessagePayload
			if err := decodePayload(ev.Payload, &p); err != nil {
				continue
			}
			if conv := s.Conversation(p.ConversationID); conv != nil {
				conv.handleLive(p)
			}
		case ws.TypeMessageStatus:
			var p ws.MessageStatusPayload
			if err := decodePayload(ev.Payload, &p); err != nil {
				continue
			}
			if conv := s.Conversation(p.ConversationID); conv != nil {
				conv.handleStatus(p)
			}
		}
	}
}

func decodePayload(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func wsEndpoint(serverURL, token, address string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	q := u.Query()
	q.Set("access_token", token)
	q.Set("address", address)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
