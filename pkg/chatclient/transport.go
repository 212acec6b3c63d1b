package chatclient

import (
	"log/slog"
	"sync"
	"time"

	"github.com/stackshub/relay-service/internal/transport/ws"

	"github.com/gorilla/websocket"
)

// Transport — единственное живое соединение клиента с relay.
// Интерфейс выделен ради тестов разговорной логики без сети.
type Transport interface {
	Emit(ev ws.Event) error
	Events() <-chan ws.Event
	Close() error
}

type wsTransport struct {
	url       string
	onConnect func() // после каждого (ре)коннекта: rejoin комнат + повторное рукопожатие
	events    chan ws.Event
	done      chan struct{}
	log       *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// newWSTransport блокируется до первого успешного коннекта,
// дальше переподключается сам.
func newWSTransport(url string, onConnect func(), log *slog.Logger) (*wsTransport, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}

	t := &wsTransport{
		url:       url,
		onConnect: onConnect,
		events:    make(chan ws.Event, 64),
		done:      make(chan struct{}),
		log:       log,
		conn:      conn,
	}
	go t.run()
	return t, nil
}

func (t *wsTransport) run() {
	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()

		if t.onConnect != nil {
			t.onConnect()
		}
		t.readLoop(conn)

		select {
		case <-t.done:
			close(t.events)
			return
		default:
		}

		if !t.reconnect() {
			close(t.events)
			return
		}
	}
}

func (t *wsTransport) readLoop(conn *websocket.Conn) {
	for {
		var ev ws.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.log.Debug("transport read failed", "err", err)
			return
		}
		select {
		case t.events <- ev:
		case <-t.done:
			return
		}
	}
}

// reconnect — молчаливое восстановление с растущей паузой; сообщений,
// отправленных до обрыва, никто не оплакивает (best-effort).
func (t *wsTransport) reconnect() bool {
	backoff := time.Second
	for {
		select {
		case <-t.done:
			return false
		case <-time.After(backoff):
		}

		conn, _, err := websocket.DefaultDialer.Dial(t.url, nil)
		if err == nil {
			t.mu.Lock()
			t.conn = conn
			t.mu.Unlock()
			t.log.Info("transport reconnected")
			return true
		}

		t.log.Debug("transport reconnect failed", "err", err)
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (t *wsTransport) Emit(ev ws.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return t.conn.WriteJSON(ev)
}

func (t *wsTransport) Events() <-chan ws.Event { return t.events }

func (t *wsTransport) Close() error {
	select {
	case <-t.done:
	default:
		close(t.done)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.Close()
}
