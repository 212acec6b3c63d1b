package chatclient

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stackshub/relay-service/internal/transport/ws"
	"github.com/stackshub/relay-service/pkg/e2e"
)

type fakeTransport struct {
	mu      sync.Mutex
	emitted []ws.Event
	events  chan ws.Event
	done    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan ws.Event, 16),
		done:   make(chan struct{}),
	}
}

func (t *fakeTransport) Emit(ev ws.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitted = append(t.emitted, ev)
	return nil
}

func (t *fakeTransport) Events() <-chan ws.Event { return t.events }

func (t *fakeTransport) Close() error {
	select {
	case <-t.done:
	default:
		close(t.done)
		close(t.events)
	}
	return nil
}

// deliver имитирует new_message от relay
func (t *fakeTransport) deliver(p ws.NewMessagePayload) {
	t.events <- ws.Event{Type: ws.TypeNewMessage, Payload: p}
}

func (t *fakeTransport) deliverStatus(p ws.MessageStatusPayload) {
	t.events <- ws.Event{Type: ws.TypeMessageStatus, Payload: p}
}

func (t *fakeTransport) acks() []ws.MarkDeliveredPayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []ws.MarkDeliveredPayload
	for _, ev := range t.emitted {
		if ev.Type != ws.TypeMarkDelivered {
			continue
		}
		if p, ok := ev.Payload.(ws.MarkDeliveredPayload); ok {
			out = append(out, p)
		}
	}
	return out
}

func (t *fakeTransport) sent(typ string) []ws.SendMessagePayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []ws.SendMessagePayload
	for _, ev := range t.emitted {
		if ev.Type != typ {
			continue
		}
		if p, ok := ev.Payload.(ws.SendMessagePayload); ok {
			out = append(out, p)
		}
	}
	return out
}

func (t *fakeTransport) joined() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, ev := range t.emitted {
		if ev.Type == ws.TypeJoinRoom {
			out = append(out, ev.Payload.(ws.JoinRoomPayload).RoomID)
		}
	}
	return out
}

type fakeSource struct {
	mu       sync.Mutex
	details  *ConversationDetails
	records  []MessageRecord
	accepted []string
}

func (s *fakeSource) Messages(context.Context, string) ([]MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MessageRecord(nil), s.records...), nil
}

func (s *fakeSource) Details(_ context.Context, id string) (*ConversationDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.details != nil {
		return s.details, nil
	}
	return &ConversationDetails{ID: id, Status: "ACTIVE"}, nil
}

func (s *fakeSource) Accept(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted = append(s.accepted, id)
	return nil
}

func newTestSession(t *testing.T, kp e2e.KeyPair, src *fakeSource) (*Session, *fakeTransport) {
	t.Helper()
	if src == nil {
		src = &fakeSource{}
	}
	tr := newFakeTransport()
	s := newSession(Options{
		ServerURL: "http://relay.local",
		Address:   "SPA",
		Keys:      kp,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, tr, src)
	go s.dispatch()
	t.Cleanup(func() { _ = tr.Close() })
	return s, tr
}

func mustKeys(t *testing.T) e2e.KeyPair {
	t.Helper()
	kp, err := e2e.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	return kp
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSession_OpenJoinsAndHandshakes(t *testing.T) {
	kp := mustKeys(t)
	s, tr := newTestSession(t, kp, nil)

	conv, err := s.Open(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if conv.ID() != "conv-1" {
		t.Fatalf("conversation id: %q", conv.ID())
	}

	rooms := tr.joined()
	if len(rooms) != 1 || rooms[0] != "conv-1" {
		t.Fatalf("join events: %v", rooms)
	}

	hs := tr.sent(ws.TypeSendMessage)
	if len(hs) != 1 {
		t.Fatalf("expected one handshake emit, got %d", len(hs))
	}
	pub, ok := e2e.ParseHandshake(hs[0].Content)
	if !ok || pub != kp.PublicKey {
		t.Fatalf("handshake carries wrong key: %q ok=%v", pub, ok)
	}
	if hs[0].IsEncrypted {
		t.Fatal("handshake must not be marked encrypted")
	}
}

func TestSession_OpenIdempotent(t *testing.T) {
	s, tr := newTestSession(t, mustKeys(t), nil)

	c1, err := s.Open(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c2, err := s.Open(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if c1 != c2 {
		t.Fatal("second Open created a new conversation")
	}
	if n := len(tr.joined()); n != 1 {
		t.Fatalf("join emitted %d times", n)
	}
}

func TestSession_ReconnectRejoinsAndRehandshakes(t *testing.T) {
	s, tr := newTestSession(t, mustKeys(t), nil)

	if _, err := s.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Open(context.Background(), "conv-2"); err != nil {
		t.Fatalf("open: %v", err)
	}

	// то, что делает transport после реконнекта
	s.handleConnect()

	rooms := tr.joined()
	if len(rooms) != 4 {
		t.Fatalf("expected rejoin of both rooms, joins: %v", rooms)
	}
	if hs := tr.sent(ws.TypeSendMessage); len(hs) != 4 {
		t.Fatalf("expected repeated handshakes, got %d", len(hs))
	}
}

// История и live-поток сводятся без дублей: live-копия уже
// известного сообщения обновляет метаданные, а не плодит запись.
func TestSession_HistoryLiveReconciliation(t *testing.T) {
	src := &fakeSource{records: []MessageRecord{
		{ID: "m-1", SenderAddress: "SPB", Content: "first", CreatedAt: time.Unix(100, 0), Status: "sent"},
		{ID: "m-2", SenderAddress: "SPB", Content: "second", CreatedAt: time.Unix(200, 0), Status: "sent"},
	}}
	s, tr := newTestSession(t, mustKeys(t), src)

	conv, err := s.Open(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := conv.View(); len(got) != 2 {
		t.Fatalf("history entries: %d", len(got))
	}

	// m-2 приезжает ещё раз live-потоком
	tr.deliver(ws.NewMessagePayload{
		ID:             "m-2",
		ConversationID: "conv-1",
		SenderAddress:  "SPB",
		Content:        "second",
		Status:         "delivered",
		CreatedAtUnix:  200,
	})

	waitFor(t, "status merge", func() bool {
		v := conv.View()
		return len(v) == 2 && v[1].Status == "delivered"
	})

	v := conv.View()
	if v[0].ID != "m-1" || v[1].ID != "m-2" {
		t.Fatalf("order broken: %q %q", v[0].ID, v[1].ID)
	}
}

func TestSession_HistoryHandshakeSetsPeerKey(t *testing.T) {
	peer := mustKeys(t)
	src := &fakeSource{records: []MessageRecord{
		{ID: "m-1", SenderAddress: "SPB", Content: e2e.EncodeHandshake(peer.PublicKey), CreatedAt: time.Unix(100, 0)},
		{ID: "m-2", SenderAddress: "SPB", Content: "hello", CreatedAt: time.Unix(200, 0)},
	}}
	s, _ := newTestSession(t, mustKeys(t), src)

	conv, err := s.Open(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// поздний участник узнаёт ключ из durable-истории
	if !conv.Encrypted() {
		t.Fatal("peer key not recovered from history")
	}
	// конверт не показывается
	v := conv.View()
	if len(v) != 1 || v[0].Content != "hello" {
		t.Fatalf("view leaked envelope: %+v", v)
	}
}

func TestSession_DispatchDropsUnknownConversation(t *testing.T) {
	s, tr := newTestSession(t, mustKeys(t), nil)

	conv, err := s.Open(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	tr.deliver(ws.NewMessagePayload{ID: "x-1", ConversationID: "conv-other", SenderAddress: "SPB", Content: "stray"})
	tr.deliver(ws.NewMessagePayload{ID: "m-1", ConversationID: "conv-1", SenderAddress: "SPB", Content: "mine"})

	waitFor(t, "delivery", func() bool { return len(conv.View()) == 1 })
	if v := conv.View(); v[0].ID != "m-1" {
		t.Fatalf("wrong entry delivered: %+v", v[0])
	}
}

func TestWSEndpoint(t *testing.T) {
	got, err := wsEndpoint("https://relay.example.com/api/", "tok", "SPA")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	want := "wss://relay.example.com/api/ws?access_token=tok&address=SPA"
	if got != want {
		t.Fatalf("endpoint:\n got %s\nwant %s", got, want)
	}

	if _, err := wsEndpoint("ftp://relay", "tok", "SPA"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
