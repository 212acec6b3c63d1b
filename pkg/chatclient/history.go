package chatclient

import (
	"time"

	"github.com/stackshub/relay-service/pkg/e2e"
)

type DisplayState string

const (
	StatePlain      DisplayState = "plain"
	StateDecrypting DisplayState = "decrypting"
	StateFailed     DisplayState = "failed" // терминально, без повторов
)

// Entry — запись локального лога. Два представления по одному сообщению:
// WireContent — то, что ехало по проводу (возможно ciphertext),
// Content — локально-отображаемое (для своих всегда plaintext).
// Они никогда не склеиваются в одно поле.
type Entry struct {
	ID            string // авторитетный id персистенции; пуст у pending-записей
	ClientID      string // оптимистичный локальный id
	SenderAddress string
	Content       string
	WireContent   string
	IsEncrypted   bool
	Status        string
	CreatedAt     time.Time
	State         DisplayState
	Mine          bool
}

// entryStore — упорядоченный append-only лог диалога с дедупликацией.
// Durable-история вставляется первой в порядке персистенции, затем живые
// события в порядке получения; это НЕ строгий порядок по timestamp при гонке
// истории и live-потока — принятое свойство eventual consistency.
type entryStore struct {
	order      []*Entry
	byID       map[string]*Entry
	byClientID map[string]*Entry
}

func newEntryStore() *entryStore {
	return &entryStore{
		byID:       make(map[string]*Entry),
		byClientID: make(map[string]*Entry),
	}
}

// insert дедуплицирует по id, затем по client_id (echo отправителю против
// его же оптимистичной записи). Дубликат не рождает вторую видимую запись:
// live-копия обновляет метаданные персистенции, локальное представление
// (контент, состояние расшифровки) остаётся за первой обработанной копией.
func (s *entryStore) insert(e Entry) (*Entry, bool) {
	if e.ID != "" {
		if ex, ok := s.byID[e.ID]; ok {
			mergeMeta(ex, e)
			return ex, false
		}
	}
	if e.ClientID != "" {
		if ex, ok := s.byClientID[e.ClientID]; ok {
			mergeMeta(ex, e)
			if e.ID != "" {
				s.byID[e.ID] = ex
			}
			return ex, false
		}
	}

	cp := e
	s.order = append(s.order, &cp)
	if cp.ID != "" {
		s.byID[cp.ID] = &cp
	}
	if cp.ClientID != "" {
		s.byClientID[cp.ClientID] = &cp
	}
	return &cp, true
}

func mergeMeta(dst *Entry, src Entry) {
	if src.ID != "" {
		dst.ID = src.ID
	}
	if !src.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
}

func (s *entryStore) setStatus(id, status string) bool {
	e, ok := s.byID[id]
	if !ok || status == "" || e.Status == status {
		return false
	}
	e.Status = status
	return true
}

// view — порядок вставки, конверты рукопожатия никогда не попадают в выдачу.
func (s *entryStore) view() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, e := range s.order {
		if e2e.IsHandshake(e.WireContent) {
			continue
		}
		out = append(out, *e)
	}
	return out
}

func (s *entryStore) len() int { return len(s.order) }
