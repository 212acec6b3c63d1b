package ws

import (
	"sync"
)

type Conn interface {
	Send(ev Event) error
	Close() error
	Address() string
}

// Hub — единственная структура, мутируемая конкурентно независимыми
// соединениями. Одно соединение может состоять в нескольких комнатах.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // roomID -> set of connections
	conns map[Conn]map[string]struct{} // connection -> set of roomIDs
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[Conn]struct{}),
		conns: make(map[Conn]map[string]struct{}),
	}
}

// Join — идемпотентно; незнакомый roomID просто создаёт новую комнату.
func (h *Hub) Join(c Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[roomID]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[roomID] = rs
	}
	rs[c] = struct{}{}

	cr, ok := h.conns[c]
	if !ok {
		cr = make(map[string]struct{})
		h.conns[c] = cr
	}
	cr[roomID] = struct{}{}
}

func (h *Hub) Leave(c Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, roomID)
}

// Remove снимает соединение со всех комнат. Молча: никакого "user left"
// для остальных участников.
func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range h.conns[c] {
		h.leaveLocked(c, roomID)
	}
	delete(h.conns, c)
}

func (h *Hub) leaveLocked(c Conn, roomID string) {
	if rs, ok := h.rooms[roomID]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, roomID) // пустая комната — терминальное состояние
		}
	}
	if cr, ok := h.conns[c]; ok {
		delete(cr, roomID)
	}
}

// Broadcast шлёт вне лока: Send упирается в write deadline, и медленный
// клиент не должен держать Join/Leave всех остальных комнат.
func (h *Hub) Broadcast(roomID string, ev Event) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Send(ev) // best-effort
	}
}

// RoomSize — для тестов и метрик.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
