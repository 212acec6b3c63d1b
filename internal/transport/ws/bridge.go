package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const bridgeChannel = "relay:rooms"

// Bridge разносит broadcast между инстансами relay через redis pub/sub —
// участники одной комнаты могут сидеть на разных нодах.
type Bridge struct {
	hub    *Hub
	rdb    *redis.Client
	origin string // отсечка собственных публикаций
}

type bridgeFrame struct {
	Origin string `json:"origin"`
	RoomID string `json:"room_id"`
	Event  Event  `json:"event"`
}

func NewBridge(hub *Hub, rdb *redis.Client) *Bridge {
	return &Bridge{
		hub:    hub,
		rdb:    rdb,
		origin: uuid.NewString(),
	}
}

func (b *Bridge) Broadcast(roomID string, ev Event) {
	b.hub.Broadcast(roomID, ev)

	data, err := json.Marshal(bridgeFrame{Origin: b.origin, RoomID: roomID, Event: ev})
	if err != nil {
		slog.Error("bridge marshal failed", "room", roomID, "err", err)
		return
	}
	// как и локальная доставка — best-effort
	if err := b.rdb.Publish(context.Background(), bridgeChannel, data).Err(); err != nil {
		slog.Warn("bridge publish failed", "room", roomID, "err", err)
	}
}

// Run слушает канал до отмены ctx; чужие кадры раздаёт в локальный hub.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, bridgeChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var f bridgeFrame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				slog.Warn("bridge bad frame", "err", err)
				continue
			}
			if f.Origin == b.origin {
				continue
			}
			b.hub.Broadcast(f.RoomID, f.Event)
		}
	}
}
