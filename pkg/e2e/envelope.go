package e2e

import (
	"encoding/json"
	"strings"
)

// Конверт рукопожатия едет как content обычного незашифрованного сообщения:
// один транспорт, один путь персистенции, поздний участник узнаёт ключ
// из durable-истории. Sentinel-префикс отличает его от пользовательского текста.
const (
	handshakeSentinel = "__E2E_HANDSHAKE__:"
	handshakeType     = "HANDSHAKE"
)

type handshakeEnvelope struct {
	Type      string `json:"type"`
	PublicKey string `json:"publicKey"`
}

// EncodeHandshake собирает content-строку с публичным ключом отправителя.
func EncodeHandshake(publicKey string) string {
	b, _ := json.Marshal(handshakeEnvelope{
		Type:      handshakeType,
		PublicKey: publicKey,
	})
	return handshakeSentinel + string(b)
}

// IsHandshake — быстрая проверка до любой логики отображения.
func IsHandshake(content string) bool {
	return strings.HasPrefix(content, handshakeSentinel)
}

// ParseHandshake возвращает публичный ключ из конверта.
// Битый конверт — ok=false, молча; это не ошибка протокола.
func ParseHandshake(content string) (publicKey string, ok bool) {
	if !IsHandshake(content) {
		return "", false
	}

	var env handshakeEnvelope
	if err := json.Unmarshal([]byte(strings.TrimPrefix(content, handshakeSentinel)), &env); err != nil {
		return "", false
	}
	if env.Type != handshakeType || env.PublicKey == "" {
		return "", false
	}

	return env.PublicKey, true
}
