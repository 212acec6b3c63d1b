package e2e

import "testing"

func TestHandshakeEnvelope_RoundTrip(t *testing.T) {
	content := EncodeHandshake("deadbeef")

	if !IsHandshake(content) {
		t.Fatal("encoded envelope not recognized")
	}
	pub, ok := ParseHandshake(content)
	if !ok {
		t.Fatal("parse failed")
	}
	if pub != "deadbeef" {
		t.Fatalf("public key mismatch: %q", pub)
	}
}

func TestIsHandshake_UserContent(t *testing.T) {
	for _, content := range []string{"", "hello", `{"type":"HANDSHAKE","publicKey":"x"}`} {
		if IsHandshake(content) {
			t.Fatalf("false positive on %q", content)
		}
	}
}

// Битый конверт — не ошибка: молча не парсится и не показывается.
func TestParseHandshake_Malformed(t *testing.T) {
	cases := []string{
		handshakeSentinel + "not json",
		handshakeSentinel + `{"type":"OTHER","publicKey":"x"}`,
		handshakeSentinel + `{"type":"HANDSHAKE","publicKey":""}`,
		handshakeSentinel + `{}`,
	}
	for _, content := range cases {
		if _, ok := ParseHandshake(content); ok {
			t.Fatalf("parsed malformed envelope %q", content)
		}
	}
}
