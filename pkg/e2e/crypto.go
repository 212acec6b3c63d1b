// Package e2e — асимметричное шифрование сообщений и конверт рукопожатия.
// Примитив потребляется как чёрный ящик: encrypt(plaintext, pub) -> string,
// decrypt(ciphertext, priv) -> string; несовпадающий ключ даёт детерминированную
// ошибку, никогда не мусор.
package e2e

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

const keySize = 32

// ErrDecrypt — терминальная ошибка расшифровки (чужой ключ или битый блоб).
var ErrDecrypt = errors.New("e2e: cannot decrypt")

// KeyPair — ключи в hex; public уходит в конверт рукопожатия,
// private не покидает клиента.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
}

func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate keypair: %w", err)
	}

	return KeyPair{
		PublicKey:  hex.EncodeToString(pub[:]),
		PrivateKey: hex.EncodeToString(priv[:]),
	}, nil
}

// Encrypt шифрует plaintext публичным ключом получателя (anonymous sealed box),
// результат — base64-строка, пригодная для content сообщения.
func Encrypt(plaintext, peerPublicKey string) (string, error) {
	pub, err := decodeKey(peerPublicKey)
	if err != nil {
		return "", fmt.Errorf("peer public key: %w", err)
	}

	sealed, err := box.SealAnonymous(nil, []byte(plaintext), pub, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt расшифровывает ciphertext своим приватным ключом.
// Любая проблема (ключ не тот, блоб повреждён) — ErrDecrypt, без повторов.
func Decrypt(ciphertext, privateKey string) (string, error) {
	priv, err := decodeKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("private key: %w", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}

	// sealed box открывается парой (pub, priv); pub восстанавливаем из priv
	pubBytes, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return "", ErrDecrypt
	}
	var pub [keySize]byte
	copy(pub[:], pubBytes)

	plain, ok := box.OpenAnonymous(nil, sealed, &pub, priv)
	if !ok {
		return "", ErrDecrypt
	}

	return string(plain), nil
}

func decodeKey(s string) (*[keySize]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("invalid key size %d", len(raw))
	}

	var k [keySize]byte
	copy(k[:], raw)
	return &k, nil
}
