package store

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealInfo = "carebot-store-v1"

// sealMagic prefixes every sealed value. Values without it were written
// before sealing was enabled and are returned as-is.
var sealMagic = []byte("cbs1")

// ErrSealed is returned when a sealed value cannot be opened, usually
// because CAREBOT_STORE_KEY changed.
var ErrSealed = errors.New("store: cannot open sealed value")

// SealedStore encrypts values at rest with XChaCha20-Poly1305.
// Keys stay in plaintext so backends can still list and remove them.
type SealedStore struct {
	KV
	key []byte
}

// NewSealedStore wraps kv, deriving the encryption key from secret.
func NewSealedStore(kv KV, secret string) (*SealedStore, error) {
	if secret == "" {
		return nil, errors.New("store: empty sealing secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("store: derive key: %w", err)
	}
	return &SealedStore{KV: kv, key: key}, nil
}

func (s *SealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.KV.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.open(key, raw)
}

func (s *SealedStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.KV.Set(ctx, key, sealed)
}

// seal returns magic + nonce[24] + ciphertext. The record key is bound as
// associated data so a value cannot be replayed under another key.
func (s *SealedStore) seal(key string, value []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(sealMagic)+len(nonce)+len(value)+aead.Overhead())
	out = append(out, sealMagic...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, value, []byte(key)), nil
}

func (s *SealedStore) open(key string, raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, sealMagic) {
		return raw, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	body := raw[len(sealMagic):]
	if len(body) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: %s: too short", ErrSealed, key)
	}
	nonce, ct := body[:aead.NonceSize()], body[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSealed, key)
	}
	return plain, nil
}
