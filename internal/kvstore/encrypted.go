package kvstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyDerivationInfo = "cyphera-wallet/kvstore/v1"

// ErrDecrypt means a stored value failed authentication, usually a wrong STORAGE_KEY.
var ErrDecrypt = errors.New("kvstore: unable to decrypt value")

// EncryptedStore seals values with XChaCha20-Poly1305 before they reach the
// underlying Store. The storage key is bound as additional data so values
// cannot be swapped between keys.
type EncryptedStore struct {
	Store
	aead cipher.AEAD
}

// NewEncryptedStore derives a 256-bit key from secret with HKDF-SHA256.
func NewEncryptedStore(s Store, secret string) (*EncryptedStore, error) {
	if secret == "" {
		return nil, errors.New("kvstore: encryption secret is empty")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyDerivationInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &EncryptedStore{Store: s, aead: aead}, nil
}

func (e *EncryptedStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := e.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	ns := e.aead.NonceSize()
	if len(sealed) < ns+e.aead.Overhead() {
		return nil, fmt.Errorf("%w: %s is truncated", ErrDecrypt, key)
	}
	plain, err := e.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecrypt, key)
	}
	return plain, nil
}

func (e *EncryptedStore) Set(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(value)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	return e.Store.Set(ctx, key, e.aead.Seal(nonce, nonce, value, []byte(key)))
}
