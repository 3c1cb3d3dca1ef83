package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// SealedKey is the only data key of a session envelope written by the encryption middleware.
const SealedKey = "__sealed__"

var (
	ErrInvalidKey = errors.New("encryption key must be 32 bytes (AES-256)")
	ErrNotSealed  = errors.New("session is missing its sealed envelope")
	ErrDecrypt    = errors.New("decryption failed with all available keys")
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new writes.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open an envelope,
	// which lets keys rotate without downtime.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware seals session data with AES-GCM. Only the ID and timestamps stay readable.
func NewEncryptionMiddleware(cfg EncryptionConfig) (Middleware, error) {
	if len(cfg.ActiveKey) != 32 {
		return nil, ErrInvalidKey
	}
	for _, k := range cfg.FallbackKeys {
		if len(k) != 32 {
			return nil, ErrInvalidKey
		}
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{SessionStore: next, config: cfg}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, s *domain.Session) error {
	plain, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	sealed, err := seal(plain, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt session data: %w", err)
	}

	envelope := *s
	envelope.Data = map[string]any{SealedKey: base64.StdEncoding.EncodeToString(sealed)}
	return m.SessionStore.Save(ctx, &envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	envelope, err := m.SessionStore.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope.Data[SealedKey].(string)
	if !ok {
		return nil, ErrNotSealed
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed data: %w", err)
	}

	plain, err := openWithRotation(sealed, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, err
	}

	data := make(map[string]any)
	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	loaded := *envelope
	loaded.Data = data
	return &loaded, nil
}

func seal(plain, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func openWithRotation(sealed, active []byte, fallbacks [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{active}, fallbacks...) {
		if plain, err := open(sealed, key); err == nil {
			return plain, nil
		}
	}
	return nil, ErrDecrypt
}

func open(sealed, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
