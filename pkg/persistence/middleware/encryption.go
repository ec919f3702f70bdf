package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/persistence"
	"github.com/aretw0/resscene/pkg/ports"
)

// EnvelopeEntityID marks the single snapshot of an encrypted record.
const EnvelopeEntityID = "resscene.envelope"

const (
	envelopeState   = "encrypted"
	ciphertextField = "ciphertext"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.SceneRepository
	config EncryptionConfig
}

var _ ports.SceneRepository = (*encryptionMiddleware)(nil)

// NewEncryptionMiddleware creates a middleware that encrypts scene records using AES-GCM.
// The backend only ever sees an envelope scene carrying the id, the timestamps
// and one opaque snapshot.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.SceneRepository) ports.SceneRepository {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, scene *domain.Scene) error {
	plainText, err := persistence.Encode(scene)
	if err != nil {
		return err
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt scene: %w", err)
	}

	blob, err := domain.NewEntitySnapshot(EnvelopeEntityID, envelopeState, map[string]any{
		ciphertextField: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return err
	}

	envelope := &domain.Scene{
		ID:        scene.ID,
		Snapshots: []domain.EntitySnapshot{blob},
		CreatedAt: scene.CreatedAt,
		UpdatedAt: scene.UpdatedAt,
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, sceneID string) (*domain.Scene, error) {
	envelope, err := m.next.Load(ctx, sceneID)
	if err != nil {
		return nil, err
	}

	// Fail secure: a plain record under an encrypting store is rejected.
	blob, ok := envelope.Snapshot(EnvelopeEntityID)
	if !ok || len(envelope.Snapshots) != 1 {
		return nil, errors.New("scene is missing encrypted data envelope")
	}
	raw, _ := blob.Attribute(ciphertextField)
	encoded, ok := raw.(string)
	if !ok {
		return nil, errors.New("scene envelope has no ciphertext")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt scene: %w", err)
	}

	scene, err := persistence.Decode(plainText)
	if err != nil {
		return nil, err
	}
	if scene.ID != sceneID {
		return nil, fmt.Errorf("encrypted scene id %q does not match record %q", scene.ID, sceneID)
	}
	return scene, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sceneID string) error {
	return m.next.Delete(ctx, sceneID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
