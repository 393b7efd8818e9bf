// Package crypto implements the message content transform: AES-256-GCM
// message encryption with a per-message key wrapped via RSA-OAEP.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aithena-ai/chatstream/internal/model"
)

const (
	aesKeySize = 32
	gcmIVSize  = 12
	gcmTagSize = 16
)

// DecryptionError reports a bundle that could not be decrypted: malformed
// fields, a key that does not unwrap, or a failed integrity check.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt content: %s: %v", e.Reason, e.Err)
	}
	return "decrypt content: " + e.Reason
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// Transform encrypts and decrypts message content. Decrypt is injected into
// the streaming client; Encrypt is used when submitting stored messages.
type Transform interface {
	Decrypt(bundle model.EncryptedPayload) (string, error)
	Encrypt(plaintext string) (model.EncryptedPayload, error)
}

// Envelope is the standard Transform: each message gets a fresh AES-256 key,
// wrapped with the peer's RSA public key using OAEP/SHA-256.
type Envelope struct {
	privateKey *rsa.PrivateKey // unwraps inbound message keys
	peerPublic *rsa.PublicKey  // wraps outbound message keys
}

// NewEnvelope creates a Transform from the local private key and the peer's
// public key. Either may be nil when only one direction is needed.
func NewEnvelope(privateKey *rsa.PrivateKey, peerPublic *rsa.PublicKey) *Envelope {
	return &Envelope{privateKey: privateKey, peerPublic: peerPublic}
}

// Decrypt unwraps the bundle's AES key with the local private key and opens
// the AES-GCM ciphertext.
func (t *Envelope) Decrypt(bundle model.EncryptedPayload) (string, error) {
	if t.privateKey == nil {
		return "", &DecryptionError{Reason: "no private key configured"}
	}

	wrappedKey, err := base64.StdEncoding.DecodeString(bundle.EncryptedKey)
	if err != nil {
		return "", &DecryptionError{Reason: "malformed encrypted_key", Err: err}
	}
	iv, err := base64.StdEncoding.DecodeString(bundle.IV)
	if err != nil {
		return "", &DecryptionError{Reason: "malformed iv", Err: err}
	}
	tag, err := base64.StdEncoding.DecodeString(bundle.Tag)
	if err != nil {
		return "", &DecryptionError{Reason: "malformed tag", Err: err}
	}
	ciphertext, err := base64.StdEncoding.DecodeString(bundle.Content)
	if err != nil {
		return "", &DecryptionError{Reason: "malformed content", Err: err}
	}
	if len(iv) != gcmIVSize || len(tag) != gcmTagSize {
		return "", &DecryptionError{Reason: "unexpected iv or tag length"}
	}

	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, t.privateKey, wrappedKey, nil)
	if err != nil {
		return "", &DecryptionError{Reason: "unwrap message key", Err: err}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", &DecryptionError{Reason: "invalid message key", Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", &DecryptionError{Reason: "init gcm", Err: err}
	}

	// gcm.Open expects the tag appended to the ciphertext.
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", &DecryptionError{Reason: "integrity check failed", Err: err}
	}
	return string(plaintext), nil
}

// Encrypt seals plaintext with a fresh AES-256 key and wraps that key for
// the peer.
func (t *Envelope) Encrypt(plaintext string) (model.EncryptedPayload, error) {
	if t.peerPublic == nil {
		return model.EncryptedPayload{}, errors.New("no peer public key configured")
	}

	key := make([]byte, aesKeySize)
	if _, err := rand.Read(key); err != nil {
		return model.EncryptedPayload{}, fmt.Errorf("generate message key: %w", err)
	}
	iv := make([]byte, gcmIVSize)
	if _, err := rand.Read(iv); err != nil {
		return model.EncryptedPayload{}, fmt.Errorf("generate iv: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return model.EncryptedPayload{}, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return model.EncryptedPayload{}, fmt.Errorf("init gcm: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	wrappedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, t.peerPublic, key, nil)
	if err != nil {
		return model.EncryptedPayload{}, fmt.Errorf("wrap message key: %w", err)
	}

	return model.EncryptedPayload{
		Content:      base64.StdEncoding.EncodeToString(ciphertext),
		EncryptedKey: base64.StdEncoding.EncodeToString(wrappedKey),
		IV:           base64.StdEncoding.EncodeToString(iv),
		Tag:          base64.StdEncoding.EncodeToString(tag),
	}, nil
}
