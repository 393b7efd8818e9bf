package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aithena-ai/chatstream/internal/model"
)

func testEnvelope(t *testing.T) *Envelope {
	t.Helper()
	key, err := GenerateKeyPair()
	require.NoError(t, err)
	return NewEnvelope(key, &key.PublicKey)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := testEnvelope(t)

	bundle, err := env.Encrypt("Hello, world!")
	require.NoError(t, err)
	assert.NotEmpty(t, bundle.Content)
	assert.NotEmpty(t, bundle.EncryptedKey)

	plaintext, err := env.Decrypt(bundle)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", plaintext)
}

func TestEnvelopeRoundTripEmptyPlaintext(t *testing.T) {
	env := testEnvelope(t)

	bundle, err := env.Encrypt("")
	require.NoError(t, err)

	plaintext, err := env.Decrypt(bundle)
	require.NoError(t, err)
	assert.Equal(t, "", plaintext)
}

func TestEnvelopeDecryptTamperedCiphertext(t *testing.T) {
	env := testEnvelope(t)

	bundle, err := env.Encrypt("top secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(bundle.Content)
	require.NoError(t, err)
	raw[0] ^= 0xff
	bundle.Content = base64.StdEncoding.EncodeToString(raw)

	_, err = env.Decrypt(bundle)
	var decErr *DecryptionError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "integrity check failed", decErr.Reason)
}

func TestEnvelopeDecryptWrongKey(t *testing.T) {
	sender := testEnvelope(t)
	other := testEnvelope(t)

	bundle, err := sender.Encrypt("for someone else")
	require.NoError(t, err)

	_, err = other.Decrypt(bundle)
	var decErr *DecryptionError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "unwrap message key", decErr.Reason)
}

func TestEnvelopeDecryptMalformedFields(t *testing.T) {
	env := testEnvelope(t)
	good, err := env.Encrypt("x")
	require.NoError(t, err)

	cases := map[string]func(b *model.EncryptedPayload){
		"bad encrypted_key": func(b *model.EncryptedPayload) { b.EncryptedKey = "!!not base64!!" },
		"bad iv":            func(b *model.EncryptedPayload) { b.IV = "!!not base64!!" },
		"bad tag":           func(b *model.EncryptedPayload) { b.Tag = "!!not base64!!" },
		"bad content":       func(b *model.EncryptedPayload) { b.Content = "!!not base64!!" },
		"short iv":          func(b *model.EncryptedPayload) { b.IV = base64.StdEncoding.EncodeToString([]byte("short")) },
		"short tag":         func(b *model.EncryptedPayload) { b.Tag = base64.StdEncoding.EncodeToString([]byte("short")) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			bundle := good
			mutate(&bundle)
			_, err := env.Decrypt(bundle)
			var decErr *DecryptionError
			assert.ErrorAs(t, err, &decErr)
		})
	}
}

func TestEnvelopeDecryptWithoutPrivateKey(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)
	env := NewEnvelope(nil, &key.PublicKey)

	bundle, err := env.Encrypt("x")
	require.NoError(t, err)

	_, err = env.Decrypt(bundle)
	var decErr *DecryptionError
	assert.ErrorAs(t, err, &decErr)
}

func TestEnvelopeEncryptWithoutPeerKey(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)
	env := NewEnvelope(key, nil)

	_, err = env.Encrypt("x")
	assert.Error(t, err)
}

func TestKeyPEMRoundTrip(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	pubPEM, err := PublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)
	pub, err := ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))

	privPEM, err := PrivateKeyPEM(key)
	require.NoError(t, err)
	priv, err := ParsePrivateKeyPEM(privPEM)
	require.NoError(t, err)
	assert.True(t, key.Equal(priv))
}

func TestParsePEMRejectsGarbage(t *testing.T) {
	_, err := ParsePublicKeyPEM([]byte("not pem at all"))
	assert.Error(t, err)
	_, err = ParsePrivateKeyPEM([]byte("not pem at all"))
	assert.Error(t, err)
}
