package credentials

import (
	"crypto/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a sealing key
const KeySize = chacha20poly1305.KeySize

// sealer encrypts values with XChaCha20-Poly1305, binding each to its key name
type sealer struct {
	key []byte
}

func newSealer(key []byte) (*sealer, error) {
	if len(key) != KeySize {
		return nil, errors.Errorf("seal key must be %d bytes, got %d", KeySize, len(key))
	}
	return &sealer{key: copyBytes(key)}, nil
}

func (s *sealer) seal(name string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init cipher")
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "failed to generate nonce")
	}

	return aead.Seal(nonce, nonce, plaintext, []byte(name)), nil
}

func (s *sealer) open(name string, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init cipher")
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.New("sealed value too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sealed value")
	}
	return plaintext, nil
}
