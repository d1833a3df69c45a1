package encrypt

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

const chacha20Extension = "c20p"

var _ Decryptor = &Chacha20Poly1305{}

// Chacha20Poly1305 decrypts files sealed with a single 32 byte key. The file is the nonce
// followed by the sealed content.
type Chacha20Poly1305 struct {
	key []byte
}

func NewChacha20Poly1305(key []byte) (*Chacha20Poly1305, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key length must be %d bytes for Chacha20Poly1305, not %d", chacha20poly1305.KeySize, len(key))
	}
	return &Chacha20Poly1305{key: key}, nil
}

// LoadChacha20Poly1305 reads a key file holding either the raw key or its hex encoding.
func LoadChacha20Poly1305(path string) (*Chacha20Poly1305, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read key file: %w", err)
	}
	if trimmed := bytes.TrimSpace(b); len(trimmed) == hex.EncodedLen(chacha20poly1305.KeySize) {
		key := make([]byte, chacha20poly1305.KeySize)
		if _, err := hex.Decode(key, trimmed); err == nil {
			return NewChacha20Poly1305(key)
		}
	}
	return NewChacha20Poly1305(b)
}

func (s *Chacha20Poly1305) Name() string {
	return "chacha20-poly1305"
}

func (s *Chacha20Poly1305) Extension() string {
	return chacha20Extension
}

// Decrypt reads all of in, since the content is authenticated as a whole.
func (s *Chacha20Poly1305) Decrypt(in io.Reader) (io.Reader, error) {
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create chacha20poly1305: %w", err)
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	if len(data) < chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("missing nonce or ciphertext")
	}
	nonce, ciphertext := data[:chacha20poly1305.NonceSize], data[chacha20poly1305.NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return bytes.NewReader(plaintext), nil
}
