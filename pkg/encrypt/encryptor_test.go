package encrypt

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"golang.org/x/crypto/chacha20poly1305"
)

func TestAgeDecrypt(t *testing.T) {
	cleartext := make([]byte, 4096)
	if _, err := rand.Read(cleartext); err != nil {
		t.Fatalf("failed to generate cleartext: %v", err)
	}
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("failed to generate age identity: %v", err)
	}
	var encrypted bytes.Buffer
	w, err := age.Encrypt(&encrypted, identity.Recipient())
	if err != nil {
		t.Fatalf("failed to initialize age writer: %v", err)
	}
	if _, err := w.Write(cleartext); err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close age writer: %v", err)
	}

	// identity files carry comments as written by age-keygen
	keyFile := filepath.Join(t.TempDir(), "key.txt")
	content := "# created: 2024-01-01T00:00:00Z\n# public key: " + identity.Recipient().String() + "\n" + identity.String() + "\n"
	if err := os.WriteFile(keyFile, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write identity file: %v", err)
	}

	dec, err := LoadAge(keyFile)
	if err != nil {
		t.Fatalf("failed to load identity: %v", err)
	}
	r, err := dec.Decrypt(bytes.NewReader(encrypted.Bytes()))
	if err != nil {
		t.Fatalf("failed to decrypt: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read decrypted data: %v", err)
	}
	if !bytes.Equal(out, cleartext) {
		t.Error("decrypted data does not match cleartext")
	}

	// a different identity must not decrypt
	other, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("failed to generate age identity: %v", err)
	}
	wrong, err := NewAge(strings.NewReader(other.String()))
	if err != nil {
		t.Fatalf("failed to parse identity: %v", err)
	}
	if _, err := wrong.Decrypt(bytes.NewReader(encrypted.Bytes())); err == nil {
		t.Error("expected error decrypting with the wrong identity")
	}
}

func TestNewAgeInvalid(t *testing.T) {
	if _, err := NewAge(strings.NewReader("not a key")); err == nil {
		t.Error("expected error for invalid identity")
	}
	if _, err := LoadAge(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing identity file")
	}
}

func TestForFilename(t *testing.T) {
	dec := &Age{}
	d, name := ForFilename("mysql-bin.000001.gz.age", dec)
	if d == nil || name != "mysql-bin.000001.gz" {
		t.Errorf("unexpected result %v %q", d, name)
	}
	d, name = ForFilename("mysql-bin.000001.gz", dec)
	if d != nil || name != "mysql-bin.000001.gz" {
		t.Errorf("unexpected result %v %q", d, name)
	}
	d, name = ForFilename("mysql-bin.000001.age", nil)
	if d != nil || name != "mysql-bin.000001.age" {
		t.Errorf("unexpected result %v %q", d, name)
	}
	if !IsEncrypted("mysql-bin.000001.age") || !IsEncrypted("mysql-bin.000001.c20p") || IsEncrypted("mysql-bin.000001") {
		t.Error("IsEncrypted mismatch")
	}
}

func TestChacha20Poly1305Decrypt(t *testing.T) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		t.Fatalf("failed to create aead: %v", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		t.Fatalf("failed to generate nonce: %v", err)
	}
	cleartext := []byte("INSERT INTO t VALUES (1);\n")
	sealed := append(append([]byte{}, nonce...), aead.Seal(nil, nonce, cleartext, nil)...)

	dir := t.TempDir()
	tests := []struct {
		name    string
		content []byte
	}{
		{"raw", key},
		{"hex", []byte(hex.EncodeToString(key) + "\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyFile := filepath.Join(dir, tt.name)
			if err := os.WriteFile(keyFile, tt.content, 0600); err != nil {
				t.Fatalf("failed to write key file: %v", err)
			}
			dec, err := LoadChacha20Poly1305(keyFile)
			if err != nil {
				t.Fatalf("failed to load key: %v", err)
			}
			r, err := dec.Decrypt(bytes.NewReader(sealed))
			if err != nil {
				t.Fatalf("failed to decrypt: %v", err)
			}
			out, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("failed to read decrypted data: %v", err)
			}
			if !bytes.Equal(out, cleartext) {
				t.Errorf("mismatched decrypted data %q", out)
			}
		})
	}

	dec, err := NewChacha20Poly1305(key)
	if err != nil {
		t.Fatalf("failed to create decryptor: %v", err)
	}
	tampered := append([]byte{}, sealed...)
	tampered[len(tampered)-1] ^= 0xff
	if _, err := dec.Decrypt(bytes.NewReader(tampered)); err == nil {
		t.Error("expected error decrypting tampered data")
	}
	if _, err := dec.Decrypt(bytes.NewReader(nonce[:4])); err == nil {
		t.Error("expected error for truncated data")
	}
	if _, err := NewChacha20Poly1305(key[:16]); err == nil {
		t.Error("expected error for short key")
	}
}
