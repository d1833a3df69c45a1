package encrypt

import (
	"fmt"
	"io"
	"os"

	"filippo.io/age"
)

const ageExtension = "age"

var _ Decryptor = &Age{}

// Age decrypts files in the age format, using X25519 identities.
type Age struct {
	identities []age.Identity
}

// NewAge parses an age identity file, as written by age-keygen.
func NewAge(identities io.Reader) (*Age, error) {
	ids, err := age.ParseIdentities(identities)
	if err != nil {
		return nil, fmt.Errorf("invalid age identity: %w", err)
	}
	return &Age{identities: ids}, nil
}

// LoadAge reads the age identity file at path.
func LoadAge(path string) (*Age, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open age identity file: %w", err)
	}
	defer f.Close()
	return NewAge(f)
}

func (a *Age) Name() string {
	return "age"
}

func (a *Age) Extension() string {
	return ageExtension
}

func (a *Age) Decrypt(in io.Reader) (io.Reader, error) {
	r, err := age.Decrypt(in, a.identities...)
	if err != nil {
		return nil, fmt.Errorf("age decryption failed: %w", err)
	}
	return r, nil
}
