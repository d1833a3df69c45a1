package encrypt

import (
	"io"
	"strings"
)

// Decryptor decrypts files carrying its extension.
type Decryptor interface {
	Name() string
	Decrypt(in io.Reader) (io.Reader, error)
	Extension() string
}

// IsEncrypted reports whether filename carries the extension of a known encryption format.
func IsEncrypted(filename string) bool {
	for _, ext := range []string{ageExtension, chacha20Extension} {
		if strings.HasSuffix(filename, "."+ext) {
			return true
		}
	}
	return false
}

// ForFilename returns the decryptor among decs matching the extension of filename, and filename
// with that extension removed. If none matches, it returns nil and filename unchanged.
func ForFilename(filename string, decs ...Decryptor) (Decryptor, string) {
	for _, d := range decs {
		if d == nil {
			continue
		}
		suffix := "." + d.Extension()
		if strings.HasSuffix(filename, suffix) {
			return d, strings.TrimSuffix(filename, suffix)
		}
	}
	return nil, filename
}
