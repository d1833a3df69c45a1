package compression

import (
	"fmt"
	"io"
	"strings"
)

type Compressor interface {
	Uncompress(in io.Reader) (io.Reader, error)
	Extension() string
}

func GetCompressor(name string) (Compressor, error) {
	switch name {
	case "gzip":
		return &GzipCompressor{}, nil
	case "bzip2":
		return &Bzip2Compressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compression format: %s", name)
	}
}

// ForFilename returns the compressor matching the extension of filename, and filename with that
// extension removed. If no compressor matches, it returns nil and filename unchanged.
func ForFilename(filename string) (Compressor, string) {
	for _, c := range []Compressor{&GzipCompressor{}, &Bzip2Compressor{}} {
		suffix := "." + c.Extension()
		if strings.HasSuffix(filename, suffix) {
			return c, strings.TrimSuffix(filename, suffix)
		}
	}
	return nil, filename
}
