package binlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultPrefix is the file name prefix of binlogs written with the default log_bin basename.
	DefaultPrefix = "mysql-bin."
	// TimeFormat is the datetime grammar accepted by mysqlbinlog --start-datetime and --stop-datetime.
	TimeFormat = "2006-01-02 15:04:05"

	indexSuffix = ".index"
)

// ErrNoBinlogs is returned when a directory holds no file matching the binlog prefix.
var ErrNoBinlogs = errors.New("no binlog files found")

// Discover returns the absolute paths of every entry directly inside dir whose name starts with
// prefix, sorted lexicographically by full path. Binlog sequence numbers are fixed-width suffixes,
// so the sorted order is the sequence order.
func Discover(dir, prefix string) ([]string, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to read binlog directory %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve binlog directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		files = append(files, filepath.Join(abs, entry.Name()))
	}
	if len(files) == 0 {
		return nil, ErrNoBinlogs
	}
	sort.Strings(files)
	return files, nil
}

// Match reports whether a base file name is a binlog candidate for prefix.
func Match(name, prefix string) bool {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return strings.HasPrefix(name, prefix)
}

// IsIndex reports whether path is the binlog index file that mysqld keeps next to the logs.
// It matches the prefix but is not a binlog, and mysqlbinlog rejects it.
func IsIndex(path string) bool {
	return strings.HasSuffix(path, indexSuffix)
}

