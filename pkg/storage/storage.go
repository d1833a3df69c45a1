package storage

import (
	"context"
	"io/fs"

	log "github.com/sirupsen/logrus"
)

// Storage is a location holding binlog files. Names passed to ReadDir and Pull are relative to
// the location's URL.
type Storage interface {
	ReadDir(ctx context.Context, dirname string, logger *log.Entry) ([]fs.FileInfo, error)
	Pull(ctx context.Context, source, target string, logger *log.Entry) (int64, error)
	Protocol() string
	URL() string
}

// Local is a Storage already on the local filesystem, which can be read in place.
type Local interface {
	Storage
	LocalPath() string
}
