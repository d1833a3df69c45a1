package core

import (
	"context"
	"fmt"

	"github.com/databacker/mysql-binlog-restore/pkg/binlog"
	"github.com/databacker/mysql-binlog-restore/pkg/storage"
	"github.com/databacker/mysql-binlog-restore/pkg/util"
	"github.com/google/uuid"
)

// ListOptions says where to look for binlogs and which names count as binlogs.
type ListOptions struct {
	Source       storage.Storage
	BinlogPrefix string
	Run          uuid.UUID
}

// List returns the binlogs a restore from opts.Source would replay, in order, without running
// anything. Local sources give absolute paths; remote ones give names relative to the source, as
// they are stored.
func (e *Executor) List(ctx context.Context, opts ListOptions) ([]string, error) {
	ctx, span := util.GetTracerFromContext(ctx).Start(ctx, "list")
	defer span.End()
	logger := e.Logger.WithField("run", opts.Run.String())
	logger.Level = e.Logger.Level

	if opts.Source == nil {
		return nil, errorf(KindConfiguration, "no binlog source")
	}
	prefix := opts.BinlogPrefix
	if prefix == "" {
		prefix = binlog.DefaultPrefix
	}
	if local, ok := opts.Source.(storage.Local); ok {
		files, err := binlog.Discover(local.LocalPath(), prefix)
		if err != nil {
			return nil, newError(KindConfiguration, err)
		}
		return files, nil
	}
	names, err := remoteBinlogs(ctx, logger, opts.Source, prefix)
	if err != nil {
		return nil, newError(KindConfiguration, err)
	}
	if len(names) == 0 {
		return nil, newError(KindConfiguration, fmt.Errorf("%w in %s", binlog.ErrNoBinlogs, opts.Source.URL()))
	}
	return names, nil
}
