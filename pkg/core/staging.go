package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/databacker/mysql-binlog-restore/pkg/binlog"
	"github.com/databacker/mysql-binlog-restore/pkg/compression"
	"github.com/databacker/mysql-binlog-restore/pkg/encrypt"
	"github.com/databacker/mysql-binlog-restore/pkg/storage"
	"github.com/databacker/mysql-binlog-restore/pkg/util"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentDownloads = 4

// remoteBinlogs lists the names of files directly under src that start with prefix, sorted.
func remoteBinlogs(ctx context.Context, logger *log.Entry, src storage.Storage, prefix string) ([]string, error) {
	infos, err := src.ReadDir(ctx, "", logger)
	if err != nil {
		return nil, fmt.Errorf("unable to list %s: %w", src.URL(), err)
	}
	var names []string
	for _, fi := range infos {
		if fi.IsDir() || !binlog.Match(fi.Name(), prefix) {
			continue
		}
		names = append(names, fi.Name())
	}
	sort.Strings(names)
	return names, nil
}

// stage copies the binlogs under src into dir, decrypting and decompressing according to their
// extensions, and returns the directory holding the results.
func stage(ctx context.Context, logger *log.Entry, src storage.Storage, prefix, dir string, decs []encrypt.Decryptor) (string, error) {
	ctx, span := util.GetTracerFromContext(ctx).Start(ctx, "stage")
	defer span.End()

	names, err := remoteBinlogs(ctx, logger, src, prefix)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if len(names) == 0 {
		span.SetStatus(codes.Error, "no binlogs")
		return "", fmt.Errorf("%w in %s", binlog.ErrNoBinlogs, src.URL())
	}
	span.SetAttributes(attribute.StringSlice("files", names))

	// two remote names must not collapse to the same binlog once extensions are stripped
	targets := make(map[string]string, len(names))
	for _, name := range names {
		d, plain := encrypt.ForFilename(name, decs...)
		if d == nil && encrypt.IsEncrypted(name) {
			return "", fmt.Errorf("%s is encrypted but no matching identity or key was given", name)
		}
		_, plain = compression.ForFilename(plain)
		if other, ok := targets[plain]; ok {
			return "", fmt.Errorf("%s and %s both stage to %s", other, name, plain)
		}
		targets[plain] = name
	}

	incoming := filepath.Join(dir, "incoming")
	staged := filepath.Join(dir, "binlogs")
	for _, d := range []string{incoming, staged} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return "", fmt.Errorf("unable to create staging directory: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDownloads)
	for plain, name := range targets {
		g.Go(func() error {
			downloaded := filepath.Join(incoming, name)
			n, err := src.Pull(gctx, name, downloaded, logger)
			if err != nil {
				return fmt.Errorf("failed to pull %s: %w", name, err)
			}
			logger.Debugf("pulled %s, %d bytes", name, n)
			if err := transform(downloaded, filepath.Join(staged, plain), decs); err != nil {
				return fmt.Errorf("failed to unpack %s: %w", name, err)
			}
			return os.Remove(downloaded)
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetStatus(codes.Ok, fmt.Sprintf("staged %d files", len(targets)))
	return staged, nil
}

// transform writes from to to, decrypting and then decompressing as the name of from requires.
func transform(from, to string, decs []encrypt.Decryptor) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	var r io.Reader = in
	d, name := encrypt.ForFilename(filepath.Base(from), decs...)
	if d != nil {
		if r, err = d.Decrypt(r); err != nil {
			return err
		}
	}
	if c, _ := compression.ForFilename(name); c != nil {
		if r, err = c.Uncompress(r); err != nil {
			return err
		}
	}

	out, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
