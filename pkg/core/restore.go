package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/databacker/mysql-binlog-restore/pkg/binlog"
	"github.com/databacker/mysql-binlog-restore/pkg/database"
	"github.com/databacker/mysql-binlog-restore/pkg/encrypt"
	"github.com/databacker/mysql-binlog-restore/pkg/pipeline"
	"github.com/databacker/mysql-binlog-restore/pkg/storage"
	"github.com/databacker/mysql-binlog-restore/pkg/util"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Restore replays the binlogs of opts.Source from opts.StartTime up to opts.StopTime into the
// database, by piping the output of the decoder into the client. A nil error means the client
// exited 0; any other outcome is returned as an *Error.
func (e *Executor) Restore(ctx context.Context, opts RestoreOptions) (results RestoreResults, err error) {
	tracer := util.GetTracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "restore")
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	opts = opts.withDefaults()
	results = RestoreResults{Run: opts.Run, Start: time.Now(), DecodeExitCode: -1, ReplayExitCode: -1}
	defer func() { results.End = time.Now() }()

	logger := e.Logger.WithField("run", opts.Run.String())
	logger.Level = e.Logger.Level
	logger.Info("beginning restore")

	switch {
	case opts.Source == nil:
		return results, errorf(KindConfiguration, "no binlog source")
	case opts.StartTime == "":
		return results, errorf(KindConfiguration, "start time is required")
	}

	if opts.VerifyConnection {
		info, err := verifyConnection(ctx, logger, opts.DBConn)
		if err != nil {
			return results, newError(KindConnection, err)
		}
		results.Server = info
	}

	if opts.PreRestoreScripts != "" {
		if err := runScripts(ctx, logger, opts.PreRestoreScripts, scriptEnv(opts, nil)); err != nil {
			return results, errorf(KindExecution, "error running pre-restore: %w", err)
		}
	}

	files, cleanup, err := e.binlogs(ctx, logger, opts)
	defer cleanup()
	if err != nil {
		if errors.Is(err, binlog.ErrNoBinlogs) {
			logger.Error("No binlog files found.")
		}
		return results, newError(KindConfiguration, err)
	}
	results.Files = files
	logger.Infof("Found %d binlog files.", len(files))
	for _, f := range files {
		if binlog.IsIndex(f) {
			logger.Warnf("%s looks like a binlog index rather than a binlog; the decoder will likely reject it", f)
		}
	}
	span.SetAttributes(attribute.StringSlice("files", files))

	decode := decodeCommand(opts.Decoder, opts.StartTime, opts.StopTime, files)
	replay, removeDefaults, err := replayCommand(opts.Client, opts.DBConn, opts.PasswordMode)
	defer removeDefaults()
	if err != nil {
		return results, newError(KindUnexpected, err)
	}
	if opts.PasswordMode == PasswordArgv && opts.DBConn.Pass != "" {
		logger.Warn("the password is passed on the command line of the client and is visible in process listings; consider password mode env or defaults-file")
	}

	decodeErr := logger.WithField("process", decode.Name).WriterLevel(log.WarnLevel)
	defer decodeErr.Close()
	replayOut := logger.WithField("process", replay.Name).WriterLevel(log.InfoLevel)
	defer replayOut.Close()
	replayErr := logger.WithField("process", replay.Name).WriterLevel(log.WarnLevel)
	defer replayErr.Close()
	decode.Stderr = decodeErr
	replay.Stdout = replayOut
	replay.Stderr = replayErr

	logger.Info("Starting binlog restore...")
	logger.Debugf("decoder: %s", decode)
	logger.Debugf("client: %s", replay)
	status, err := runPipeline(ctx, tracer, decode, replay)
	if err != nil {
		var launchErr *pipeline.LaunchError
		if errors.As(err, &launchErr) {
			return results, newError(KindLaunch, err)
		}
		return results, newError(KindUnexpected, err)
	}
	results.DecodeExitCode = status.Producer.Code
	results.ReplayExitCode = status.Consumer.Code

	if !status.Consumer.Success() {
		logger.Errorf("%s exited with status %d", replay.Name, status.Consumer.Code)
		return results, newError(KindExecution, fmt.Errorf("%w: %s exited with status %d", ErrRestoreFailed, replay.Name, status.Consumer.Code))
	}
	if !status.Producer.Success() {
		if opts.StrictDecode {
			return results, newError(KindExecution, fmt.Errorf("%w: %s exited with status %d", ErrRestoreFailed, decode.Name, status.Producer.Code))
		}
		logger.Warnf("%s exited with status %d; the replay may be incomplete", decode.Name, status.Producer.Code)
	}

	// execute post-restore scripts if any
	if opts.PostRestoreScripts != "" {
		if err := runScripts(ctx, logger, opts.PostRestoreScripts, scriptEnv(opts, files)); err != nil {
			return results, errorf(KindExecution, "error running post-restore: %w", err)
		}
	}
	logger.Info("Binlog restore completed successfully.")
	span.SetStatus(codes.Ok, "restore complete")
	return results, nil
}

// binlogs returns the ordered binlog paths for opts, staging remote sources into a temporary
// directory first. cleanup removes anything staged and is always safe to call.
func (e *Executor) binlogs(ctx context.Context, logger *log.Entry, opts RestoreOptions) (files []string, cleanup func(), err error) {
	cleanup = func() {}
	if local, ok := opts.Source.(storage.Local); ok {
		logger.Debugf("reading binlogs in place from %s", local.LocalPath())
		files, err = binlog.Discover(local.LocalPath(), opts.BinlogPrefix)
		return files, cleanup, err
	}

	var decs []encrypt.Decryptor
	if opts.AgeIdentity != "" {
		dec, err := encrypt.LoadAge(opts.AgeIdentity)
		if err != nil {
			return nil, cleanup, err
		}
		decs = append(decs, dec)
	}
	if opts.DecryptionKey != "" {
		dec, err := encrypt.LoadChacha20Poly1305(opts.DecryptionKey)
		if err != nil {
			return nil, cleanup, err
		}
		decs = append(decs, dec)
	}
	tmpdir, err := os.MkdirTemp("", "binlog-restore")
	if err != nil {
		return nil, cleanup, fmt.Errorf("unable to create temporary staging directory: %w", err)
	}
	cleanup = func() { _ = os.RemoveAll(tmpdir) }
	logger.Debugf("staging binlogs via %s protocol into %s", opts.Source.Protocol(), tmpdir)
	dir, err := stage(ctx, logger, opts.Source, opts.BinlogPrefix, tmpdir, decs)
	if err != nil {
		return nil, cleanup, err
	}
	files, err = binlog.Discover(dir, opts.BinlogPrefix)
	return files, cleanup, err
}

func verifyConnection(ctx context.Context, logger *log.Entry, conn database.Connection) (database.ServerInfo, error) {
	ctx, span := util.GetTracerFromContext(ctx).Start(ctx, "verify")
	defer span.End()
	info, err := database.Verify(ctx, conn)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return info, err
	}
	logger.Infof("connected to %s server %s at %s", info.Variant, info.Version, conn)
	return info, nil
}

func runPipeline(ctx context.Context, tracer trace.Tracer, decode, replay pipeline.Command) (pipeline.Status, error) {
	ctx, span := tracer.Start(ctx, "pipeline")
	defer span.End()
	status, err := pipeline.Run(ctx, decode, replay)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return status, err
	}
	span.SetAttributes(attribute.Int("decode.exit", status.Producer.Code), attribute.Int("replay.exit", status.Consumer.Code))
	return status, nil
}
