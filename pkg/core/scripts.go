package core

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"

	log "github.com/sirupsen/logrus"
)

// runScripts runs every executable file in dir, in name order, stopping at the first failure.
// A missing dir is not an error.
func runScripts(ctx context.Context, logger *log.Entry, dir string, env map[string]string) error {
	files, err := os.ReadDir(dir)
	// if the directory does not exist, do not worry about it
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading scripts directory %s: %w", dir, err)
	}
	for _, f := range files {
		// ignore directories and any files we cannot execute
		fi, err := f.Info()
		if err != nil {
			return fmt.Errorf("error getting file info %s: %w", f.Name(), err)
		}
		if f.IsDir() || fi.Mode()&0111 == 0 {
			continue
		}
		// execute the file
		envSlice := os.Environ()
		for k, v := range env {
			envSlice = append(envSlice, fmt.Sprintf("%s=%s", k, v))
		}
		logger.Debugf("running script %s", f.Name())
		out := logger.WithField("script", f.Name()).WriterLevel(log.InfoLevel)
		cmd := exec.CommandContext(ctx, path.Join(dir, f.Name()))
		cmd.Env = envSlice
		cmd.Stdout = out
		cmd.Stderr = out
		err = cmd.Run()
		_ = out.Close()
		if err != nil {
			return fmt.Errorf("error running file %s: %w", f.Name(), err)
		}
	}
	return nil
}

func scriptEnv(opts RestoreOptions, files []string) map[string]string {
	env := map[string]string{
		"DB_RESTORE_SOURCE":     opts.Source.URL(),
		"DB_RESTORE_START_TIME": opts.StartTime,
		"DB_RESTORE_STOP_TIME":  opts.StopTime,
		"DB_RESTORE_HOST":       opts.DBConn.Host,
		"DB_RESTORE_PORT":       fmt.Sprintf("%d", opts.DBConn.Port),
		"DB_RESTORE_RUN":        opts.Run.String(),
	}
	if files != nil {
		env["DB_RESTORE_FILE_COUNT"] = fmt.Sprintf("%d", len(files))
	}
	return env
}
