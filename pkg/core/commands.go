package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/databacker/mysql-binlog-restore/pkg/database"
	"github.com/databacker/mysql-binlog-restore/pkg/pipeline"
)

// decodeCommand builds the decoder invocation. The stop option is left out entirely when stop is
// empty.
func decodeCommand(decoder, start, stop string, files []string) pipeline.Command {
	args := []string{"--start-datetime=" + start}
	if stop != "" {
		args = append(args, "--stop-datetime="+stop)
	}
	args = append(args, files...)
	return pipeline.Command{Name: decoder, Args: args}
}

// replayCommand builds the client invocation for conn. A socket host is passed as --socket in
// place of -h and -P. The returned cleanup must be called once the client has exited.
func replayCommand(client string, conn database.Connection, mode PasswordMode) (pipeline.Command, func(), error) {
	var (
		cmd     = pipeline.Command{Name: client}
		cleanup = func() {}
		args    []string
	)
	if conn.Pass != "" && mode == PasswordDefaultsFile {
		name, err := writeDefaultsFile(conn.Pass)
		if err != nil {
			return cmd, cleanup, err
		}
		cleanup = func() { _ = os.Remove(name) }
		// must be the first option for the client to honour it
		args = append(args, "--defaults-extra-file="+name)
	}
	if conn.IsSocket() {
		args = append(args, "--socket="+conn.Host)
	} else {
		args = append(args, "-h"+conn.Host, "-P"+strconv.Itoa(conn.Port))
	}
	args = append(args, "-u"+conn.User)
	if conn.Pass != "" {
		switch mode {
		case PasswordEnv:
			cmd.Env = []string{"MYSQL_PWD=" + conn.Pass}
		case PasswordDefaultsFile:
		default:
			args = append(args, "-p"+conn.Pass)
			cmd.Secrets = []string{conn.Pass}
		}
	}
	cmd.Args = args
	return cmd, cleanup, nil
}

// writeDefaultsFile writes a [client] option file holding password, readable only by the owner.
func writeDefaultsFile(password string) (string, error) {
	f, err := os.CreateTemp("", "binlog-restore-*.cnf")
	if err != nil {
		return "", fmt.Errorf("unable to create client option file: %w", err)
	}
	defer f.Close()
	if err := f.Chmod(0o600); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("unable to restrict client option file: %w", err)
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(password)
	if _, err := fmt.Fprintf(f, "[client]\npassword=\"%s\"\n", escaped); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("unable to write client option file: %w", err)
	}
	return f.Name(), nil
}
