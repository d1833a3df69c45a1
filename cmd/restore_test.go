package cmd

import (
	"errors"
	"io"
	"net/url"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/databacker/mysql-binlog-restore/pkg/core"
	"github.com/databacker/mysql-binlog-restore/pkg/database"
	"github.com/databacker/mysql-binlog-restore/pkg/storage/file"
)

const testStart = "2024-01-01 00:00:00"

func TestRestoreCmd(t *testing.T) {
	readPassword = func() (string, error) { return "", errNoTerminal }
	t.Cleanup(func() { readPassword = terminalPassword })

	localDir := file.New(url.URL{Scheme: "file", Path: "/var/lib/mysql"})
	baseConn := database.Connection{Host: "abc", Port: defaultPort, User: "root", Pass: "secret"}
	baseArgs := []string{"--host", "abc", "--user", "root", "--password", "secret"}

	tests := []struct {
		name     string
		args     []string // "restore" will be prepended automatically
		wantErr  bool
		expected core.RestoreOptions
	}{
		// invalid ones
		{"missing everything", []string{}, true, core.RestoreOptions{}},
		{"missing binlog dir", append(baseArgs, "--start-time", testStart), true, core.RestoreOptions{}},
		{"missing start time", append(baseArgs, "--binlog-dir", "/var/lib/mysql"), true, core.RestoreOptions{}},
		{"missing host", []string{"--user", "root", "--password", "secret", "--binlog-dir", "/var/lib/mysql", "--start-time", testStart}, true, core.RestoreOptions{}},
		{"missing user", []string{"--host", "abc", "--password", "secret", "--binlog-dir", "/var/lib/mysql", "--start-time", testStart}, true, core.RestoreOptions{}},
		{"missing password without terminal", []string{"--host", "abc", "--user", "root", "--binlog-dir", "/var/lib/mysql", "--start-time", testStart}, true, core.RestoreOptions{}},
		{"invalid binlog dir URL", append(baseArgs, "--binlog-dir", "ftp://host/dir", "--start-time", testStart), true, core.RestoreOptions{}},
		{"invalid password mode", append(baseArgs, "--binlog-dir", "/var/lib/mysql", "--start-time", testStart, "--password-mode", "stdin"), true, core.RestoreOptions{}},
		{"positional argument", append(baseArgs, "--binlog-dir", "/var/lib/mysql", "--start-time", testStart, "extra"), true, core.RestoreOptions{}},

		// valid
		{"minimal", append(baseArgs, "--binlog-dir", "/var/lib/mysql", "--start-time", testStart), false, core.RestoreOptions{
			Source:       localDir,
			StartTime:    testStart,
			DBConn:       baseConn,
			PasswordMode: core.PasswordArgv,
		}},
		{"file URL with stop time and port", append(baseArgs, "--port", "3307", "--binlog-dir", "file:///var/lib/mysql", "--start-time", testStart, "--stop-time", "2024-01-01 12:00:00"), false, core.RestoreOptions{
			Source:       localDir,
			StartTime:    testStart,
			StopTime:     "2024-01-01 12:00:00",
			DBConn:       database.Connection{Host: "abc", Port: 3307, User: "root", Pass: "secret"},
			PasswordMode: core.PasswordArgv,
		}},
		{"all restore options", append(baseArgs, "--binlog-dir", "/var/lib/mysql", "--start-time", testStart,
			"--binlog-prefix", "binlog.", "--mysqlbinlog", "mariadb-binlog", "--mysql", "mariadb",
			"--password-mode", "env", "--strict-decode", "--verify-connection", "--age-identity", "/keys/age.txt",
			"--decryption-key", "/keys/binlog.key",
			"--pre-restore-scripts", "/prerestore", "--post-restore-scripts", "/postrestore"), false, core.RestoreOptions{
			Source:             localDir,
			BinlogPrefix:       "binlog.",
			StartTime:          testStart,
			DBConn:             baseConn,
			Decoder:            "mariadb-binlog",
			Client:             "mariadb",
			PasswordMode:       core.PasswordEnv,
			StrictDecode:       true,
			VerifyConnection:   true,
			AgeIdentity:        "/keys/age.txt",
			DecryptionKey:      "/keys/binlog.key",
			PreRestoreScripts:  "/prerestore",
			PostRestoreScripts: "/postrestore",
		}},
		{"config file", []string{"--config-file", "testdata/config.yml"}, false, core.RestoreOptions{
			Source:            localDir,
			BinlogPrefix:      "binlog.",
			StartTime:         testStart,
			StopTime:          "2024-01-01 12:00:00",
			DBConn:            database.Connection{Host: "db.example.com", Port: 3307, User: "replay", Pass: "fromconfig"},
			PasswordMode:      core.PasswordDefaultsFile,
			StrictDecode:      true,
			PreRestoreScripts: "/scripts.d/pre-restore",
		}},
		{"flags override config file", []string{"--config-file", "testdata/config.yml", "--host", "other", "--password", "fromflag",
			"--start-time", "2024-02-01 00:00:00", "--strict-decode=false", "--password-mode", "argv"}, false, core.RestoreOptions{
			Source:            localDir,
			BinlogPrefix:      "binlog.",
			StartTime:         "2024-02-01 00:00:00",
			StopTime:          "2024-01-01 12:00:00",
			DBConn:            database.Connection{Host: "other", Port: 3307, User: "replay", Pass: "fromflag"},
			PasswordMode:      core.PasswordArgv,
			PreRestoreScripts: "/scripts.d/pre-restore",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockExecs()
			m.On("Restore", mock.MatchedBy(func(restoreOpts core.RestoreOptions) bool {
				if diff := diffIgnoreRun(restoreOpts, tt.expected); diff != "" {
					t.Errorf("restoreOpts compare failed (-want +got):\n%s", diff)
					return false
				}
				return true
			})).Return(nil)
			cmd, err := rootCmd(m)
			if err != nil {
				t.Fatal(err)
			}
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(append([]string{"restore"}, tt.args...))
			err = cmd.Execute()
			switch {
			case err == nil && tt.wantErr:
				t.Fatal("missing error")
			case err != nil && !tt.wantErr:
				t.Fatal(err)
			case err == nil:
				m.AssertExpectations(t)
			default:
				m.AssertNotCalled(t, "Restore", mock.Anything)
			}
		})
	}
}

func TestRestoreCmdEnv(t *testing.T) {
	readPassword = func() (string, error) { return "", errNoTerminal }
	t.Cleanup(func() { readPassword = terminalPassword })
	t.Setenv("DB_HOST", "envhost")
	t.Setenv("DB_USER", "envuser")
	t.Setenv("DB_PASSWORD", "envpass")
	t.Setenv("DB_RESTORE_BINLOG_DIR", "/srv/binlogs")
	t.Setenv("DB_RESTORE_START_TIME", testStart)
	t.Setenv("DB_RESTORE_PASSWORD_MODE", "env")

	expected := core.RestoreOptions{
		Source:       file.New(url.URL{Scheme: "file", Path: "/srv/binlogs"}),
		StartTime:    testStart,
		DBConn:       database.Connection{Host: "envhost", Port: defaultPort, User: "envuser", Pass: "envpass"},
		PasswordMode: core.PasswordEnv,
	}
	m := newMockExecs()
	m.On("Restore", mock.MatchedBy(func(restoreOpts core.RestoreOptions) bool {
		if diff := diffIgnoreRun(restoreOpts, expected); diff != "" {
			t.Errorf("restoreOpts compare failed (-want +got):\n%s", diff)
			return false
		}
		return true
	})).Return(nil)
	cmd, err := rootCmd(m)
	if err != nil {
		t.Fatal(err)
	}
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"restore"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	m.AssertExpectations(t)
}

func TestRestoreCmdPasswordPrompt(t *testing.T) {
	readPassword = func() (string, error) { return "typed", nil }
	t.Cleanup(func() { readPassword = terminalPassword })

	m := newMockExecs()
	m.On("Restore", mock.MatchedBy(func(restoreOpts core.RestoreOptions) bool {
		return restoreOpts.DBConn.Pass == "typed"
	})).Return(nil)
	cmd, err := rootCmd(m)
	if err != nil {
		t.Fatal(err)
	}
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"restore", "--host", "abc", "--user", "root", "--binlog-dir", "/var/lib/mysql", "--start-time", testStart})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	m.AssertExpectations(t)
}

func TestRestoreCmdFailure(t *testing.T) {
	failure := &core.Error{Kind: core.KindExecution, Err: core.ErrRestoreFailed}
	m := newMockExecs()
	m.On("Restore", mock.Anything).Return(failure)
	cmd, err := rootCmd(m)
	if err != nil {
		t.Fatal(err)
	}
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"restore", "--host", "abc", "--user", "root", "--password", "secret", "--binlog-dir", "/var/lib/mysql", "--start-time", testStart})
	err = cmd.Execute()
	if err == nil {
		t.Fatal("missing error")
	}
	if !errors.Is(err, core.ErrRestoreFailed) {
		t.Errorf("expected restore failure, got %v", err)
	}
	if core.KindOf(err) != core.KindExecution {
		t.Errorf("expected kind %s, got %s", core.KindExecution, core.KindOf(err))
	}
	last := m.hook.LastEntry()
	if last == nil || last.Message != "Restore failed." || last.Level != log.ErrorLevel {
		t.Errorf("expected error entry %q, got %v", "Restore failed.", last)
	}
}
