package core

import (
	"fmt"

	"github.com/databacker/mysql-binlog-restore/pkg/binlog"
	"github.com/databacker/mysql-binlog-restore/pkg/database"
	"github.com/databacker/mysql-binlog-restore/pkg/storage"
	"github.com/google/uuid"
)

const (
	DefaultDecoder = "mysqlbinlog"
	DefaultClient  = "mysql"
)

// PasswordMode is how the password reaches the replay client.
type PasswordMode string

const (
	// PasswordArgv passes -p<password> on the command line, visible in process listings.
	PasswordArgv PasswordMode = "argv"
	// PasswordEnv passes the password in MYSQL_PWD.
	PasswordEnv PasswordMode = "env"
	// PasswordDefaultsFile writes the password to a private option file read through
	// --defaults-extra-file.
	PasswordDefaultsFile PasswordMode = "defaults-file"
)

// ParsePasswordMode parses a password mode name; empty means PasswordArgv.
func ParsePasswordMode(s string) (PasswordMode, error) {
	switch m := PasswordMode(s); m {
	case "":
		return PasswordArgv, nil
	case PasswordArgv, PasswordEnv, PasswordDefaultsFile:
		return m, nil
	default:
		return "", fmt.Errorf("invalid password mode %q, must be one of %s, %s, %s", s, PasswordArgv, PasswordEnv, PasswordDefaultsFile)
	}
}

type RestoreOptions struct {
	// Source is where the binlogs are; a storage.Local is read in place, anything else is staged.
	Source       storage.Storage
	BinlogPrefix string
	// StartTime and StopTime are handed to the decoder unchanged, in "YYYY-MM-DD HH:MM:SS" form.
	// StopTime may be empty.
	StartTime          string
	StopTime           string
	DBConn             database.Connection
	Decoder            string
	Client             string
	PasswordMode       PasswordMode
	StrictDecode       bool
	VerifyConnection   bool
	AgeIdentity        string
	DecryptionKey      string
	PreRestoreScripts  string
	PostRestoreScripts string
	Run                uuid.UUID
}

func (o RestoreOptions) withDefaults() RestoreOptions {
	if o.BinlogPrefix == "" {
		o.BinlogPrefix = binlog.DefaultPrefix
	}
	if o.Decoder == "" {
		o.Decoder = DefaultDecoder
	}
	if o.Client == "" {
		o.Client = DefaultClient
	}
	if o.PasswordMode == "" {
		o.PasswordMode = PasswordArgv
	}
	return o
}
