package core

import (
	"time"

	"github.com/databacker/mysql-binlog-restore/pkg/database"
	"github.com/google/uuid"
)

// RestoreResults lists results of the restore.
type RestoreResults struct {
	Run   uuid.UUID
	Start time.Time
	End   time.Time
	// Files are the binlogs handed to the decoder, in order.
	Files []string
	// Server is only filled in when the connection was verified.
	Server database.ServerInfo
	// DecodeExitCode and ReplayExitCode are -1 if the process never ran or did not exit normally.
	DecodeExitCode int
	ReplayExitCode int
}
