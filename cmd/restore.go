package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/databacker/mysql-binlog-restore/pkg/binlog"
	"github.com/databacker/mysql-binlog-restore/pkg/config"
	"github.com/databacker/mysql-binlog-restore/pkg/core"
	"github.com/databacker/mysql-binlog-restore/pkg/util"
)

func restoreCmd(passedExecs execs, cmdConfig *cmdConfiguration) (*cobra.Command, error) {
	if cmdConfig == nil {
		return nil, fmt.Errorf("cmdConfig is nil")
	}
	var v *viper.Viper
	var cmd = &cobra.Command{
		Use:   "restore",
		Short: "replay binlogs into the database",
		Long: `Replay every binlog in a directory, from --start-time and optionally up to --stop-time,
		by piping the output of mysqlbinlog into mysql connected to the database server.`,
		PreRun: func(cmd *cobra.Command, args []string) {
			bindFlags(cmd, v)
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdConfig.logger.Debug("starting restore")
			ctx := context.Background()
			tracer := getTracer("restore")
			defer cmdConfig.finish(ctx)
			ctx = util.ContextWithTracer(ctx, tracer)
			_, startupSpan := tracer.Start(ctx, "startup")

			// config file values, overridden below by flags and env vars
			var configured config.Restore
			if cmdConfig.configuration != nil {
				configured = cmdConfig.configuration.Restore
			}

			store, err := binlogSource(v, cmdConfig)
			if err != nil {
				return err
			}
			startTime := stringSetting(v, "start-time", configured.StartTime)
			if startTime == "" {
				return errors.New("start-time is required")
			}
			passwordMode, err := core.ParsePasswordMode(stringSetting(v, "password-mode", configured.PasswordMode))
			if err != nil {
				return err
			}

			dbconn := cmdConfig.dbconn
			switch {
			case dbconn.Host == "":
				return errors.New("host is required")
			case dbconn.User == "":
				return errors.New("user is required")
			}
			if dbconn.Pass == "" {
				pass, err := readPassword()
				if err != nil {
					if errors.Is(err, errNoTerminal) {
						return errors.New("password is required")
					}
					return err
				}
				dbconn.Pass = pass
			}

			var executor execs
			executor = &core.Executor{}
			if passedExecs != nil {
				executor = passedExecs
			}
			executor.SetLogger(cmdConfig.logger)

			// at this point, any errors should not have usage
			cmd.SilenceUsage = true
			uid := uuid.New()
			restoreOpts := core.RestoreOptions{
				Source:             store,
				BinlogPrefix:       stringSetting(v, "binlog-prefix", configured.BinlogPrefix),
				StartTime:          startTime,
				StopTime:           stringSetting(v, "stop-time", configured.StopTime),
				DBConn:             dbconn,
				Decoder:            stringSetting(v, "mysqlbinlog", configured.Tools.Mysqlbinlog),
				Client:             stringSetting(v, "mysql", configured.Tools.Mysql),
				PasswordMode:       passwordMode,
				StrictDecode:       boolSetting(v, "strict-decode", configured.StrictDecode),
				VerifyConnection:   boolSetting(v, "verify-connection", configured.VerifyConnection),
				AgeIdentity:        stringSetting(v, "age-identity", configured.AgeIdentity),
				DecryptionKey:      stringSetting(v, "decryption-key", configured.DecryptionKey),
				PreRestoreScripts:  stringSetting(v, "pre-restore-scripts", configured.Scripts.PreRestore),
				PostRestoreScripts: stringSetting(v, "post-restore-scripts", configured.Scripts.PostRestore),
				Run:                uid,
			}
			startupSpan.End()
			if _, err := executor.Restore(ctx, restoreOpts); err != nil {
				executor.GetLogger().WithField("run", uid.String()).Error("Restore failed.")
				return fmt.Errorf("error restoring: %w", err)
			}
			return nil
		},
	}
	v = viper.New()
	v.SetEnvPrefix("db_restore")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	flags.String("binlog-dir", "", "directory holding the binlogs: a local path, or a file://, s3://, smb:// or scp:// URL; required unless set in the config file")
	flags.String("start-time", "", "replay events from this time on, in the form 'YYYY-MM-DD HH:MM:SS'; required")
	flags.String("stop-time", "", "replay events up to this time, in the form 'YYYY-MM-DD HH:MM:SS'; if blank, replays to the end of the last binlog")
	flags.String("binlog-prefix", binlog.DefaultPrefix, "only files whose name begins with this prefix are replayed")

	// external tools
	flags.String("mysqlbinlog", core.DefaultDecoder, "binlog decoder executable")
	flags.String("mysql", core.DefaultClient, "client executable that applies the decoded statements")

	flags.String("password-mode", string(core.PasswordArgv), "how the password reaches the client: `argv`, `env` or `defaults-file`")
	flags.Bool("strict-decode", false, "fail the restore when mysqlbinlog exits non-zero, even if mysql succeeded")
	flags.Bool("verify-connection", false, "connect to the database server before starting and fail early if it cannot be reached")
	flags.String("age-identity", "", "age identity file used to decrypt staged binlogs ending in .age")
	flags.String("decryption-key", "", "file holding the 32 byte chacha20-poly1305 key, raw or hex, used to decrypt staged binlogs ending in .c20p")

	// pre-restore scripts
	flags.String("pre-restore-scripts", "", "Directory wherein any executable file will be run before the binlogs are located.")

	// post-restore scripts
	flags.String("post-restore-scripts", "", "Directory wherein any executable file will be run after a successful restore.")

	return cmd, nil
}
