package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/databacker/mysql-binlog-restore/pkg/binlog"
	"github.com/databacker/mysql-binlog-restore/pkg/core"
	"github.com/databacker/mysql-binlog-restore/pkg/util"
)

func listCmd(passedExecs execs, cmdConfig *cmdConfiguration) (*cobra.Command, error) {
	if cmdConfig == nil {
		return nil, fmt.Errorf("cmdConfig is nil")
	}
	var v *viper.Viper
	var cmd = &cobra.Command{
		Use:   "list",
		Short: "list the binlogs a restore would replay",
		Long:  `List, in replay order, the binlogs a restore from the same directory would hand to mysqlbinlog.`,
		PreRun: func(cmd *cobra.Command, args []string) {
			bindFlags(cmd, v)
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			tracer := getTracer("list")
			defer cmdConfig.finish(ctx)
			ctx = util.ContextWithTracer(ctx, tracer)

			store, err := binlogSource(v, cmdConfig)
			if err != nil {
				return err
			}
			var prefix string
			if cmdConfig.configuration != nil {
				prefix = cmdConfig.configuration.Restore.BinlogPrefix
			}

			var executor execs
			executor = &core.Executor{}
			if passedExecs != nil {
				executor = passedExecs
			}
			executor.SetLogger(cmdConfig.logger)
			cmd.SilenceUsage = true

			files, err := executor.List(ctx, core.ListOptions{
				Source:       store,
				BinlogPrefix: stringSetting(v, "binlog-prefix", prefix),
				Run:          uuid.New(),
			})
			if err != nil {
				return fmt.Errorf("error listing binlogs: %w", err)
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	v = viper.New()
	v.SetEnvPrefix("db_list")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	flags.String("binlog-dir", "", "directory holding the binlogs: a local path, or a file://, s3://, smb:// or scp:// URL; required unless set in the config file")
	flags.String("binlog-prefix", binlog.DefaultPrefix, "only files whose name begins with this prefix are listed")

	return cmd, nil
}
