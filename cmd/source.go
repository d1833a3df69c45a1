package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/databacker/mysql-binlog-restore/pkg/storage"
)

// binlogSource resolves where the binlogs are: the binlog-dir flag or env var, else the source in
// the config file.
func binlogSource(v *viper.Viper, cmdConfig *cmdConfiguration) (storage.Storage, error) {
	if dir := v.GetString("binlog-dir"); dir != "" {
		store, err := storage.ParseURL(dir, cmdConfig.creds)
		if err != nil {
			return nil, fmt.Errorf("invalid binlog directory: %w", err)
		}
		return store, nil
	}
	if cmdConfig.configuration != nil && cmdConfig.configuration.Restore.Source != nil && cmdConfig.configuration.Restore.Source.Storage != nil {
		store, err := cmdConfig.configuration.Restore.Source.Storage.Storage()
		if err != nil {
			return nil, fmt.Errorf("invalid binlog source in configuration: %w", err)
		}
		return store, nil
	}
	return nil, errors.New("binlog-dir is required")
}

// stringSetting returns the flag or env var value if set, else the configured value.
func stringSetting(v *viper.Viper, name, configured string) string {
	if v.IsSet(name) {
		return v.GetString(name)
	}
	return configured
}

func boolSetting(v *viper.Viper, name string, configured bool) bool {
	if v.IsSet(name) {
		return v.GetBool(name)
	}
	return configured
}
