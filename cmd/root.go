package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/databacker/mysql-binlog-restore/pkg/config"
	"github.com/databacker/mysql-binlog-restore/pkg/core"
	"github.com/databacker/mysql-binlog-restore/pkg/database"
	logpkg "github.com/databacker/mysql-binlog-restore/pkg/log"
	"github.com/databacker/mysql-binlog-restore/pkg/remote"
	"github.com/databacker/mysql-binlog-restore/pkg/storage/credentials"
)

type execs interface {
	SetLogger(logger *log.Logger)
	GetLogger() *log.Logger
	Restore(ctx context.Context, opts core.RestoreOptions) (core.RestoreResults, error)
	List(ctx context.Context, opts core.ListOptions) ([]string, error)
}

type subCommand func(execs, *cmdConfiguration) (*cobra.Command, error)

var subCommands = []subCommand{restoreCmd, listCmd}

type cmdConfiguration struct {
	dbconn        database.Connection
	creds         credentials.Creds
	configuration *config.ConfigSpec
	logger        *log.Logger
	telemetry     *logpkg.Telemetry
}

const (
	defaultPort = 3306
)

func rootCmd(execs execs) (*cobra.Command, error) {
	var (
		v         *viper.Viper
		cmd       *cobra.Command
		cmdConfig = &cmdConfiguration{}
		ctx       = context.Background()
	)
	cmd = &cobra.Command{
		Use:   "binlog-restore",
		Short: "replay mysql binlogs into a database up to a point in time",
		Long: `Replay the binary logs of a mysql-compatible server into a database, from a start time and
		optionally up to a stop time, by piping mysqlbinlog into mysql.
		Binlogs may be read from a local directory, or staged from s3, smb or scp locations.
		In addition to the provided command-line flag options and environment variables,
		when using s3-storage, supports the following AWS options:

		AWS_ACCESS_KEY_ID: AWS Key ID
		AWS_SECRET_ACCESS_KEY: AWS Secret Access Key
		AWS_REGION: Region in which the bucket resides
		`,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			bindFlags(cmd, v)
			var logger = log.New()
			logLevel := v.GetInt("verbose")
			debugSet := v.IsSet("debug")
			if !v.IsSet("verbose") && (v.GetBool("debug") || (debugSet && v.GetString("debug") == "true")) {
				logLevel = 1
			}
			switch logLevel {
			case 0:
				logger.SetLevel(log.InfoLevel)
			case 1:
				logger.SetLevel(log.DebugLevel)
			case 2:
				logger.SetLevel(log.TraceLevel)
			}

			// read the config file, if needed; the structure of the config differs quite some
			// from the necessarily flat env vars/CLI flags, so we can't just use viper's
			// automatic config file support.
			var (
				actualConfig    *config.ConfigSpec
				tracerExporters []sdktrace.SpanExporter
			)

			if configFilePath := v.GetString("config-file"); configFilePath != "" {
				f, err := os.Open(configFilePath)
				if err != nil {
					return fmt.Errorf("fatal error config file: %w", err)
				}
				defer f.Close()
				actualConfig, err = config.ProcessConfig(ctx, f)
				if err != nil {
					return fmt.Errorf("unable to read provided config: %w", err)
				}
			}

			if actualConfig != nil {
				cmdConfig.dbconn.Host = actualConfig.Database.Server
				cmdConfig.dbconn.Port = actualConfig.Database.Port
				cmdConfig.dbconn.User = actualConfig.Database.Credentials.Username
				cmdConfig.dbconn.Pass = actualConfig.Database.Credentials.Password
				cmdConfig.configuration = actualConfig

				// flags win over the configured level
				if level, ok, _ := actualConfig.Level(); ok && !v.IsSet("verbose") && !debugSet {
					logger.SetLevel(level)
				}

				if telemetry := actualConfig.Telemetry; telemetry.URL != "" {
					hook, err := logpkg.NewTelemetry(ctx, telemetry.Connection, telemetry.BufferSize, nil)
					if err != nil {
						return fmt.Errorf("unable to set up telemetry: %w", err)
					}
					logger.AddHook(hook)
					cmdConfig.telemetry = hook

					// traces go to the same server
					u, err := url.Parse(telemetry.URL)
					if err != nil {
						return fmt.Errorf("invalid telemetry URL: %w", err)
					}
					tlsConfig, err := remote.TLSConfig(u.Hostname(), telemetry.Certificates, telemetry.Credentials)
					if err != nil {
						return fmt.Errorf("unable to set up telemetry: %w", err)
					}
					exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(u.Host), otlptracehttp.WithTLSClientConfig(tlsConfig)}
					if u.Path != "" {
						exporterOpts = append(exporterOpts, otlptracehttp.WithURLPath(u.Path))
					}
					tracerExporter, err := otlptracehttp.New(ctx, exporterOpts...)
					if err != nil {
						return fmt.Errorf("unable to set up telemetry: %w", err)
					}
					tracerExporters = append(tracerExporters, tracerExporter)
				}
			}

			// override config with env var or CLI flag, if set
			dbHost := v.GetString("host")
			if dbHost != "" && v.IsSet("host") {
				cmdConfig.dbconn.Host = dbHost
			}
			dbPort := v.GetInt("port")
			if dbPort != 0 && (v.IsSet("port") || cmdConfig.dbconn.Port == 0) {
				cmdConfig.dbconn.Port = dbPort
			}
			dbUser := v.GetString("user")
			if dbUser != "" && v.IsSet("user") {
				cmdConfig.dbconn.User = dbUser
			}
			dbPass := v.GetString("password")
			if dbPass != "" && v.IsSet("password") {
				cmdConfig.dbconn.Pass = dbPass
			}

			// these are not from the config file, as they are generic credentials, used for any
			// source given by URL. The config file has its own per source.
			cmdConfig.creds = credentials.Creds{
				AWS: credentials.AWSCreds{
					Endpoint:        v.GetString("aws-endpoint-url"),
					PathStyle:       v.GetBool("aws-path-style"),
					AccessKeyID:     v.GetString("aws-access-key-id"),
					SecretAccessKey: v.GetString("aws-secret-access-key"),
					Region:          v.GetString("aws-region"),
				},
				SMB: credentials.SMBCreds{
					Username: v.GetString("smb-user"),
					Password: v.GetString("smb-pass"),
					Domain:   v.GetString("smb-domain"),
				},
			}
			cmdConfig.logger = logger

			if v.GetBool("trace-stderr") {
				exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr))
				if err != nil {
					return fmt.Errorf("failed to initialize stdouttrace exporter: %w", err)
				}
				tracerExporters = append(tracerExporters, exp)
			}
			var tracerProviderOpts []sdktrace.TracerProviderOption
			for _, exp := range tracerExporters {
				tracerProviderOpts = append(tracerProviderOpts, sdktrace.WithBatcher(exp))
			}
			otel.SetTracerProvider(sdktrace.NewTracerProvider(tracerProviderOpts...))

			return nil
		},
	}

	v = viper.New()
	v.SetEnvPrefix("db")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	pflags := cmd.PersistentFlags()
	pflags.String("host", "", "hostname for database server, or path to its unix socket")

	pflags.String("config-file", "", "config file to use, if any; individual CLI flags override config file")

	pflags.Int("port", defaultPort, "port for database server")

	pflags.String("user", "", "username for database server")

	pflags.String("password", "", "password for database server; prompted for when empty and running in a terminal")

	pflags.IntP("verbose", "v", 0, "set log level, 1 is debug, 2 is trace")
	pflags.Bool("debug", false, "set log level to debug, equivalent of --verbose=1; if both set, --verbose always overrides")
	pflags.Bool("trace-stderr", false, "trace to stderr, in addition to any configured telemetry")

	// aws options
	pflags.String("aws-endpoint-url", "", "Specify an alternative endpoint for s3 interoperable systems e.g. Digitalocean; ignored if not using s3.")
	pflags.Bool("aws-path-style", false, "Use path-style addressing of buckets instead of default virtual-host-style; ignored if not using s3.")
	pflags.String("aws-access-key-id", "", "Access Key for s3 and s3 interoperable systems; ignored if not using s3.")
	pflags.String("aws-secret-access-key", "", "Secret Access Key for s3 and s3 interoperable systems; ignored if not using s3.")
	pflags.String("aws-region", "", "Region for s3 and s3 interoperable systems; ignored if not using s3.")

	// smb options
	pflags.String("smb-user", "", "SMB username")
	pflags.String("smb-pass", "", "SMB password")
	pflags.String("smb-domain", "", "SMB domain")

	for _, subCmd := range subCommands {
		if sc, err := subCmd(execs, cmdConfig); err != nil {
			return nil, err
		} else {
			cmd.AddCommand(sc)
		}
	}

	return cmd, nil
}

// finish sends anything still buffered for telemetry and shuts down tracing.
func (c *cmdConfiguration) finish(ctx context.Context) {
	if tp := getTracerProvider(); tp != nil {
		_ = tp.ForceFlush(ctx)
		_ = tp.Shutdown(ctx)
	}
	if c.telemetry != nil {
		c.telemetry.Flush()
	}
}

// Bind each cobra flag to its associated viper configuration (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Determine the naming convention of the flags when represented in the config file
		configName := f.Name
		_ = v.BindPFlag(configName, f)
		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(configName) {
			val := v.Get(configName)
			_ = cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val))
		}
	})
}

// Execute primary function for cobra
func Execute() {
	rootCmd, err := rootCmd(nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
