package config

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/databacker/mysql-binlog-restore/pkg/remote"
	"gopkg.in/yaml.v3"
)

// maxRemoteHops bounds how many remote configurations may point at further remotes.
const maxRemoteHops = 5

// ProcessConfig reads the configuration from a stream and returns the parsed configuration.
// A configuration of kind remote is retrieved from its server, repeatedly, until one of kind
// local is found.
func ProcessConfig(ctx context.Context, r io.Reader) (*ConfigSpec, error) {
	var conf Config
	if err := yaml.NewDecoder(r).Decode(&conf); err != nil {
		return nil, fmt.Errorf("fatal error reading config file: %w", err)
	}
	for hops := 0; ; hops++ {
		if conf.Version != VersionV1 {
			return nil, fmt.Errorf("unknown config version: %q", conf.Version)
		}
		switch conf.Kind {
		case KindLocal:
			var spec ConfigSpec
			if err := conf.Spec.Decode(&spec); err != nil {
				return nil, fmt.Errorf("parsed yaml had kind local, but spec invalid: %w", err)
			}
			if _, _, err := spec.Level(); err != nil {
				return nil, err
			}
			return &spec, nil
		case KindRemote:
			if hops >= maxRemoteHops {
				return nil, fmt.Errorf("more than %d remote configurations in a row", maxRemoteHops)
			}
			var spec remote.Connection
			if err := conf.Spec.Decode(&spec); err != nil {
				return nil, fmt.Errorf("parsed yaml had kind remote, but spec invalid: %w", err)
			}
			next, err := getRemoteConfig(ctx, spec)
			if err != nil {
				return nil, fmt.Errorf("error parsing remote config: %w", err)
			}
			conf = next
		default:
			return nil, fmt.Errorf("unknown config type: %q", conf.Kind)
		}
	}
}

// getRemoteConfig retrieves the configuration served at spec.URL.
func getRemoteConfig(ctx context.Context, spec remote.Connection) (conf Config, err error) {
	if spec.URL == "" || len(spec.Certificates) == 0 || spec.Credentials == "" {
		return conf, fmt.Errorf("remote config needs url, certificates and credentials")
	}
	resp, err := remote.Get(ctx, spec)
	if err != nil {
		return conf, fmt.Errorf("error getting reader: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return conf, fmt.Errorf("config server returned %s", resp.Status)
	}
	if err := yaml.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return conf, fmt.Errorf("invalid config file retrieved from server: %w", err)
	}
	return conf, nil
}
