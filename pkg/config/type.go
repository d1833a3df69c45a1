package config

import (
	"fmt"

	"github.com/databacker/mysql-binlog-restore/pkg/remote"
	"github.com/databacker/mysql-binlog-restore/pkg/storage"
	"github.com/databacker/mysql-binlog-restore/pkg/storage/credentials"
	"github.com/databacker/mysql-binlog-restore/pkg/storage/s3"
	"github.com/databacker/mysql-binlog-restore/pkg/storage/scp"
	"github.com/databacker/mysql-binlog-restore/pkg/storage/smb"
	"github.com/databacker/mysql-binlog-restore/pkg/util"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	VersionV1  = "config.databack.io/v1"
	KindLocal  = "local"
	KindRemote = "remote"
)

type logLevel string

// Config is the envelope of a configuration file. Spec is decoded according to Kind.
type Config struct {
	Version string    `yaml:"version"`
	Kind    string    `yaml:"kind"`
	Spec    yaml.Node `yaml:"spec"`
}

type ConfigSpec struct {
	Logging   logLevel  `yaml:"logging"`
	Database  Database  `yaml:"database"`
	Restore   Restore   `yaml:"restore"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Level returns the configured log level; ok is false if none is configured.
func (c ConfigSpec) Level() (level log.Level, ok bool, err error) {
	if c.Logging == "" {
		return log.InfoLevel, false, nil
	}
	level, err = log.ParseLevel(string(c.Logging))
	if err != nil {
		return log.InfoLevel, false, fmt.Errorf("invalid logging level %q: %w", c.Logging, err)
	}
	return level, true, nil
}

type Database struct {
	Server      string        `yaml:"server"`
	Port        int           `yaml:"port"`
	Credentials DBCredentials `yaml:"credentials"`
}

type DBCredentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Restore struct {
	// Source is where the binlogs are; the --binlog-dir flag takes precedence.
	Source           *Target        `yaml:"source"`
	BinlogPrefix     string         `yaml:"binlogPrefix"`
	StartTime        string         `yaml:"startTime"`
	StopTime         string         `yaml:"stopTime"`
	Tools            Tools          `yaml:"tools"`
	PasswordMode     string         `yaml:"passwordMode"`
	StrictDecode     bool           `yaml:"strictDecode"`
	VerifyConnection bool           `yaml:"verifyConnection"`
	AgeIdentity      string         `yaml:"ageIdentity"`
	DecryptionKey    string         `yaml:"decryptionKey"`
	Scripts          RestoreScripts `yaml:"scripts"`
}

type Tools struct {
	Mysqlbinlog string `yaml:"mysqlbinlog"`
	Mysql       string `yaml:"mysql"`
}

type RestoreScripts struct {
	PreRestore  string `yaml:"preRestore"`
	PostRestore string `yaml:"postRestore"`
}

type Telemetry struct {
	remote.Connection `yaml:",inline"`
	// BufferSize is how many log entries are collected before they are sent. The default of 0 is
	// the same as 1, i.e. send every entry.
	BufferSize int `yaml:"bufferSize"`
}

var _ yaml.Unmarshaler = &Target{}

type Target struct {
	Storage
}

type Storage interface {
	Storage() (storage.Storage, error) // convert to a storage.Storage instance
}

func (t *Target) UnmarshalYAML(n *yaml.Node) error {
	var obj struct {
		Type string `yaml:"type"`
	}
	if err := n.Decode(&obj); err != nil {
		return err
	}
	// based on the type, load the rest of the data
	switch obj.Type {
	case "s3":
		var s3Target S3Target
		if err := n.Decode(&s3Target); err != nil {
			return err
		}
		t.Storage = s3Target
	case "smb":
		var smbTarget SMBTarget
		if err := n.Decode(&smbTarget); err != nil {
			return err
		}
		t.Storage = smbTarget
	case "scp":
		var scpTarget SCPTarget
		if err := n.Decode(&scpTarget); err != nil {
			return err
		}
		t.Storage = scpTarget
	case "file":
		var fileTarget FileTarget
		if err := n.Decode(&fileTarget); err != nil {
			return err
		}
		t.Storage = fileTarget
	default:
		return fmt.Errorf("unknown source type: %q", obj.Type)
	}
	return nil
}

type S3Target struct {
	Type         string         `yaml:"type"`
	URL          string         `yaml:"url"`
	Region       string         `yaml:"region"`
	Endpoint     string         `yaml:"endpoint"`
	Credentials  AWSCredentials `yaml:"credentials"`
	UsePathStyle bool           `yaml:"usePathStyle"`
}

func (s S3Target) Storage() (storage.Storage, error) {
	u, err := util.SmartParse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}
	opts := []s3.Option{}
	if s.Region != "" {
		opts = append(opts, s3.WithRegion(s.Region))
	}
	if s.Endpoint != "" {
		opts = append(opts, s3.WithEndpoint(s.Endpoint))
	}
	if s.UsePathStyle {
		opts = append(opts, s3.WithPathStyle())
	}
	if s.Credentials.AccessKeyId != "" {
		opts = append(opts, s3.WithAccessKeyId(s.Credentials.AccessKeyId))
	}
	if s.Credentials.SecretAccessKey != "" {
		opts = append(opts, s3.WithSecretAccessKey(s.Credentials.SecretAccessKey))
	}
	return s3.New(*u, opts...), nil
}

type AWSCredentials struct {
	AccessKeyId     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
}

type SMBTarget struct {
	Type        string         `yaml:"type"`
	URL         string         `yaml:"url"`
	Credentials SMBCredentials `yaml:"credentials"`
}

func (s SMBTarget) Storage() (storage.Storage, error) {
	u, err := util.SmartParse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}
	opts := []smb.Option{}
	if s.Credentials.Domain != "" {
		opts = append(opts, smb.WithDomain(s.Credentials.Domain))
	}
	if s.Credentials.Username != "" {
		opts = append(opts, smb.WithUsername(s.Credentials.Username))
	}
	if s.Credentials.Password != "" {
		opts = append(opts, smb.WithPassword(s.Credentials.Password))
	}
	return smb.New(*u, opts...), nil
}

type SMBCredentials struct {
	Domain   string `yaml:"domain"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SCPTarget reads binlogs over ssh; keys come from the ssh agent and ~/.ssh.
type SCPTarget struct {
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
}

func (s SCPTarget) Storage() (storage.Storage, error) {
	u, err := util.SmartParse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}
	return scp.New(*u), nil
}

type FileTarget struct {
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
}

func (f FileTarget) Storage() (storage.Storage, error) {
	return storage.ParseURL(f.URL, credentials.Creds{})
}
