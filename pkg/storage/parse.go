package storage

import (
	"fmt"

	"github.com/databacker/mysql-binlog-restore/pkg/storage/credentials"
	"github.com/databacker/mysql-binlog-restore/pkg/storage/file"
	"github.com/databacker/mysql-binlog-restore/pkg/storage/s3"
	"github.com/databacker/mysql-binlog-restore/pkg/storage/scp"
	"github.com/databacker/mysql-binlog-restore/pkg/storage/smb"
	"github.com/databacker/mysql-binlog-restore/pkg/util"
)

// ParseURL returns the Storage for a binlog location. Anything without a scheme is a local path.
func ParseURL(url string, creds credentials.Creds) (Storage, error) {
	u, err := util.SmartParse(url)
	if err != nil {
		return nil, fmt.Errorf("invalid binlog location %q: %v", url, err)
	}

	var store Storage
	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return nil, fmt.Errorf("invalid binlog location %q: empty path", url)
		}
		store = file.New(*u)
	case "smb":
		opts := []smb.Option{}
		if creds.SMB.Domain != "" {
			opts = append(opts, smb.WithDomain(creds.SMB.Domain))
		}
		if creds.SMB.Username != "" {
			opts = append(opts, smb.WithUsername(creds.SMB.Username))
		}
		if creds.SMB.Password != "" {
			opts = append(opts, smb.WithPassword(creds.SMB.Password))
		}
		store = smb.New(*u, opts...)
	case "s3":
		opts := []s3.Option{}
		if creds.AWS.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(creds.AWS.Endpoint))
		}
		if creds.AWS.Region != "" {
			opts = append(opts, s3.WithRegion(creds.AWS.Region))
		}
		if creds.AWS.AccessKeyID != "" {
			opts = append(opts, s3.WithAccessKeyId(creds.AWS.AccessKeyID))
		}
		if creds.AWS.SecretAccessKey != "" {
			opts = append(opts, s3.WithSecretAccessKey(creds.AWS.SecretAccessKey))
		}
		if creds.AWS.PathStyle {
			opts = append(opts, s3.WithPathStyle())
		}
		store = s3.New(*u, opts...)
	case "scp", "ssh", "sftp":
		store = scp.New(*u)
	default:
		return nil, fmt.Errorf("unknown url protocol: %s", u.Scheme)
	}
	return store, nil
}
