//go:build integration

package test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/databacker/mysql-binlog-restore/pkg/database"
	imagetypes "github.com/docker/docker/api/types/image"
)

const (
	mysqlRootUser = "root"
	mysqlRootPass = "root"
	mysqlImage    = "mysql:8.2.0"
)

func startDatabase(dc *dockerContext, baseDir, image, name string) (containerPort, error) {
	resp, err := dc.cli.ImagePull(context.Background(), image, imagetypes.PullOptions{})
	if err != nil {
		return containerPort{}, fmt.Errorf("failed to pull mysql image: %v", err)
	}
	_, _ = io.Copy(os.Stdout, resp)
	_ = resp.Close()

	// binlogs named binlog.NNNNNN in the data directory, row format, explicit server id
	mysqlConf := `
[mysqld]
server-id       =1
log-bin         =binlog
binlog_format   =ROW
`
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return containerPort{}, fmt.Errorf("failed to create mysql base directory: %v", err)
	}
	confFile := filepath.Join(baseDir, "binlog.cnf")
	if err := os.WriteFile(confFile, []byte(mysqlConf), 0644); err != nil {
		return containerPort{}, fmt.Errorf("failed to write mysql config file: %v", err)
	}

	cid, port, err := dc.startContainer(
		image, name, "3306/tcp", []string{fmt.Sprintf("%s:/etc/mysql/conf.d/binlog.cnf:ro", confFile)}, nil, []string{
			fmt.Sprintf("MYSQL_ROOT_PASSWORD=%s", mysqlRootPass),
		})
	if err != nil {
		return containerPort{}, fmt.Errorf("failed to start mysql container: %v", err)
	}
	return containerPort{name: name, id: cid, port: port}, nil
}

// waitForDatabase polls until the server accepts connections over TCP. The image's init server
// listens only on a socket, so this also waits out initialization.
func waitForDatabase(conn database.Connection) error {
	var (
		retryMax   = 60
		retrySleep = time.Second
		err        error
	)
	for i := 0; i < retryMax; i++ {
		if _, err = database.Verify(context.Background(), conn); err == nil {
			return nil
		}
		time.Sleep(retrySleep)
	}
	return fmt.Errorf("failed to connect to database after %d tries: %w", retryMax, err)
}
