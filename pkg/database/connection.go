package database

import (
	"fmt"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

const defaultTimeout = 10 * time.Second

type Connection struct {
	User string
	Pass string
	Host string
	Port int
}

// IsSocket reports whether Host is the path of a unix socket rather than a hostname.
func (c Connection) IsSocket() bool {
	return strings.HasPrefix(c.Host, "/")
}

// MySQL returns the DSN for the Go MySQL driver. A host starting with "/" is a unix socket.
func (c Connection) MySQL() string {
	config := mysql.NewConfig()
	config.User = c.User
	config.Passwd = c.Pass
	if c.IsSocket() {
		config.Net = "unix"
		config.Addr = c.Host
	} else {
		config.Net = "tcp"
		config.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}
	config.Timeout = defaultTimeout
	return config.FormatDSN()
}

// String describes the connection target without the password.
func (c Connection) String() string {
	if c.IsSocket() {
		return fmt.Sprintf("%s@unix(%s)", c.User, c.Host)
	}
	return fmt.Sprintf("%s@%s:%d", c.User, c.Host, c.Port)
}
