package smb

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/cloudsoda/go-smb2"
	log "github.com/sirupsen/logrus"
)

const (
	defaultSMBPort = "445"
)

type SMB struct {
	url      url.URL
	domain   string
	username string
	password string
}

type Option func(s *SMB)

func WithDomain(domain string) Option {
	return func(s *SMB) {
		s.domain = domain
	}
}
func WithUsername(username string) Option {
	return func(s *SMB) {
		s.username = username
	}
}
func WithPassword(password string) Option {
	return func(s *SMB) {
		s.password = password
	}
}

func New(u url.URL, opts ...Option) *SMB {
	s := &SMB{url: u}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SMB) Pull(ctx context.Context, source, target string, logger *log.Entry) (int64, error) {
	var n int64
	err := s.exec(ctx, func(share *smb2.Share, sharepath string) error {
		from, err := share.Open(joinSMBPath(sharepath, source))
		if err != nil {
			return err
		}
		defer from.Close()
		to, err := os.Create(target)
		if err != nil {
			return err
		}
		defer to.Close()
		n, err = io.Copy(to, from)
		return err
	})
	return n, err
}

func (s *SMB) ReadDir(ctx context.Context, dirname string, logger *log.Entry) ([]fs.FileInfo, error) {
	var infos []fs.FileInfo
	err := s.exec(ctx, func(share *smb2.Share, sharepath string) error {
		var err error
		infos, err = share.ReadDir(joinSMBPath(sharepath, dirname))
		return err
	})
	return infos, err
}

func (s *SMB) Protocol() string {
	return "smb"
}

func (s *SMB) URL() string {
	return s.url.String()
}

// exec connect to the share named in the URL and run fn against it
func (s *SMB) exec(ctx context.Context, fn func(share *smb2.Share, sharepath string) error) error {
	username, password, domain := s.username, s.password, s.domain

	hostname, port, path := s.url.Hostname(), s.url.Port(), s.url.Path
	// set default port
	if port == "" {
		port = defaultSMBPort
	}
	host := net.JoinHostPort(hostname, port)
	share, sharepath := parseSMBPath(path)
	if username == "" && s.url.User != nil {
		username = s.url.User.Username()
		password, _ = s.url.User.Password()
	}
	if domain == "" {
		username, domain = parseSMBDomain(username)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return err
	}
	defer conn.Close()

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			Domain:   domain,
			User:     username,
			Password: password,
		},
	}

	smbConn, err := d.Dial(conn)
	if err != nil {
		return err
	}
	defer func() {
		_ = smbConn.Logoff()
	}()

	mount, err := smbConn.Mount(share)
	if err != nil {
		return err
	}
	defer func() {
		_ = mount.Umount()
	}()
	return fn(mount, sharepath)
}

func joinSMBPath(dir, name string) string {
	switch {
	case dir == "":
		return name
	case name == "":
		return dir
	default:
		return fmt.Sprintf("%s%c%s", dir, smb2.PathSeparator, name)
	}
}

// parseSMBDomain parse a username to get an SMB domain
func parseSMBDomain(username string) (user, domain string) {
	parts := strings.SplitN(username, ";", 2)
	if len(parts) < 2 {
		return username, ""
	}
	// if we reached this point, we have a username that has a domain in it
	return parts[1], parts[0]
}

// parseSMBPath parse an smb path into its constituent parts
func parseSMBPath(path string) (share, sharepath string) {
	sep := "/"
	parts := strings.Split(strings.TrimSuffix(path, sep), sep)
	// if the path started with a slash, it might have an empty string as the first element
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return "", ""
	}
	// ensure no leading / as it messes up SMB
	return parts[0], strings.Join(parts[1:], `\`)
}
