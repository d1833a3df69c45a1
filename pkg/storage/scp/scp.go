package scp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	scp "github.com/bramvdbogaerde/go-scp"
	"github.com/kevinburke/ssh_config"
	"github.com/pkg/sftp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

const defaultSSHPort = "22"

var baseIdentityFileNames = []string{
	"id_ed25519",
	"id_ecdsa",
	"id_ecdsa_sk",   // FIDO2
	"id_ed25519_sk", // FIDO2
	"id_rsa",
}

func sshHome() string {
	if dir := os.Getenv("SSH_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(os.Getenv("HOME"), ".ssh")
}

func getIdentityFiles() []string {
	var files []string
	for _, name := range baseIdentityFileNames {
		filename := filepath.Join(sshHome(), name)
		stat, err := os.Stat(filename)
		if err == nil && !stat.IsDir() {
			files = append(files, filename)
		}
	}
	return files
}

// SCP reads binlogs from a host reachable over ssh, typically the database server itself.
// Listing uses sftp, copying uses scp.
type SCP struct {
	url url.URL
}

func New(u url.URL) *SCP {
	return &SCP{u}
}

func (s *SCP) Pull(ctx context.Context, source, target string, logger *log.Entry) (int64, error) {
	client, err := s.getSCPClient()
	if err != nil {
		return 0, fmt.Errorf("failed to create SCP client: %w", err)
	}
	f, err := os.OpenFile(target, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		client.Close()
		return 0, fmt.Errorf("failed to open target file %s: %w", target, err)
	}
	defer func() {
		client.Close()
		_ = f.Close()
	}()

	remote := s.remotePath(source)
	if err := client.CopyFromRemote(ctx, f, remote); err != nil {
		return 0, fmt.Errorf("failed to copy %s from SCP server: %w", remote, err)
	}
	stat, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to get file stat: %w", err)
	}
	return stat.Size(), nil
}

func (s *SCP) ReadDir(ctx context.Context, dirname string, logger *log.Entry) ([]fs.FileInfo, error) {
	client, err := s.getSSHClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return nil, fmt.Errorf("new sftp: %w", err)
	}
	defer func() { _ = sftpClient.Close() }()
	remote := s.remotePath(dirname)
	infos, err := sftpClient.ReadDir(remote)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote directory %s over sftp: %w", remote, err)
	}
	return infos, nil
}

func (s *SCP) Protocol() string {
	return "scp"
}

func (s *SCP) URL() string {
	return s.url.String()
}

// remotePath the path on the remote host for a name relative to the URL path
func (s *SCP) remotePath(name string) string {
	p := path.Join(s.url.Path, name)
	if p == "" {
		return "."
	}
	return p
}

func (s *SCP) getSSHClient() (*ssh.Client, error) {
	sshConfig, err := loadSSHConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH config: %w", err)
	}
	// URL values, overridden by ssh config for the host alias, then defaults
	hostname := s.url.Hostname()
	port := s.url.Port()
	username := s.url.User.Username()
	var identityFiles []string
	configPort, err := sshConfig.Get(hostname, "Port")
	if err != nil {
		return nil, fmt.Errorf("error getting port from SSH config: %w", err)
	}
	configHostname, err := sshConfig.Get(hostname, "HostName")
	if err != nil {
		return nil, fmt.Errorf("error getting hostname from SSH config: %w", err)
	}
	configIdentityFile, err := sshConfig.Get(hostname, "IdentityFile")
	if err != nil {
		return nil, fmt.Errorf("error getting identity file from SSH config: %w", err)
	}
	configUsername, err := sshConfig.Get(hostname, "User")
	if err != nil {
		return nil, fmt.Errorf("error getting username from SSH config: %w", err)
	}
	if configPort != "" {
		port = configPort
	}
	if configHostname != "" {
		hostname = configHostname
	}
	if configUsername != "" {
		username = configUsername
	}
	if configIdentityFile != "" {
		identityFiles = append(identityFiles, configIdentityFile)
	}
	if port == "" {
		port = defaultSSHPort
	}
	if len(identityFiles) == 0 {
		identityFiles = getIdentityFiles()
	}
	authMethods, err := authMethodsFromAgentAndFiles(identityFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to get SSH auth methods: %w", err)
	}
	if password, ok := s.url.User.Password(); ok {
		authMethods = append(authMethods, ssh.Password(password))
	}
	clientConfig := &ssh.ClientConfig{
		User:            username,
		Auth:            authMethods,
		Timeout:         15 * time.Second,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: verify against known_hosts
	}

	client, err := ssh.Dial("tcp", net.JoinHostPort(hostname, port), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSH server: %w", err)
	}
	return client, nil
}

func (s *SCP) getSCPClient() (*scp.Client, error) {
	sshClient, err := s.getSSHClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH client: %w", err)
	}
	client, err := scp.NewClientBySSH(sshClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SCP server: %w", err)
	}
	return &client, nil
}

func loadSSHConfig() (*ssh_config.Config, error) {
	f, err := os.Open(filepath.Join(sshHome(), "config"))
	if err != nil {
		// no config is fine; act like empty config
		return &ssh_config.Config{}, nil
	}
	defer func() { _ = f.Close() }()
	return ssh_config.Decode(f)
}

func authMethodsFromAgentAndFiles(identityFiles []string) ([]ssh.AuthMethod, error) {
	var signers []ssh.Signer
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			agentSigners, err := agent.NewClient(conn).Signers()
			if err != nil {
				return nil, fmt.Errorf("failed to get signers from SSH agent: %v", err)
			}
			signers = append(signers, agentSigners...)
		}
	}

	for _, p := range identityFiles {
		key, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		raw, err := ssh.ParseRawPrivateKey(key)
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			// encrypted keys are left to the agent
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key %s: %w", p, err)
		}
		signer, err := ssh.NewSignerFromKey(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to create signer from key %s: %w", p, err)
		}
		signers = append(signers, signer)
	}
	if len(signers) == 0 {
		return nil, nil
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signers...)}, nil
}
