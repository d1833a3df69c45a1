package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	utilremote "github.com/databacker/mysql-binlog-restore/pkg/internal/remote"
)

var validAlgos = []string{utilremote.DigestSha256}

// Get requests conn.URL over mutual TLS.
func Get(ctx context.Context, conn Connection) (*http.Response, error) {
	client, err := Client(conn)
	if err != nil {
		return nil, fmt.Errorf("error creating TLS client: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, conn.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	return client.Do(req)
}

// Client returns an HTTP client that presents the credentials of conn and accepts servers by
// CA or by one of the certificate digests of conn.
func Client(conn Connection) (*http.Client, error) {
	// fail early on bad configuration rather than on first dial
	if _, err := TLSConfig("", conn.Certificates, conn.Credentials); err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, _, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, fmt.Errorf("failed to parse address: %w", err)
				}
				tlsConfig, err := TLSConfig(host, conn.Certificates, conn.Credentials)
				if err != nil {
					return nil, err
				}
				d := &tls.Dialer{Config: tlsConfig}
				return d.DialContext(ctx, network, addr)
			},
		},
	}, nil
}

// TLSConfig builds the client side TLS configuration for connecting to host.
// certs are digests in the form "algo:hex"; credentials is a base64-encoded ed25519 seed.
func TLSConfig(host string, certs []string, credentials string) (*tls.Config, error) {
	if len(certs) == 0 {
		return nil, errors.New("no server certificate digests configured")
	}
	trusted := map[string]bool{}
	for _, fingerprint := range certs {
		algo, fp, ok := strings.Cut(fingerprint, ":")
		if !ok {
			return nil, fmt.Errorf("invalid fingerprint format from configuration: %s", fingerprint)
		}
		if !slices.Contains(validAlgos, algo) {
			return nil, fmt.Errorf("invalid algorithm in fingerprint: %s", fingerprint)
		}
		trusted[strings.ToLower(fp)] = true
	}

	seed, err := base64.StdEncoding.DecodeString(credentials)
	if err != nil {
		return nil, fmt.Errorf("error decoding credentials: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid key size %d, must be %d", len(seed), ed25519.SeedSize)
	}
	clientCert, err := utilremote.SelfSignedCertFromPrivateKey(ed25519.NewKeyFromSeed(seed), "")
	if err != nil {
		return nil, fmt.Errorf("error creating client certificate: %w", err)
	}

	return &tls.Config{
		ServerName:   host,
		Certificates: []tls.Certificate{*clientCert},
		// verification is done in VerifyPeerCertificate, which falls back to the digests when
		// the chain does not lead to a known CA
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyPeer(rawCerts, host, trusted)
		},
	}, nil
}

func verifyPeer(rawCerts [][]byte, host string, trusted map[string]bool) error {
	if len(rawCerts) == 0 {
		return errors.New("server presented no certificate")
	}
	certs := make([]*x509.Certificate, len(rawCerts))
	for i, der := range rawCerts {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return fmt.Errorf("failed to parse certificate: %w", err)
		}
		certs[i] = cert
	}

	opts := x509.VerifyOptions{
		Intermediates: x509.NewCertPool(),
		DNSName:       host,
	}
	for _, cert := range certs[1:] {
		opts.Intermediates.AddCert(cert)
	}
	if _, err := certs[0].Verify(opts); err == nil {
		return nil
	}

	for _, der := range rawCerts {
		if trusted[fmt.Sprintf("%x", sha256.Sum256(der))] && validateCert(certs[0], host) {
			return nil
		}
	}
	return errors.New("certificate not trusted")
}

// validateCert checks the leaf certificate of a server trusted by digest: it must be current,
// name host and allow digital signatures.
func validateCert(cert *x509.Certificate, host string) bool {
	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return false
	}
	if cert.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
		return false
	}
	if host == cert.Subject.CommonName {
		return true
	}
	return slices.Contains(cert.DNSNames, host) || slices.ContainsFunc(cert.IPAddresses, func(ip net.IP) bool {
		return ip.String() == host
	})
}
