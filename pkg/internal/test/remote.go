package test

import (
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	utilremote "github.com/databacker/mysql-binlog-restore/pkg/internal/remote"
)

// StartServer starts an HTTPS server with a fresh self-signed certificate that only lets through
// requests from clients holding one of clientKeyCount freshly generated keys. It returns the
// server, the fingerprint of its certificate and the seeds of the client keys. handler, if not
// nil, serves the accepted requests.
func StartServer(clientKeyCount int, handler http.HandlerFunc) (server *httptest.Server, serverFingerprint string, clientKeys [][]byte, err error) {
	var clientPublicKeys []ed25519.PublicKey
	for i := 0; i < clientKeyCount; i++ {
		clientSeed := make([]byte, ed25519.SeedSize)
		if _, err := io.ReadFull(cryptorand.Reader, clientSeed); err != nil {
			return nil, "", nil, fmt.Errorf("failed to generate client random seed: %w", err)
		}
		clientKeys = append(clientKeys, clientSeed)
		clientPublicKeys = append(clientPublicKeys, ed25519.NewKeyFromSeed(clientSeed).Public().(ed25519.PublicKey))
	}

	serverSeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(cryptorand.Reader, serverSeed); err != nil {
		return nil, "", nil, fmt.Errorf("failed to generate server random seed: %w", err)
	}
	serverCert, err := utilremote.SelfSignedCertFromPrivateKey(ed25519.NewKeyFromSeed(serverSeed), "127.0.0.1")
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create self-signed certificate: %w", err)
	}
	serverFingerprint = utilremote.Fingerprint(serverCert.Certificate[0])

	server = httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peerCerts := r.TLS.PeerCertificates
		if len(peerCerts) == 0 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		peerPublicKey, ok := peerCerts[0].PublicKey.(ed25519.PublicKey)
		if !ok {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var matched bool
		for _, publicKey := range clientPublicKeys {
			if peerPublicKey.Equal(publicKey) {
				matched = true
				break
			}
		}
		if !matched {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if handler != nil {
			handler(w, r)
		}
	}))
	server.TLS = &tls.Config{
		ClientAuth:   tls.RequestClientCert,
		ClientCAs:    x509.NewCertPool(),
		Certificates: []tls.Certificate{*serverCert},
	}
	server.StartTLS()
	return server, serverFingerprint, clientKeys, nil
}
