package remote

// Connection is an HTTPS endpoint authenticated both ways: the server by one of Certificates, the
// client by a certificate derived from Credentials.
type Connection struct {
	URL string `yaml:"url"`
	// Certificates are digests of the server certificate or one in its chain, each prefixed with
	// the digest algorithm, e.g. sha256:69729b8e15a86efc177a57afb7171dfc64add28c2fca8cf1507e34453ccb1470
	// Servers with a certificate from a trusted CA are accepted as well.
	Certificates []string `yaml:"certificates"`
	// Credentials is the base64-encoded 32-byte ed25519 seed of the client key.
	Credentials string `yaml:"credentials"`
}
