package link

import (
	"crypto/x509"
	"fmt"
	"os"
)

// loadCAPool reads a PEM-encoded CA certificate file and returns a pool
// containing just that certificate, for verifying the broker's peer
// certificate against a private CA rather than the system root store.
func loadCAPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("link: reading CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("link: no certificates found in %s", path)
	}
	return pool, nil
}
