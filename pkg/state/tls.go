package state

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync/atomic"
)

var errNoCertificate = errors.New("no certificate loaded")

// LoadCertificate reads a PEM encoded certificate and key pair
func LoadCertificate(certFile, keyFile string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load key pair: %w", err)
	}
	return &cert, nil
}

// CertHolder serves the current certificate to new TLS handshakes. Storing a
// certificate does not affect connections that are already established.
type CertHolder struct {
	cur atomic.Pointer[tls.Certificate]
}

// NewCertHolder creates a holder serving cert
func NewCertHolder(cert *tls.Certificate) *CertHolder {
	h := &CertHolder{}
	h.Store(cert)
	return h
}

// Store replaces the served certificate
func (h *CertHolder) Store(cert *tls.Certificate) {
	h.cur.Store(cert)
}

// Load returns the served certificate
func (h *CertHolder) Load() *tls.Certificate {
	return h.cur.Load()
}

// GetCertificate implements tls.Config.GetCertificate
func (h *CertHolder) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	if cert := h.cur.Load(); cert != nil {
		return cert, nil
	}
	return nil, errNoCertificate
}

// TLSConfig returns a server config that picks up every Store
func (h *CertHolder) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: h.GetCertificate,
	}
}
