// Package tlsutil loads optional mTLS material for the outbound HTTP
// clients krar uses to talk to a private registry or a notification
// webhook (SPEC_FULL.md §3 RegistryTLS).
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
)

// ClientConfig loads certFile/keyFile as the client certificate presented
// on the handshake and caFile as the trust root for the remote server,
// returning a *tls.Config suitable for an http.Transport.
func ClientConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("loading client cert/key: %w", err)
	}
	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("reading CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("failed to parse CA cert from %s", caFile)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// Transport builds an http.RoundTripper carrying the given TLS config,
// leaving every other http.Transport setting at its default.
func Transport(cfg *tls.Config) http.RoundTripper {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = cfg
	return transport
}
