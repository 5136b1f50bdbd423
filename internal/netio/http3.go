package netio

import (
	"crypto/tls"
	"net/http"

	"github.com/quic-go/quic-go/http3"
)

// http3Server wraps mux in the quic-go HTTP/3 server WebTransport needs
// underneath it, bound to addr with the given TLS certificate.
func http3Server(addr string, cert tls.Certificate, mux *http.ServeMux) *http3.Server {
	return &http3.Server{
		Addr:      addr,
		Handler:   mux,
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
	}
}
