package identity

import "net/http"

// Default proxy header names carrying a verified client certificate subject.
const (
	DefaultCommonNameHeader        = "X-SSL-Client-S-DN-CN"
	DefaultDistinguishedNameHeader = "X-SSL-Client-S-DN"
)

// Source extracts the certificate subject of a request.
type Source interface {
	Subject(r *http.Request) Subject
}

// TLSSource reads the subject from the leaf client certificate of the
// request's TLS connection. Chain verification is done by the server's
// TLS configuration before the request reaches a handler.
type TLSSource struct{}

// NewTLSSource creates a subject source backed by the TLS connection state.
func NewTLSSource() *TLSSource {
	return &TLSSource{}
}

// Subject returns the leaf certificate subject, or an empty Subject when
// the connection presented no certificate.
func (s *TLSSource) Subject(r *http.Request) Subject {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return Subject{}
	}

	cert := r.TLS.PeerCertificates[0]

	return Subject{
		CommonName:        cert.Subject.CommonName,
		DistinguishedName: cert.Subject.String(),
	}
}

// HeaderSource reads the subject from headers set by a TLS-terminating
// reverse proxy. It must only be used when the proxy strips these headers
// from client requests.
type HeaderSource struct {
	commonNameHeader        string
	distinguishedNameHeader string
}

// NewHeaderSource creates a subject source reading the given headers.
// Empty header names fall back to the defaults.
func NewHeaderSource(cnHeader, dnHeader string) *HeaderSource {
	if cnHeader == "" {
		cnHeader = DefaultCommonNameHeader
	}
	if dnHeader == "" {
		dnHeader = DefaultDistinguishedNameHeader
	}

	return &HeaderSource{
		commonNameHeader:        cnHeader,
		distinguishedNameHeader: dnHeader,
	}
}

// Subject returns the subject forwarded by the proxy.
func (s *HeaderSource) Subject(r *http.Request) Subject {
	return Subject{
		CommonName:        r.Header.Get(s.commonNameHeader),
		DistinguishedName: r.Header.Get(s.distinguishedNameHeader),
	}
}
