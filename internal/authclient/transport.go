package authclient

import "net/http"

// TokenSource supplies the current bearer token, or "" when the session holds
// none. Implemented by the session manager.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a plain function to a TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string {
	return f()
}

// BearerTransport decorates every outbound request with the current bearer
// credential. It is shared by all remote collaborators so the decoration
// contract lives in one place.
type BearerTransport struct {
	base   http.RoundTripper
	tokens TokenSource
}

func NewBearerTransport(base http.RoundTripper, tokens TokenSource) *BearerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &BearerTransport{base: base, tokens: tokens}
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.tokens != nil && req.Header.Get("Authorization") == "" {
		if token := t.tokens.Token(); token != "" {
			clone := req.Clone(req.Context())
			clone.Header.Set("Authorization", "Bearer "+token)
			return t.base.RoundTrip(clone)
		}
	}
	return t.base.RoundTrip(req)
}
