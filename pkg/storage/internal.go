package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// InternalLinks implements the signed link-token protocol for backends
// without a native presigned-URL mechanism (local filesystem, SFTP,
// memory). Backends embed it to gain CreateLinkToken, DeserializeLinkToken
// and a LinkTo that points at a configured external endpoint with the token
// as a query parameter.
//
// Tokens are stateless: the backend holds only the signing secret, never a
// token registry, so an issued token can only be invalidated by its expiry
// or by rotating the secret (which invalidates every outstanding token for
// the backend).
type InternalLinks struct {
	name     string
	secret   []byte
	endpoint string
}

// NewInternalLinks configures the token protocol for a named backend.
// Secret and endpoint may be empty; the corresponding operations then fail
// with ErrNotConfigured.
func NewInternalLinks(name string, secret []byte, endpoint string) InternalLinks {
	return InternalLinks{name: name, secret: secret, endpoint: endpoint}
}

// Name returns the backend profile name used as the token signing salt.
func (l *InternalLinks) Name() string { return l.name }

// CreateLinkToken signs a (path, operations, expiry) tuple into a compact
// verifiable token.
func (l *InternalLinks) CreateLinkToken(path string, ops ShareLinkOperation, expire time.Time) (string, error) {
	if len(l.secret) == 0 {
		return "", fmt.Errorf("backend %s has no secret key: %w", l.name, ErrNotConfigured)
	}
	return encodeLinkToken(l.secret, l.name, path, ops, expire)
}

// DeserializeLinkToken verifies the signature and expiry of a presented
// token and extracts its path and permitted operations. The error
// distinguishes malformed, badly signed and expired tokens so the consuming
// layer can choose the correct response status.
func (l *InternalLinks) DeserializeLinkToken(token string) (*LinkTokenData, error) {
	if len(l.secret) == 0 {
		return nil, fmt.Errorf("backend %s has no secret key: %w", l.name, ErrNotConfigured)
	}
	return decodeLinkToken(l.secret, l.name, token, time.Now())
}

// LinkTo builds a URL to the configured linked endpoint carrying a freshly
// signed token as the "token" query parameter.
func (l *InternalLinks) LinkTo(ctx context.Context, path string, op ShareLinkOperation, expire time.Time) (string, error) {
	if l.endpoint == "" {
		return "", fmt.Errorf("backend %s has no linked endpoint: %w", l.name, ErrNotConfigured)
	}
	token, err := l.CreateLinkToken(path, op, expire)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(l.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid linked endpoint %q: %w", l.endpoint, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
