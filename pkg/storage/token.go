package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LinkTokenData is the verified content of an internal link token.
type LinkTokenData struct {
	Path       string
	Operations ShareLinkOperation
}

// tokenPayload is the signed wire form. The operations travel as their
// canonical string encoding and the expiry as a Unix timestamp; expiry is
// enforced by the signature mechanism itself, not by any stored state.
type tokenPayload struct {
	Key string `json:"key"`
	Op  string `json:"op"`
	Exp int64  `json:"exp"`
}

var tokenEncoding = base64.RawURLEncoding

// signingKey derives the HMAC key for one named backend. Salting with the
// backend name means a token minted by backend "a" never verifies under a
// backend named "b", even when both share the same secret.
func signingKey(secret []byte, name string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte("cask.link:" + name))
	return mac.Sum(nil)
}

func signToken(key, payload []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// encodeLinkToken signs a (path, operations, expiry) tuple into a compact
// token: base64url(payload) "." base64url(signature).
func encodeLinkToken(secret []byte, name, path string, ops ShareLinkOperation, expire time.Time) (string, error) {
	if expire.Before(time.Now()) {
		return "", fmt.Errorf("expiration time is in the past")
	}

	payload, err := json.Marshal(tokenPayload{
		Key: path,
		Op:  ops.String(),
		Exp: expire.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode link token: %w", err)
	}

	sig := signToken(signingKey(secret, name), payload)
	return tokenEncoding.EncodeToString(payload) + "." + tokenEncoding.EncodeToString(sig), nil
}

// decodeLinkToken verifies a token's signature and expiry.
//
// Failures are distinguishable: ErrTokenMalformed for anything that does
// not decode, ErrSignatureInvalid for a signature mismatch, ErrTokenExpired
// for a correctly signed token past its expiry. The signature is checked
// before the expiry so an attacker cannot probe clock handling with forged
// tokens.
func decodeLinkToken(secret []byte, name, token string, now time.Time) (*LinkTokenData, error) {
	encPayload, encSig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrTokenMalformed
	}

	payload, err := tokenEncoding.DecodeString(encPayload)
	if err != nil {
		return nil, ErrTokenMalformed
	}
	sig, err := tokenEncoding.DecodeString(encSig)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	want := signToken(signingKey(secret, name), payload)
	if !hmac.Equal(sig, want) {
		return nil, ErrSignatureInvalid
	}

	var p tokenPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, ErrTokenMalformed
	}

	if now.Unix() > p.Exp {
		return nil, ErrTokenExpired
	}

	ops, err := ParseOperation(p.Op)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	return &LinkTokenData{Path: p.Key, Operations: ops}, nil
}
