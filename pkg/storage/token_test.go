package storage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var tokenSecret = []byte("0123456789abcdef0123456789abcdef")

func TestLinkTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := encodeLinkToken(tokenSecret, "local", "abc/def.txt",
		OperationDownload|OperationUpload, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("encodeLinkToken failed: %v", err)
	}

	data, err := decodeLinkToken(tokenSecret, "local", token, now.Add(59*time.Minute))
	if err != nil {
		t.Fatalf("decodeLinkToken failed: %v", err)
	}
	if data.Path != "abc/def.txt" {
		t.Errorf("path = %q, want abc/def.txt", data.Path)
	}
	if data.Operations != OperationDownload|OperationUpload {
		t.Errorf("operations = %v, want du", data.Operations)
	}
}

func TestLinkTokenExpiry(t *testing.T) {
	now := time.Now()
	token, err := encodeLinkToken(tokenSecret, "local", "abc.txt", OperationDownload, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("encodeLinkToken failed: %v", err)
	}

	// Valid just before expiry.
	if _, err := decodeLinkToken(tokenSecret, "local", token, now.Add(59*time.Minute)); err != nil {
		t.Errorf("token should verify at now+59m: %v", err)
	}

	// Expired just after.
	_, err = decodeLinkToken(tokenSecret, "local", token, now.Add(time.Hour+time.Second))
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestLinkTokenExpireInPast(t *testing.T) {
	if _, err := encodeLinkToken(tokenSecret, "local", "abc.txt", OperationDownload,
		time.Now().Add(-time.Minute)); err == nil {
		t.Error("expected error for expiry in the past")
	}
}

// A token signed under one backend name must not verify under another, even
// with the same secret.
func TestLinkTokenNameSalting(t *testing.T) {
	now := time.Now()
	token, err := encodeLinkToken(tokenSecret, "a", "abc.txt", OperationDownload, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("encodeLinkToken failed: %v", err)
	}

	_, err = decodeLinkToken(tokenSecret, "b", token, now)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestLinkTokenTampered(t *testing.T) {
	now := time.Now()
	token, err := encodeLinkToken(tokenSecret, "local", "abc.txt", OperationDownload, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("encodeLinkToken failed: %v", err)
	}

	// Flip the payload while keeping the signature.
	payload, sig, _ := strings.Cut(token, ".")
	other, err := encodeLinkToken(tokenSecret, "local", "xyz.txt", OperationRemove, now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	otherPayload, _, _ := strings.Cut(other, ".")
	if otherPayload == payload {
		t.Fatal("payloads should differ")
	}

	_, err = decodeLinkToken(tokenSecret, "local", otherPayload+"."+sig, now)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestLinkTokenMalformed(t *testing.T) {
	for _, token := range []string{"", "garbage", "a.b.c", "!!!.???", "bm90anNvbg.bm90anNvbg"} {
		_, err := decodeLinkToken(tokenSecret, "local", token, time.Now())
		if !errors.Is(err, ErrTokenMalformed) && !errors.Is(err, ErrSignatureInvalid) {
			t.Errorf("token %q: expected malformed or signature error, got %v", token, err)
		}
	}
}

func TestInternalLinksLinkTo(t *testing.T) {
	links := NewInternalLinks("local", tokenSecret, "https://app.example.com/storage")

	url, err := links.LinkTo(t.Context(), "abc.txt", OperationDownload, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("LinkTo failed: %v", err)
	}
	if !strings.HasPrefix(url, "https://app.example.com/storage?token=") {
		t.Errorf("unexpected link URL: %s", url)
	}

	token := strings.TrimPrefix(url, "https://app.example.com/storage?token=")
	data, err := links.DeserializeLinkToken(token)
	if err != nil {
		t.Fatalf("DeserializeLinkToken failed: %v", err)
	}
	if data.Path != "abc.txt" || data.Operations != OperationDownload {
		t.Errorf("unexpected token data: %+v", data)
	}
}

func TestInternalLinksNotConfigured(t *testing.T) {
	expire := time.Now().Add(time.Hour)

	noSecret := NewInternalLinks("local", nil, "https://app.example.com/storage")
	if _, err := noSecret.CreateLinkToken("a", OperationDownload, expire); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured without secret, got %v", err)
	}
	if _, err := noSecret.LinkTo(t.Context(), "a", OperationDownload, expire); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured without secret, got %v", err)
	}

	noEndpoint := NewInternalLinks("local", tokenSecret, "")
	if _, err := noEndpoint.LinkTo(t.Context(), "a", OperationDownload, expire); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured without endpoint, got %v", err)
	}
}
