package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signed token errors.
var (
	ErrTokenInvalid = errors.New("download token is invalid")
	ErrTokenExpired = errors.New("download token has expired")
)

// URLSigner issues and verifies expiring download tokens so receipt
// links can be shared without an authenticated session.
type URLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewURLSigner constructs a signer. TTL defaults to 15 minutes.
func NewURLSigner(secret string, ttl time.Duration) *URLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &URLSigner{secret: []byte(secret), ttl: ttl}
}

// Sign issues a token binding a document path until the expiry.
func (s *URLSigner) Sign(relPath string) (token string, expiresAt time.Time, err error) {
	if strings.Contains(relPath, "|") {
		return "", time.Time{}, fmt.Errorf("invalid document path: %s", relPath)
	}
	expiresAt = time.Now().Add(s.ttl).UTC()
	payload := relPath + "|" + strconv.FormatInt(expiresAt.Unix(), 10)
	sig := s.signature(payload)
	token = base64.RawURLEncoding.EncodeToString([]byte(payload + "|" + sig))
	return token, expiresAt, nil
}

// Verify checks a token and returns the document path it grants.
func (s *URLSigner) Verify(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrTokenInvalid
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return "", ErrTokenInvalid
	}
	relPath, expiry, sig := parts[0], parts[1], parts[2]
	if !hmac.Equal([]byte(sig), []byte(s.signature(relPath+"|"+expiry))) {
		return "", ErrTokenInvalid
	}
	unix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return "", ErrTokenInvalid
	}
	if time.Now().After(time.Unix(unix, 0)) {
		return "", ErrTokenExpired
	}
	return relPath, nil
}

func (s *URLSigner) signature(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
