package storage

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLSignerRoundTrip(t *testing.T) {
	signer := NewURLSigner("secret", time.Minute)

	token, expiresAt, err := signer.Sign("receipts/payment-1.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	relPath, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "receipts/payment-1.pdf", relPath)
}

func TestURLSignerRejectsTamperedPath(t *testing.T) {
	signer := NewURLSigner("secret", time.Minute)

	token, _, err := signer.Sign("receipts/payment-1.pdf")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	forged := strings.Replace(string(raw), "payment-1", "payment-2", 1)
	tampered := base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = signer.Verify(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestURLSignerRejectsForeignSecret(t *testing.T) {
	token, _, err := NewURLSigner("secret-a", time.Minute).Sign("receipts/payment-1.pdf")
	require.NoError(t, err)

	_, err = NewURLSigner("secret-b", time.Minute).Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestURLSignerRejectsExpired(t *testing.T) {
	// Bypass the constructor default so Sign stamps an expiry in the past.
	signer := &URLSigner{secret: []byte("secret"), ttl: -2 * time.Minute}

	token, _, err := signer.Sign("receipts/payment-1.pdf")
	require.NoError(t, err)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestURLSignerRejectsGarbage(t *testing.T) {
	signer := NewURLSigner("secret", time.Minute)

	_, err := signer.Verify("not base64 at all!!")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = signer.Verify(base64.RawURLEncoding.EncodeToString([]byte("only|two")))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestURLSignerRejectsPipeInPath(t *testing.T) {
	signer := NewURLSigner("secret", time.Minute)

	_, _, err := signer.Sign("receipts/pay|ment.pdf")
	assert.Error(t, err)
}

func TestFilesystemSaveAndResolve(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Save("receipts/payment-1.pdf", []byte("%PDF-1.4")))
	assert.True(t, fs.Exists("receipts/payment-1.pdf"))
	assert.False(t, fs.Exists("receipts/missing.pdf"))

	full, err := fs.Resolve("receipts/payment-1.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(full, "payment-1.pdf"))
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	// Clean anchors the path inside the root, so the resolved path must
	// stay under it even with .. segments.
	full, err := fs.Resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(full, fs.root))
}
