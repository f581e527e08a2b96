// Package authtest builds throwaway token providers for tests.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/orderbell/internal/auth"
	"github.com/nhle/orderbell/internal/config"
)

// WriteKeys generates a fresh RSA key pair into t.TempDir() and returns the
// JWT config pointing at it.
func WriteKeys(t *testing.T) config.JWT {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	return config.JWT{
		PrivateKeyPath: privPath,
		PublicKeyPath:  pubPath,
		Expiry:         time.Hour,
	}
}

// NewProvider returns a Provider backed by a fresh key pair.
func NewProvider(t *testing.T) *auth.Provider {
	t.Helper()
	p, err := auth.NewProvider(WriteKeys(t))
	require.NoError(t, err)
	return p
}

// Token signs a token for userID with role, failing the test on error.
func Token(t *testing.T, p *auth.Provider, userID, role string) string {
	t.Helper()
	tok, err := p.Sign(userID, userID, role)
	require.NoError(t, err)
	return tok
}
