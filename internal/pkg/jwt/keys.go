// internal/pkg/jwt/keys.go
package jwt

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// Config locates the authentication collaborator's public key and the
// expected token claims.
type Config struct {
	PubPath  string
	Issuer   string
	Audience string
}

// LoadVerifier reads the PEM-encoded public key and builds a verifier.
func LoadVerifier(cfg Config) (*Verifier, error) {
	pub, err := loadPublicKey(cfg.PubPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load public key: %w", err)
	}
	return NewVerifier(pub, cfg.Issuer, cfg.Audience), nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		// Older keypairs use PKCS1 encoding
		if pkcs1, pkcs1Err := x509.ParsePKCS1PublicKey(block.Bytes); pkcs1Err == nil {
			return pkcs1, nil
		}
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key in %s is not RSA", path)
	}

	return pub, nil
}
