// Package certs issues short-lived identity certificates and signs
// permission documents. CA material always comes from the secret store;
// this package never generates or persists CA keys.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// NewECDSAKey creates a fresh P-256 key pair.
func NewECDSAKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// PrivateKeyToPEM converts a private key to PKCS#8 PEM.
func PrivateKeyToPEM(key *ecdsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// PrivateKeyFromPEM parses a PKCS#8 PEM private key as ECDSA.
func PrivateKeyFromPEM(pemEncoded string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemEncoded))
	if block == nil {
		return nil, errors.New("not a valid PEM block")
	}
	raw, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := raw.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("PEM is not an ECDSA key")
	}
	return key, nil
}

// CertToPEM converts a DER certificate to PEM.
func CertToPEM(der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

// CertFromPEM parses a PEM certificate.
func CertFromPEM(pemEncoded string) (*x509.Certificate, error) {
	block, _ := pem.Decode([]byte(pemEncoded))
	if block == nil {
		return nil, errors.New("not a valid PEM block")
	}
	return x509.ParseCertificate(block.Bytes)
}
