package certs

import (
	"crypto"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ErrCANotProvisioned signals absent CA material. It is an expected state,
// not a fault: callers surface it as "not found".
var ErrCANotProvisioned = errors.New("certs: CA material not provisioned")

// DefaultCertificateExpiry bounds identity certificates when no override is
// configured.
const DefaultCertificateExpiry = 365 * 24 * time.Hour

// X.520 attribute types for the given-name and surname components of the
// document subject.
var (
	oidGivenName = asn1.ObjectIdentifier{2, 5, 4, 42}
	oidSurname   = asn1.ObjectIdentifier{2, 5, 4, 4}
)

// CAMaterial supplies CA certificates and keys as optional PEM text.
type CAMaterial interface {
	IdentityCACert() (string, bool)
	IdentityCAKey() (string, bool)
	PermissionsCACert() (string, bool)
	PermissionsCAKey() (string, bool)
}

// Subject identifies the application a certificate or document is issued to.
type Subject struct {
	CommonName string // "{applicationID}_{nonce}"
	GivenName  string // application name
	Surname    string // group id
}

// Credentials is a freshly issued key pair plus its certificate, both PEM.
// The private key exists only in this response; it is never stored.
type Credentials struct {
	PrivateKey  string `json:"private_key"`
	Certificate string `json:"certificate"`
}

// Signer issues identity certificates and signs permission documents against
// the two CA domains held by the secret store.
type Signer struct {
	source CAMaterial
	expiry time.Duration
	now    func() time.Time
}

// Option configures Signer behavior.
type Option func(*Signer)

// WithExpiry overrides the identity certificate lifetime.
func WithExpiry(expiry time.Duration) Option {
	return func(s *Signer) {
		if expiry > 0 {
			s.expiry = expiry
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Signer) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSigner builds a Signer over the given CA source.
func NewSigner(source CAMaterial, opts ...Option) (*Signer, error) {
	if source == nil {
		return nil, errors.New("certs: CA source is required")
	}
	s := &Signer{
		source: source,
		expiry: DefaultCertificateExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueIdentityCertificate generates a fresh key pair and an identity-CA
// signed X.509v3 client certificate for the subject.
func (s *Signer) IssueIdentityCertificate(subject Subject) (*Credentials, error) {
	caCert, caKey, err := s.identityCA()
	if err != nil {
		return nil, err
	}

	key, err := NewECDSAKey()
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	ski, err := subjectKeyID(key)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: subject.CommonName,
			ExtraNames: []pkix.AttributeTypeAndValue{
				{Type: oidGivenName, Value: subject.GivenName},
				{Type: oidSurname, Value: subject.Surname},
			},
		},
		NotBefore: now.Add(-10 * time.Second),
		NotAfter:  now.Add(s.expiry),

		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},

		SubjectKeyId:          ski,
		IsCA:                  false,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, caCert, &key.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("sign identity certificate: %w", err)
	}
	keyPEM, err := PrivateKeyToPEM(key)
	if err != nil {
		return nil, err
	}
	return &Credentials{
		PrivateKey:  keyPEM,
		Certificate: CertToPEM(der),
	}, nil
}

func (s *Signer) identityCA() (*x509.Certificate, any, error) {
	certPEM, ok := s.source.IdentityCACert()
	if !ok {
		return nil, nil, ErrCANotProvisioned
	}
	keyPEM, ok := s.source.IdentityCAKey()
	if !ok {
		return nil, nil, ErrCANotProvisioned
	}
	cert, err := CertFromPEM(certPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse identity CA cert: %w", err)
	}
	key, err := PrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse identity CA key: %w", err)
	}
	return cert, key, nil
}

func subjectKeyID(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return nil, err
	}
	sum := sha1.Sum(der)
	return sum[:], nil
}
