package certs

import (
	"bytes"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"

	"github.com/smallstep/pkcs7"
)

var (
	oidSMIMECapabilities = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 15}

	oidAES128CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 2}
	oidAES192CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 22}
	oidAES256CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}
)

type smimeCapability struct {
	ID asn1.ObjectIdentifier
}

// SignPermissionsDocument wraps the rendered XML document in a detached
// PKCS#7 S/MIME envelope signed by the permissions CA, serialized as a
// multipart/signed MIME message.
func (s *Signer) SignPermissionsDocument(document []byte) (string, error) {
	certPEM, ok := s.source.PermissionsCACert()
	if !ok {
		return "", ErrCANotProvisioned
	}
	keyPEM, ok := s.source.PermissionsCAKey()
	if !ok {
		return "", ErrCANotProvisioned
	}
	cert, err := CertFromPEM(certPEM)
	if err != nil {
		return "", fmt.Errorf("parse permissions CA cert: %w", err)
	}
	key, err := PrivateKeyFromPEM(keyPEM)
	if err != nil {
		return "", fmt.Errorf("parse permissions CA key: %w", err)
	}

	signed, err := pkcs7.NewSignedData(document)
	if err != nil {
		return "", fmt.Errorf("build signed data: %w", err)
	}
	signed.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA1)
	err = signed.AddSigner(cert, key, pkcs7.SignerInfoConfig{
		ExtraSignedAttributes: []pkcs7.Attribute{
			{
				Type: oidSMIMECapabilities,
				Value: []smimeCapability{
					{ID: oidAES256CBC},
					{ID: oidAES192CBC},
					{ID: oidAES128CBC},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("sign document: %w", err)
	}
	signed.Detach()
	signature, err := signed.Finish()
	if err != nil {
		return "", fmt.Errorf("serialize signature: %w", err)
	}

	return assembleMultipart(document, signature)
}

func assembleMultipart(document, signature []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	docHeader := textproto.MIMEHeader{}
	docHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	part, err := writer.CreatePart(docHeader)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(document); err != nil {
		return "", err
	}

	sigHeader := textproto.MIMEHeader{}
	sigHeader.Set("Content-Type", `application/x-pkcs7-signature; name="smime.p7s"`)
	sigHeader.Set("Content-Transfer-Encoding", "base64")
	sigHeader.Set("Content-Disposition", `attachment; filename="smime.p7s"`)
	part, err = writer.CreatePart(sigHeader)
	if err != nil {
		return "", err
	}
	if _, err := part.Write([]byte(base64.StdEncoding.EncodeToString(signature))); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/signed; protocol=\"application/x-pkcs7-signature\"; micalg=\"sha1\"; boundary=\"%s\"\r\n", writer.Boundary())
	fmt.Fprintf(&msg, "\r\nThis is an S/MIME signed message\r\n\r\n")
	msg.Write(body.Bytes())
	return msg.String(), nil
}
