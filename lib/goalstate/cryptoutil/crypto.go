/*
Copyright 2023 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cryptoutil is the default goalstate.Crypto implementation: it
// decrypts the wire server's PKCS7 certificate blob and derives the
// public keys and thumbprints the Certificates pipeline pairs private
// keys against their certificates with.
package cryptoutil

import (
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // thumbprints are a protocol-defined SHA-1, not a security boundary
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/gravitational/trace"
	"go.mozilla.org/pkcs7"
)

// Crypto is the default goalstate.Crypto.
type Crypto struct{}

// New returns the default Crypto.
func New() *Crypto { return &Crypto{} }

// DecryptP7M decrypts the MIME-wrapped PKCS7 blob at p7mPath using the
// agent's own transport private key and certificate and writes the
// decrypted PEM bundle to outPEMPath.
func (c *Crypto) DecryptP7M(p7mPath, transportPrvPath, transportCertPath, outPEMPath string) error {
	raw, err := os.ReadFile(p7mPath)
	if err != nil {
		return trace.ConvertSystemError(err)
	}

	body := stripMIMEHeaders(raw)
	der, err := decodeBase64PEMLike(body)
	if err != nil {
		return trace.Wrap(err)
	}

	p7, err := pkcs7.Parse(der)
	if err != nil {
		return trace.Wrap(err, "parsing PKCS7 certificate blob")
	}

	certPEM, err := os.ReadFile(transportCertPath)
	if err != nil {
		return trace.ConvertSystemError(err)
	}
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return trace.BadParameter("%s does not contain a PEM certificate", transportCertPath)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return trace.Wrap(err)
	}

	keyPEM, err := os.ReadFile(transportPrvPath)
	if err != nil {
		return trace.ConvertSystemError(err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return trace.BadParameter("%s does not contain a PEM private key", transportPrvPath)
	}
	key, err := parsePrivateKey(keyBlock.Bytes)
	if err != nil {
		return trace.Wrap(err)
	}

	plain, err := p7.Decrypt(cert, key)
	if err != nil {
		return trace.Wrap(err, "decrypting PKCS7 certificate blob")
	}

	if err := os.WriteFile(outPEMPath, plain, 0600); err != nil {
		return trace.ConvertSystemError(err)
	}
	return nil
}

// PubKeyFromPrv returns the modulus of the RSA public key embedded in the
// PEM private key at path, hex-encoded so it can be compared directly
// against the value PubKeyFromCrt returns for the matching certificate.
func (c *Crypto) PubKeyFromPrv(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", trace.ConvertSystemError(err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return "", trace.BadParameter("%s does not contain a PEM private key", path)
	}
	key, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return "", trace.Wrap(err)
	}
	return rsaPublicKeyFingerprint(&key.PublicKey), nil
}

// PubKeyFromCrt returns the modulus of the RSA public key embedded in the
// PEM certificate at path, in the same form PubKeyFromPrv uses.
func (c *Crypto) PubKeyFromCrt(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", trace.ConvertSystemError(err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return "", trace.BadParameter("%s does not contain a PEM certificate", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", trace.Wrap(err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return "", trace.BadParameter("%s does not carry an RSA public key", path)
	}
	return rsaPublicKeyFingerprint(pub), nil
}

// ThumbprintFromCrt returns the uppercase hex SHA-1 digest of the DER
// encoding of the PEM certificate at path, the same value the wire
// protocol uses to name a certificate.
func (c *Crypto) ThumbprintFromCrt(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", trace.ConvertSystemError(err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return "", trace.BadParameter("%s does not contain a PEM certificate", path)
	}
	sum := sha1.Sum(block.Bytes)
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

func rsaPublicKeyFingerprint(pub *rsa.PublicKey) string {
	return fmt.Sprintf("%x", pub.N.Bytes())
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, trace.Wrap(err, "parsing private key")
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, trace.BadParameter("private key is not RSA")
	}
	return rsaKey, nil
}

// stripMIMEHeaders drops the MIME headers this blob was wrapped with,
// returning only the base64 body.
func stripMIMEHeaders(raw []byte) []byte {
	text := string(raw)
	if idx := strings.Index(text, "\n\n"); idx >= 0 {
		return []byte(text[idx+2:])
	}
	return raw
}

// decodeBase64PEMLike decodes the base64 body of the MIME-wrapped PKCS7
// blob. The body is plain base64 text (optionally split across lines), not
// a PEM block with BEGIN/END markers, since that is the format the wire
// server's Certificates.Data element is published in.
func decodeBase64PEMLike(body []byte) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, string(body))

	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, trace.Wrap(err, "decoding base64 PKCS7 body")
	}
	return der, nil
}
