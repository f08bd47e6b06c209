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

package goalstate

// Crypto performs the cryptographic operations the Certificates pipeline
// needs: decrypting the wire server's PKCS7 blob and deriving public keys
// and thumbprints from the resulting certificates and private keys. As
// with Transport, callers supply their own implementation (see package
// cryptoutil for a default one backed by go.mozilla.org/pkcs7 and
// crypto/x509).
type Crypto interface {
	// DecryptP7M decrypts the MIME-wrapped PKCS7 blob at p7mPath, using
	// the agent's transport private key and certificate, and writes the
	// resulting PEM bundle to outPEMPath.
	DecryptP7M(p7mPath, transportPrvPath, transportCertPath, outPEMPath string) error

	// PubKeyFromPrv returns a normalized public key derived from the PEM
	// private key at path.
	PubKeyFromPrv(path string) (string, error)

	// PubKeyFromCrt returns a normalized public key derived from the PEM
	// certificate at path, in the same form PubKeyFromPrv produces so the
	// two can be compared for equality.
	PubKeyFromCrt(path string) (string, error)

	// ThumbprintFromCrt returns the uppercase hex SHA-1 thumbprint of the
	// PEM certificate at path.
	ThumbprintFromCrt(path string) (string, error)
}
