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

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gravitational/trace"

	"github.com/gravitational/goalstate/lib/goalstate/xmlutil"
)

const (
	// DefaultFileMode is the permission mode every file this pipeline
	// writes is created with; certificate material never needs to be
	// group- or world-readable.
	DefaultFileMode = 0600
)

var (
	beginKeyRE  = regexp.MustCompile(`^-+BEGIN.*KEY-+`)
	beginCertRE = regexp.MustCompile(`^-+BEGIN.*CERTIFICATE-+`)
	endKeyRE    = regexp.MustCompile(`^-+END.*KEY-+`)
	endCertRE   = regexp.MustCompile(`^-+END.*CERTIFICATE-+`)
)

// parseCertificates saves the Certificates subdocument, decrypts its
// PKCS7 blob, and splits the resulting PEM bundle into one file per
// certificate/key, named by thumbprint. It mirrors the pipeline described
// for the original Certificates class: a line-by-line scan of the
// decrypted PEM text pairs each private key with the certificate sharing
// its public key, since nothing in the PEM bundle itself records that
// pairing directly.
func (c *Client) parseCertificates(xmlText string) (*Certificates, error) {
	certsFile := filepath.Join(c.cfg.LibDir, CertsFileName)
	if err := os.WriteFile(certsFile, []byte(xmlText), DefaultFileMode); err != nil {
		return nil, trace.ConvertSystemError(err)
	}

	doc := xmlutil.ParseDoc(xmlText)
	data := xmlutil.FindText(doc, "Data")
	if data == "" {
		return &Certificates{}, nil
	}

	if format := xmlutil.FindText(doc, "Format"); format != "" && format != pkcs7BlobFormat {
		log.Warnf("The Format is not %s. Format is %s", pkcs7BlobFormat, format)
		return &Certificates{}, nil
	}

	p7mFile := filepath.Join(c.cfg.LibDir, P7MFileName)
	p7m := fmt.Sprintf(
		"MIME-Version:1.0\n"+
			"Content-Disposition: attachment; filename=\"%s\"\n"+
			"Content-Type: application/x-pkcs7-mime; name=\"%s\"\n"+
			"Content-Transfer-Encoding: base64\n"+
			"\n%s", p7mFile, p7mFile, data)
	if err := os.WriteFile(p7mFile, []byte(p7m), DefaultFileMode); err != nil {
		return nil, trace.ConvertSystemError(err)
	}

	transPrvFile := filepath.Join(c.cfg.LibDir, TransportPrvFileName)
	transCertFile := filepath.Join(c.cfg.LibDir, TransportCertFileName)
	pemFile := filepath.Join(c.cfg.LibDir, PEMFileName)
	if err := c.cfg.Crypto.DecryptP7M(p7mFile, transPrvFile, transCertFile, pemFile); err != nil {
		return nil, trace.Wrap(err)
	}

	return c.splitPEMBundle(pemFile)
}

// splitPEMBundle scans a decrypted PEM bundle and writes out one numbered
// temp file per key/certificate record, then renames each to
// <thumbprint>.prv or <thumbprint>.crt once the pairing is known.
func (c *Client) splitPEMBundle(pemFile string) (*Certificates, error) {
	f, err := os.Open(pemFile)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	defer f.Close()

	var (
		buf         []string
		index       int
		prvsByPub   = map[string]string{}
		thumbsByPub = map[string]string{}
		certs       []CertEntry
	)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		buf = append(buf, line)

		switch {
		case endKeyRE.MatchString(line):
			tmpFile, err := c.writeTmpFile(index, "prv", buf)
			if err != nil {
				return nil, trace.Wrap(err)
			}
			pub, err := c.cfg.Crypto.PubKeyFromPrv(tmpFile)
			if err != nil {
				return nil, trace.Wrap(err)
			}
			prvsByPub[pub] = tmpFile
			buf = nil
			index++

		case endCertRE.MatchString(line):
			tmpFile, err := c.writeTmpFile(index, "crt", buf)
			if err != nil {
				return nil, trace.Wrap(err)
			}
			pub, err := c.cfg.Crypto.PubKeyFromCrt(tmpFile)
			if err != nil {
				return nil, trace.Wrap(err)
			}
			thumbprint, err := c.cfg.Crypto.ThumbprintFromCrt(tmpFile)
			if err != nil {
				return nil, trace.Wrap(err)
			}
			thumbsByPub[pub] = thumbprint
			certs = append(certs, CertEntry{Thumbprint: thumbprint})

			dest := filepath.Join(c.cfg.LibDir, thumbprint+".crt")
			if err := os.Rename(tmpFile, dest); err != nil {
				return nil, trace.ConvertSystemError(err)
			}
			buf = nil
			index++

		case beginKeyRE.MatchString(line), beginCertRE.MatchString(line):
			// handled implicitly: buf accumulates until the matching END line

		default:
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, trace.ConvertSystemError(err)
	}

	for pub, tmpFile := range prvsByPub {
		thumbprint, ok := thumbsByPub[pub]
		if !ok || thumbprint == "" {
			log.Warn("Found NO matching cert/thumbprint for private key!")
			continue
		}
		dest := filepath.Join(c.cfg.LibDir, thumbprint+".prv")
		if err := os.Rename(tmpFile, dest); err != nil {
			return nil, trace.ConvertSystemError(err)
		}
		log.Infof("Found private key matching thumbprint %s", thumbprint)
	}

	for pub, thumbprint := range thumbsByPub {
		if _, ok := prvsByPub[pub]; !ok {
			log.Infof("Certificate with thumbprint %s has no matching private key.", thumbprint)
		}
	}

	return &Certificates{Certs: certs}, nil
}

func (c *Client) writeTmpFile(index int, suffix string, buf []string) (string, error) {
	name := filepath.Join(c.cfg.LibDir, fmt.Sprintf("%d.%s", index, suffix))
	if err := os.WriteFile(name, []byte(strings.Join(buf, "\n")+"\n"), DefaultFileMode); err != nil {
		return "", trace.ConvertSystemError(err)
	}
	return name, nil
}
