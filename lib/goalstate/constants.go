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
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

// ComponentGoalState is the trace.Component value this package's log
// entries carry.
const ComponentGoalState = "goalstate"

var log = logrus.WithFields(logrus.Fields{
	trace.Component: ComponentGoalState,
})

const (
	goalStateURIFormat = "http://%s/machine/?comp=goalstate"

	// CertsFileName is the raw Certificates subdocument, as fetched.
	CertsFileName = "Certificates.xml"
	// P7MFileName is the MIME-wrapped PKCS7 blob built from that
	// subdocument's Data element.
	P7MFileName = "Certificates.p7m"
	// PEMFileName is the decrypted bundle the p7m blob is decrypted into.
	PEMFileName = "Certificates.pem"
	// TransportCertFileName is the agent's own transport certificate,
	// expected to already exist in the library directory.
	TransportCertFileName = "TransportCert.pem"
	// TransportPrvFileName is the agent's own transport private key,
	// expected to already exist in the library directory.
	TransportPrvFileName = "TransportPrivate.pem"

	// pkcs7BlobFormat is the only Certificates.Format value this package
	// knows how to decrypt.
	pkcs7BlobFormat = "Pkcs7BlobWithPfxContents"
)
