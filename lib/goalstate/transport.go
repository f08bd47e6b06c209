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

import "context"

// HeaderKind selects which request header set a Transport should send.
// The wire server requires a different header (carrying the agent's
// transport certificate) when fetching documents that were encrypted
// against that certificate.
type HeaderKind int

const (
	// HeaderStandard is the default header set used for plain documents.
	HeaderStandard HeaderKind = iota
	// HeaderCert is used for documents encrypted against the agent's
	// transport certificate: Certificates and RemoteAccessInfo.
	HeaderCert
)

// Transport fetches a configuration document by URI from the wire server.
// It is the only collaborator this package needs to reach the network;
// callers supply their own implementation (see package wireclient for a
// default one) so this package never opens a socket itself.
type Transport interface {
	FetchConfig(ctx context.Context, uri string, header HeaderKind) (string, error)
	Endpoint() string
}
