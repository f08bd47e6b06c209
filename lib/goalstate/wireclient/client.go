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

// Package wireclient is the default goalstate.Transport implementation: a
// plain HTTP client talking to the wire server's metadata endpoint.
package wireclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gravitational/roundtrip"
	"github.com/gravitational/trace"

	"github.com/gravitational/goalstate/lib/goalstate"
)

const (
	// defaultDialTimeout bounds how long a single TCP connection attempt
	// to the wire server may take.
	defaultDialTimeout = 30 * time.Second
	// maxIdleConns/maxIdleConnsPerHost mirror the connection pool sizing
	// used for other single-host API clients in this codebase: the wire
	// server is one host, hit repeatedly, so keeping connections warm
	// matters more than it would for a client that fans out across hosts.
	maxIdleConns        = 100
	maxIdleConnsPerHost = 100

	agentNameHeader      = "x-ms-agent-name"
	versionHeader        = "x-ms-version"
	certThumbprintHeader = "x-ms-guest-agent-public-x509-cert-thumbprint"

	protocolVersion = "2012-11-30"
	agentName       = "gravitational-goalstate"
)

type headerKindKey struct{}

// withHeaderKind attaches the header kind a call wants to ctx, for
// headerInjectingTransport to read back out once roundtrip has built the
// outgoing *http.Request.
func withHeaderKind(ctx context.Context, kind goalstate.HeaderKind) context.Context {
	return context.WithValue(ctx, headerKindKey{}, kind)
}

// headerInjectingTransport adds the wire protocol's fixed headers to every
// request, plus the certificate-thumbprint header when the request's
// context asks for it. roundtrip.Client itself has no notion of per-call
// headers, so this is what lets FetchConfig vary the header set per
// HeaderKind while still routing every request through roundtrip.
type headerInjectingTransport struct {
	base       http.RoundTripper
	thumbprint string
}

func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(agentNameHeader, agentName)
	req.Header.Set(versionHeader, protocolVersion)
	if kind, ok := req.Context().Value(headerKindKey{}).(goalstate.HeaderKind); ok && kind == goalstate.HeaderCert {
		req.Header.Set(certThumbprintHeader, t.thumbprint)
	}
	return t.base.RoundTrip(req)
}

// Client is the default goalstate.Transport: it issues GETs against the
// wire server over plain HTTP, attaching either the standard header set
// or the certificate header set depending on the document being fetched.
type Client struct {
	roundtrip.Client
	endpoint string
}

// Config configures a Client.
type Config struct {
	// Endpoint is the wire server's host:port, as published to the role
	// instance over DHCP option 245.
	Endpoint string
	// TransportCertThumbprint is sent in the cert-header request so the
	// wire server knows which of the role instance's certificates to
	// encrypt the response against.
	TransportCertThumbprint string
}

// New returns a Client talking to cfg.Endpoint.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, trace.BadParameter("wireclient: Endpoint is required")
	}

	base := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: defaultDialTimeout,
		}).DialContext,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}
	transport := &headerInjectingTransport{base: base, thumbprint: cfg.TransportCertThumbprint}

	rt, err := roundtrip.NewClient("http://"+cfg.Endpoint, "", roundtrip.HTTPClient(&http.Client{Transport: transport}))
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &Client{
		Client:   *rt,
		endpoint: cfg.Endpoint,
	}, nil
}

// Endpoint implements goalstate.Transport.
func (c *Client) Endpoint() string { return c.endpoint }

// FetchConfig implements goalstate.Transport.
func (c *Client) FetchConfig(ctx context.Context, uri string, header goalstate.HeaderKind) (string, error) {
	resp, err := c.Client.Get(withHeaderKind(ctx, header), uri, url.Values{})
	if err != nil {
		return "", &goalstate.TransportError{URI: uri, Inner: trace.Wrap(err)}
	}
	if resp.Code() < 200 || resp.Code() >= 300 {
		return "", &goalstate.TransportError{URI: uri, Inner: trace.BadParameter("wireclient: %s returned status %d", uri, resp.Code())}
	}

	return string(resp.Bytes()), nil
}
