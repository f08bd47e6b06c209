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
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport keyed by URI, used across this
// package's tests. A nil error is returned for every URI unless one was
// explicitly registered with failOn.
type fakeTransport struct {
	mu        sync.Mutex
	endpoint  string
	documents map[string][]string // one entry per successive call, last one repeats
	calls     map[string]int
	failOn    map[string]error
}

func newFakeTransport(endpoint string) *fakeTransport {
	return &fakeTransport{
		endpoint:  endpoint,
		documents: map[string][]string{},
		calls:     map[string]int{},
		failOn:    map[string]error{},
	}
}

func (t *fakeTransport) set(uri string, docs ...string) *fakeTransport {
	t.documents[uri] = docs
	return t
}

func (t *fakeTransport) Endpoint() string { return t.endpoint }

func (t *fakeTransport) FetchConfig(_ context.Context, uri string, _ HeaderKind) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err, ok := t.failOn[uri]; ok {
		return "", err
	}

	docs, ok := t.documents[uri]
	if !ok || len(docs) == 0 {
		return "", nil
	}
	call := t.calls[uri]
	t.calls[uri]++
	if call >= len(docs) {
		call = len(docs) - 1
	}
	return docs[call], nil
}

const rootDocTemplate = `<?xml version="1.0"?>
<GoalState>
  <Incarnation>%s</Incarnation>
  <Container>
    <ContainerId>c-123</ContainerId>
    <RoleInstanceList>
      %s
    </RoleInstanceList>
    <RemoteAccessInfo>http://127.0.0.1/remoteaccess</RemoteAccessInfo>
  </Container>
</GoalState>`

const roleInstanceFragment = `<RoleInstance>
    <InstanceId>Role_IN_0</InstanceId>
    <Configuration>
      <ConfigName>config.cfg</ConfigName>
      <HostingEnvironmentConfig>http://127.0.0.1/hostingenv</HostingEnvironmentConfig>
      <SharedConfig>http://127.0.0.1/sharedconfig</SharedConfig>
      <Certificates>http://127.0.0.1/certs</Certificates>
      <ExtensionsConfig>http://127.0.0.1/extconf</ExtensionsConfig>
    </Configuration>
  </RoleInstance>`

func rootDocWithRole(incarnation string) string {
	return fmt.Sprintf(rootDocTemplate, incarnation, roleInstanceFragment)
}

func rootDocWithoutRole(incarnation string) string {
	return fmt.Sprintf(rootDocTemplate, incarnation, "")
}

func TestClientFetch_SucceedsImmediately(t *testing.T) {
	transport := newFakeTransport("127.0.0.1")
	uri := "http://127.0.0.1/machine/?comp=goalstate"
	transport.set(uri, rootDocWithRole("1"))

	client, err := NewClient(ClientConfig{Transport: transport, LibDir: t.TempDir(), Clock: clockwork.NewFakeClock()})
	require.NoError(t, err)

	gs, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1", gs.Incarnation)
	require.Equal(t, "Role_IN_0", gs.RoleInstanceID)
	require.Equal(t, "config.cfg", gs.RoleConfigName)
	require.Equal(t, "c-123", gs.ContainerID)
}

func TestClientFetch_RetriesUntilRoleInstanceAppears(t *testing.T) {
	transport := newFakeTransport("127.0.0.1")
	uri := "http://127.0.0.1/machine/?comp=goalstate"
	transport.set(uri,
		rootDocWithoutRole("1"),
		rootDocWithoutRole("1"),
		rootDocWithRole("1"),
	)

	clock := clockwork.NewFakeClock()
	client, err := NewClient(ClientConfig{Transport: transport, LibDir: t.TempDir(), Clock: clock})
	require.NoError(t, err)

	done := make(chan struct{})
	var gs *GoalState
	var fetchErr error
	go func() {
		gs, fetchErr = client.Fetch(context.Background())
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(goalStateRetryDelay)
	clock.BlockUntil(1)
	clock.Advance(goalStateRetryDelay)

	<-done
	require.NoError(t, fetchErr)
	require.Equal(t, "Role_IN_0", gs.RoleInstanceID)
}

func TestClientFetch_IncompleteAfterAllRetries(t *testing.T) {
	transport := newFakeTransport("127.0.0.1")
	uri := "http://127.0.0.1/machine/?comp=goalstate"
	transport.set(uri, rootDocWithoutRole("7"))

	clock := clockwork.NewFakeClock()
	client, err := NewClient(ClientConfig{Transport: transport, LibDir: t.TempDir(), Clock: clock})
	require.NoError(t, err)

	done := make(chan struct{})
	var fetchErr error
	go func() {
		_, fetchErr = client.Fetch(context.Background())
		close(done)
	}()

	for i := 0; i < goalStateFetchRetries-1; i++ {
		clock.BlockUntil(1)
		clock.Advance(goalStateRetryDelay)
	}

	<-done
	require.Error(t, fetchErr)
	var incomplete *IncompleteGoalStateError
	require.ErrorAs(t, fetchErr, &incomplete)
	require.Equal(t, "7", incomplete.Incarnation)
}

func TestClientFetch_TransportError(t *testing.T) {
	transport := newFakeTransport("127.0.0.1")
	uri := "http://127.0.0.1/machine/?comp=goalstate"
	transport.failOn[uri] = errors.New("connection refused")

	client, err := NewClient(ClientConfig{Transport: transport, LibDir: t.TempDir(), Clock: clockwork.NewFakeClock()})
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.Error(t, err)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestClientFetchFull(t *testing.T) {
	transport := newFakeTransport("127.0.0.1")
	transport.set("http://127.0.0.1/hostingenv", hostingEnvDoc)
	transport.set("http://127.0.0.1/sharedconfig", "<SharedConfig/>")
	transport.set("http://127.0.0.1/extconf", "")
	transport.set("http://127.0.0.1/remoteaccess", remoteAccessDoc)

	client, err := NewClient(ClientConfig{Transport: transport, LibDir: t.TempDir(), Clock: clockwork.NewFakeClock()})
	require.NoError(t, err)

	gs := &GoalState{
		Incarnation:     "1",
		hostingEnvURI:   "http://127.0.0.1/hostingenv",
		sharedConfigURI: "http://127.0.0.1/sharedconfig",
		extConfigURI:    "http://127.0.0.1/extconf",
		remoteAccessURI: "http://127.0.0.1/remoteaccess",
	}

	err = client.FetchFull(context.Background(), gs)
	require.NoError(t, err)
	require.NotNil(t, gs.HostingEnv)
	require.Equal(t, "WebRole_IN_0", gs.HostingEnv.VMName)
	require.NotNil(t, gs.SharedConfig)
	require.NotNil(t, gs.ExtConf)
	require.NotNil(t, gs.RemoteAccess)
	require.Len(t, gs.RemoteAccess.Users, 2)
}

func TestClientFetchFull_WrapsErrorsAsProtocolError(t *testing.T) {
	transport := newFakeTransport("127.0.0.1")
	transport.failOn["http://127.0.0.1/hostingenv"] = errors.New("boom")

	client, err := NewClient(ClientConfig{Transport: transport, LibDir: t.TempDir(), Clock: clockwork.NewFakeClock()})
	require.NoError(t, err)

	gs := &GoalState{hostingEnvURI: "http://127.0.0.1/hostingenv"}
	err = client.FetchFull(context.Background(), gs)
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}
