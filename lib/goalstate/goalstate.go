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
	"fmt"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/goalstate/lib/goalstate/xmlutil"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Transport fetches configuration documents from the wire server.
	Transport Transport
	// Crypto performs the cryptographic work of the Certificates
	// pipeline. Optional: a Client that never fetches certificates (no
	// embedding agent role requires them) may leave this nil.
	Crypto Crypto
	// Clock is the source of time for the root fetch's retry delay.
	Clock clockwork.Clock
	// Containers records the container ID of the most recently fetched
	// goal state.
	Containers ContainerRegister
	// LibDir is the directory the Certificates pipeline reads and writes
	// its files in.
	LibDir string
}

// CheckAndSetDefaults validates the configuration and fills in optional
// fields with their default implementations.
func (c *ClientConfig) CheckAndSetDefaults() error {
	if c.Transport == nil {
		return trace.BadParameter("ClientConfig.Transport is required")
	}
	if c.LibDir == "" {
		return trace.BadParameter("ClientConfig.LibDir is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Containers == nil {
		c.Containers = NewContainerRegister()
	}
	return nil
}

// Client fetches and parses a goal state from a wire server.
type Client struct {
	cfg ClientConfig
}

// NewClient returns a Client built from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Client{cfg: cfg}, nil
}

// Fetch retrieves the root goal state document, making up to
// goalStateFetchRetries attempts in all, with a half-jittered delay between
// attempts, while the document does not yet contain a RoleInstance node. This matches
// the wire server's own documented behavior of occasionally publishing a
// root document before the role instance section has been populated.
//
// Fetch populates only the root document's own fields; HostingEnv,
// SharedConfig, Certs, ExtConf, and RemoteAccess are left nil until
// FetchFull is called.
func (c *Client) Fetch(ctx context.Context) (*GoalState, error) {
	uri := fmt.Sprintf(goalStateURIFormat, c.cfg.Transport.Endpoint())

	var gs *GoalState
	for attempt := 0; attempt < goalStateFetchRetries; attempt++ {
		xmlText, err := c.cfg.Transport.FetchConfig(ctx, uri, HeaderStandard)
		if err != nil {
			return nil, trace.Wrap(&TransportError{URI: uri, Inner: err})
		}

		doc := xmlutil.ParseDoc(xmlText)
		incarnation := xmlutil.FindText(doc, "Incarnation")
		gs = &GoalState{XMLText: xmlText, Incarnation: incarnation}

		roleInstance := xmlutil.Find(doc, "RoleInstance")
		if roleInstance != nil {
			gs.RoleInstanceID = xmlutil.FindText(roleInstance, "InstanceId")
			roleConfig := xmlutil.Find(roleInstance, "Configuration")
			gs.RoleConfigName = xmlutil.FindText(roleConfig, "ConfigName")

			container := xmlutil.Find(doc, "Container")
			gs.ContainerID = xmlutil.FindText(container, "ContainerId")
			c.cfg.Containers.UpdateContainerID(gs.ContainerID)

			gs.hostingEnvURI = xmlutil.FindText(doc, "HostingEnvironmentConfig")
			gs.sharedConfigURI = xmlutil.FindText(doc, "SharedConfig")
			gs.certsURI = xmlutil.FindText(doc, "Certificates")
			gs.extConfigURI = xmlutil.FindText(doc, "ExtensionsConfig")
			gs.remoteAccessURI = xmlutil.FindText(container, "RemoteAccessInfo")

			return gs, nil
		}

		if attempt < goalStateFetchRetries-1 {
			sleepWithJitter(c.cfg.Clock, goalStateRetryDelay)
		}
	}

	incarnation := ""
	if gs != nil {
		incarnation = gs.Incarnation
	}
	return nil, &IncompleteGoalStateError{Incarnation: incarnation}
}

// FetchFull fetches and parses every subdocument referenced by gs,
// equivalent to the original protocol's fetch_full_goal_state: HostingEnv,
// SharedConfig, Certificates (if present), ExtensionsConfig, and
// RemoteAccess (if present).
func (c *Client) FetchFull(ctx context.Context, gs *GoalState) (err error) {
	log.Infof("Fetching goal state [incarnation %s]", gs.Incarnation)
	defer log.Info("Fetch goal state completed")

	defer func() {
		if err != nil {
			log.Warnf("Fetching the goal state failed: %s", err.Error())
			err = trace.Wrap(&ProtocolError{Msg: "Error fetching goal state", Inner: err})
		}
	}()

	hostingEnvText, err := c.cfg.Transport.FetchConfig(ctx, gs.hostingEnvURI, HeaderStandard)
	if err != nil {
		return trace.Wrap(err)
	}
	gs.HostingEnv = parseHostingEnv(hostingEnvText)

	sharedConfigText, err := c.cfg.Transport.FetchConfig(ctx, gs.sharedConfigURI, HeaderStandard)
	if err != nil {
		return trace.Wrap(err)
	}
	gs.SharedConfig = &SharedConfig{XMLText: sharedConfigText}

	if gs.certsURI != "" {
		if c.cfg.Crypto == nil {
			return trace.BadParameter("goal state references Certificates but no Crypto implementation was configured")
		}
		certsText, err := c.cfg.Transport.FetchConfig(ctx, gs.certsURI, HeaderCert)
		if err != nil {
			return trace.Wrap(err)
		}
		certs, err := c.parseCertificates(certsText)
		if err != nil {
			return trace.Wrap(err)
		}
		gs.Certs = certs
	}

	if gs.extConfigURI == "" {
		gs.ExtConf = &ExtensionsConfig{}
	} else {
		extConfText, err := c.cfg.Transport.FetchConfig(ctx, gs.extConfigURI, HeaderStandard)
		if err != nil {
			return trace.Wrap(err)
		}
		extConf, err := parseExtensionsConfig(extConfText)
		if err != nil {
			return trace.Wrap(err)
		}
		gs.ExtConf = extConf
	}

	if gs.remoteAccessURI != "" {
		remoteAccessText, err := c.cfg.Transport.FetchConfig(ctx, gs.remoteAccessURI, HeaderCert)
		if err != nil {
			return trace.Wrap(err)
		}
		gs.RemoteAccess = parseRemoteAccess(remoteAccessText)
	}

	return nil
}
