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

// Package goalstate fetches and parses a VM guest agent's goal state: the
// tree of XML documents a wire server publishes describing the role
// instance, its certificates, and the extensions it should run.
//
// The package only fetches and parses; it does not execute extensions,
// report status, or poll on a schedule. Those concerns belong to the
// process that embeds this package.
package goalstate

// GoalState is the root document of the protocol: the identifiers of the
// current role instance and the URIs of every subdocument that describes
// it further.
type GoalState struct {
	XMLText string

	Incarnation    string
	RoleInstanceID string
	RoleConfigName string
	ContainerID    string

	hostingEnvURI   string
	sharedConfigURI string
	certsURI        string
	extConfigURI    string
	remoteAccessURI string

	HostingEnv   *HostingEnv
	SharedConfig *SharedConfig
	Certs        *Certificates
	ExtConf      *ExtensionsConfig
	RemoteAccess *RemoteAccess
}

// HostingEnv is the minimally parsed HostingEnvironmentConfig subdocument.
type HostingEnv struct {
	XMLText        string
	VMName         string
	RoleName       string
	DeploymentName string
}

// SharedConfig retains only the raw SharedConfig subdocument text; nothing
// in this protocol currently needs individual fields out of it.
type SharedConfig struct {
	XMLText string
}

// CertEntry describes one certificate found in the Certificates pipeline's
// decrypted PEM bundle.
type CertEntry struct {
	Thumbprint string
}

// Certificates is the result of decrypting and splitting the Certificates
// subdocument's PKCS7 blob.
type Certificates struct {
	Certs []CertEntry
}

// VMAgentManifestURI is a single version-manifest location for a GAFamily.
type VMAgentManifestURI struct {
	URI string
}

// VMAgentManifest is one GAFamily entry from the ExtensionsConfig document.
type VMAgentManifest struct {
	Family               string
	VersionsManifestURIs []VMAgentManifestURI
}

// ExtHandlerVersionURI is one download location for an extension handler's
// package.
type ExtHandlerVersionURI struct {
	URI string
}

// RequiredFeature names a wire-protocol feature the host requires the
// agent to understand in order to process this goal state correctly.
type RequiredFeature struct {
	Name  string
	Value string
}

// ExtensionState is the desired run state of a single extension instance.
// Single-config extensions are always enabled; multi-config instances take
// theirs, lower-cased, from the ExtensionRuntimeSettings state attribute.
type ExtensionState string

const (
	ExtensionStateEnabled  ExtensionState = "enabled"
	ExtensionStateDisabled ExtensionState = "disabled"
)

// Extension is one configured instance of an extension handler: either the
// single implicit instance of a single-config handler, or one of several
// named instances of a multi-config handler.
type Extension struct {
	Name                  string
	State                 ExtensionState
	SequenceNumber        string
	DependencyLevel       int
	PublicSettings        interface{}
	ProtectedSettings     interface{}
	CertificateThumbprint string
}

// ExtHandlerProperties holds the per-handler fields populated from Plugin
// and PluginSettings.
type ExtHandlerProperties struct {
	Version    string
	State      string
	Extensions []Extension
}

// ExtHandler is one extension handler: the Plugin element plus whatever
// PluginSettings element matched it by name and version.
type ExtHandler struct {
	Name                 string
	Properties           ExtHandlerProperties
	VersionURIs          []ExtHandlerVersionURI
	SupportsMultiConfig  bool
	InvalidSettingReason string
}

// InVMGoalStateMetaData is opaque, forward-compatible metadata the host may
// attach to a goal state; this package preserves it without interpreting it.
type InVMGoalStateMetaData struct {
	Attributes map[string]string
}

// ExtensionsConfig is the fully parsed ExtensionsConfig subdocument.
type ExtensionsConfig struct {
	XMLText string

	VMAgentManifests []VMAgentManifest
	ExtHandlers      []ExtHandler
	RequiredFeatures []RequiredFeature

	StatusUploadBlob      string
	StatusUploadBlobType  string
	ArtifactsProfileBlob  string
	InVMGoalStateMetaData InVMGoalStateMetaData
}

// RemoteAccessUser is one user account the host wants provisioned on the
// role instance.
type RemoteAccessUser struct {
	Name              string
	EncryptedPassword string
	Expiration        string
}

// RemoteAccess is the fully parsed RemoteAccessInfo subdocument.
type RemoteAccess struct {
	XMLText     string
	Version     string
	Incarnation string
	Users       []RemoteAccessUser
}
