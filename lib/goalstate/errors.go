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

import "fmt"

// IncompleteGoalStateError is returned when the root goal state document
// was fetched the allotted number of times without ever containing a
// RoleInstance node.
type IncompleteGoalStateError struct {
	Incarnation string
}

func (e *IncompleteGoalStateError) Error() string {
	return fmt.Sprintf("fetched goal state without a RoleInstance [incarnation %s]", e.Incarnation)
}

// ProtocolError wraps a failure encountered while fetching or parsing any
// part of the goal state.
type ProtocolError struct {
	Msg   string
	Inner error
}

func (e *ProtocolError) Error() string {
	if e.Inner == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Inner.Error())
}

func (e *ProtocolError) Unwrap() error { return e.Inner }

// TransportError is returned by a Transport implementation when a fetch
// could not be completed, distinct from a ProtocolError so callers can
// tell a network failure apart from a malformed document.
type TransportError struct {
	URI   string
	Inner error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %s", e.URI, e.Inner.Error())
}

func (e *TransportError) Unwrap() error { return e.Inner }

// ExtensionConfigError reports a malformed Plugin/PluginSettings pairing
// for a single extension handler. It is never returned from the parser:
// it is captured into the owning ExtHandler's InvalidSettingReason so that
// one broken handler does not fail the rest of the ExtensionsConfig.
type ExtensionConfigError struct {
	Msg string
}

func (e *ExtensionConfigError) Error() string { return e.Msg }
