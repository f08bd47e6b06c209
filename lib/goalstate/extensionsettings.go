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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gravitational/goalstate/lib/goalstate/xmlutil"
)

// parsePluginsAndSettings matches every Plugins/Plugin element against its
// PluginSettings/Plugin counterpart and returns one ExtHandler per Plugin.
// A handler whose settings are malformed is not dropped: the error is
// captured into its InvalidSettingReason so the rest of the goal state can
// still be processed.
func parsePluginsAndSettings(doc *xmlutil.Element) []ExtHandler {
	plugins := xmlutil.FindAll(xmlutil.Find(doc, "Plugins"), "Plugin")
	pluginSettings := xmlutil.FindAll(xmlutil.Find(doc, "PluginSettings"), "Plugin")

	handlers := make([]ExtHandler, 0, len(plugins))
	for _, plugin := range plugins {
		handler := ExtHandler{}
		if err := parsePlugin(&handler, plugin); err != nil {
			handler.InvalidSettingReason = err.Error()
			handlers = append(handlers, handler)
			continue
		}
		if err := parsePluginSettings(&handler, pluginSettings); err != nil {
			handler.InvalidSettingReason = err.Error()
		}
		handlers = append(handlers, handler)
	}
	return handlers
}

// parsePlugin populates handler's name, version, state, and download
// locations from a single Plugins/Plugin element.
func parsePlugin(handler *ExtHandler, plugin *xmlutil.Element) error {
	handler.Name = xmlutil.GetAttrib(plugin, "name")
	if handler.Name == "" {
		log.Warn("Extensions.Plugins.Plugin.name is empty for ExtensionConfig")
	}

	handler.Properties.Version = xmlutil.GetAttrib(plugin, "version")
	if handler.Properties.Version == "" {
		log.Warn("Extensions.Plugins.Plugin.version is empty for ExtensionConfig")
	}

	handler.Properties.State = xmlutil.GetAttrib(plugin, "state")
	if handler.Properties.State == "" {
		return &ExtensionConfigError{Msg: "Received empty Extensions.Plugins.Plugin.state, failing Handler"}
	}

	var locations []string
	if loc := xmlutil.GetAttrib(plugin, "location"); loc != "" {
		locations = append(locations, loc)
	}
	if loc := xmlutil.GetAttrib(plugin, "failoverlocation"); loc != "" {
		locations = append(locations, loc)
	}
	if additional := xmlutil.Find(plugin, "additionalLocations"); additional != nil {
		for _, node := range xmlutil.FindAll(additional, "additionalLocation") {
			locations = append(locations, xmlutil.GetText(node))
		}
	}
	for _, uri := range locations {
		handler.VersionURIs = append(handler.VersionURIs, ExtHandlerVersionURI{URI: uri})
	}

	return nil
}

// parsePluginSettings finds the PluginSettings/Plugin element matching
// handler by name (case-insensitively) and version (exactly), then parses
// either its single RuntimeSettings node or its set of
// ExtensionRuntimeSettings nodes into handler.Properties.Extensions.
func parsePluginSettings(handler *ExtHandler, pluginSettings []*xmlutil.Element) error {
	if len(pluginSettings) == 0 {
		return nil
	}

	handlerName := handler.Name
	version := handler.Properties.Version

	var matches []*xmlutil.Element
	for _, node := range pluginSettings {
		if strings.EqualFold(xmlutil.GetAttrib(node, "name"), handlerName) {
			matches = append(matches, node)
		}
	}
	if len(matches) == 0 {
		return nil
	}

	var versionMatches []*xmlutil.Element
	versionsSeen := map[string]struct{}{}
	for _, node := range matches {
		v := xmlutil.GetAttrib(node, "version")
		versionsSeen[v] = struct{}{}
		if v == version {
			versionMatches = append(versionMatches, node)
		}
	}
	if len(versionMatches) != len(matches) {
		seen := make([]string, 0, len(versionsSeen))
		for v := range versionsSeen {
			seen = append(seen, v)
		}
		return &ExtensionConfigError{Msg: fmt.Sprintf(
			"ExtHandler PluginSettings Version Mismatch! Expected PluginSettings version: %s for Handler: %s but found versions: (%s)",
			version, handlerName, strings.Join(seen, ", "))}
	}

	if len(versionMatches) > 1 {
		return &ExtensionConfigError{Msg: fmt.Sprintf(
			"Multiple plugin settings found for the same handler: %s and version: %s (Expected: 1; Available: %d)",
			handlerName, version, len(versionMatches))}
	}

	pluginSettingsNode := versionMatches[0]
	runtimeSettingsNodes := xmlutil.FindAll(pluginSettingsNode, "RuntimeSettings")
	extRuntimeSettingsNodes := xmlutil.FindAll(pluginSettingsNode, "ExtensionRuntimeSettings")

	if len(runtimeSettingsNodes) > 0 && len(extRuntimeSettingsNodes) > 0 {
		return &ExtensionConfigError{Msg: fmt.Sprintf(
			"Both RuntimeSettings and ExtensionRuntimeSettings found for the same handler: %s and version: %s",
			handlerName, version)}
	}

	switch {
	case len(runtimeSettingsNodes) > 0:
		if len(runtimeSettingsNodes) > 1 {
			return &ExtensionConfigError{Msg: fmt.Sprintf(
				"Multiple RuntimeSettings found for the same handler: %s and version: %s (Expected: 1; Available: %d)",
				handlerName, version, len(runtimeSettingsNodes))}
		}
		return parseRuntimeSettings(pluginSettingsNode, runtimeSettingsNodes[0], handlerName, handler)
	case len(extRuntimeSettingsNodes) > 0:
		return parseExtensionRuntimeSettings(pluginSettingsNode, extRuntimeSettingsNodes, handler)
	}
	return nil
}

// getDependencyLevelFromNode reads a DependsOn element's dependencyLevel
// attribute. Any parse failure, not just a missing attribute, resets the
// level to 0; a successfully parsed negative number is kept as-is.
func getDependencyLevelFromNode(dependsOn *xmlutil.Element, name string) int {
	if dependsOn == nil {
		return 0
	}
	level, err := strconv.Atoi(xmlutil.GetAttrib(dependsOn, "dependencyLevel"))
	if err != nil {
		log.Warnf("Could not parse dependencyLevel for handler %s. Setting it to 0", name)
		return 0
	}
	return level
}

// parseRuntimeSettings handles the single-config case: exactly one
// DependsOn node (optional) and one RuntimeSettings node for the whole
// handler.
func parseRuntimeSettings(pluginSettingsNode, runtimeSettingsNode *xmlutil.Element, handlerName string, handler *ExtHandler) error {
	dependsOnNodes := xmlutil.FindAll(pluginSettingsNode, "DependsOn")
	if len(dependsOnNodes) > 1 {
		return &ExtensionConfigError{Msg: fmt.Sprintf(
			"Extension Handler can only have a single dependsOn node for Single config extensions. Found: %d",
			len(dependsOnNodes))}
	}
	var dependsOnNode *xmlutil.Element
	if len(dependsOnNodes) > 0 {
		dependsOnNode = dependsOnNodes[0]
	}
	level := getDependencyLevelFromNode(dependsOnNode, handlerName)
	return parseAndAddExtensionSettings(runtimeSettingsNode, handlerName, handler, level, ExtensionStateEnabled)
}

// parseExtensionRuntimeSettings handles the multi-config case: any number
// of named DependsOn nodes feeding a dependency-level lookup table, and
// one ExtensionRuntimeSettings node per named extension instance.
func parseExtensionRuntimeSettings(pluginSettingsNode *xmlutil.Element, extRuntimeSettingsNodes []*xmlutil.Element, handler *ExtHandler) error {
	dependencyLevels := map[string]int{}
	for _, dependsOnNode := range xmlutil.FindAll(pluginSettingsNode, "DependsOn") {
		extensionName := xmlutil.GetAttrib(dependsOnNode, "name")
		if extensionName == "" {
			return &ExtensionConfigError{Msg: "No Name not specified for DependsOn object in ExtensionRuntimeSettings for MultiConfig!"}
		}
		dependencyLevels[extensionName] = getDependencyLevelFromNode(dependsOnNode, extensionName)
	}

	handler.SupportsMultiConfig = true
	for _, node := range extRuntimeSettingsNodes {
		extensionName := xmlutil.GetAttrib(node, "name")
		if extensionName == "" {
			return &ExtensionConfigError{Msg: "Extension Name not specified for ExtensionRuntimeSettings for MultiConfig!"}
		}
		state := ExtensionStateEnabled
		if raw := xmlutil.GetAttrib(node, "state"); raw != "" {
			state = ExtensionState(strings.ToLower(raw))
		}
		if err := parseAndAddExtensionSettings(node, extensionName, handler, dependencyLevels[extensionName], state); err != nil {
			return err
		}
	}
	return nil
}

// runtimeSettingsDoc is the shape of the JSON text carried inside a
// RuntimeSettings/ExtensionRuntimeSettings element.
type runtimeSettingsDoc struct {
	RuntimeSettings []struct {
		HandlerSettings struct {
			PublicSettings                  interface{} `json:"publicSettings"`
			ProtectedSettings                interface{} `json:"protectedSettings"`
			ProtectedSettingsCertThumbprint string      `json:"protectedSettingsCertThumbprint"`
		} `json:"handlerSettings"`
	} `json:"runtimeSettings"`
}

// parseAndAddExtensionSettings parses the JSON text inside settingsNode
// and appends one Extension per runtimeSettings entry to handler. If the
// text is not valid JSON, a single placeholder Extension carrying the name,
// state, sequence number and dependency level but no settings is appended
// instead of failing the whole
// handler, so the caller still has something to report status against.
func parseAndAddExtensionSettings(settingsNode *xmlutil.Element, name string, handler *ExtHandler, dependsOnLevel int, state ExtensionState) error {
	seqNo := xmlutil.GetAttrib(settingsNode, "seqNo")
	if seqNo == "" {
		return &ExtensionConfigError{Msg: fmt.Sprintf("SeqNo not specified for the Extension: %s", name)}
	}

	var doc runtimeSettingsDoc
	if err := json.Unmarshal([]byte(xmlutil.GetText(settingsNode)), &doc); err != nil {
		log.Errorf("Invalid extension settings: %s", err.Error())
		handler.Properties.Extensions = append(handler.Properties.Extensions, Extension{
			Name:            name,
			State:           state,
			SequenceNumber:  seqNo,
			DependencyLevel: dependsOnLevel,
		})
		return nil
	}

	for _, rs := range doc.RuntimeSettings {
		handler.Properties.Extensions = append(handler.Properties.Extensions, Extension{
			Name:                  name,
			State:                 state,
			SequenceNumber:        seqNo,
			DependencyLevel:       dependsOnLevel,
			PublicSettings:        rs.HandlerSettings.PublicSettings,
			ProtectedSettings:     rs.HandlerSettings.ProtectedSettings,
			CertificateThumbprint: rs.HandlerSettings.ProtectedSettingsCertThumbprint,
		})
	}
	return nil
}
