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
	"strings"

	"github.com/gravitational/goalstate/lib/goalstate/xmlutil"
)

// parseExtensionsConfig parses the ExtensionsConfig subdocument: the
// GAFamilies manifest list, the Plugins/PluginSettings cross section, any
// RequiredFeatures, and the status/artifacts/metadata blobs.
func parseExtensionsConfig(xmlText string) (*ExtensionsConfig, error) {
	conf := &ExtensionsConfig{
		XMLText:          xmlText,
		VMAgentManifests: []VMAgentManifest{},
		ExtHandlers:      []ExtHandler{},
		RequiredFeatures: []RequiredFeature{},
	}
	if xmlText == "" {
		return conf, nil
	}

	doc := xmlutil.ParseDoc(xmlText)

	for _, gaFamily := range xmlutil.FindAll(xmlutil.Find(doc, "GAFamilies"), "GAFamily") {
		manifest := VMAgentManifest{Family: xmlutil.FindText(gaFamily, "Name")}
		for _, uri := range xmlutil.FindAll(xmlutil.Find(gaFamily, "Uris"), "Uri") {
			manifest.VersionsManifestURIs = append(manifest.VersionsManifestURIs, VMAgentManifestURI{URI: xmlutil.GetText(uri)})
		}
		conf.VMAgentManifests = append(conf.VMAgentManifests, manifest)
	}

	conf.ExtHandlers = parsePluginsAndSettings(doc)

	if requiredFeaturesList := xmlutil.Find(doc, "RequiredFeatures"); requiredFeaturesList != nil {
		for _, rf := range xmlutil.FindAll(requiredFeaturesList, "RequiredFeature") {
			conf.RequiredFeatures = append(conf.RequiredFeatures, RequiredFeature{
				Name:  xmlutil.FindText(rf, "Name"),
				Value: xmlutil.FindText(rf, "Value"),
			})
		}
	}

	conf.StatusUploadBlob = xmlutil.FindText(doc, "StatusUploadBlob")
	conf.ArtifactsProfileBlob = xmlutil.FindText(doc, "InVMArtifactsProfileBlob")

	statusUploadNode := xmlutil.Find(doc, "StatusUploadBlob")
	conf.StatusUploadBlobType = xmlutil.GetAttrib(statusUploadNode, "statusBlobType")
	log.Debugf("Extension config shows status blob type as [%s]", conf.StatusUploadBlobType)

	conf.InVMGoalStateMetaData = parseInVMGoalStateMetaData(xmlutil.Find(doc, "InVMGoalStateMetaData"))

	return conf, nil
}

// parseInVMGoalStateMetaData copies every attribute on the
// InVMGoalStateMetaData element verbatim; this package does not interpret
// any of them, it only preserves them for the embedding agent to read.
func parseInVMGoalStateMetaData(node *xmlutil.Element) InVMGoalStateMetaData {
	return InVMGoalStateMetaData{Attributes: xmlutil.Attributes(node)}
}

// GetRedactedXMLText returns the ExtensionsConfig document's raw XML text
// with every occurrence of a known ProtectedSettings value replaced by a
// fixed placeholder. This is a plain substring replacement, not a
// structural redaction: if a protected settings value happens to occur
// elsewhere in the document (for example as a substring of an unrelated
// field), that occurrence is redacted too. That over-redaction is
// intentional and matches the behavior this was ported from.
func (c *ExtensionsConfig) GetRedactedXMLText() string {
	if c.XMLText == "" {
		return "<None/>"
	}
	text := c.XMLText
	for _, handler := range c.ExtHandlers {
		for _, ext := range handler.Properties.Extensions {
			protected, ok := ext.ProtectedSettings.(string)
			if ok && protected != "" {
				text = strings.ReplaceAll(text, protected, "*** REDACTED ***")
			}
		}
	}
	return text
}
