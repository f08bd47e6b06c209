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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/goalstate/lib/goalstate/xmlutil"
)

func parseExtConf(t *testing.T, xmlText string) *ExtensionsConfig {
	t.Helper()
	conf, err := parseExtensionsConfig(xmlText)
	require.NoError(t, err)
	return conf
}

func TestParsePluginsAndSettings_SingleConfig(t *testing.T) {
	doc := `<ExtensionsConfig>
  <Plugins>
    <Plugin name="Microsoft.Compute.VMAccessAgent" version="2.4.7" location="https://example/manifest.xml" state="enabled" />
  </Plugins>
  <PluginSettings>
    <Plugin name="microsoft.compute.vmaccessagent" version="2.4.7">
      <DependsOn dependencyLevel="2">
        <DependsOnExtension handler="Microsoft.CPlat.Core.RunCommandHandlerWindows" />
      </DependsOn>
      <RuntimeSettings seqNo="1">{
        "runtimeSettings": [
          {
            "handlerSettings": {
              "protectedSettingsCertThumbprint": "ABCDEF",
              "protectedSettings": "opaqueblob",
              "publicSettings": {"UserName":"test1234"}
            }
          }
        ]
      }</RuntimeSettings>
    </Plugin>
  </PluginSettings>
</ExtensionsConfig>`

	conf := parseExtConf(t, doc)
	require.Len(t, conf.ExtHandlers, 1)
	handler := conf.ExtHandlers[0]
	require.Empty(t, handler.InvalidSettingReason)
	require.False(t, handler.SupportsMultiConfig)
	require.Len(t, handler.Properties.Extensions, 1)

	ext := handler.Properties.Extensions[0]
	require.Equal(t, "Microsoft.Compute.VMAccessAgent", ext.Name)
	require.Equal(t, "1", ext.SequenceNumber)
	require.Equal(t, 2, ext.DependencyLevel)
	require.Equal(t, "ABCDEF", ext.CertificateThumbprint)
	require.Equal(t, "opaqueblob", ext.ProtectedSettings)
}

func TestParsePluginsAndSettings_MultiConfig(t *testing.T) {
	doc := `<ExtensionsConfig>
  <Plugins>
    <Plugin name="Microsoft.CPlat.Core.RunCommandHandlerWindows" version="2.0.2" state="enabled" />
  </Plugins>
  <PluginSettings>
    <Plugin name="Microsoft.CPlat.Core.RunCommandHandlerWindows" version="2.0.2">
      <DependsOn dependencyLevel="3" name="secondRunCommand">
        <DependsOnExtension extension="firstRunCommand" handler="Microsoft.CPlat.Core.RunCommandHandlerWindows" />
      </DependsOn>
      <ExtensionRuntimeSettings seqNo="2" name="firstRunCommand" state="enabled">{
        "runtimeSettings": [{"handlerSettings": {"publicSettings": {"source":{"script":"echo first"}}}}]
      }</ExtensionRuntimeSettings>
      <ExtensionRuntimeSettings seqNo="2" name="secondRunCommand" state="enabled">{
        "runtimeSettings": [{"handlerSettings": {"publicSettings": {"source":{"script":"echo second"}}}}]
      }</ExtensionRuntimeSettings>
    </Plugin>
  </PluginSettings>
</ExtensionsConfig>`

	conf := parseExtConf(t, doc)
	require.Len(t, conf.ExtHandlers, 1)
	handler := conf.ExtHandlers[0]
	require.True(t, handler.SupportsMultiConfig)
	require.Len(t, handler.Properties.Extensions, 2)

	byName := map[string]Extension{}
	for _, ext := range handler.Properties.Extensions {
		byName[ext.Name] = ext
	}
	require.Equal(t, 0, byName["firstRunCommand"].DependencyLevel)
	require.Equal(t, 3, byName["secondRunCommand"].DependencyLevel)
}

func TestParsePluginSettings_VersionMismatch(t *testing.T) {
	doc := `<ExtensionsConfig>
  <Plugins>
    <Plugin name="Foo.Bar" version="1.0" state="enabled" />
  </Plugins>
  <PluginSettings>
    <Plugin name="Foo.Bar" version="2.0">
      <RuntimeSettings seqNo="1">{"runtimeSettings": []}</RuntimeSettings>
    </Plugin>
  </PluginSettings>
</ExtensionsConfig>`

	conf := parseExtConf(t, doc)
	require.Len(t, conf.ExtHandlers, 1)
	require.NotEmpty(t, conf.ExtHandlers[0].InvalidSettingReason)
	require.Contains(t, conf.ExtHandlers[0].InvalidSettingReason, "Version Mismatch")
}

func TestParsePluginSettings_BothRuntimeSettingsKinds(t *testing.T) {
	doc := `<ExtensionsConfig>
  <Plugins>
    <Plugin name="Foo.Bar" version="1.0" state="enabled" />
  </Plugins>
  <PluginSettings>
    <Plugin name="Foo.Bar" version="1.0">
      <RuntimeSettings seqNo="1">{"runtimeSettings": []}</RuntimeSettings>
      <ExtensionRuntimeSettings seqNo="1" name="inst" state="enabled">{"runtimeSettings": []}</ExtensionRuntimeSettings>
    </Plugin>
  </PluginSettings>
</ExtensionsConfig>`

	conf := parseExtConf(t, doc)
	require.Contains(t, conf.ExtHandlers[0].InvalidSettingReason, "Both RuntimeSettings and ExtensionRuntimeSettings")
}

func TestParsePlugin_EmptyStateFails(t *testing.T) {
	doc := `<ExtensionsConfig>
  <Plugins>
    <Plugin name="Foo.Bar" version="1.0" />
  </Plugins>
</ExtensionsConfig>`

	conf := parseExtConf(t, doc)
	require.Len(t, conf.ExtHandlers, 1)
	require.Contains(t, conf.ExtHandlers[0].InvalidSettingReason, "Received empty")
}

func TestGetDependencyLevelFromNode(t *testing.T) {
	t.Run("nil node defaults to 0", func(t *testing.T) {
		require.Equal(t, 0, getDependencyLevelFromNode(nil, "h"))
	})

	t.Run("valid level is kept", func(t *testing.T) {
		doc := xmlutil.ParseDoc(`<DependsOn dependencyLevel="5"/>`)
		require.Equal(t, 5, getDependencyLevelFromNode(doc, "h"))
	})

	t.Run("negative level is kept, not treated as a parse failure", func(t *testing.T) {
		doc := xmlutil.ParseDoc(`<DependsOn dependencyLevel="-1"/>`)
		require.Equal(t, -1, getDependencyLevelFromNode(doc, "h"))
	})

	t.Run("unparseable level defaults to 0", func(t *testing.T) {
		doc := xmlutil.ParseDoc(`<DependsOn dependencyLevel="not-a-number"/>`)
		require.Equal(t, 0, getDependencyLevelFromNode(doc, "h"))
	})

	t.Run("missing attribute defaults to 0", func(t *testing.T) {
		doc := xmlutil.ParseDoc(`<DependsOn/>`)
		require.Equal(t, 0, getDependencyLevelFromNode(doc, "h"))
	})
}

func TestParseAndAddExtensionSettings_InvalidJSONFallsBackToPlaceholder(t *testing.T) {
	doc := `<ExtensionsConfig>
  <Plugins>
    <Plugin name="Foo.Bar" version="1.0" state="enabled" />
  </Plugins>
  <PluginSettings>
    <Plugin name="Foo.Bar" version="1.0">
      <RuntimeSettings seqNo="7">not valid json</RuntimeSettings>
    </Plugin>
  </PluginSettings>
</ExtensionsConfig>`

	conf := parseExtConf(t, doc)
	handler := conf.ExtHandlers[0]
	require.Empty(t, handler.InvalidSettingReason)
	require.Len(t, handler.Properties.Extensions, 1)
	require.Equal(t, "Foo.Bar", handler.Properties.Extensions[0].Name)
	require.Equal(t, "7", handler.Properties.Extensions[0].SequenceNumber)
	require.Nil(t, handler.Properties.Extensions[0].PublicSettings)
}

func TestParseAndAddExtensionSettings_MissingSeqNo(t *testing.T) {
	doc := `<ExtensionsConfig>
  <Plugins>
    <Plugin name="Foo.Bar" version="1.0" state="enabled" />
  </Plugins>
  <PluginSettings>
    <Plugin name="Foo.Bar" version="1.0">
      <RuntimeSettings>{"runtimeSettings": []}</RuntimeSettings>
    </Plugin>
  </PluginSettings>
</ExtensionsConfig>`

	conf := parseExtConf(t, doc)
	require.Contains(t, conf.ExtHandlers[0].InvalidSettingReason, "SeqNo not specified")
}
