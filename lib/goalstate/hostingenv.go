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

import "github.com/gravitational/goalstate/lib/goalstate/xmlutil"

// parseHostingEnv parses a HostingEnvironmentConfig document, pulling only
// the three attributes this package has ever needed out of it.
func parseHostingEnv(xmlText string) *HostingEnv {
	doc := xmlutil.ParseDoc(xmlText)
	incarnation := xmlutil.Find(doc, "Incarnation")
	role := xmlutil.Find(doc, "Role")
	deployment := xmlutil.Find(doc, "Deployment")

	return &HostingEnv{
		XMLText:        xmlText,
		VMName:         xmlutil.GetAttrib(incarnation, "instance"),
		RoleName:       xmlutil.GetAttrib(role, "name"),
		DeploymentName: xmlutil.GetAttrib(deployment, "name"),
	}
}
