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

// parseRemoteAccess parses a RemoteAccessInfo document:
//
//	<RemoteAccess>
//	  <Version/>
//	  <Incarnation/>
//	  <Users>
//	    <User>
//	      <Name/>
//	      <Password/>
//	      <Expiration/>
//	    </User>
//	  </Users>
//	</RemoteAccess>
func parseRemoteAccess(xmlText string) *RemoteAccess {
	ra := &RemoteAccess{XMLText: xmlText, Users: []RemoteAccessUser{}}
	if xmlText == "" {
		return ra
	}

	doc := xmlutil.ParseDoc(xmlText)
	ra.Version = xmlutil.FindText(doc, "Version")
	ra.Incarnation = xmlutil.FindText(doc, "Incarnation")

	userCollection := xmlutil.Find(doc, "Users")
	for _, user := range xmlutil.FindAll(userCollection, "User") {
		ra.Users = append(ra.Users, RemoteAccessUser{
			Name:              xmlutil.FindText(user, "Name"),
			EncryptedPassword: xmlutil.FindText(user, "Password"),
			Expiration:        xmlutil.FindText(user, "Expiration"),
		})
	}

	return ra
}
