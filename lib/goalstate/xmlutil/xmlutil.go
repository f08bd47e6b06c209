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

// Package xmlutil provides null-safe helpers for walking the small, loosely
// structured XML documents the wire protocol exchanges. A missing element
// or attribute is not an error: every lookup simply returns a zero value
// and it is up to the caller to decide whether that absence matters.
package xmlutil

import (
	"strings"

	"github.com/beevik/etree"
)

// ParseDoc parses text into an etree document, returning its root element.
// An empty or unparseable document yields a nil root rather than an error,
// matching the permissive style of the rest of this package.
func ParseDoc(text string) *etree.Element {
	if text == "" {
		return nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		return nil
	}
	return doc.Root()
}

// Find returns the first descendant of el named tag, or nil if el is nil or
// has no such descendant. The search is recursive, not limited to direct
// children, matching the original protocol's findtext/find helpers this
// package ports.
func Find(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	return el.FindElement(".//" + tag)
}

// FindAll returns every descendant of el named tag. A nil el or one with no
// matching descendants yields an empty, non-nil slice.
func FindAll(el *etree.Element, tag string) []*etree.Element {
	if el == nil {
		return []*etree.Element{}
	}
	return el.FindElements(".//" + tag)
}

// FindText returns the trimmed text of the first descendant of el named
// tag, or "" if there is no such descendant.
func FindText(el *etree.Element, tag string) string {
	return GetText(Find(el, tag))
}

// GetText returns the trimmed character data directly inside el, or "" if
// el is nil.
func GetText(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

// GetAttrib returns the value of el's attribute named name, or "" if el is
// nil or carries no such attribute.
func GetAttrib(el *etree.Element, name string) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue(name, "")
}

// Attributes returns every attribute on el as a map, or an empty map if el
// is nil.
func Attributes(el *etree.Element) map[string]string {
	attrs := map[string]string{}
	if el == nil {
		return attrs
	}
	for _, a := range el.Attr {
		attrs[a.Key] = a.Value
	}
	return attrs
}

// Element is re-exported so callers outside this package can name the
// node type xmlutil's accessors operate on without importing etree
// directly.
type Element = etree.Element
