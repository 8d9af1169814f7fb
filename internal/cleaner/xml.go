// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cleaner

import (
	"errors"

	"github.com/beevik/etree"
)

const xmlDeclaration = `version="1.0" encoding="UTF-8" standalone="yes"`

// Namespaces of the elements the cleaner and the office redactor select
const (
	NamespaceWordprocessingML = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	namespaceCoreProperties   = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	namespaceDublinCore       = "http://purl.org/dc/elements/1.1/"
	namespaceDCTerms          = "http://purl.org/dc/terms/"
)

// WordText selects every w:t text node of a WordprocessingML part
var WordText = ElementsPath(NamespaceWordprocessingML, "t")

// ElementsPath selects every element named local in namespace uri. Parts may
// bind the namespace to any prefix, or make it the default one, so elements
// are matched by URI and never by the prefix written in the part.
func ElementsPath(uri, local string) etree.Path {
	return etree.MustCompilePath("//" + local + "[namespace-uri()='" + uri + "']")
}

// ErrNoRoot is returned for XML input without a root element
var ErrNoRoot = errors.New("xml document has no root element")

// ParseXML parses an XML part. Namespace prefixes are kept exactly as written
// so the document can be serialized back without rewriting them.
func ParseXML(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = false
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, ErrNoRoot
	}
	return doc, nil
}

// SerializeXML writes doc back to bytes with an XML declaration
func SerializeXML(doc *etree.Document) ([]byte, error) {
	if !hasDeclaration(doc) {
		doc.InsertChildAt(0, etree.NewProcInst("xml", xmlDeclaration))
	}
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	return doc.WriteToBytes()
}

func hasDeclaration(doc *etree.Document) bool {
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.ProcInst:
			if t.Target == "xml" {
				return true
			}
		case *etree.CharData:
			continue
		default:
			return false
		}
	}
	return false
}
