// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cleaner strips tracked changes, comments and author metadata from
// the parts of a WordprocessingML (.docx) container.
//
// Parts that cannot be parsed as XML are left byte-for-byte unchanged. That
// is expected and reported through Stats.Skipped, never as an error.
package cleaner

import (
	"path"
	"strings"

	"github.com/beevik/etree"
)

const (
	// ContentTypesPart lists the content type of every part in the package
	ContentTypesPart = "[Content_Types].xml"
	// DocumentRelsPart holds relationships of the main document part
	DocumentRelsPart = "word/_rels/document.xml.rels"
	// CommentsPart is the main comments part
	CommentsPart = "word/comments.xml"

	corePropertiesPart   = "docProps/core.xml"
	customPropertiesPart = "docProps/custom.xml"
	wordPrefix           = "word/"
)

// commentParts are removed together: Word 2010+ stores comment threading,
// durable ids and extensible data next to the main comments part.
var commentParts = []string{
	CommentsPart,
	"word/commentsExtended.xml",
	"word/commentsIds.xml",
	"word/commentsExtensible.xml",
}

var (
	rejectedRevisions = wordPaths("del", "moveFrom")
	acceptedRevisions = wordPaths("ins", "moveTo")
	commentAnchors    = wordPaths("commentRangeStart", "commentRangeEnd", "commentReference")
	authorMetadata    = []etree.Path{
		ElementsPath(namespaceDublinCore, "creator"),
		ElementsPath(namespaceCoreProperties, "lastModifiedBy"),
		ElementsPath(namespaceDCTerms, "created"),
		ElementsPath(namespaceDCTerms, "modified"),
	}
)

func wordPaths(locals ...string) []etree.Path {
	paths := make([]etree.Path, len(locals))
	for i, local := range locals {
		paths[i] = ElementsPath(NamespaceWordprocessingML, local)
	}
	return paths
}

// Stats describes what Clean changed
type Stats struct {
	DeletionsRemoved      int
	InsertionsUnwrapped   int
	CommentAnchorsRemoved int
	MetadataFieldsBlanked int
	RemovedParts          []string
	Skipped               []string
}

// Clean returns a cleaned copy of parts; the input is not modified
func Clean(parts *Parts) (*Parts, Stats) {
	cleaned := parts.Clone()
	var stats Stats

	for _, name := range parts.Names() {
		if !strings.HasSuffix(name, ".xml") || isCommentPart(name) {
			continue
		}
		isWord := strings.HasPrefix(name, wordPrefix)
		isMeta := name == corePropertiesPart || name == customPropertiesPart
		if !isWord && !isMeta {
			continue
		}

		data, _ := parts.Get(name)
		doc, err := ParseXML(data)
		if err != nil {
			stats.Skipped = append(stats.Skipped, name)
			continue
		}

		changed := 0
		if isWord {
			changed += rejectDeletions(doc, &stats)
			changed += acceptInsertions(doc, &stats)
			changed += removeCommentAnchors(doc, &stats)
		}
		switch name {
		case corePropertiesPart:
			changed += wipeCoreProperties(doc, &stats)
		case customPropertiesPart:
			changed += wipeAllText(doc, &stats)
		}
		if changed == 0 {
			continue
		}

		out, err := SerializeXML(doc)
		if err != nil {
			stats.Skipped = append(stats.Skipped, name)
			continue
		}
		cleaned.Set(name, out)
	}

	removeCommentParts(cleaned, &stats)
	return cleaned, stats
}

func isCommentPart(name string) bool {
	for _, p := range commentParts {
		if name == p {
			return true
		}
	}
	return false
}

// rejectDeletions drops deleted and moved-away content with its subtree
func rejectDeletions(doc *etree.Document, stats *Stats) int {
	n := 0
	for _, path := range rejectedRevisions {
		for _, el := range doc.FindElementsPath(path) {
			if parent := el.Parent(); parent != nil {
				parent.RemoveChild(el)
				n++
			}
		}
	}
	stats.DeletionsRemoved += n
	return n
}

// acceptInsertions replaces each insertion wrapper with its children, in place
func acceptInsertions(doc *etree.Document, stats *Stats) int {
	n := 0
	for _, path := range acceptedRevisions {
		for _, el := range doc.FindElementsPath(path) {
			if unwrap(el) {
				n++
			}
		}
	}
	stats.InsertionsUnwrapped += n
	return n
}

func unwrap(el *etree.Element) bool {
	parent := el.Parent()
	if parent == nil {
		return false
	}
	index := el.Index()
	children := append([]etree.Token(nil), el.Child...)
	parent.RemoveChildAt(index)
	for i, child := range children {
		parent.InsertChildAt(index+i, child)
	}
	return true
}

func removeCommentAnchors(doc *etree.Document, stats *Stats) int {
	n := 0
	for _, path := range commentAnchors {
		for _, el := range doc.FindElementsPath(path) {
			if parent := el.Parent(); parent != nil {
				parent.RemoveChild(el)
				n++
			}
		}
	}
	stats.CommentAnchorsRemoved += n
	return n
}

// wipeCoreProperties blanks every leaf field. Author and timestamp fields are
// also blanked by name, which covers values nested under extension elements.
func wipeCoreProperties(doc *etree.Document, stats *Stats) int {
	n := wipeAllText(doc, stats)
	for _, path := range authorMetadata {
		for _, el := range doc.FindElementsPath(path) {
			if el.Text() != "" {
				el.SetText("")
				n++
				stats.MetadataFieldsBlanked++
			}
		}
	}
	return n
}

func wipeAllText(doc *etree.Document, stats *Stats) int {
	n := 0
	for _, el := range doc.FindElements("//*") {
		if len(el.ChildElements()) == 0 && el.Text() != "" {
			el.SetText("")
			n++
		}
	}
	stats.MetadataFieldsBlanked += n
	return n
}

// removeCommentParts drops the comment parts together with the relationships
// and content-type overrides that point at them
func removeCommentParts(parts *Parts, stats *Stats) {
	removed := map[string]bool{}
	for _, name := range commentParts {
		if parts.Has(name) {
			parts.Delete(name)
			removed[name] = true
			stats.RemovedParts = append(stats.RemovedParts, name)
		}
	}
	if len(removed) == 0 {
		return
	}

	pruneXML(parts, DocumentRelsPart, "Relationship", func(el *etree.Element) bool {
		target := el.SelectAttrValue("Target", "")
		if target == "" || el.SelectAttrValue("TargetMode", "") == "External" {
			return false
		}
		resolved := strings.TrimPrefix(target, "/")
		if !strings.HasPrefix(target, "/") {
			resolved = path.Join(path.Dir(DocumentRelsPart), "..", target)
		}
		return removed[path.Clean(resolved)]
	}, stats)

	pruneXML(parts, ContentTypesPart, "Override", func(el *etree.Element) bool {
		return removed[strings.TrimPrefix(el.SelectAttrValue("PartName", ""), "/")]
	}, stats)
}

func pruneXML(parts *Parts, name, tag string, drop func(*etree.Element) bool, stats *Stats) {
	data, ok := parts.Get(name)
	if !ok {
		return
	}
	doc, err := ParseXML(data)
	if err != nil {
		stats.Skipped = append(stats.Skipped, name)
		return
	}

	n := 0
	for _, el := range doc.FindElements("//" + tag) {
		if drop(el) {
			el.Parent().RemoveChild(el)
			n++
		}
	}
	if n == 0 {
		return
	}
	if out, err := SerializeXML(doc); err == nil {
		parts.Set(name, out)
	}
}
