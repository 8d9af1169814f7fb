// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cleaner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p>
<w:r><w:t>Keep </w:t></w:r>
<w:del w:id="1" w:author="Reviewer"><w:r><w:delText>gone</w:delText></w:r></w:del>
<w:ins w:id="2" w:author="Reviewer"><w:r><w:t>added</w:t></w:r><w:r><w:t> twice</w:t></w:r></w:ins>
<w:commentRangeStart w:id="0"/>
<w:r><w:t> tail</w:t></w:r>
<w:commentRangeEnd w:id="0"/>
<w:r><w:commentReference w:id="0"/></w:r>
<w:moveFrom w:id="3"><w:r><w:t>moved away</w:t></w:r></w:moveFrom>
<w:moveTo w:id="4"><w:r><w:t> moved here</w:t></w:r></w:moveTo>
</w:p>
</w:body>
</w:document>`

const coreXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
<dc:title>Quarterly</dc:title>
<dc:creator>Jane Roe</dc:creator>
<cp:lastModifiedBy>John Doe</cp:lastModifiedBy>
<dcterms:created xsi:type="dcterms:W3CDTF">2024-01-01T00:00:00Z</dcterms:created>
<dcterms:modified xsi:type="dcterms:W3CDTF">2024-02-01T00:00:00Z</dcterms:modified>
</cp:coreProperties>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments" Target="comments.xml"/>
<Relationship Id="rId3" Type="http://schemas.microsoft.com/office/2011/relationships/commentsExtended" Target="/word/commentsExtended.xml"/>
</Relationships>`

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/comments.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.comments+xml"/>
<Override PartName="/word/commentsExtended.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.commentsExtended+xml"/>
</Types>`

func samplePackage() *Parts {
	parts := NewParts()
	parts.Set(ContentTypesPart, []byte(contentTypesXML))
	parts.Set("word/document.xml", []byte(documentXML))
	parts.Set(DocumentRelsPart, []byte(relsXML))
	parts.Set(CommentsPart, []byte(`<w:comments xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:comment w:id="0"><w:p><w:r><w:t>secret note</w:t></w:r></w:p></w:comment></w:comments>`))
	parts.Set("word/commentsExtended.xml", []byte(`<w15:commentsEx xmlns:w15="http://schemas.microsoft.com/office/word/2012/wordml"/>`))
	parts.Set("word/styles.xml", []byte(`<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`))
	parts.Set("word/footer1.xml", []byte(`<w:ftr><w:p>unterminated`))
	parts.Set("docProps/core.xml", []byte(coreXML))
	parts.Set("word/media/image1.png", []byte{0x89, 'P', 'N', 'G'})
	return parts
}

func documentText(t *testing.T, data []byte) string {
	t.Helper()
	doc, err := ParseXML(data)
	require.NoError(t, err)
	var b strings.Builder
	for _, el := range doc.FindElementsPath(WordText) {
		b.WriteString(el.Text())
	}
	return b.String()
}

func TestClean_TrackedChangesAndComments(t *testing.T) {
	in := samplePackage()
	out, stats := Clean(in)

	body, ok := out.Get("word/document.xml")
	require.True(t, ok)
	assert.Equal(t, "Keep added twice tail moved here", documentText(t, body))

	text := string(body)
	for _, tag := range []string{"w:del ", "w:delText", "w:ins ", "w:moveFrom", "w:moveTo", "w:commentRangeStart", "w:commentRangeEnd", "w:commentReference"} {
		assert.NotContains(t, text, "<"+tag, "tag %s should be gone", tag)
	}
	assert.True(t, strings.HasPrefix(text, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`))

	assert.Equal(t, 2, stats.DeletionsRemoved)
	assert.Equal(t, 2, stats.InsertionsUnwrapped)
	assert.Equal(t, 3, stats.CommentAnchorsRemoved)
	assert.ElementsMatch(t, []string{CommentsPart, "word/commentsExtended.xml"}, stats.RemovedParts)
}

func TestClean_RemovesCommentPartsAndReferences(t *testing.T) {
	out, _ := Clean(samplePackage())

	assert.False(t, out.Has(CommentsPart))
	assert.False(t, out.Has("word/commentsExtended.xml"))

	rels, _ := out.Get(DocumentRelsPart)
	assert.Contains(t, string(rels), `Target="styles.xml"`)
	assert.NotContains(t, string(rels), "comments.xml")
	assert.NotContains(t, string(rels), "commentsExtended.xml")

	types, _ := out.Get(ContentTypesPart)
	assert.Contains(t, string(types), `PartName="/word/document.xml"`)
	assert.NotContains(t, string(types), "/word/comments")
}

func TestClean_WipesCoreProperties(t *testing.T) {
	out, stats := Clean(samplePackage())

	core, _ := out.Get("docProps/core.xml")
	doc, err := ParseXML(core)
	require.NoError(t, err)
	for _, tag := range []string{"dc:title", "dc:creator", "cp:lastModifiedBy", "dcterms:created", "dcterms:modified"} {
		el := doc.FindElement("//" + tag)
		require.NotNil(t, el, tag)
		assert.Empty(t, el.Text(), tag)
	}
	assert.NotContains(t, string(core), "Jane Roe")
	assert.NotContains(t, string(core), "2024-01-01")
	assert.Equal(t, 5, stats.MetadataFieldsBlanked)
}

func TestClean_MalformedAndUntouchedParts(t *testing.T) {
	in := samplePackage()
	out, stats := Clean(in)

	footer, _ := out.Get("word/footer1.xml")
	assert.Equal(t, []byte(`<w:ftr><w:p>unterminated`), footer)
	assert.Equal(t, []string{"word/footer1.xml"}, stats.Skipped)

	// parts without anything to clean keep their exact bytes
	styles, _ := out.Get("word/styles.xml")
	orig, _ := in.Get("word/styles.xml")
	assert.Equal(t, orig, styles)

	img, _ := out.Get("word/media/image1.png")
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, img)
}

func TestClean_PreservesOrderAndInput(t *testing.T) {
	in := samplePackage()
	before, _ := in.Get("word/document.xml")

	out, _ := Clean(in)

	assert.Equal(t, []string{
		ContentTypesPart,
		"word/document.xml",
		DocumentRelsPart,
		"word/styles.xml",
		"word/footer1.xml",
		"docProps/core.xml",
		"word/media/image1.png",
	}, out.Names())

	after, _ := in.Get("word/document.xml")
	assert.Equal(t, before, after, "input parts must not be modified")
	assert.True(t, in.Has(CommentsPart))
}

func TestClean_NestedInsertions(t *testing.T) {
	parts := NewParts()
	parts.Set("word/document.xml", []byte(`<w:document xmlns:w="`+NamespaceWordprocessingML+`"><w:body><w:p>`+
		`<w:ins><w:r><w:t>a</w:t></w:r><w:ins><w:r><w:t>b</w:t></w:r></w:ins></w:ins>`+
		`<w:r><w:t>c</w:t></w:r></w:p></w:body></w:document>`))

	out, stats := Clean(parts)
	body, _ := out.Get("word/document.xml")

	assert.Equal(t, "abc", documentText(t, body))
	assert.NotContains(t, string(body), "<w:ins")
	assert.Equal(t, 2, stats.InsertionsUnwrapped)
}

func TestClean_MatchesNamespaceNotPrefix(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{
			name: "default namespace",
			xml: `<document xmlns="` + NamespaceWordprocessingML + `"><body><p>` +
				`<r><t>Keep</t></r><del><r><delText>SECRET</delText></r></del>` +
				`<ins><r><t> added</t></r></ins><commentRangeStart id="0"/></p></body></document>`,
		},
		{
			name: "other prefix",
			xml: `<ns0:document xmlns:ns0="` + NamespaceWordprocessingML + `"><ns0:body><ns0:p>` +
				`<ns0:r><ns0:t>Keep</ns0:t></ns0:r><ns0:del><ns0:r><ns0:delText>SECRET</ns0:delText></ns0:r></ns0:del>` +
				`<ns0:ins><ns0:r><ns0:t> added</ns0:t></ns0:r></ns0:ins><ns0:commentRangeStart ns0:id="0"/></ns0:p></ns0:body></ns0:document>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := NewParts()
			parts.Set("word/document.xml", []byte(tt.xml))

			out, stats := Clean(parts)
			body, _ := out.Get("word/document.xml")

			assert.NotContains(t, string(body), "SECRET")
			assert.NotContains(t, string(body), "ins>")
			assert.NotContains(t, string(body), "commentRangeStart")
			assert.Equal(t, "Keep added", documentText(t, body))
			assert.Equal(t, 1, stats.DeletionsRemoved)
			assert.Equal(t, 1, stats.InsertionsUnwrapped)
			assert.Equal(t, 1, stats.CommentAnchorsRemoved)
		})
	}
}

func TestClean_IgnoresForeignNamespace(t *testing.T) {
	// a w: prefix bound to some other vocabulary is not WordprocessingML
	doc := `<w:root xmlns:w="urn:example"><w:del>kept</w:del></w:root>`
	parts := NewParts()
	parts.Set("word/custom.xml", []byte(doc))

	out, stats := Clean(parts)
	body, _ := out.Get("word/custom.xml")
	assert.Equal(t, []byte(doc), body)
	assert.Zero(t, stats.DeletionsRemoved)
}

func TestClean_CorePropertiesAnyPrefix(t *testing.T) {
	parts := NewParts()
	parts.Set("docProps/core.xml", []byte(`<props xmlns="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" `+
		`xmlns:a="http://purl.org/dc/elements/1.1/" xmlns:b="http://purl.org/dc/terms/">`+
		`<a:creator>Jane Roe</a:creator><b:modified>2024-02-01</b:modified><lastModifiedBy>John Doe</lastModifiedBy></props>`))

	out, _ := Clean(parts)
	core, _ := out.Get("docProps/core.xml")
	for _, value := range []string{"Jane Roe", "2024-02-01", "John Doe"} {
		assert.NotContains(t, string(core), value)
	}
	doc, err := ParseXML(core)
	require.NoError(t, err)
	assert.NotNil(t, doc.FindElementPath(ElementsPath(namespaceDublinCore, "creator")))
}

func TestClean_NoComments(t *testing.T) {
	parts := NewParts()
	parts.Set(DocumentRelsPart, []byte(relsXML))
	out, stats := Clean(parts)

	rels, _ := out.Get(DocumentRelsPart)
	assert.Equal(t, []byte(relsXML), rels, "relationships are only rewritten when a comment part was removed")
	assert.Empty(t, stats.RemovedParts)
}

func TestParseXML(t *testing.T) {
	_, err := ParseXML(nil)
	assert.ErrorIs(t, err, ErrNoRoot)

	_, err = ParseXML([]byte("<a><b></a>"))
	assert.Error(t, err)

	doc, err := ParseXML([]byte(`<a xmlns:x="urn:x"><x:b>v</x:b></a>`))
	require.NoError(t, err)
	out, err := SerializeXML(doc)
	require.NoError(t, err)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><a xmlns:x="urn:x"><x:b>v</x:b></a>`, string(out))
}
