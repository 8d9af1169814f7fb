// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package office

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blur/internal/audit"
	"blur/internal/cleaner"
	"blur/internal/playbook"
	"blur/internal/redactors"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

type entry struct {
	name string
	data string
}

func buildDocx(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func standardDocx(t *testing.T, body string) []byte {
	return buildDocx(t,
		entry{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Override PartName="/word/document.xml" ContentType="main"/><Override PartName="/word/comments.xml" ContentType="comments"/></Types>`},
		entry{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`},
		entry{"word/_rels/document.xml.rels", `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="comments" Target="comments.xml"/></Relationships>`},
		entry{"word/comments.xml", `<w:comments ` + wordNS + `><w:comment w:id="0"><w:p><w:r><w:t>reviewer secret</w:t></w:r></w:p></w:comment></w:comments>`},
		entry{"word/header1.xml", `<w:hdr ` + wordNS + `><w:p><w:r><w:t>broken`},
		entry{"docProps/core.xml", `<cp:coreProperties xmlns:cp="urn:cp" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:creator>Jane Roe</dc:creator></cp:coreProperties>`},
	)
}

func parsePlaybook(t *testing.T, doc string) *playbook.Playbook {
	t.Helper()
	pb, err := playbook.Parse([]byte(doc))
	require.NoError(t, err)
	return pb
}

func readEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	contents, err := ReadContainer(data)
	require.NoError(t, err)
	out := map[string]string{}
	for _, name := range contents.Parts.Names() {
		b, _ := contents.Parts.Get(name)
		out[name] = string(b)
	}
	return out
}

func texts(t *testing.T, part string) []string {
	t.Helper()
	doc, err := cleaner.ParseXML([]byte(part))
	require.NoError(t, err)
	var out []string
	for _, el := range doc.FindElementsPath(cleaner.WordText) {
		out = append(out, el.Text())
	}
	return out
}

const clientPlaybook = `
name: clients
version: "1"
rules:
  - id: clients
    type: dictionary_entities
    action: REPLACE
    dictionary:
      Acme: CLIENT_A
  - id: codename
    type: keyword_list
    action: REMOVE
    keywords: [Falcon]
`

func TestOffice_CleansAndRedacts(t *testing.T) {
	body := `<w:p><w:r><w:t>Acme signed.</w:t></w:r>` +
		`<w:del w:id="1"><w:r><w:delText>Acme old terms</w:delText></w:r></w:del>` +
		`<w:ins w:id="2"><w:r><w:t xml:space="preserve">Project Falcon</w:t></w:r></w:ins>` +
		`<w:commentRangeStart w:id="0"/><w:r><w:t>Acme again</w:t></w:r><w:commentRangeEnd w:id="0"/></w:p>`
	input := filepath.Join(t.TempDir(), "deal memo.docx")
	require.NoError(t, os.WriteFile(input, standardDocx(t, body), 0600))

	sink := &audit.MemorySink{}
	or := NewOfficeRedactor(redactors.Options{Audit: sink})
	outDir := t.TempDir()

	result, err := or.Process(input, outDir, parsePlaybook(t, clientPlaybook), false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "deal_memo_blurred.docx"), result.OutputPath)

	written, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	entries := readEntries(t, written)

	document := entries["word/document.xml"]
	assert.Equal(t, []string{"CLIENT_A signed.", "Project ", "CLIENT_A again"}, texts(t, document))
	assert.NotContains(t, document, "w:del")
	assert.NotContains(t, document, "w:ins")
	assert.NotContains(t, document, "commentRange")

	_, hasComments := entries["word/comments.xml"]
	assert.False(t, hasComments)
	assert.NotContains(t, entries["word/_rels/document.xml.rels"], "comments.xml")
	assert.NotContains(t, entries["[Content_Types].xml"], "comments.xml")
	assert.NotContains(t, entries["docProps/core.xml"], "Jane Roe")

	// malformed parts are carried over byte for byte
	assert.Equal(t, `<w:hdr `+wordNS+`><w:p><w:r><w:t>broken`, entries["word/header1.xml"])

	// the deleted revision and the comment body are never counted
	assert.Equal(t, 3, result.Report.TotalMatches)
	assert.Equal(t, 2, result.Report.ByRuleID["clients"])
	assert.Equal(t, 1, result.Report.ByRuleID["codename"])

	require.Len(t, sink.Entries(), 1)
	assert.Equal(t, "docx", sink.Entries()[0].FileType)
}

func TestOffice_DryRunMatchesLive(t *testing.T) {
	body := `<w:p><w:r><w:t>Acme</w:t></w:r><w:r><w:t>Falcon at Acme</w:t></w:r></w:p>`
	input := filepath.Join(t.TempDir(), "d.docx")
	require.NoError(t, os.WriteFile(input, standardDocx(t, body), 0600))
	pb := parsePlaybook(t, clientPlaybook)
	or := NewOfficeRedactor(redactors.Options{})
	outDir := filepath.Join(t.TempDir(), "out")

	dry, err := or.Process(input, outDir, pb, true)
	require.NoError(t, err)
	assert.Nil(t, dry.Output)
	assert.NoDirExists(t, outDir)

	live, err := or.Process(input, outDir, pb, false)
	require.NoError(t, err)
	assert.Equal(t, live.Report, dry.Report)
	assert.Equal(t, 3, live.Report.TotalMatches)
}

func TestOffice_PreservesEntryOrderAndSpacing(t *testing.T) {
	body := `<w:p><w:r><w:t>Falcon tail</w:t></w:r></w:p>`
	data := standardDocx(t, body)
	or := NewOfficeRedactor(redactors.Options{})

	out, _, err := or.Transform(data, parsePlaybook(t, clientPlaybook), false)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	var names []string
	for _, f := range reader.File {
		names = append(names, f.Name)
		assert.Equal(t, zip.Deflate, f.Method)
	}
	assert.Equal(t, []string{
		"[Content_Types].xml",
		"word/document.xml",
		"word/_rels/document.xml.rels",
		"word/header1.xml",
		"docProps/core.xml",
	}, names)

	document := readEntries(t, out)["word/document.xml"]
	assert.Contains(t, document, `xml:space="preserve"> tail</w:t>`)
	assert.True(t, strings.HasPrefix(document, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`))
}

func TestOffice_RejectsNonZip(t *testing.T) {
	or := NewOfficeRedactor(redactors.Options{})
	_, _, err := or.Transform([]byte("not a zip"), nil, false)
	assert.Error(t, err)

	input := filepath.Join(t.TempDir(), "bad.docx")
	require.NoError(t, os.WriteFile(input, []byte("not a zip"), 0600))
	_, err = or.Process(input, t.TempDir(), nil, false)
	assert.Error(t, err)
	assert.Equal(t, []string{".docx"}, or.GetSupportedTypes())
}

func TestOffice_DefaultNamespaceDocument(t *testing.T) {
	data := buildDocx(t,
		entry{"[Content_Types].xml", `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`},
		entry{"word/document.xml", `<document xmlns="` + cleaner.NamespaceWordprocessingML + `"><body><p>` +
			`<r><t>Acme signed.</t></r><del><r><delText>Acme old terms</delText></r></del></p></body></document>`},
	)

	or := NewOfficeRedactor(redactors.Options{})
	out, report, err := or.Transform(data, parsePlaybook(t, clientPlaybook), false)
	require.NoError(t, err)

	document := readEntries(t, out)["word/document.xml"]
	assert.Equal(t, []string{"CLIENT_A signed."}, texts(t, document))
	assert.NotContains(t, document, "old terms")
	assert.Equal(t, 1, report.TotalMatches)
}
