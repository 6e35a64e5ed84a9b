package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDOCX creates a minimal DOCX file in memory.
func createTestDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))
	require.NoError(t, err)

	if documentXML != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(documentXML))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"report.pdf", FormatPDF},
		{"REPORT.PDF", FormatPDF},
		{"letter.docx", FormatDOCX},
		{"legacy.doc", FormatDOCX},
		{"notes.md", FormatMarkdown},
		{"notes.markdown", FormatMarkdown},
		{"plain.txt", FormatText},
		{"noext", FormatText},
		{"data.csv", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFor(tt.filename))
		})
	}
}

func TestExtract_PlainText(t *testing.T) {
	res := New().Extract(context.Background(), []byte("The capital of France is Paris."), "france.txt")

	assert.Equal(t, "The capital of France is Paris.", res.Text)
	assert.Equal(t, FormatText, res.Format)
	assert.False(t, res.Fallback)
}

func TestExtract_InvalidUTF8IsDropped(t *testing.T) {
	content := []byte("caf\xc3\xa9 \xff\xfe bar")
	res := New().Extract(context.Background(), content, "mixed.txt")

	assert.True(t, utf8.ValidString(res.Text))
	assert.Equal(t, "café  bar", res.Text)
}

func TestExtract_DOCX(t *testing.T) {
	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>World</w:t></w:r></w:p>
<w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
</w:body>
</w:document>`

	res := New().Extract(context.Background(), createTestDOCX(t, docXML), "doc.docx")

	assert.Equal(t, "Hello World\nSecond paragraph.", res.Text)
	assert.Equal(t, FormatDOCX, res.Format)
	assert.False(t, res.Fallback)
}

func TestExtract_DOCXWithoutDocumentFallsBack(t *testing.T) {
	content := createTestDOCX(t, "")
	res := New().Extract(context.Background(), content, "empty.docx")

	assert.True(t, res.Fallback)
	assert.Equal(t, FormatText, res.Format)
	assert.True(t, utf8.ValidString(res.Text))
}

func TestExtract_MalformedBinariesFallBack(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{name: "pdf", filename: "broken.pdf", content: []byte("%PDF-1.4 this is not really a pdf")},
		{name: "docx", filename: "broken.docx", content: []byte("plain words, not a zip")},
		{name: "doc", filename: "legacy.doc", content: []byte("old binary \x00\x01 words")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New().Extract(context.Background(), tt.content, tt.filename)

			assert.True(t, res.Fallback)
			assert.Equal(t, FormatText, res.Format)
			assert.Equal(t, string(tt.content), res.Text)
		})
	}
}

func TestExtract_Markdown(t *testing.T) {
	md := "# Title\n\nSome *bold* text and `code`.\n\n- item one\n- item two\n\n```\nfmt.Println(1)\n```\n"

	res := New().Extract(context.Background(), []byte(md), "notes.md")
	require.False(t, res.Fallback)
	assert.Equal(t, FormatMarkdown, res.Format)

	assert.Contains(t, res.Text, "Title")
	assert.Contains(t, res.Text, "Some bold text and code.")
	assert.Contains(t, res.Text, "item one")
	assert.Contains(t, res.Text, "item two")
	assert.Contains(t, res.Text, "fmt.Println(1)")
	assert.NotContains(t, res.Text, "#")
	assert.NotContains(t, res.Text, "*")
	assert.NotContains(t, res.Text, "`")
}

func TestExtract_EmptyContent(t *testing.T) {
	res := New().Extract(context.Background(), nil, "empty.txt")
	assert.Equal(t, "", res.Text)
	assert.False(t, res.Fallback)
}
