package dmarc

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zipBytes(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range members {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractDocumentsPlainXML(t *testing.T) {
	doc := []byte("<feedback></feedback>")

	docs := ExtractDocuments("report.xml", doc)
	require.Len(t, docs, 1)
	assert.Equal(t, doc, docs[0])
}

func TestExtractDocumentsGzip(t *testing.T) {
	doc := []byte("<feedback></feedback>")

	docs := ExtractDocuments("report.xml.gz", gzipBytes(t, doc))
	require.Len(t, docs, 1)
	assert.Equal(t, doc, docs[0])

	docs = ExtractDocuments("report.gzip", gzipBytes(t, doc))
	require.Len(t, docs, 1)
}

func TestExtractDocumentsZip(t *testing.T) {
	first := []byte("<feedback>1</feedback>")
	second := []byte("<feedback>2</feedback>")

	archive := zipBytes(t, map[string][]byte{
		"google.com!paypal.com.xml": first,
		"readme.txt":                []byte("skip me"),
		"yahoo.com!paypal.com.XML":  second,
	})

	docs := ExtractDocuments("reports.zip", archive)
	require.Len(t, docs, 2, "only xml members are extracted")
	assert.Contains(t, docs, first)
	assert.Contains(t, docs, second)
}

func TestExtractDocumentsCorruptArchives(t *testing.T) {
	assert.Empty(t, ExtractDocuments("report.gz", []byte("not gzip")))
	assert.Empty(t, ExtractDocuments("reports.zip", []byte("not a zip")))
}

func TestExtractDocumentsUnknownExtension(t *testing.T) {
	assert.Empty(t, ExtractDocuments("report.pdf", []byte("whatever")))
	assert.Empty(t, ExtractDocuments("report", []byte("<feedback/>")))
}
