package dmarc

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"strings"
)

// ExtractDocuments unwraps a report file into its XML documents. Plain XML
// passes through, gzip is decompressed and every XML member of a zip
// archive is extracted. Unrecognized extensions and corrupt archives yield
// an empty slice.
func ExtractDocuments(name string, data []byte) [][]byte {
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, ".xml"):
		return [][]byte{data}

	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".gzip"):
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil
		}
		defer reader.Close()
		doc, err := io.ReadAll(reader)
		if err != nil {
			return nil
		}
		return [][]byte{doc}

	case strings.HasSuffix(lower, ".zip"):
		archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil
		}
		var docs [][]byte
		for _, member := range archive.File {
			if !strings.HasSuffix(strings.ToLower(member.Name), ".xml") {
				continue
			}
			f, err := member.Open()
			if err != nil {
				continue
			}
			doc, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				continue
			}
			docs = append(docs, doc)
		}
		return docs
	}

	return nil
}
