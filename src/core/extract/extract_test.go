package extract_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicopilot/src/core/extract"
	"medicopilot/src/core/rag"
	"medicopilot/src/infrastructure/integrations/unstructured"
)

func docx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const wordXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Dosis de </w:t></w:r><w:r><w:t>paracetamol.</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t>Máximo 4 g al día.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		want     string
		wantErr  bool
	}{
		{name: "txt", filename: "nota.txt", content: []byte("  Hola mundo.\n"), want: "Hola mundo."},
		{name: "txt with bom", filename: "nota.TXT", content: []byte("\xef\xbb\xbfTexto."), want: "Texto."},
		{name: "txt invalid utf8", filename: "nota.txt", content: []byte{0xff, 0xfe, 0x00}, wantErr: true},
		{name: "txt blank", filename: "nota.txt", content: []byte(" \n\t"), wantErr: true},
		{name: "docx", filename: "guia.docx", content: docx(t, wordXML), want: "Dosis de paracetamol.\nMáximo 4 g al día."},
		{name: "docx not a zip", filename: "guia.docx", content: []byte("plain"), wantErr: true},
		{name: "pdf garbage", filename: "guia.pdf", content: []byte("not a pdf"), wantErr: true},
		{name: "unsupported", filename: "imagen.png", content: []byte("x"), wantErr: true},
	}

	e := extract.New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract(context.Background(), tt.filename, tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, rag.ErrExtraction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractPDFWithUnstructured(t *testing.T) {
	var gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/general/v0/general", r.URL.Path)
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			if part.FormName() == "files" {
				gotFilename = part.FileName()
			}
		}
		_, _ = w.Write([]byte(`[{"type":"Title","text":"Guía"},{"type":"NarrativeText","text":" Tome agua. "},{"type":"Image","text":""}]`))
	}))
	defer srv.Close()

	e := extract.New(unstructured.NewUnstructuredService(srv.URL, srv.Client()))
	got, err := e.Extract(context.Background(), "guia.pdf", []byte("%PDF-1.4"))

	require.NoError(t, err)
	assert.Equal(t, "guia.pdf", gotFilename)
	assert.Equal(t, "Guía\n\nTome agua.", got)
}

func TestExtractPDFServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := extract.New(unstructured.NewUnstructuredService(srv.URL, nil)).Extract(context.Background(), "a.pdf", []byte("x"))
	assert.ErrorIs(t, err, rag.ErrExtraction)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, extract.IsSupported("a.PDF"))
	assert.True(t, extract.IsSupported("b.txt"))
	assert.True(t, extract.IsSupported("c.docx"))
	assert.False(t, extract.IsSupported("d.doc"))
	assert.False(t, extract.IsSupported("noext"))
	assert.Equal(t, []string{".pdf", ".txt", ".docx"}, extract.SupportedExtensions())
}
