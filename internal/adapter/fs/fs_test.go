package fs

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smartfind/internal/domain"
	"smartfind/internal/logging"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWalker(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "notes", "b.md"), "b")
	writeFile(t, filepath.Join(root, "notes", "c.bin"), "c")
	writeFile(t, filepath.Join(root, ".git", "config.txt"), "x")
	writeFile(t, filepath.Join(root, "models", "lexical.txt"), "x")

	w := NewWalker([]string{"**/*.txt", "**/*.md"}, []string{"**/.git/**", "models/**"})
	files, err := w.Walk(root)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"a.txt", "notes/b.md"}, rel)

	assert.True(t, w.Matches(root, filepath.Join(root, "x", "y.txt")))
	assert.False(t, w.Matches(root, filepath.Join(root, "y.pdf")))
}

func makeDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// makePDF builds a minimal PDF with one page per text, each drawn in
// Helvetica.
func makePDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	n := len(pages)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	var kids []string
	for i, text := range pages {
		pageObj, contentObj := 4+2*i, 5+2*i
		kids = append(kids, fmt.Sprintf("%d 0 R", pageObj))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentObj),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestReader(t *testing.T) {
	dir := t.TempDir()
	r := NewReader(0, logging.Discard())

	t.Run("text", func(t *testing.T) {
		path := filepath.Join(dir, "note.txt")
		writeFile(t, path, "hello world")
		got, err := r.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello world", got)
	})

	t.Run("unknown extension read as text", func(t *testing.T) {
		path := filepath.Join(dir, "notes.log")
		writeFile(t, path, "line one")
		got, err := r.ReadFile(" " + path + " ")
		require.NoError(t, err)
		assert.Equal(t, "line one", got)
	})

	t.Run("html", func(t *testing.T) {
		path := filepath.Join(dir, "page.html")
		writeFile(t, path, `<html><head><title>Title</title><style>p{}</style></head>
<body><p>Hello   <b>there</b></p><script>var x = 1;</script></body></html>`)
		got, err := r.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "Title Hello there", got)
	})

	t.Run("docx", func(t *testing.T) {
		path := filepath.Join(dir, "report.docx")
		require.NoError(t, os.WriteFile(path, makeDocx(t, "First paragraph", "Second one"), 0644))
		got, err := r.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "First paragraph\nSecond one", got)
	})

	t.Run("broken docx", func(t *testing.T) {
		path := filepath.Join(dir, "broken.docx")
		writeFile(t, path, "not a zip")
		_, err := r.ReadFile(path)
		assert.ErrorIs(t, err, domain.ErrIO)
	})

	t.Run("pdf", func(t *testing.T) {
		path := filepath.Join(dir, "scan.pdf")
		require.NoError(t, os.WriteFile(path, makePDF(t, "Quarterly budget", "Travel plans"), 0644))
		got, err := r.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, got, "Quarterly budget")
		assert.Contains(t, got, "Travel plans")
	})

	t.Run("pdf page limit", func(t *testing.T) {
		pages := make([]string, maxPDFPages+2)
		for i := range pages {
			pages[i] = fmt.Sprintf("page%02d", i+1)
		}
		path := filepath.Join(dir, "long.pdf")
		require.NoError(t, os.WriteFile(path, makePDF(t, pages...), 0644))
		got, err := r.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, got, fmt.Sprintf("page%02d", maxPDFPages))
		assert.NotContains(t, got, fmt.Sprintf("page%02d", maxPDFPages+1))
	})

	t.Run("broken pdf", func(t *testing.T) {
		path := filepath.Join(dir, "broken.pdf")
		writeFile(t, path, "%PDF-1.4")
		_, err := r.ReadFile(path)
		assert.ErrorIs(t, err, domain.ErrIO)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := r.ReadFile(filepath.Join(dir, "missing.txt"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := r.ReadFile("  ")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("truncated by characters", func(t *testing.T) {
		path := filepath.Join(dir, "long.txt")
		writeFile(t, path, strings.Repeat("é", 20))
		got, err := NewReader(5, nil).ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "ééééé", got)
	})
}

func TestWatcher(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, NewWalker([]string{"**/*.txt"}, nil), 20*time.Millisecond, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(path string) {
			mu.Lock()
			seen = append(seen, path)
			mu.Unlock()
		})
	}()

	target := filepath.Join(root, "new.txt")
	ignored := filepath.Join(root, "new.bin")
	deadline := time.Now().Add(5 * time.Second)
	for {
		writeFile(t, target, "content")
		writeFile(t, ignored, "content")
		time.Sleep(100 * time.Millisecond)

		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
	}

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for _, p := range seen {
		assert.Equal(t, target, p)
	}
}
