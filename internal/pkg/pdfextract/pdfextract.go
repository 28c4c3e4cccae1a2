package pdfextract

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPages returns the native plain text of every page of the PDF at
// path, in page order. A page whose content stream cannot be decoded yields
// an empty string rather than failing the whole document.
func ExtractPages(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return ExtractPagesFrom(f, info.Size())
}

// ExtractPagesFrom is ExtractPages over an already opened reader.
func ExtractPagesFrom(r io.ReaderAt, size int64) ([]string, error) {
	if size == 0 {
		return nil, nil
	}
	pdfReader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	n := pdfReader.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, pageText(pdfReader, i))
	}
	return pages, nil
}

// pageText recovers from panics inside the content-stream interpreter, which
// ledongthuc/pdf raises on some malformed or image-only pages.
func pageText(r *pdf.Reader, num int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return ""
	}
	out, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}
