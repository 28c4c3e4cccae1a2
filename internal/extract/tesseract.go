package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Tesseract runs the tesseract CLI, feeding a PNG on stdin.
type Tesseract struct {
	Binary string
	Lang   string
}

func NewTesseract(binary, lang string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{Binary: binary, Lang: lang}
}

func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Binary, "stdin", "stdout", "-l", t.Lang)
	cmd.Stdin = &in
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Pdftoppm renders single PDF pages with poppler's pdftoppm.
type Pdftoppm struct {
	Binary string
}

func NewPdftoppm(binary string) *Pdftoppm {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &Pdftoppm{Binary: binary}
}

func (p *Pdftoppm) Rasterize(ctx context.Context, pdfPath string, page, scale int) (image.Image, error) {
	if scale <= 0 {
		scale = defaultScale
	}
	dir, err := os.MkdirTemp("", "docqa-raster-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	root := filepath.Join(dir, "page")
	num := strconv.Itoa(page)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Binary,
		"-png",
		"-r", strconv.Itoa(72*scale),
		"-f", num,
		"-l", num,
		"-singlefile",
		pdfPath,
		root,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	f, err := os.Open(root + ".png")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}
