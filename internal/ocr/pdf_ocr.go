package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

// extractPDF reads the text layer and falls back to rasterize + OCR when the
// layer is missing or too thin to be a real text PDF.
func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	res := Result{SourceType: constants.PDF, Language: e.cfg.Lang}

	var (
		text  string
		pages int
		warns []string
		err   error
	)
	if e.cfg.PDFMode == PDFModeNative {
		res.Method = "pdf-native"
		text, pages, err = nativePDFText(path)
	} else {
		res.Method = "pdf-text"
		text, pages, warns, err = e.pdfToText(ctx, path)
	}
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s failed: %v", res.Method, err))
	}

	text = Normalize(text)
	if err == nil && len(text) >= e.cfg.MinTextChars {
		res.Text = text
		res.Pages = pages
		res.Confidence = blendConfidence(0, heuristicConfidence(text))
		return res, nil
	}

	e.logger.Debug("ocr.pdf.rasterize", "path", path, "text_chars", len(text))
	res.Method = "pdf-ocr"
	ocrText, ocrPages, words, w, ocrErr := e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, w...)
	if ocrErr != nil {
		return res, fmt.Errorf("pdf ocr: %w", ocrErr)
	}
	res.Text = Normalize(ocrText)
	res.Pages = ocrPages
	res.Words = words
	res.Confidence = blendConfidence(meanConfidence(words), heuristicConfidence(res.Text))
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, nonEmpty(string(errb)), err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(strings.TrimRight(text, "\f\n"), "\f")
	return text, pages, nil, nil
}

func nativePDFText(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", r.NumPage(), err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", r.NumPage(), err
	}
	return buf.String(), r.NumPage(), nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages int, words []Word, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "mi-pp-*")
	if err != nil {
		return "", 0, nil, nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.tmp.cleanup_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, path, prefix)
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...)
	if err != nil {
		return "", 0, nil, nonEmpty(string(errb)), err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, nil, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for i, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
		if e.cfg.CaptureWords {
			ws, w2, err := e.tesseractWords(ctx, img, i+1)
			warns = append(warns, w2...)
			if err == nil {
				words = append(words, ws...)
			}
		}
	}
	if b.Len() == 0 {
		return "", len(matches), nil, warns, fmt.Errorf("tesseract recognized no page")
	}
	return b.String(), len(matches), words, warns, nil
}
