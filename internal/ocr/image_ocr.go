package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (Result, error) {
	res := Result{SourceType: constants.IMAGE, Method: "image-ocr", Language: e.cfg.Lang, Pages: 1}

	if isHEIC(constants.NormalizeExt(filepath.Ext(path))) {
		png, warn, cleanup, err := e.convertHEIC(ctx, path)
		if cleanup != nil {
			defer cleanup()
		}
		res.Warnings = warn
		if err != nil {
			return res, err
		}
		path = png
	}

	txt, warn, err := e.tesseractOCR(ctx, path)
	if err != nil {
		res.Warnings = append(res.Warnings, warn...)
		return res, err
	}
	res.Text = Normalize(txt)
	res.Warnings = append(res.Warnings, warn...)

	var ocrConf float32
	if e.cfg.CaptureWords {
		words, w, err := e.tesseractWords(ctx, path, 1)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
		} else {
			res.Words = words
			ocrConf = meanConfidence(words)
		}
		res.Warnings = append(res.Warnings, w...)
	}
	res.Confidence = blendConfidence(ocrConf, heuristicConfidence(res.Text))
	return res, nil
}

func (e *Extractor) tesseractArgs(path string, extra ...string) []string {
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return append(args, extra...)
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path)...)
	if err != nil {
		return "", nonEmpty(string(errb)), fmt.Errorf("tesseract: %w", err)
	}
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return txt, nil, nil
}

// tesseractWords runs tesseract in TSV mode and returns word-level boxes.
func (e *Extractor) tesseractWords(ctx context.Context, path string, page int) ([]Word, []string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path, "tsv")...)
	if err != nil {
		return nil, nonEmpty(string(errb)), fmt.Errorf("tesseract TSV: %w", err)
	}
	return parseTSV(string(out), page), nil, nil
}

// parseTSV reads tesseract TSV output:
// level page_num block_num par_num line_num word_num left top width height conf text
func parseTSV(tsv string, page int) []Word {
	var words []Word
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		w := Word{Text: text, Confidence: float32(conf / 100.0), Page: page}
		w.Left, _ = strconv.Atoi(cols[6])
		w.Top, _ = strconv.Atoi(cols[7])
		w.Width, _ = strconv.Atoi(cols[8])
		w.Height, _ = strconv.Atoi(cols[9])
		words = append(words, w)
	}
	return words
}

func meanConfidence(words []Word) float32 {
	if len(words) == 0 {
		return 0
	}
	var sum float32
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float32(len(words))
}

func nonEmpty(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return []string{s}
}
