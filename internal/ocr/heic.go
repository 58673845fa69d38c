package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	HeicMagick      = "magick"
	HeicHeifConvert = "heif-convert"
	HeicSips        = "sips"
)

func isHEIC(ext string) bool {
	return ext == "heic" || ext == "heif"
}

// convertHEIC writes a PNG copy of in to a temp dir. cleanup is non-nil
// whenever the temp dir was created, error or not.
func (e *Extractor) convertHEIC(ctx context.Context, in string) (string, []string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "intake-heic-*")
	if err != nil {
		return "", nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "page.png")

	var args []string
	switch e.cfg.HeicConverter {
	case HeicHeifConvert, HeicMagick:
		args = []string{in, out}
	case HeicSips:
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		return "", nil, cleanup, fmt.Errorf("HEIC not supported: converter must be one of %s, %s, %s",
			HeicHeifConvert, HeicMagick, HeicSips)
	}
	if _, errb, err := e.runner.Run(ctx, e.cfg.HeicConverter, args...); err != nil {
		return "", nonEmpty(strings.TrimSpace(string(errb))), cleanup, fmt.Errorf("%s failed: %w", e.cfg.HeicConverter, err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", nil, cleanup, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	e.logger.Debug("ocr.heic.converted", "converter", e.cfg.HeicConverter)
	return out, nil, cleanup, nil
}
