package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

const (
	PDFModePoppler = "poppler"
	PDFModeNative  = "native"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Lang     string // default "eng"
	DPI      int    // rasterization DPI for scanned PDFs, default 300
	MaxPages int    // 0 = no limit

	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text

	// PDFMode selects how the text layer is read: "poppler" (pdftotext) or
	// "native" (pure Go). Both fall back to rasterize + tesseract when the
	// text layer is too thin.
	PDFMode string
	// MinTextChars is the text-layer size below which a PDF is treated as
	// scanned. Default 32.
	MinTextChars int

	// CaptureWords runs a second tesseract pass in TSV mode for word boxes.
	CaptureWords bool

	// HeicConverter turns HEIC photos into PNG before OCR: "magick",
	// "heif-convert" or "sips". Default "magick".
	HeicConverter string
}

// Word is one recognized token with its bounding box in pixels.
type Word struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	Page       int     `json:"page"`
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

type Result struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdf-native" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Words      []Word
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// NewExtractor returns an extractor over the system binaries. A nil runner
// executes real commands.
func NewExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PDFMode == "" {
		cfg.PDFMode = PDFModePoppler
	}
	if cfg.HeicConverter == "" {
		cfg.HeicConverter = HeicMagick
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = 32
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext)

	var (
		res Result
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	default:
		e.logger.Error("ocr.extract.unsupported", "ext", ext)
		return Result{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Warn("ocr.extract.failed", "path", path, "method", res.Method, "error", err)
		return res, err
	}
	e.logger.Debug("ocr.extract.ok",
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"words", len(res.Words),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
