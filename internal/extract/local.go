package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/ocr"
	"github.com/joseph-ayodele/merchant-intake/internal/patterns"
)

// MsgLocalPDFUnsupported is reported when the local engine cannot read PDFs.
const MsgLocalPDFUnsupported = "PDF not supported by local OCR; used server AI only"

// TextExtractor turns a file on disk into text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.Result, error)
}

type LocalOptions struct {
	EnablePDF bool
	// TempDir receives the short-lived copy OCR reads from; "" uses os.TempDir.
	TempDir string
}

// LocalEngine runs OCR and the pattern library.
type LocalEngine struct {
	text   TextExtractor
	lib    *patterns.Library
	opts   LocalOptions
	logger *slog.Logger
}

func NewLocalEngine(text TextExtractor, lib *patterns.Library, opts LocalOptions, logger *slog.Logger) *LocalEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if lib == nil {
		lib = patterns.Default()
	}
	return &LocalEngine{text: text, lib: lib, opts: opts, logger: logger}
}

func (e *LocalEngine) Kind() EngineKind { return EngineLocal }

func (e *LocalEngine) Run(ctx context.Context, doc Document) Result {
	start := time.Now()
	log := e.logger.With("engine", EngineLocal, "category", doc.Category, "file_name", doc.FileName)

	if e.text == nil {
		return degraded(EngineLocal, start, "local OCR unavailable; used server AI only")
	}
	if len(doc.Bytes) == 0 {
		return degraded(EngineLocal, start, "empty file")
	}

	mt := constants.ResolveMime(doc.MimeType, doc.FileName, doc.Bytes)
	if !constants.IsAllowedMime(mt) {
		return degraded(EngineLocal, start, fmt.Sprintf("unsupported file type %q", mt))
	}
	if mt == constants.MimePDF && !e.opts.EnablePDF {
		return degraded(EngineLocal, start, MsgLocalPDFUnsupported)
	}

	path, cleanup, err := e.spill(doc.Bytes, constants.ExtForMime(mt))
	if err != nil {
		log.Error("local.extract.spill_failed", "error", err)
		return degraded(EngineLocal, start, "local OCR blocked: "+err.Error())
	}
	defer cleanup()

	log.Debug("local.extract.start", "mime", mt, "bytes", len(doc.Bytes))
	res, err := e.text.Extract(ctx, path)
	if err != nil {
		log.Warn("local.extract.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return degraded(EngineLocal, start, "local OCR blocked: "+err.Error(), res.Warnings...)
	}

	fields := make(map[string]FieldValue)
	for k, v := range e.lib.Apply(res.Text, doc.Category) {
		fields[k] = Scalar(v)
	}

	out := Result{
		Engine:   EngineLocal,
		Fields:   fields,
		RawText:  res.Text,
		Warnings: res.Warnings,
		Words:    res.Words,
		Duration: time.Since(start),
	}
	log.Info("local.extract.ok",
		"method", res.Method,
		"fields", len(fields),
		"chars", len(res.Text),
		"elapsed_ms", out.Duration.Milliseconds(),
	)
	return out
}

// spill writes data to a temp file whose extension drives the OCR strategy.
func (e *LocalEngine) spill(data []byte, ext string) (string, func(), error) {
	f, err := os.CreateTemp(e.opts.TempDir, "mi-local-*."+ext)
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("local.extract.cleanup_failed", "path", path, "error", err)
		}
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
