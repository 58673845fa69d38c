package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/backend"
)

// MsgRemoteNotConfigured is reported when no backend client is wired.
const MsgRemoteNotConfigured = "remote engine not configured"

// DocumentAnalyzer is the backend call the remote engine needs.
type DocumentAnalyzer interface {
	AnalyzeDocument(ctx context.Context, req backend.AnalyzeRequest) (*backend.AnalyzeResponse, error)
}

// RemoteEngine ships the document to the backend's document-understanding
// action. Its values are always Wrapped so they stay attributable.
type RemoteEngine struct {
	analyzer DocumentAnalyzer
	logger   *slog.Logger
}

func NewRemoteEngine(analyzer DocumentAnalyzer, logger *slog.Logger) *RemoteEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteEngine{analyzer: analyzer, logger: logger}
}

func (e *RemoteEngine) Kind() EngineKind { return EngineRemote }

func (e *RemoteEngine) Run(ctx context.Context, doc Document) Result {
	start := time.Now()
	log := e.logger.With("engine", EngineRemote, "category", doc.Category, "file_name", doc.FileName)

	if e.analyzer == nil {
		return degraded(EngineRemote, start, MsgRemoteNotConfigured)
	}
	if len(doc.Bytes) == 0 {
		return degraded(EngineRemote, start, "empty file")
	}

	mt := constants.ResolveMime(doc.MimeType, doc.FileName, doc.Bytes)
	req := backend.AnalyzeRequest{
		FileBase64:  base64.StdEncoding.EncodeToString(doc.Bytes),
		FileName:    doc.FileName,
		MimeType:    mt,
		DocCategory: string(doc.Category),
		MerchantID:  doc.MerchantID,
		FolderID:    doc.FolderID,
	}

	log.Debug("remote.analyze.start", "mime", mt, "bytes", len(doc.Bytes))
	resp, err := e.analyzer.AnalyzeDocument(ctx, req)
	if err != nil {
		log.Warn("remote.analyze.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return degraded(EngineRemote, start, "remote analysis failed: "+err.Error())
	}
	if resp == nil || len(resp.Analysis) == 0 || string(resp.Analysis) == "null" {
		r := degraded(EngineRemote, start, "remote analysis returned no fields")
		if resp != nil {
			r.FileID, r.FileURL = resp.FileID.String(), resp.FileURL.String()
		}
		return r
	}

	decoded, warnings, err := DecodeAnalysis(doc.Category, resp.Analysis)
	if err != nil {
		log.Warn("remote.analyze.invalid", "error", err)
		r := degraded(EngineRemote, start, fmt.Sprintf("remote analysis invalid: %v", err))
		r.FileID, r.FileURL = resp.FileID.String(), resp.FileURL.String()
		return r
	}
	if len(warnings) > 0 {
		log.Warn("remote.analyze.sanitized", "warnings", warnings)
	}

	fields := make(map[string]FieldValue, len(decoded))
	for k, v := range decoded {
		fields[k] = Wrapped(v.Unwrap())
	}

	out := Result{
		Engine:   EngineRemote,
		Fields:   fields,
		Warnings: warnings,
		FileID:   resp.FileID.String(),
		FileURL:  resp.FileURL.String(),
		Duration: time.Since(start),
	}
	log.Info("remote.analyze.ok", "fields", len(fields), "file_id", out.FileID, "elapsed_ms", out.Duration.Milliseconds())
	return out
}
