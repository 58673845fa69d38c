package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/async"
	"github.com/joseph-ayodele/merchant-intake/internal/backend"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/extract"
	"github.com/joseph-ayodele/merchant-intake/internal/intake"
	"github.com/joseph-ayodele/merchant-intake/internal/planner"
	"github.com/joseph-ayodele/merchant-intake/internal/reconcile"
	"github.com/joseph-ayodele/merchant-intake/internal/repository"
	"github.com/joseph-ayodele/merchant-intake/internal/storage"
)

const (
	JobArchive = "archive_document"
	JobAudit   = "audit_upload"

	AuditUploadDocument = "UPLOAD_DOCUMENT"
)

// AuditLogger is the backend LOG_AUDIT call.
type AuditLogger interface {
	LogAudit(ctx context.Context, entry backend.AuditEntry) error
}

// UploadRecorder counts uploads by outcome.
type UploadRecorder interface {
	ObserveUpload(category, outcome string)
}

// Options wires the optional collaborators. Every field may be nil.
type Options struct {
	Runs    repository.RunRepository
	Queue   async.Queue
	Archive storage.DocumentStore
	Audit   AuditLogger
	Metrics UploadRecorder
}

type Processor struct {
	store    *intake.Store
	analyzer *Analyzer
	runs     repository.RunRepository
	queue    async.Queue
	archive  storage.DocumentStore
	audit    AuditLogger
	metrics  UploadRecorder
	logger   *slog.Logger
}

func NewProcessor(store *intake.Store, analyzer *Analyzer, opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	q := opts.Queue
	if q == nil {
		q = async.Inline{}
	}
	return &Processor{
		store:    store,
		analyzer: analyzer,
		runs:     opts.Runs,
		queue:    q,
		archive:  opts.Archive,
		audit:    opts.Audit,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// UploadResult is what the caller shows after an upload.
type UploadResult struct {
	SessionID     string                       `json:"session_id"`
	Target        intake.Target                `json:"target"`
	RunID         uuid.UUID                    `json:"run_id"`
	Analysis      Analysis                     `json:"analysis"`
	Applied       map[string]string            `json:"applied"`
	File          intake.FileRef               `json:"file"`
	Suggestions   []constants.DocumentCategory `json:"suggestions"`
	UploadEnabled bool                         `json:"upload_enabled"`
	Notice        string                       `json:"notice,omitempty"`
}

// Upload analyzes doc and writes the merged fields into target. Only input
// and state errors are returned; engine failures come back in the notice.
func (p *Processor) Upload(ctx context.Context, sessionID string, target intake.Target, doc extract.Document) (*UploadResult, error) {
	log := common.LoggerFromContext(ctx, p.logger).With("session_id", sessionID, "target", target.String())

	if !doc.Category.Valid() {
		return nil, fmt.Errorf("unknown document category %q: %w", doc.Category, common.ErrInvalidInput)
	}
	if !target.Accepts(doc.Category) {
		return nil, fmt.Errorf("category %s does not belong to %s: %w", doc.Category, target.Kind, common.ErrInvalidInput)
	}
	if len(doc.Bytes) == 0 {
		return nil, fmt.Errorf("empty file: %w", common.ErrInvalidInput)
	}
	doc.FileName = strings.TrimSpace(doc.FileName)
	if doc.FileName == "" {
		doc.FileName = "document" + constants.ExtForMime(doc.MimeType)
	}

	sess, err := p.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	current, err := p.store.Fields(sessionID, target)
	if err != nil {
		return nil, err
	}
	if target.Kind == constants.KindOfficer && !planner.UploadEnabled(current) {
		return nil, fmt.Errorf("officer %s: %w", target.OfficerID, common.ErrUploadLocked)
	}

	if err := p.store.BeginAnalysis(sessionID, target); err != nil {
		log.Warn("pipeline.upload.rejected", "error", err)
		return nil, err
	}
	defer p.store.EndAnalysis(sessionID, target)

	doc.MerchantID = sess.MerchantID
	doc.FolderID = sess.FolderID
	analysis := p.analyzer.Analyze(ctx, doc, current)

	// only engine-sourced values are written; re-writing "existing" values
	// would undo a manual edit made while the engines were running
	applied := make(map[string]string)
	for field, value := range analysis.Patch.Fields {
		if analysis.Patch.Sources[field] != reconcile.SourceExisting {
			applied[field] = value
		}
	}
	after, err := p.store.ApplyPatch(sessionID, target, applied)
	if err != nil {
		return nil, err
	}

	ref := intake.FileRef{
		FileID:   analysis.Remote.FileID,
		FileURL:  analysis.Remote.FileURL,
		FileName: doc.FileName,
		Category: doc.Category,
	}
	if after, err = p.store.AttachFile(sessionID, target, ref); err != nil {
		return nil, err
	}
	ref = lastFile(after, target)

	run := p.buildRun(sessionID, target, doc, analysis)
	if p.runs != nil {
		if err := p.runs.Insert(ctx, run); err != nil {
			// the audit row is best effort; the user's record is already updated
			log.Error("pipeline.run.record_failed", "error", err)
		}
	}
	p.enqueueSideEffects(ctx, log, after, target, doc, analysis)

	fields, _ := p.store.Fields(sessionID, target)
	res := &UploadResult{
		SessionID: sessionID,
		Target:    target,
		RunID:     run.ID,
		Analysis:  analysis,
		Applied:   applied,
		File:      ref,
		Notice:    analysis.Notice,
	}
	if target.Kind == constants.KindOfficer {
		res.UploadEnabled = planner.UploadEnabled(fields)
		res.Suggestions = planner.OfficerCategories(fields)
	} else {
		res.UploadEnabled = true
		res.Suggestions = planner.SuggestedCategories(fields, constants.KindEntity)
	}

	if p.metrics != nil {
		p.metrics.ObserveUpload(string(doc.Category), string(analysis.Outcome))
	}
	log.Info("pipeline.upload.ok",
		"category", doc.Category,
		"outcome", analysis.Outcome,
		"applied", len(applied),
		"run_id", run.ID)
	return res, nil
}

func lastFile(s intake.Session, t intake.Target) intake.FileRef {
	var files []intake.FileRef
	if t.Kind == constants.KindOfficer {
		if o := s.Officer(t.OfficerID); o != nil {
			files = o.Files
		}
	} else {
		files = s.Entity.Files
	}
	if len(files) == 0 {
		return intake.FileRef{}
	}
	return files[len(files)-1]
}

func (p *Processor) buildRun(sessionID string, target intake.Target, doc extract.Document, a Analysis) *repository.Run {
	return &repository.Run{
		ID:            uuid.New(),
		SessionID:     sessionID,
		Target:        target.String(),
		Category:      doc.Category,
		FileName:      doc.FileName,
		MimeType:      constants.ResolveMime(doc.MimeType, doc.FileName, doc.Bytes),
		Outcome:       a.Outcome,
		Notice:        a.Notice,
		Remote:        engineOutput(a.Remote),
		Local:         engineOutput(a.Local),
		Merged:        a.Patch.Fields,
		Sources:       a.Patch.Sources,
		Disagreements: a.Patch.Disagreements,
		CreatedAt:     time.Now().UTC(),
	}
}

func engineOutput(r extract.Result) repository.EngineOutput {
	return repository.EngineOutput{
		Fields:     extract.Values(r.Fields),
		Error:      r.Error,
		Warnings:   r.Warnings,
		RawText:    r.RawText,
		DurationMS: r.Duration.Milliseconds(),
	}
}

func (p *Processor) enqueueSideEffects(ctx context.Context, log *slog.Logger, sess intake.Session, target intake.Target, doc extract.Document, a Analysis) {
	traceID := common.RequestIDFromContext(ctx)

	if p.archive != nil {
		key := storage.ObjectKey(sess.ID, target.String(), doc.FileName, time.Now())
		mime := constants.ResolveMime(doc.MimeType, doc.FileName, doc.Bytes)
		data := doc.Bytes
		job := async.Job{
			Name:      JobArchive,
			SessionID: sess.ID,
			TraceID:   traceID,
			Run: func(ctx context.Context) error {
				if _, err := p.archive.Put(ctx, key, mime, bytes.NewReader(data)); err != nil {
					return err
				}
				return p.store.SetArchiveKey(sess.ID, target, doc.FileName, key)
			},
		}
		if err := p.queue.Enqueue(ctx, job); err != nil {
			log.Warn("pipeline.archive.enqueue_failed", "error", err)
		}
	}

	if p.audit != nil && sess.MerchantID != "" {
		entry := backend.AuditEntry{
			UserAction:       AuditUploadDocument,
			TargetMerchantID: sess.MerchantID,
			Details:          fmt.Sprintf("%s %s (%s)", doc.Category, doc.FileName, a.Outcome),
		}
		job := async.Job{
			Name:      JobAudit,
			SessionID: sess.ID,
			TraceID:   traceID,
			Run:       func(ctx context.Context) error { return p.audit.LogAudit(ctx, entry) },
		}
		if err := p.queue.Enqueue(ctx, job); err != nil {
			log.Warn("pipeline.audit.enqueue_failed", "error", err)
		}
	}
}
