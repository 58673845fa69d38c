package intake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/merchant-intake/internal/backend"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
)

const (
	AuditSubmitApplication = "SUBMIT_APPLICATION"
	AuditUpdateStatus      = "UPDATE_STATUS"
)

// Backend is the slice of the backend client the workflow needs.
type Backend interface {
	InitMerchant(ctx context.Context, fields map[string]string) (backend.InitResult, error)
	UpdateMerchant(ctx context.Context, merchantID string, fields map[string]string) error
	SaveOfficer(ctx context.Context, merchantID string, fields map[string]string) (backend.SaveOfficerResult, error)
	UpdateOfficer(ctx context.Context, officerID string, fields map[string]string) error
	LogAudit(ctx context.Context, entry backend.AuditEntry) error
}

// Workflow persists sessions to the backend at step boundaries.
type Workflow struct {
	store   *Store
	backend Backend
	logger  *slog.Logger
}

func NewWorkflow(store *Store, b Backend, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{store: store, backend: b, logger: logger}
}

// SaveEntity advances past the entity step. The first save creates the
// merchant and its folder; later saves update it.
func (w *Workflow) SaveEntity(ctx context.Context, sessionID string) (Session, error) {
	sess, err := w.store.Get(sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.Submitted {
		return Session{}, fmt.Errorf("session %q: %w", sessionID, common.ErrSubmitted)
	}
	if err := ValidateEntityStep(sess); err != nil {
		return Session{}, err
	}
	if w.backend == nil {
		return Session{}, backend.ErrNotConfigured
	}

	start := time.Now()
	if sess.MerchantID == "" {
		res, err := w.backend.InitMerchant(ctx, sess.Entity.Fields)
		if err != nil {
			w.logger.Error("intake.entity.init_failed", "session_id", sessionID, "error", err)
			return Session{}, fmt.Errorf("init merchant: %w", err)
		}
		sess, err = w.store.SetMerchant(sessionID, res.MerchantID.String(), res.FolderID.String())
		if err != nil {
			return Session{}, err
		}
		w.logger.Info("intake.entity.created",
			"session_id", sessionID,
			"merchant_id", sess.MerchantID,
			"folder_id", sess.FolderID,
			"elapsed_ms", time.Since(start).Milliseconds())
		return sess, nil
	}

	if err := w.backend.UpdateMerchant(ctx, sess.MerchantID, sess.Entity.Fields); err != nil {
		w.logger.Error("intake.entity.update_failed", "session_id", sessionID, "merchant_id", sess.MerchantID, "error", err)
		return Session{}, fmt.Errorf("update merchant: %w", err)
	}
	w.logger.Info("intake.entity.updated",
		"session_id", sessionID,
		"merchant_id", sess.MerchantID,
		"elapsed_ms", time.Since(start).Milliseconds())
	return sess, nil
}

// Submit saves every officer concurrently and records the submission.
// Officers that already carry a backend id are updated instead of saved
// again, so a submit retried after a partial failure does not duplicate
// rows. Only one submit per session runs at a time, and a submitted session
// cannot be submitted again.
func (w *Workflow) Submit(ctx context.Context, sessionID string) (Session, error) {
	if err := w.store.BeginSubmit(sessionID); err != nil {
		w.logger.Warn("intake.submit.rejected", "session_id", sessionID, "error", err)
		return Session{}, err
	}
	defer w.store.EndSubmit(sessionID)

	sess, err := w.store.Get(sessionID)
	if err != nil {
		return Session{}, err
	}
	if err := ValidateEntityStep(sess); err != nil {
		return Session{}, err
	}
	if err := ValidateOfficersStep(sess); err != nil {
		return Session{}, err
	}
	if w.backend == nil {
		return Session{}, backend.ErrNotConfigured
	}
	if sess.MerchantID == "" {
		if sess, err = w.SaveEntity(ctx, sessionID); err != nil {
			return Session{}, err
		}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, o := range sess.Officers {
		g.Go(func() error {
			if o.BackendID != "" {
				if err := w.backend.UpdateOfficer(gctx, o.BackendID, o.Fields); err != nil {
					return fmt.Errorf("update officer %s: %w", o.ID, err)
				}
				return nil
			}
			res, err := w.backend.SaveOfficer(gctx, sess.MerchantID, o.Fields)
			if err != nil {
				return fmt.Errorf("save officer %s: %w", o.ID, err)
			}
			return w.store.SetOfficerBackendID(sessionID, o.ID, res.OfficerID.String())
		})
	}
	if err := g.Wait(); err != nil {
		w.logger.Error("intake.submit.failed", "session_id", sessionID, "merchant_id", sess.MerchantID, "error", err)
		return Session{}, err
	}

	entry := backend.AuditEntry{
		UserAction:       AuditSubmitApplication,
		TargetMerchantID: sess.MerchantID,
		Details:          fmt.Sprintf("Submitted with %d officers", len(sess.Officers)),
	}
	if err := w.backend.LogAudit(ctx, entry); err != nil {
		// the application itself is saved; a lost audit line is logged only
		w.logger.Warn("intake.submit.audit_failed", "session_id", sessionID, "error", err)
	}

	out, err := w.store.MarkSubmitted(sessionID)
	if err != nil {
		return Session{}, err
	}
	w.logger.Info("intake.submit.ok",
		"session_id", sessionID,
		"merchant_id", out.MerchantID,
		"officers", len(out.Officers),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}
