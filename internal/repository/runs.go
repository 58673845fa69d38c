package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/reconcile"
)

const TableExtractionRuns = "extraction_runs"

// EngineOutput is one engine's contribution to a run.
type EngineOutput struct {
	Fields     map[string]string `json:"fields"`
	Error      string            `json:"error,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	RawText    string            `json:"raw_text,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// Run is one row of extraction_runs.
type Run struct {
	ID            uuid.UUID                   `json:"id"`
	SessionID     string                      `json:"session_id"`
	Target        string                      `json:"target"`
	Category      constants.DocumentCategory  `json:"category"`
	FileName      string                      `json:"file_name"`
	MimeType      string                      `json:"mime_type"`
	Outcome       constants.RunOutcome        `json:"outcome"`
	Notice        string                      `json:"notice,omitempty"`
	Remote        EngineOutput                `json:"remote"`
	Local         EngineOutput                `json:"local"`
	Merged        map[string]string           `json:"merged"`
	Sources       map[string]reconcile.Source `json:"sources"`
	Disagreements []reconcile.Disagreement    `json:"disagreements,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
}

type RunRepository interface {
	Insert(ctx context.Context, run *Run) error
	ListBySession(ctx context.Context, sessionID string) ([]Run, error)
	Get(ctx context.Context, id uuid.UUID) (*Run, error)
}

var runColumns = []string{
	"id", "session_id", "target", "category", "file_name", "mime_type",
	"outcome", "notice", "remote_json", "local_json", "merged_json",
	"sources_json", "disagreements_json", "created_at_ms",
}

type runRepo struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepo{drv: db.Driver, logger: logger}
}

func (r *runRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *runRepo) Insert(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	blobs, err := marshalAll(run.Remote, run.Local, run.Merged, run.Sources, run.Disagreements)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	query, args := r.builder().Insert(TableExtractionRuns).
		Columns(runColumns...).
		Values(
			run.ID.String(), run.SessionID, run.Target, string(run.Category),
			run.FileName, run.MimeType, string(run.Outcome), run.Notice,
			blobs[0], blobs[1], blobs[2], blobs[3], blobs[4],
			run.CreatedAt.UnixMilli(),
		).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("extraction_run.insert.failed", "run_id", run.ID, "session_id", run.SessionID, "error", err)
		return fmt.Errorf("%w: insert extraction run: %v", common.ErrDatabase, err)
	}
	r.logger.Info("extraction_run.inserted",
		"run_id", run.ID,
		"session_id", run.SessionID,
		"category", run.Category,
		"outcome", run.Outcome)
	return nil
}

func (r *runRepo) selectRuns() *entsql.Selector {
	b := r.builder()
	return b.Select(runColumns...).From(b.Table(TableExtractionRuns))
}

func (r *runRepo) ListBySession(ctx context.Context, sessionID string) ([]Run, error) {
	query, args := r.selectRuns().
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("created_at_ms", "id").
		Query()
	runs, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("extraction_run.list.failed", "session_id", sessionID, "error", err)
		return nil, err
	}
	return runs, nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	query, args := r.selectRuns().
		Where(entsql.EQ("id", id.String())).
		Limit(1).
		Query()
	runs, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("extraction run %s: %w", id, common.ErrNotFound)
	}
	return &runs[0], nil
}

func (r *runRepo) query(ctx context.Context, query string, args []any) ([]Run, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var id, category, outcome, remote, local, merged, sources, disagreements string
		var createdMS int64
		if err := rows.Scan(
			&id, &run.SessionID, &run.Target, &category, &run.FileName, &run.MimeType,
			&outcome, &run.Notice, &remote, &local, &merged, &sources, &disagreements,
			&createdMS,
		); err != nil {
			return nil, fmt.Errorf("%w: scan extraction run: %v", common.ErrDatabase, err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: bad run id %q", common.ErrDatabase, id)
		}
		run.ID = parsed
		run.Category = constants.DocumentCategory(category)
		run.Outcome = constants.RunOutcome(outcome)
		run.CreatedAt = time.UnixMilli(createdMS).UTC()
		if err := unmarshalAll(
			[]string{remote, local, merged, sources, disagreements},
			&run.Remote, &run.Local, &run.Merged, &run.Sources, &run.Disagreements,
		); err != nil {
			return nil, fmt.Errorf("%w: decode run %s: %v", common.ErrDatabase, id, err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func marshalAll(vs ...any) ([]string, error) {
	out := make([]string, len(vs))
	for i, v := range vs {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[i] = string(b)
	}
	return out, nil
}

func unmarshalAll(blobs []string, dst ...any) error {
	if len(blobs) != len(dst) {
		return errors.New("column count mismatch")
	}
	for i, b := range blobs {
		if b == "" || b == "null" {
			continue
		}
		if err := json.Unmarshal([]byte(b), dst[i]); err != nil {
			return err
		}
	}
	return nil
}
