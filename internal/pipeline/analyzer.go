// Package pipeline runs both extraction engines for an upload, merges their
// output and applies the result to the intake session.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/extract"
	"github.com/joseph-ayodele/merchant-intake/internal/reconcile"
)

// Engine outcome labels.
const (
	OutcomeOK     = "ok"
	OutcomeEmpty  = "empty"
	OutcomeFailed = "failed"
)

// Recorder receives per-upload observations. *metrics.Metrics implements it.
type Recorder interface {
	ObserveEngine(engine, outcome string, elapsed time.Duration)
	ObserveMerge(sources map[string]int, disagreements int)
}

// Analysis is the settled outcome of one dual-engine run.
type Analysis struct {
	Remote  extract.Result       `json:"remote"`
	Local   extract.Result       `json:"local"`
	Patch   reconcile.Patch      `json:"patch"`
	Outcome constants.RunOutcome `json:"outcome"`
	Notice  string               `json:"notice,omitempty"`
}

type Analyzer struct {
	remote   extract.Engine
	local    extract.Engine
	recorder Recorder
	logger   *slog.Logger
}

// NewAnalyzer accepts nil engines; a missing engine reports a degraded result.
func NewAnalyzer(remote, local extract.Engine, recorder Recorder, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{remote: remote, local: local, recorder: recorder, logger: logger}
}

// Analyze runs both engines concurrently and waits for both to settle. It
// never fails: engine failures are carried in the results.
func (a *Analyzer) Analyze(ctx context.Context, doc extract.Document, current map[string]string) Analysis {
	start := time.Now()
	var remote, local extract.Result

	var g errgroup.Group
	g.Go(func() error {
		remote = a.run(ctx, a.remote, extract.EngineRemote, doc)
		return nil
	})
	g.Go(func() error {
		local = a.run(ctx, a.local, extract.EngineLocal, doc)
		return nil
	})
	_ = g.Wait()

	patch := reconcile.Merge(doc.Category, remote, local, current)
	outcome, notice := Classify(remote, local)

	if a.recorder != nil {
		a.recorder.ObserveEngine(string(extract.EngineRemote), engineOutcome(remote), remote.Duration)
		a.recorder.ObserveEngine(string(extract.EngineLocal), engineOutcome(local), local.Duration)
		counts := make(map[string]int, 3)
		for src, n := range patch.CountBySource() {
			counts[string(src)] = n
		}
		a.recorder.ObserveMerge(counts, len(patch.Disagreements))
	}

	a.logger.Info("pipeline.analyze.ok",
		"category", doc.Category,
		"file_name", doc.FileName,
		"outcome", outcome,
		"remote_fields", len(remote.Fields),
		"local_fields", len(local.Fields),
		"remote_error", remote.Error,
		"local_error", local.Error,
		"disagreements", len(patch.Disagreements),
		"elapsed_ms", time.Since(start).Milliseconds())

	return Analysis{Remote: remote, Local: local, Patch: patch, Outcome: outcome, Notice: notice}
}

// run isolates one engine so a panic degrades only its own branch.
func (a *Analyzer) run(ctx context.Context, e extract.Engine, kind extract.EngineKind, doc extract.Document) (res extract.Result) {
	start := time.Now()
	if e == nil {
		return extract.Result{Engine: kind, Fields: map[string]extract.FieldValue{}, Error: fmt.Sprintf("%s engine not configured", kind)}
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("pipeline.engine.panic", "engine", kind, "panic", r)
			res = extract.Result{
				Engine:   kind,
				Fields:   map[string]extract.FieldValue{},
				Error:    fmt.Sprintf("%s engine crashed: %v", kind, r),
				Duration: time.Since(start),
			}
		}
	}()
	res = e.Run(ctx, doc)
	if res.Fields == nil {
		res.Fields = map[string]extract.FieldValue{}
	}
	res.Engine = kind
	return res
}

// Classify maps two settled results to a run outcome and the user notice.
// Only an engine error earns a notice; an engine that simply found nothing
// is the expected partial-data case.
func Classify(remote, local extract.Result) (constants.RunOutcome, string) {
	switch {
	case !remote.Productive() && !local.Productive():
		return constants.RunFailed, constants.NoticeAnalysisFailed
	case remote.Failed() || local.Failed():
		return constants.RunPartial, constants.NoticePartialFailure
	case !remote.Productive() || !local.Productive():
		return constants.RunPartial, ""
	default:
		return constants.RunComplete, ""
	}
}

func engineOutcome(r extract.Result) string {
	switch {
	case r.Failed():
		return OutcomeFailed
	case r.Productive():
		return OutcomeOK
	default:
		return OutcomeEmpty
	}
}
