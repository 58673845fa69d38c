// Package ingest runs the dual-engine analyzer over files on disk, for bulk
// checks of a folder of scans outside any intake session.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/extract"
	"github.com/joseph-ayodele/merchant-intake/internal/pipeline"
)

// Analyzer is satisfied by *pipeline.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, doc extract.Document, current map[string]string) pipeline.Analysis
}

type FileResult struct {
	Path      string               `json:"path"`
	HashHex   string               `json:"sha256"`
	Duplicate bool                 `json:"duplicate,omitempty"`
	Outcome   constants.RunOutcome `json:"outcome,omitempty"`
	Notice    string               `json:"notice,omitempty"`
	Fields    map[string]string    `json:"fields,omitempty"`
	Err       string               `json:"error,omitempty"`
}

type DirStats struct {
	Scanned    uint32 `json:"scanned"`
	Matched    uint32 `json:"matched"`
	Complete   uint32 `json:"complete"`
	Partial    uint32 `json:"partial"`
	Failed     uint32 `json:"failed"`
	Duplicates uint32 `json:"duplicates"`
}

type DirOptions struct {
	// IncludeExts limits the walk; empty means every extension the engines accept.
	IncludeExts []string
	SkipHidden  bool
	// MaxBytes skips larger files; 0 means no limit.
	MaxBytes int64
}

// AnalyzeDirectory walks root and analyzes every matching file as category.
// Files with identical content are analyzed once. A per-file failure is
// recorded in its FileResult and the walk continues.
func AnalyzeDirectory(ctx context.Context, a Analyzer, root string, category constants.DocumentCategory, opts DirOptions, logger *slog.Logger) ([]FileResult, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root is required")
	}
	if !category.Valid() {
		return nil, DirStats{}, fmt.Errorf("unknown document category %q", category)
	}

	exts := map[string]struct{}{}
	for _, e := range opts.IncludeExts {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			exts[e] = struct{}{}
		}
	}

	start := time.Now()
	var results []FileResult
	var stats DirStats
	seen := map[string]bool{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if opts.SkipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if len(exts) > 0 {
			if _, ok := exts[ext]; !ok {
				return nil
			}
		} else if !AllowedExt(ext) {
			return nil
		}
		stats.Matched++

		res := analyzeFile(ctx, a, path, category, opts.MaxBytes, seen)
		switch {
		case res.Duplicate:
			stats.Duplicates++
		case res.Err != "" || res.Outcome == constants.RunFailed:
			stats.Failed++
		case res.Outcome == constants.RunPartial:
			stats.Partial++
		default:
			stats.Complete++
		}
		results = append(results, res)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	logger.Info("ingest.directory.ok",
		"root", root,
		"category", category,
		"matched", stats.Matched,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds())
	return results, stats, nil
}

func analyzeFile(ctx context.Context, a Analyzer, path string, category constants.DocumentCategory, maxBytes int64, seen map[string]bool) FileResult {
	out := FileResult{Path: path}
	if maxBytes > 0 {
		if st, err := os.Stat(path); err == nil && st.Size() > maxBytes {
			out.Err = fmt.Sprintf("file is %d bytes, limit %d", st.Size(), maxBytes)
			return out
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		out.Err = err.Error()
		return out
	}
	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])
	if seen[out.HashHex] {
		out.Duplicate = true
		return out
	}
	seen[out.HashHex] = true

	an := a.Analyze(ctx, extract.Document{
		Bytes:    data,
		FileName: filepath.Base(path),
		Category: category,
	}, nil)
	out.Outcome = an.Outcome
	out.Notice = an.Notice
	out.Fields = an.Patch.Fields
	return out
}
