package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/extract"
	"github.com/joseph-ayodele/merchant-intake/internal/pipeline"
	"github.com/joseph-ayodele/merchant-intake/internal/reconcile"
)

type recordingAnalyzer struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingAnalyzer) Analyze(_ context.Context, doc extract.Document, _ map[string]string) pipeline.Analysis {
	r.mu.Lock()
	r.names = append(r.names, doc.FileName)
	r.mu.Unlock()
	if doc.FileName == "blank.png" {
		return pipeline.Analysis{Outcome: constants.RunFailed, Notice: constants.NoticeAnalysisFailed}
	}
	return pipeline.Analysis{
		Outcome: constants.RunComplete,
		Patch:   reconcile.Patch{Fields: map[string]string{constants.FieldPassportNumber: "K1234567"}},
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestAnalyzeDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), "one")
	writeFile(t, filepath.Join(root, "sub", "copy-of-a.jpg"), "one")
	writeFile(t, filepath.Join(root, "blank.png"), "two")
	writeFile(t, filepath.Join(root, "notes.txt"), "skip me")
	writeFile(t, filepath.Join(root, ".cache", "b.jpg"), "three")

	a := &recordingAnalyzer{}
	results, stats, err := AnalyzeDirectory(context.Background(), a, root, constants.PassportID, DirOptions{SkipHidden: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(1), stats.Complete)
	assert.Equal(t, uint32(1), stats.Failed)
	assert.Equal(t, uint32(1), stats.Duplicates)
	assert.ElementsMatch(t, []string{"a.jpg", "blank.png"}, a.names)

	byName := map[string]FileResult{}
	for _, r := range results {
		byName[filepath.Base(r.Path)] = r
	}
	assert.Equal(t, "K1234567", byName["a.jpg"].Fields[constants.FieldPassportNumber])
	assert.True(t, byName["copy-of-a.jpg"].Duplicate)
	assert.Equal(t, byName["a.jpg"].HashHex, byName["copy-of-a.jpg"].HashHex)
	assert.Equal(t, constants.NoticeAnalysisFailed, byName["blank.png"].Notice)
}

func TestAnalyzeDirectoryFilters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), "one")
	writeFile(t, filepath.Join(root, "b.pdf"), "two-two-two")

	a := &recordingAnalyzer{}
	results, stats, err := AnalyzeDirectory(context.Background(), a, root, constants.CertInc,
		DirOptions{IncludeExts: []string{".PDF", "jpg"}, MaxBytes: 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), stats.Matched)
	assert.Equal(t, []string{"a.jpg"}, a.names)
	require.Len(t, results, 2)
	assert.Contains(t, results[1].Err, "limit 5")
}

func TestAnalyzeDirectoryRejectsBadInput(t *testing.T) {
	_, _, err := AnalyzeDirectory(context.Background(), &recordingAnalyzer{}, "", constants.CertInc, DirOptions{}, nil)
	assert.Error(t, err)
	_, _, err = AnalyzeDirectory(context.Background(), &recordingAnalyzer{}, t.TempDir(), "GROCERIES", DirOptions{}, nil)
	assert.Error(t, err)
}

func TestAllowedExtAndHidden(t *testing.T) {
	assert.True(t, AllowedExt(".HEIC"))
	assert.True(t, AllowedExt("pdf"))
	assert.False(t, AllowedExt("txt"))
	assert.True(t, IsHidden("/x/.git"))
	assert.False(t, IsHidden("."))
}
