package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

func nextResult(t *testing.T, ch <-chan FileResult) FileResult {
	t.Helper()
	select {
	case r, ok := <-ch:
		require.True(t, ok, "channel closed")
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher")
	}
	return FileResult{}
}

func TestWatchDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.jpg"), "old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := &recordingAnalyzer{}
	ch, err := WatchDirectory(ctx, a, root, constants.PassportID,
		WatchOptions{InitialScan: true, SkipHidden: true, Debounce: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	r := nextResult(t, ch)
	assert.Equal(t, "old.jpg", filepath.Base(r.Path))

	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, "new.png"), "new")
	r = nextResult(t, ch)
	assert.Equal(t, "new.png", filepath.Base(r.Path))
	assert.Equal(t, "K1234567", r.Fields[constants.FieldPassportNumber])

	cancel()
	for range ch {
	}
}

func TestWatchDirectoryRejectsBadInput(t *testing.T) {
	_, err := WatchDirectory(context.Background(), &recordingAnalyzer{}, "", constants.CertInc, WatchOptions{}, nil)
	assert.Error(t, err)
	_, err = WatchDirectory(context.Background(), &recordingAnalyzer{}, t.TempDir(), "GROCERIES", WatchOptions{}, nil)
	assert.Error(t, err)
	_, err = WatchDirectory(context.Background(), &recordingAnalyzer{}, filepath.Join(t.TempDir(), "missing"), constants.CertInc, WatchOptions{}, nil)
	assert.Error(t, err)
}
