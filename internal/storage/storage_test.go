package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/merchant-intake/internal/common"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	key := ObjectKey("s1", "entity", "cert.png", time.Unix(1700000000, 0))
	obj, err := st.Put(ctx, key, "image/png", bytes.NewReader([]byte("png-bytes")))
	require.NoError(t, err)
	assert.Equal(t, int64(9), obj.Size)

	rc, err := st.Get(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(got))

	require.NoError(t, st.Delete(ctx, key))
	require.NoError(t, st.Delete(ctx, key))
	_, err = st.Get(ctx, key)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// empty session directories are pruned, the base stays
	_, err = os.Stat(filepath.Join(dir, "sessions"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = st.Put(context.Background(), "../escape", "text/plain", bytes.NewReader(nil))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = st.Get(context.Background(), "/etc/passwd")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestObjectKeySanitizes(t *testing.T) {
	at := time.Unix(42, 0)
	assert.Equal(t, "sessions/s/officer_o1/42_my_scan_.pdf", ObjectKey("s", "officer:o1", "../../my scan!.pdf", at))
	assert.Equal(t, "sessions/s/entity/42_document", ObjectKey("s", "entity", "", at))
}

func TestNewSelectsBackend(t *testing.T) {
	st, err := New(context.Background(), Config{Type: TypeNone})
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = New(context.Background(), Config{Type: TypeLocal, LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, st)

	_, err = New(context.Background(), Config{Type: "s3"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Type: TypeGCS})
	assert.Error(t, err)
}
