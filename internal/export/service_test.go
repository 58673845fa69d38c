package export

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/backend"
)

type stubLister struct {
	merchants []backend.Merchant
	err       error
}

func (s stubLister) GetAllMerchants(context.Context) ([]backend.Merchant, error) {
	return s.merchants, s.err
}

func readRows(t *testing.T, b []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(merchantSheet)
	require.NoError(t, err)
	return rows
}

func TestExportFiltersByStatus(t *testing.T) {
	svc := NewService(stubLister{merchants: []backend.Merchant{
		{MerchantID: "M-1", CompanyName: "ACME LTD", RegistrationNumber: "HE274180", Status: "Pending Review"},
		{MerchantID: "M-2", CompanyName: "GLOBEX INC", Status: "Approved"},
	}}, nil)

	b, err := svc.ExportMerchantsXLSX(context.Background(), constants.MerchantApproved)
	require.NoError(t, err)
	rows := readRows(t, b)
	require.Len(t, rows, 2)
	assert.Equal(t, merchantHeaders, rows[0])
	assert.Equal(t, "M-2", rows[1][0])
	assert.Equal(t, "GLOBEX INC", rows[1][1])

	b, err = svc.ExportMerchantsXLSX(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, readRows(t, b), 3)
}

func TestExportPropagatesBackendError(t *testing.T) {
	svc := NewService(stubLister{err: errors.New("backend down")}, nil)
	_, err := svc.ExportMerchantsXLSX(context.Background(), "")
	assert.ErrorContains(t, err, "backend down")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "é", truncate("éé", 1))
}
