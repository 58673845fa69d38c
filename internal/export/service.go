package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/backend"
)

// MerchantLister is the backend call the export needs.
type MerchantLister interface {
	GetAllMerchants(ctx context.Context) ([]backend.Merchant, error)
}

// Service produces XLSX bytes for admin review.
type Service struct {
	merchants MerchantLister
	logger    *slog.Logger
}

func NewService(merchants MerchantLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{merchants: merchants, logger: logger}
}

// ExportMerchantsXLSX fetches all merchants, keeps those with status (all
// when status is empty) and renders them.
func (s *Service) ExportMerchantsXLSX(ctx context.Context, status constants.MerchantStatus) ([]byte, error) {
	start := time.Now()
	all, err := s.merchants.GetAllMerchants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	rows := backend.FilterByStatus(all, status)

	out, err := MerchantsXLSX(rows)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"status", status,
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

var merchantHeaders = []string{
	"Merchant ID",
	"Company Name",
	"Registration Number",
	"Incorporation Date",
	"Country",
	"Registered Address",
	"Operational Address",
	"Status",
	"Created At",
}

const merchantSheet = "Merchants"

// MerchantsXLSX renders one row per merchant under a header row.
func MerchantsXLSX(merchants []backend.Merchant) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if index, _ := f.GetSheetIndex(merchantSheet); index == -1 {
		if _, err := f.NewSheet(merchantSheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(merchantSheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range merchantHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(merchantSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(merchantSheet, 1, 1, style)
	}

	for i, m := range merchants {
		row := i + 2
		values := []string{
			m.MerchantID.String(),
			m.CompanyName.String(),
			m.RegistrationNumber.String(),
			m.IncorporationDate.String(),
			m.Country.String(),
			m.RegisteredAddress.String(),
			m.OperationalAddress.String(),
			m.Status.String(),
			m.CreatedAt.String(),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(merchantSheet, cell, truncate(v, 250))
		}
	}

	_ = f.SetColWidth(merchantSheet, "A", "A", 20)
	_ = f.SetColWidth(merchantSheet, "B", "B", 32)
	_ = f.SetColWidth(merchantSheet, "C", "E", 18)
	_ = f.SetColWidth(merchantSheet, "F", "G", 48)
	_ = f.SetColWidth(merchantSheet, "H", "I", 18)
	_ = f.SetPanes(merchantSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
