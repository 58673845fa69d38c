package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/bootstrap"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/export"
)

func main() {
	var (
		out     = flag.String("out", "merchants.xlsx", "output XLSX file path")
		status  = flag.String("status", "", `only merchants with this status ("Pending Review", "Approved", "Rejected")`)
		timeout = flag.Duration("timeout", time.Minute, "overall deadline")
	)
	flag.Parse()

	st := constants.MerchantStatus(strings.TrimSpace(*status))
	if st != "" && !st.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown status %q\n", *status)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	logger := common.NewLogger("export-merchants", cfg.Log.Format, cfg.Log.Level)

	client, err := bootstrap.NewBackendClient(cfg, logger)
	if err != nil || client == nil {
		fmt.Fprintln(os.Stderr, "Error: BACKEND_URL and BACKEND_AUTH_TOKEN are required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	b, err := export.NewService(client, logger).ExportMerchantsXLSX(ctx, st)
	if err != nil {
		logger.Error("export.failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		logger.Error("export.write_failed", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Info("export.written", "path", *out, "bytes", len(b))
}
