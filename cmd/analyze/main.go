package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/bootstrap"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/extract"
	"github.com/joseph-ayodele/merchant-intake/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		file      = flag.String("file", "", "document to analyze")
		dir       = flag.String("dir", "", "analyze every supported file under this directory instead of --file")
		category  = flag.String("category", "", "document category, e.g. CERT_INC or passport (required)")
		mime      = flag.String("mime", "", "MIME type; detected from the file when empty")
		watch     = flag.Bool("watch", false, "with --dir, keep running and analyze files as they are added")
		localOnly = flag.Bool("local-only", false, "skip the backend even when BACKEND_URL is set")
		timeout   = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	if (*file == "") == (*dir == "") || *category == "" || (*watch && *dir == "") {
		printError("Error: --category and exactly one of --file or --dir are required\n")
		flag.Usage()
		os.Exit(2)
	}
	cat, ok := constants.ParseCategory(*category)
	if !ok {
		printError("Error: unknown category %q (want one of %s)\n", *category, strings.Join(constants.AllCategoriesAsStrings(), ", "))
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	// logs go to stderr so stdout stays valid JSON
	logger := common.NewLoggerTo(os.Stderr, "analyze", cfg.Log.Format, cfg.Log.Level)
	if *localOnly {
		cfg.Backend.URL = ""
	}

	client, err := bootstrap.NewBackendClient(cfg, logger)
	if err != nil {
		printError("Error: backend client: %v\n", err)
		os.Exit(1)
	}
	analyzer, err := bootstrap.NewAnalyzer(cfg, client, nil, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	if *watch {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		results, err := ingest.WatchDirectory(ctx, analyzer, *dir, cat, ingest.WatchOptions{
			SkipHidden:  true,
			MaxBytes:    cfg.Server.MaxUploadBytes,
			InitialScan: true,
		}, logger)
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		// one JSON object per line
		lines := json.NewEncoder(os.Stdout)
		for r := range results {
			if err := lines.Encode(r); err != nil {
				printError("Error: encode: %v\n", err)
			}
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *dir != "" {
		results, stats, err := ingest.AnalyzeDirectory(ctx, analyzer, *dir, cat, ingest.DirOptions{SkipHidden: true, MaxBytes: cfg.Server.MaxUploadBytes}, logger)
		if encErr := enc.Encode(map[string]any{"results": results, "stats": stats}); encErr != nil {
			printError("Error: encode: %v\n", encErr)
		}
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		printError("Error: read %s: %v\n", *file, err)
		os.Exit(1)
	}
	res := analyzer.Analyze(ctx, extract.Document{
		Bytes:    data,
		FileName: filepath.Base(*file),
		MimeType: *mime,
		Category: cat,
	}, nil)
	if err := enc.Encode(res); err != nil {
		printError("Error: encode: %v\n", err)
		os.Exit(1)
	}
	if res.Outcome == constants.RunFailed {
		os.Exit(3)
	}
}
