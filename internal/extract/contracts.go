// Package extract holds the two extraction engines and their shared result
// type. Engines absorb every failure into Result.Error; they never return one.
package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/ocr"
)

type EngineKind string

const (
	EngineLocal  EngineKind = "local"
	EngineRemote EngineKind = "remote"
)

// Document is one uploaded file and the category the user picked for it.
type Document struct {
	Bytes    []byte
	FileName string
	MimeType string
	Category constants.DocumentCategory
	// MerchantID and FolderID are forwarded so the backend files the upload
	// under the right merchant when they are known.
	MerchantID string
	FolderID   string
}

// Result is one engine's output for one upload. It is never mutated after the
// engine returns it.
type Result struct {
	Engine   EngineKind            `json:"engine"`
	Fields   map[string]FieldValue `json:"fields"`
	RawText  string                `json:"raw_text,omitempty"`
	Error    string                `json:"error,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
	// Words are OCR word boxes; nothing downstream reads them yet.
	Words []ocr.Word `json:"words,omitempty"`
	// FileID and FileURL are set by the remote engine when the backend stored the file.
	FileID   string        `json:"file_id,omitempty"`
	FileURL  string        `json:"file_url,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports a degraded result.
func (r Result) Failed() bool { return r.Error != "" }

// Productive reports whether the engine produced at least one non-empty field.
func (r Result) Productive() bool {
	for _, v := range r.Fields {
		if !v.IsEmpty() {
			return true
		}
	}
	return false
}

// Engine runs one extraction strategy over a document.
type Engine interface {
	Kind() EngineKind
	Run(ctx context.Context, doc Document) Result
}

func degraded(kind EngineKind, start time.Time, msg string, warnings ...string) Result {
	return Result{
		Engine:   kind,
		Fields:   map[string]FieldValue{},
		Error:    msg,
		Warnings: warnings,
		Duration: time.Since(start),
	}
}
