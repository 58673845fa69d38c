package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

// AllowedExt reports whether the engines accept files with this extension.
func AllowedExt(ext string) bool {
	return constants.MapExtToFormat(ext) != ""
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && strings.HasPrefix(base, ".")
}
