package constants

import (
	"mime"
	"net/http"
	"strings"
)

// Source formats understood by the OCR extractor.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

const MimePDF = "application/pdf"

// AllowedMimeTypes maps accepted upload MIME types to their canonical extension.
var AllowedMimeTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/tiff": "tiff",
	"image/bmp":  "bmp",
	"image/heic": "heic",
	"image/heif": "heif",
	MimePDF:      "pdf",
}

var extToMime = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"bmp":  "image/bmp",
	"heic": "image/heic",
	"heif": "image/heif",
	"pdf":  MimePDF,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns PDF, IMAGE or "" for an extension.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "png", "jpg", "jpeg", "webp", "tif", "tiff", "bmp", "heic", "heif":
		return IMAGE
	default:
		return ""
	}
}

// NormalizeMime strips parameters and lowercases a content type.
func NormalizeMime(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	if mt == "image/jpg" {
		return "image/jpeg"
	}
	return mt
}

// ResolveMime picks the declared type when acceptable, then the file
// extension, then content sniffing.
func ResolveMime(declared, fileName string, data []byte) string {
	if mt := NormalizeMime(declared); mt != "" {
		if _, ok := AllowedMimeTypes[mt]; ok {
			return mt
		}
	}
	if i := strings.LastIndexByte(fileName, '.'); i >= 0 {
		if mt, ok := extToMime[NormalizeExt(fileName[i:])]; ok {
			return mt
		}
	}
	if len(data) > 0 {
		return NormalizeMime(http.DetectContentType(data))
	}
	return NormalizeMime(declared)
}

// IsAllowedMime reports whether the engines accept this content type.
func IsAllowedMime(mt string) bool {
	_, ok := AllowedMimeTypes[NormalizeMime(mt)]
	return ok
}

// ExtForMime returns the canonical extension without the dot, or "".
func ExtForMime(mt string) string {
	return AllowedMimeTypes[NormalizeMime(mt)]
}
