package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/extract"
	"github.com/joseph-ayodele/merchant-intake/internal/intake"
)

// uploadRequest is the JSON form of an upload, matching the backend's
// ANALYZE_DOCUMENT payload.
type uploadRequest struct {
	FileBase64  string `json:"fileBase64"`
	FileName    string `json:"fileName"`
	MimeType    string `json:"mimeType"`
	DocCategory string `json:"docCategory"`
}

func (h *handler) uploadEntityDocument(c *gin.Context) {
	h.upload(c, intake.EntityTarget())
}

func (h *handler) uploadOfficerDocument(c *gin.Context) {
	h.upload(c, intake.OfficerTarget(c.Param("officerID")))
}

func (h *handler) upload(c *gin.Context, t intake.Target) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	doc, err := readDocument(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{Error: "upload too large", Code: "TOO_LARGE"})
			return
		}
		h.abortWithError(c, err)
		return
	}

	res, err := h.Processor.Upload(c.Request.Context(), c.Param("id"), t, doc)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func readDocument(c *gin.Context) (extract.Document, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return readMultipart(c)
	}
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return extract.Document{}, err
		}
		return extract.Document{}, fmt.Errorf("decode body: %v: %w", err, common.ErrInvalidInput)
	}
	category, err := parseCategory(req.DocCategory)
	if err != nil {
		return extract.Document{}, err
	}
	data, err := DecodeBase64(req.FileBase64)
	if err != nil {
		return extract.Document{}, err
	}
	return extract.Document{
		Bytes:    data,
		FileName: req.FileName,
		MimeType: req.MimeType,
		Category: category,
	}, nil
}

func readMultipart(c *gin.Context) (extract.Document, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return extract.Document{}, err
		}
		return extract.Document{}, fmt.Errorf("file is required: %w", common.ErrInvalidInput)
	}
	category, err := parseCategory(c.PostForm("category"))
	if err != nil {
		return extract.Document{}, err
	}
	f, err := fh.Open()
	if err != nil {
		return extract.Document{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return extract.Document{}, fmt.Errorf("read upload: %w", err)
	}
	return extract.Document{
		Bytes:    data,
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Category: category,
	}, nil
}

func parseCategory(s string) (constants.DocumentCategory, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("category is required: %w", common.ErrInvalidInput)
	}
	category, ok := constants.ParseCategory(s)
	if !ok {
		return "", fmt.Errorf("unknown document category %q: %w", s, common.ErrInvalidInput)
	}
	return category, nil
}

// DecodeBase64 accepts raw base64 or a data URL and returns the bytes.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if s == "" {
		return nil, fmt.Errorf("fileBase64 is required: %w", common.ErrInvalidInput)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("fileBase64 is not valid base64: %w", common.ErrInvalidInput)
		}
	}
	return data, nil
}
