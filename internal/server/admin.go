package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/backend"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/intake"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func parseStatus(s string) (constants.MerchantStatus, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, st := range []constants.MerchantStatus{constants.MerchantPendingReview, constants.MerchantApproved, constants.MerchantRejected} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q: %w", s, common.ErrInvalidInput)
}

func (h *handler) requireAdmin(c *gin.Context) bool {
	if h.Admin == nil {
		h.abortWithError(c, backend.ErrNotConfigured)
		return false
	}
	return true
}

func (h *handler) listMerchants(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	status, err := parseStatus(c.Query("status"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	all, err := h.Admin.GetAllMerchants(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	merchants := backend.FilterByStatus(all, status)
	c.JSON(http.StatusOK, gin.H{"merchants": merchants, "count": len(merchants)})
}

func (h *handler) exportMerchants(c *gin.Context) {
	if h.Export == nil {
		h.abortWithError(c, backend.ErrNotConfigured)
		return
	}
	status, err := parseStatus(c.Query("status"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	b, err := h.Export.ExportMerchantsXLSX(c.Request.Context(), status)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	name := fmt.Sprintf("merchants_%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, b)
}

func (h *handler) getMerchant(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	full, err := h.Admin.GetMerchantFull(c.Request.Context(), c.Param("merchantID"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, full)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *handler) setMerchantStatus(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithError(c, fmt.Errorf("decode body: %v: %w", err, common.ErrInvalidInput))
		return
	}
	status, err := parseStatus(req.Status)
	if err == nil && status == "" {
		err = fmt.Errorf("status is required: %w", common.ErrInvalidInput)
	}
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	merchantID := c.Param("merchantID")
	if err := h.Admin.SetMerchantStatus(ctx, merchantID, status); err != nil {
		h.abortWithError(c, err)
		return
	}
	entry := backend.AuditEntry{
		UserAction:       intake.AuditUpdateStatus,
		TargetMerchantID: merchantID,
		Details:          fmt.Sprintf("Status set to %s", status),
	}
	if err := h.Admin.LogAudit(ctx, entry); err != nil {
		common.LoggerFromContext(ctx, h.logger).Warn("admin.status.audit_failed", "merchant_id", merchantID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"merchant_id": merchantID, "status": status})
}

func (h *handler) updateOfficer(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	fields, err := bindFields(c, constants.KindOfficer)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	officerID := c.Param("officerID")
	if err := h.Admin.UpdateOfficer(c.Request.Context(), officerID, fields); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"officer_id": officerID, "updated": len(fields)})
}

type answersRequest struct {
	Answers map[string]any `json:"answers"`
}

func (h *handler) updateAnswers(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithError(c, fmt.Errorf("decode body: %v: %w", err, common.ErrInvalidInput))
		return
	}
	if len(req.Answers) == 0 {
		h.abortWithError(c, fmt.Errorf("answers is required: %w", common.ErrInvalidInput))
		return
	}
	responseID := c.Param("responseID")
	if err := h.Admin.UpdateAnswers(c.Request.Context(), responseID, req.Answers); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response_id": responseID, "updated": len(req.Answers)})
}
