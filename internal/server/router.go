// Package server exposes the intake pipeline over HTTP (gin) and gRPC.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/backend"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/export"
	"github.com/joseph-ayodele/merchant-intake/internal/intake"
	"github.com/joseph-ayodele/merchant-intake/internal/metrics"
	"github.com/joseph-ayodele/merchant-intake/internal/pipeline"
	"github.com/joseph-ayodele/merchant-intake/internal/repository"
)

const headerRequestID = "X-Request-ID"

// AdminBackend is the subset of backend actions behind the admin routes.
type AdminBackend interface {
	GetAllMerchants(ctx context.Context) ([]backend.Merchant, error)
	GetMerchantFull(ctx context.Context, merchantID string) (*backend.MerchantFull, error)
	SetMerchantStatus(ctx context.Context, merchantID string, status constants.MerchantStatus) error
	UpdateOfficer(ctx context.Context, officerID string, fields map[string]string) error
	UpdateAnswers(ctx context.Context, responseID string, answers map[string]any) error
	LogAudit(ctx context.Context, entry backend.AuditEntry) error
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps are the collaborators of the HTTP surface. Runs, Admin, Export,
// Metrics and Health may be nil.
type Deps struct {
	Store          *intake.Store
	Workflow       *intake.Workflow
	Processor      *pipeline.Processor
	Runs           repository.RunRepository
	Admin          AdminBackend
	Export         *export.Service
	Metrics        *metrics.Metrics
	Health         HealthChecker
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type handler struct {
	Deps
	logger *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 20 << 20
	}
	if d.Export == nil && d.Admin != nil {
		d.Export = export.NewService(d.Admin, logger)
	}
	h := &handler{Deps: d, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestContext())
	if d.Metrics != nil {
		r.Use(d.Metrics.GinMiddleware())
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.GET("/healthz", h.healthz)

	api := r.Group("/api/v1")

	sessions := api.Group("/sessions")
	sessions.POST("", h.createSession)
	sessions.GET("/:id", h.getSession)
	sessions.PATCH("/:id/entity", h.patchEntity)
	sessions.POST("/:id/entity/documents", h.uploadEntityDocument)
	sessions.POST("/:id/entity/save", h.saveEntity)
	sessions.POST("/:id/officers", h.addOfficer)
	sessions.PATCH("/:id/officers/:officerID", h.patchOfficer)
	sessions.DELETE("/:id/officers/:officerID", h.removeOfficer)
	sessions.POST("/:id/officers/:officerID/documents", h.uploadOfficerDocument)
	sessions.GET("/:id/suggestions", h.suggestions)
	sessions.GET("/:id/extractions", h.extractions)
	sessions.POST("/:id/submit", h.submit)

	admin := api.Group("/admin")
	admin.GET("/merchants", h.listMerchants)
	admin.GET("/merchants/export.xlsx", h.exportMerchants)
	admin.GET("/merchants/:merchantID", h.getMerchant)
	admin.POST("/merchants/:merchantID/status", h.setMerchantStatus)
	admin.PUT("/officers/:officerID", h.updateOfficer)
	admin.PUT("/answers/:responseID", h.updateAnswers)

	return r
}

// requestContext tags the request with an id and a request-scoped logger.
func (h *handler) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)

		ctx := common.WithRequestID(c.Request.Context(), reqID)
		log := h.logger.With("req_id", reqID)
		if id := c.Param("id"); id != "" {
			ctx = common.WithSessionID(ctx, id)
			log = log.With("session_id", id)
		}
		c.Request = c.Request.WithContext(common.WithLogger(ctx, log))

		start := time.Now()
		c.Next()
		log.Debug("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds())
	}
}

func (h *handler) healthz(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
