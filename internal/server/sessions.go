package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/intake"
	"github.com/joseph-ayodele/merchant-intake/internal/pipeline"
	"github.com/joseph-ayodele/merchant-intake/internal/repository"
)

type fieldsRequest struct {
	Fields map[string]string `json:"fields"`
}

type sessionResponse struct {
	intake.Session
	Suggestions pipeline.Suggestions `json:"suggestions"`
}

func (h *handler) respondSession(c *gin.Context, status int, s intake.Session) {
	c.JSON(status, sessionResponse{Session: s, Suggestions: pipeline.Suggest(s)})
}

func (h *handler) createSession(c *gin.Context) {
	s := h.Store.NewSession()
	common.LoggerFromContext(c.Request.Context(), h.logger).Info("intake.session.created", "session_id", s.ID)
	h.respondSession(c, http.StatusCreated, s)
}

func (h *handler) getSession(c *gin.Context) {
	s, err := h.Store.Get(c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.respondSession(c, http.StatusOK, s)
}

// bindFields reads {"fields":{...}} and rejects unknown names before any
// edit is applied, so a bad request changes nothing.
func bindFields(c *gin.Context, kind constants.RecordKind) (map[string]string, error) {
	var req fieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("decode body: %v: %w", err, common.ErrInvalidInput)
	}
	if len(req.Fields) == 0 {
		return nil, fmt.Errorf("fields is required: %w", common.ErrInvalidInput)
	}
	for name := range req.Fields {
		if !constants.IsKnownField(kind, name) {
			return nil, fmt.Errorf("unknown %s field %q: %w", kind, name, common.ErrInvalidInput)
		}
	}
	return req.Fields, nil
}

func (h *handler) patchRecord(c *gin.Context, t intake.Target) {
	fields, err := bindFields(c, t.Kind)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	id := c.Param("id")
	var s intake.Session
	for name, value := range fields {
		if s, err = h.Store.SetField(id, t, name, value); err != nil {
			h.abortWithError(c, err)
			return
		}
	}
	h.respondSession(c, http.StatusOK, s)
}

func (h *handler) patchEntity(c *gin.Context) {
	h.patchRecord(c, intake.EntityTarget())
}

func (h *handler) patchOfficer(c *gin.Context) {
	h.patchRecord(c, intake.OfficerTarget(c.Param("officerID")))
}

func (h *handler) addOfficer(c *gin.Context) {
	o, err := h.Store.AddOfficer(c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *handler) removeOfficer(c *gin.Context) {
	s, err := h.Store.RemoveOfficer(c.Param("id"), c.Param("officerID"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.respondSession(c, http.StatusOK, s)
}

func (h *handler) saveEntity(c *gin.Context) {
	s, err := h.Workflow.SaveEntity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.respondSession(c, http.StatusOK, s)
}

func (h *handler) submit(c *gin.Context) {
	s, err := h.Workflow.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.respondSession(c, http.StatusOK, s)
}

func (h *handler) suggestions(c *gin.Context) {
	sg, err := h.Processor.Suggest(c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sg)
}

func (h *handler) extractions(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Store.Get(id); err != nil {
		h.abortWithError(c, err)
		return
	}
	runs := []repository.Run{}
	if h.Runs != nil {
		list, err := h.Runs.ListBySession(c.Request.Context(), id)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		runs = append(runs, list...)
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "runs": runs})
}
