package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/tallybridge/internal/ingest"
	"github.com/roach88/tallybridge/internal/model"
)

type backendHandlers struct {
	svc    *ingest.Service
	logger *slog.Logger
}

type uploadForm struct {
	ClientID    string `form:"client_id" binding:"required"`
	DataType    string `form:"data_type"`
	CompanyName string `form:"company_name"`
	Payload     string `form:"payload"`
}

type registerRequest struct {
	ClientID    string `json:"client_id" binding:"required"`
	CompanyName string `json:"company_name"`
}

type registerResponse struct {
	ClientID    string `json:"client_id"`
	CompanyName string `json:"company_name"`
	Token       string `json:"token"`
}

func (h *backendHandlers) uploadVoucher(c *gin.Context) {
	caller, _ := GetCaller(c)

	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.svc.Upload(c.Request.Context(), caller, ingest.UploadRequest{
		ClientID:    form.ClientID,
		DataType:    model.DataType(form.DataType),
		CompanyName: form.CompanyName,
		Payload:     form.Payload,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *backendHandlers) listTasks(c *gin.Context) {
	caller, _ := GetCaller(c)

	tasks, err := h.svc.PendingTasks(c.Request.Context(), caller)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *backendHandlers) syncStatus(c *gin.Context) {
	caller, _ := GetCaller(c)

	var report ingest.SyncReport
	if err := c.ShouldBindJSON(&report); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.ReportSync(c.Request.Context(), caller, report); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *backendHandlers) registerClient(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	client, err := h.svc.Register(c.Request.Context(), req.ClientID, req.CompanyName)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, registerResponse{
		ClientID:    client.ClientID,
		CompanyName: client.CompanyName,
		Token:       client.Token,
	})
}

func (h *backendHandlers) dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type edgeHandlers struct {
	front  Deliverer
	logger *slog.Logger
}

func (h *edgeHandlers) deliver(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		badRequest(c, err)
		return
	}
	if len(body) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "empty payload"})
		return
	}

	kind := c.DefaultQuery("kind", model.DefaultKind)
	outcome, err := h.front.DeliverOrQueue(c.Request.Context(), string(body), kind)
	if err != nil {
		h.logger.Error("deliver failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, outcome)
}
