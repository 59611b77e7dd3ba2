package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"approval-ledger/internal/export"
	"approval-ledger/internal/ledger"
	"approval-ledger/internal/middleware"
	"approval-ledger/internal/model"
	"approval-ledger/internal/service"
	"approval-ledger/pkg/pagination"
	"approval-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type DocumentHandler struct {
	documentService service.DocumentService
}

func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	documents := router.Group("/api/documents")
	documents.Use(middleware.RequireRole())
	{
		documents.GET("", h.ListDocuments)
		documents.GET("/counters", h.GetCounters)
		documents.GET("/export", h.ExportDocuments)
		documents.GET("/:id", h.GetDocument)
		documents.GET("/:id/print", h.GetPrintParams)
		documents.POST("", middleware.RequireRole(model.RoleRequester), h.SubmitDocument)
		documents.PUT("/:id/status", h.TransitionDocument)
		documents.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.DeleteDocument)
	}
}

// writeLedgerError maps ledger and service errors onto HTTP statuses
func writeLedgerError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrMalformedInput):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrIllegalTransition), errors.Is(err, ledger.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	}
	if status >= http.StatusInternalServerError {
		slog.Error("document request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, response.Error(status, err.Error()))
}

func stageQuery(c *gin.Context) (ledger.Stage, bool) {
	stage, err := ledger.ParseStage(c.Query("stage"))
	if err != nil {
		writeLedgerError(c, err)
		return "", false
	}
	return stage, true
}

// ListDocuments returns one page of a dashboard view, most recently submitted first
// @Summary      List documents
// @Description  Lists the documents surfaced by a stage dashboard
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        stage  query     string  false  "all, checked-queue, acknowledge-queue, approve-queue, receive-queue"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=service.DocumentPage}
// @Failure      400    {object}  response.Response
// @Failure      403    {object}  response.Response
// @Router       /api/documents [get]
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	stage, ok := stageQuery(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	page, err := h.documentService.List(c.Request.Context(), middleware.CurrentIdentity(c), stage, p.Page, p.Limit)
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, page))
}

// GetCounters returns the dashboard counters of a stage
// @Summary      Stage counters
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        stage  query     string  false  "Stage selector"
// @Success      200    {object}  response.Response{data=ledger.Counters}
// @Failure      400    {object}  response.Response
// @Router       /api/documents/counters [get]
func (h *DocumentHandler) GetCounters(c *gin.Context) {
	stage, ok := stageQuery(c)
	if !ok {
		return
	}

	counters, err := h.documentService.Counters(c.Request.Context(), middleware.CurrentIdentity(c), stage)
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, counters))
}

// GetDocument returns one document
// @Summary      Get document
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  response.Response{data=model.Document}
// @Failure      404  {object}  response.Response
// @Router       /api/documents/{id} [get]
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, err := h.documentService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, doc))
}

// GetPrintParams returns the query the printable form page is opened with
// @Summary      Print parameters
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  response.Response{data=object}
// @Failure      404  {object}  response.Response
// @Router       /api/documents/{id}/print [get]
func (h *DocumentHandler) GetPrintParams(c *gin.Context) {
	params, err := h.documentService.PrintParams(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	fields := make(map[string]string, len(params))
	for key := range params {
		fields[key] = params.Get(key)
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"query":  params.Encode(),
		"fields": fields,
	}))
}

// SubmitDocument files a new Draft request
// @Summary      Submit document
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SubmitDocumentRequest  true  "Request form"
// @Success      201      {object}  response.Response{data=model.Document}
// @Failure      400      {object}  response.Response
// @Router       /api/documents [post]
func (h *DocumentHandler) SubmitDocument(c *gin.Context) {
	var req service.SubmitDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	doc, err := h.documentService.Submit(c.Request.Context(), middleware.CurrentIdentity(c), req)
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, doc))
}

// TransitionDocument changes the status of a document
// @Summary      Change document status
// @Description  Moves a document to a new status. The caller's role must own the target status.
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Document ID"
// @Param        payload  body      service.TransitionRequest  true  "Status change"
// @Success      200      {object}  response.Response{data=model.Document}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/documents/{id}/status [put]
func (h *DocumentHandler) TransitionDocument(c *gin.Context) {
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	doc, err := h.documentService.Transition(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), req)
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, doc))
}

// DeleteDocument removes a document from every dashboard
// @Summary      Delete document
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/documents/{id} [delete]
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	if err := h.documentService.Delete(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id")); err != nil {
		writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Document deleted successfully"}))
}

// ExportDocuments downloads a stage view as xlsx or csv, or publishes it to S3
// @Summary      Export documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,text/csv,json
// @Param        stage    query     string  false  "Stage selector"
// @Param        format   query     string  false  "xlsx (default) or csv"
// @Param        columns  query     string  false  "Comma separated column names"
// @Param        publish  query     bool    false  "Upload the file and return its URL"
// @Success      200      {file}    file
// @Failure      400      {object}  response.Response
// @Router       /api/documents/export [get]
func (h *DocumentHandler) ExportDocuments(c *gin.Context) {
	stage, ok := stageQuery(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	columns, err := ledger.ParseColumns(c.Query("columns"))
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	publish, _ := strconv.ParseBool(c.DefaultQuery("publish", "false"))

	res, err := h.documentService.Export(c.Request.Context(), middleware.CurrentIdentity(c), service.ExportRequest{
		Stage:   stage,
		Format:  format,
		Columns: columns,
		Publish: publish,
	})
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	if publish {
		c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
			"file_name": res.FileName,
			"url":       res.URL,
		}))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	c.Data(http.StatusOK, res.ContentType, res.Data)
}
