package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/erp/labeldesk/internal/application/enrichment"
	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/erp/labeldesk/internal/infrastructure/export"
	"github.com/erp/labeldesk/internal/interfaces/http/dto"
	"github.com/erp/labeldesk/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// MaterialDocumentService is the enrichment surface the handler needs.
type MaterialDocumentService interface {
	ResolveDetails(ctx context.Context, in grn.ReferenceInput) (*enrichment.DetailsResult, error)
	ListDocuments(ctx context.Context, top int) ([]grn.Record, error)
	ListItems(ctx context.Context, top int) ([]grn.Record, error)
}

var _ MaterialDocumentService = (*enrichment.Service)(nil)

// MaterialDocumentHandler serves the goods-receipt endpoints
type MaterialDocumentHandler struct {
	BaseHandler
	service MaterialDocumentService
	timeout time.Duration
	now     func() time.Time
}

// NewMaterialDocumentHandler creates the handler. Enrichment runs detached
// from the client connection and is bounded by timeout.
func NewMaterialDocumentHandler(service MaterialDocumentService, timeout time.Duration) *MaterialDocumentHandler {
	return &MaterialDocumentHandler{
		service: service,
		timeout: timeout,
		now:     time.Now,
	}
}

// GetDetails godoc
// @Summary      Enrich goods-receipt lines for label printing
// @Tags         material-documents
// @Accept       json
// @Produce      json
// @Param        request body dto.DetailsRequest true "References"
// @Success      200 {object} dto.DetailsResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      502 {object} dto.ErrorResponse
// @Router       /material-documents/details [post]
func (h *MaterialDocumentHandler) GetDetails(c *gin.Context) {
	req, result, ok := h.resolve(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.NewDetailsResponse(result.Records, result.Timings, req.Debug))
}

// ExportDetails godoc
// @Summary      Enrich goods-receipt lines and download them as a workbook
// @Tags         material-documents
// @Accept       json
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        request body dto.DetailsRequest true "References"
// @Success      200 {file} binary
// @Router       /material-documents/details/export [post]
func (h *MaterialDocumentHandler) ExportDetails(c *gin.Context) {
	_, result, ok := h.resolve(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, result.Records); err != nil {
		h.HandleError(c, grn.NewFatalAggregationError(err))
		return
	}

	filename := fmt.Sprintf("grn-labels-%s.xlsx", h.now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// ListDocuments godoc
// @Summary      List material document headers, newest first
// @Tags         material-documents
// @Produce      json
// @Param        top query int false "Maximum rows"
// @Success      200 {object} dto.ListResponse
// @Failure      502 {object} dto.ErrorResponse
// @Router       /material-documents [get]
func (h *MaterialDocumentHandler) ListDocuments(c *gin.Context) {
	h.list(c, "Material Documents fetched successfully", h.service.ListDocuments)
}

// ListItems godoc
// @Summary      List material document items, newest document first
// @Tags         material-documents
// @Produce      json
// @Param        top query int false "Maximum rows"
// @Success      200 {object} dto.ListResponse
// @Failure      502 {object} dto.ErrorResponse
// @Router       /material-documents/items [get]
func (h *MaterialDocumentHandler) ListItems(c *gin.Context) {
	h.list(c, "Material Document Items fetched successfully", h.service.ListItems)
}

func (h *MaterialDocumentHandler) resolve(c *gin.Context) (dto.DetailsRequest, *enrichment.DetailsResult, bool) {
	var req dto.DetailsRequest
	if !middleware.BindJSON(c, &req) {
		return req, nil, false
	}

	ctx, cancel := h.detached(c)
	defer cancel()

	result, err := h.service.ResolveDetails(ctx, req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return req, nil, false
	}
	return req, result, true
}

func (h *MaterialDocumentHandler) list(c *gin.Context, message string, fetch func(context.Context, int) ([]grn.Record, error)) {
	var q dto.ListQuery
	if !middleware.BindQuery(c, &q) {
		return
	}

	ctx, cancel := h.detached(c)
	defer cancel()

	// zero lets the service apply its configured default
	rows, err := fetch(ctx, q.Top)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(message, rows, h.now()))
}

// detached keeps request values (logger, span) but not the client's cancellation.
func (h *MaterialDocumentHandler) detached(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(c.Request.Context())
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}
