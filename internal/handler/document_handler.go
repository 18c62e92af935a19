package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/middleware"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
	"github.com/noah-isme/admissions-api/pkg/response"
)

type documentReviewService interface {
	UpdateStatus(ctx context.Context, id string, req dto.UpdateDocumentStatusRequest, actor string) (*dto.DocumentReviewResult, error)
	BulkVerify(ctx context.Context, req dto.BulkVerifyRequest, actor string) (*dto.BulkResult, error)
}

// DocumentHandler exposes document review endpoints.
type DocumentHandler struct {
	documents documentReviewService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents documentReviewService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// UpdateStatus godoc
// @Summary Review a document
// @Description Verifying the last open document runs the verification gate. Pipeline problems are reported in meta.warnings.
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateDocumentStatusRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/status [patch]
func (h *DocumentHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateDocumentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document status payload"))
		return
	}
	result, err := h.documents.UpdateStatus(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.AddWarnings(c, result.Warnings...)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// BulkVerify godoc
// @Summary Verify several documents
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body dto.BulkVerifyRequest true "Document IDs"
// @Success 200 {object} response.Envelope
// @Router /documents/bulk-verify [post]
func (h *DocumentHandler) BulkVerify(c *gin.Context) {
	var req dto.BulkVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk verify payload"))
		return
	}
	report, err := h.documents.BulkVerify(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
