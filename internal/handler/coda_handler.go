package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cedeva-recon/internal/parser"
	"cedeva-recon/internal/repository"
	"cedeva-recon/internal/service"
	"cedeva-recon/pkg/logger"
	"cedeva-recon/pkg/response"
)

type CodaHandler struct {
	imports service.ImportService
	recon   service.ReconciliationService
}

func NewCodaHandler(imports service.ImportService, recon service.ReconciliationService) *CodaHandler {
	return &CodaHandler{imports: imports, recon: recon}
}

// ImportCoda godoc
// @Summary Import a CODA statement file
// @Description Parse a Belgian CODA 2.3 bank statement and persist it as a new import batch
// @Tags coda
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CODA file"
// @Param organisation_id formData int true "Organisation ID"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/coda/import [post]
func (h *CodaHandler) ImportCoda(c *gin.Context) {
	organisationID, err := strconv.Atoi(c.PostForm("organisation_id"))
	if err != nil || organisationID <= 0 {
		response.BadRequest(c, "Invalid organisation_id", "organisation_id must be a positive integer")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "Missing CODA file", "Upload the statement under the 'file' field")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to open uploaded file")
		response.InternalError(c, "Failed to read uploaded file", err.Error())
		return
	}
	defer file.Close()

	statement, err := h.imports.ParseFile(file, fileHeader.Filename)
	if err != nil {
		var malformed *parser.MalformedLineError
		var invalid *parser.InvalidFileFormatError
		if errors.As(err, &malformed) || errors.As(err, &invalid) {
			logger.GetLogger().WithError(err).WithField("file", fileHeader.Filename).Warn("Rejected CODA file")
			response.BadRequest(c, "Invalid CODA file", err.Error())
			return
		}
		logger.GetLogger().WithError(err).Error("Failed to parse CODA file")
		response.InternalError(c, "Failed to parse CODA file", err.Error())
		return
	}

	batchID, err := h.imports.ImportStatement(statement, organisationID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to import CODA statement")
		response.InternalError(c, "Failed to import CODA statement", err.Error())
		return
	}

	result := gin.H{
		"batch_id":          batchID,
		"transaction_count": len(statement.Transactions),
	}
	if len(statement.Warnings) > 0 {
		result["warnings"] = statement.Warnings
	}

	response.Success(c, http.StatusCreated, "CODA statement imported successfully", result)
}

// AutoReconcile godoc
// @Summary Auto-reconcile an import batch
// @Description Apply every unambiguous high-confidence match in the batch
// @Tags coda
// @Produce json
// @Param batch_id path string true "Import batch ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/coda/batches/{batch_id}/auto-reconcile [post]
func (h *CodaHandler) AutoReconcile(c *gin.Context) {
	batchID := c.Param("batch_id")

	reconciled, err := h.recon.AutoReconcile(batchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(c, "Import batch not found")
			return
		}
		logger.GetLogger().WithError(err).WithField("batch_id", batchID).Error("Auto-reconciliation failed")
		response.InternalError(c, "Auto-reconciliation failed", err.Error())
		return
	}

	response.Success(c, http.StatusOK, "Auto-reconciliation completed", gin.H{"reconciled_count": reconciled})
}
