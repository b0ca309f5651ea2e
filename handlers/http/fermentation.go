package httpHandler

import (
	"mime"
	"net/http"

	"cacao-server/reports"
	"cacao-server/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultExportRows = 500
)

type FermentationHandler struct {
	fermentations *usecases.FermentationUseCase
	snapshots     *usecases.SnapshotUseCase
	log           *zap.Logger
}

func NewFermentationHandler(fermentations *usecases.FermentationUseCase, snapshots *usecases.SnapshotUseCase, log *zap.Logger) *FermentationHandler {
	return &FermentationHandler{
		fermentations: fermentations,
		snapshots:     snapshots,
		log:           log,
	}
}

// CreateFermentation handles POST /api/fermentations
func (h *FermentationHandler) CreateFermentation(c *gin.Context) {
	var in usecases.FermentationInput
	if !bindJSON(c, &in) {
		return
	}

	f, err := h.fermentations.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Fermentation created successfully",
		"data":    f,
	})
}

// GetFermentation handles GET /api/fermentations/:id
func (h *FermentationHandler) GetFermentation(c *gin.Context) {
	f, err := h.fermentations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": f})
}

// GetAllFermentations handles GET /api/fermentations
func (h *FermentationHandler) GetAllFermentations(c *gin.Context) {
	fermentations, err := h.fermentations.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	list(c, fermentations)
}

// GetSummary handles GET /api/fermentations/summary
func (h *FermentationHandler) GetSummary(c *gin.Context) {
	summary, err := h.fermentations.Summary(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	list(c, summary)
}

// UpdateFermentation handles PUT /api/fermentations/:id
func (h *FermentationHandler) UpdateFermentation(c *gin.Context) {
	var in usecases.FermentationInput
	if !bindJSON(c, &in) {
		return
	}

	f, err := h.fermentations.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Fermentation updated successfully",
		"data":    f,
	})
}

// UpdateStatus handles PUT /api/fermentations/:id/status. With no body the
// fermentation is reopened.
func (h *FermentationHandler) UpdateStatus(c *gin.Context) {
	var in usecases.StatusInput
	if !bindOptionalJSON(c, &in) {
		return
	}

	f, err := h.fermentations.Transition(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Fermentation status updated successfully",
		"data":    f,
	})
}

// DeleteFermentation handles DELETE /api/fermentations/:id
func (h *FermentationHandler) DeleteFermentation(c *gin.Context) {
	if err := h.fermentations.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLatestSnapshot handles GET /api/fermentations/:id/measurements/latest
func (h *FermentationHandler) GetLatestSnapshot(c *gin.Context) {
	snapshot, err := h.snapshots.Latest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

// GetSnapshots handles GET /api/fermentations/:id/measurements?limit=N
func (h *FermentationHandler) GetSnapshots(c *gin.Context) {
	limit, ok := queryInt(c, "limit", usecases.DefaultSnapshotCount)
	if !ok {
		return
	}

	snapshots, err := h.snapshots.LatestN(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	list(c, snapshots)
}

// ExportSnapshots handles GET /api/fermentations/:id/export?limit=N and
// streams the snapshots as an xlsx workbook.
func (h *FermentationHandler) ExportSnapshots(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultExportRows)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	f, err := h.fermentations.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	snapshots, err := h.snapshots.LatestN(ctx, f.ID, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	body, err := reports.SnapshotWorkbook(f.Title, snapshots)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": "fermentation-" + f.Title + ".xlsx",
	}))
	c.Data(http.StatusOK, reports.ContentType, body)
}
