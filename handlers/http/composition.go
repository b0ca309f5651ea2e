package httpHandler

import (
	"net/http"

	"cacao-server/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CompositionHandler serves the genotype ledger of a fermentation.
type CompositionHandler struct {
	useCase *usecases.CompositionUseCase
	log     *zap.Logger
}

func NewCompositionHandler(useCase *usecases.CompositionUseCase, log *zap.Logger) *CompositionHandler {
	return &CompositionHandler{useCase: useCase, log: log}
}

// GetGenotypes handles GET /api/fermentations/:id/genotypes
func (h *CompositionHandler) GetGenotypes(c *gin.Context) {
	comp, err := h.useCase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": comp})
}

// AttachGenotypes handles POST /api/fermentations/:id/genotypes
func (h *CompositionHandler) AttachGenotypes(c *gin.Context) {
	var in usecases.GenotypeItemsInput
	if !bindJSON(c, &in) {
		return
	}

	comp, err := h.useCase.Attach(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Genotypes attached successfully",
		"data":    comp,
	})
}

// DetachGenotypes handles DELETE /api/fermentations/:id/genotypes
func (h *CompositionHandler) DetachGenotypes(c *gin.Context) {
	var in usecases.DetachInput
	if !bindJSON(c, &in) {
		return
	}

	comp, err := h.useCase.Detach(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Genotypes detached successfully",
		"data":    comp,
	})
}

// SyncGenotypes handles PUT /api/fermentations/:id/genotypes
func (h *CompositionHandler) SyncGenotypes(c *gin.Context) {
	var in usecases.SyncInput
	if !bindJSON(c, &in) {
		return
	}

	comp, err := h.useCase.Sync(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Genotypes synchronized successfully",
		"data":    comp,
	})
}

// UpdateQuantity handles PUT /api/fermentations/:id/genotypes/:genotypeId
func (h *CompositionHandler) UpdateQuantity(c *gin.Context) {
	var in usecases.QuantityInput
	if !bindJSON(c, &in) {
		return
	}

	comp, err := h.useCase.UpdateQuantity(c.Request.Context(), c.Param("id"), c.Param("genotypeId"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Genotype quantity updated successfully",
		"data":    comp,
	})
}
