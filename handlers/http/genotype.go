package httpHandler

import (
	"net/http"

	"cacao-server/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GenotypeHandler struct {
	useCase *usecases.GenotypeUseCase
	log     *zap.Logger
}

func NewGenotypeHandler(useCase *usecases.GenotypeUseCase, log *zap.Logger) *GenotypeHandler {
	return &GenotypeHandler{useCase: useCase, log: log}
}

// CreateGenotype handles POST /api/genotypes
func (h *GenotypeHandler) CreateGenotype(c *gin.Context) {
	var in usecases.GenotypeInput
	if !bindJSON(c, &in) {
		return
	}

	g, err := h.useCase.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Genotype created successfully",
		"data":    g,
	})
}

// GetGenotype handles GET /api/genotypes/:id
func (h *GenotypeHandler) GetGenotype(c *gin.Context) {
	g, err := h.useCase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": g})
}

// GetAllGenotypes handles GET /api/genotypes
func (h *GenotypeHandler) GetAllGenotypes(c *gin.Context) {
	genotypes, err := h.useCase.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	list(c, genotypes)
}

// UpdateGenotype handles PUT /api/genotypes/:id
func (h *GenotypeHandler) UpdateGenotype(c *gin.Context) {
	var in usecases.GenotypeInput
	if !bindJSON(c, &in) {
		return
	}

	g, err := h.useCase.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Genotype updated successfully",
		"data":    g,
	})
}

// DeleteGenotype handles DELETE /api/genotypes/:id
func (h *GenotypeHandler) DeleteGenotype(c *gin.Context) {
	if err := h.useCase.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
