package httpHandler

import (
	"net/http"

	"cacao-server/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TurnHandler struct {
	useCase *usecases.TurnUseCase
	log     *zap.Logger
}

func NewTurnHandler(useCase *usecases.TurnUseCase, log *zap.Logger) *TurnHandler {
	return &TurnHandler{useCase: useCase, log: log}
}

// CreateTurn handles POST /api/turns
func (h *TurnHandler) CreateTurn(c *gin.Context) {
	var in usecases.TurnInput
	if !bindJSON(c, &in) {
		return
	}

	turn, err := h.useCase.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Turn created successfully",
		"data":    turn,
	})
}

// GetTurn handles GET /api/turns/:id
func (h *TurnHandler) GetTurn(c *gin.Context) {
	turn, err := h.useCase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": turn})
}

// GetAllTurns handles GET /api/turns?fermentation_id=
func (h *TurnHandler) GetAllTurns(c *gin.Context) {
	turns, err := h.useCase.List(c.Request.Context(), c.Query("fermentation_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	list(c, turns)
}

// GetFermentationTurns handles GET /api/fermentations/:id/turns
func (h *TurnHandler) GetFermentationTurns(c *gin.Context) {
	turns, err := h.useCase.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	list(c, turns)
}

// UpdateTurn handles PUT /api/turns/:id
func (h *TurnHandler) UpdateTurn(c *gin.Context) {
	var in usecases.TurnInput
	if !bindJSON(c, &in) {
		return
	}

	turn, err := h.useCase.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Turn updated successfully",
		"data":    turn,
	})
}

// DeleteTurn handles DELETE /api/turns/:id
func (h *TurnHandler) DeleteTurn(c *gin.Context) {
	if err := h.useCase.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
