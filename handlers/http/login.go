package httpHandler

import (
	"net/http"

	"cacao-server/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoginHandler struct {
	useCase *usecases.AuthUseCase
	log     *zap.Logger
}

func NewLoginHandler(useCase *usecases.AuthUseCase, log *zap.Logger) *LoginHandler {
	return &LoginHandler{useCase: useCase, log: log}
}

// Register handles POST /api/register
func (h *LoginHandler) Register(c *gin.Context) {
	var in usecases.RegisterInput
	if !bindJSON(c, &in) {
		return
	}

	session, err := h.useCase.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Login handles POST /api/login and returns a bearer session.
func (h *LoginHandler) Login(c *gin.Context) {
	var in usecases.LoginInput
	if !bindJSON(c, &in) {
		return
	}

	session, err := h.useCase.Login(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// User handles GET /api/user
func (h *LoginHandler) User(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		respondError(c, h.log, usecases.Unauthorized("missing session"))
		return
	}

	user, err := h.useCase.User(c.Request.Context(), claims.UserID())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}
