package httpHandler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"cacao-server/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(kind usecases.ErrorKind) int {
	switch kind {
	case usecases.KindNotFound:
		return http.StatusNotFound
	case usecases.KindValidation:
		return http.StatusUnprocessableEntity
	case usecases.KindConflict:
		return http.StatusBadRequest
	case usecases.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error", "type", "fields"}. Internal errors
// are logged with their cause and answered with a generic message.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var ue *usecases.Error
	if !errors.As(err, &ue) {
		ue = usecases.Internal(err)
	}
	status := statusFor(ue.Kind)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(ue),
		)
	}

	body := gin.H{"error": ue.Message, "type": ue.Kind}
	if len(ue.Fields) > 0 {
		body["fields"] = ue.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the body into dst, answering 400 when it is not valid
// JSON for dst.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for bodies that may be omitted entirely; an
// empty body leaves dst at its zero value.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	err := c.ShouldBindJSON(dst)
	if errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// queryInt reads an optional integer query parameter, answering 422 when it
// is not a number.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":  name + " must be an integer",
			"type":   usecases.KindValidation,
			"fields": []usecases.FieldError{{Field: name, Message: name + " must be an integer"}},
		})
		return 0, false
	}
	return n, true
}

func list[T any](c *gin.Context, items []T) {
	c.JSON(http.StatusOK, gin.H{"data": items, "count": len(items)})
}
