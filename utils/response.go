package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RespondError writes {"error": ...} with the status mapped from err.
// Unexpected failures are logged and their message is not exposed.
func RespondError(c *gin.Context, logger *logrus.Logger, field string, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"field":  field,
				"path":   c.FullPath(),
				"method": c.Request.Method,
			}).Error(err.Error())
		}
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
