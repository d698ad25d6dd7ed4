package scraper

import (
	"net/http"

	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/gin-gonic/gin"
)

type runRequest struct {
	Url       string    `json:"url" binding:"required"`
	Selectors Selectors `json:"selectors"`
}

type previewRequest struct {
	Url       string `json:"url" binding:"required"`
	Container string `json:"container"`
}

// RegisterRoutes mounts /run and /preview on rg.
func RegisterRoutes(rg *gin.RouterGroup, svc *Service) {
	rg.POST("/run", RunHandler(svc))
	rg.POST("/preview", PreviewHandler(svc))
}

func RunHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req runRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, svc.logger, "scraper.RunHandler", utils.BindingError(err))
			return
		}
		result, err := svc.Run(c.Request.Context(), req.Url, req.Selectors)
		if err != nil {
			utils.RespondError(c, svc.logger, "scraper.RunHandler", err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func PreviewHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req previewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, svc.logger, "scraper.PreviewHandler", utils.BindingError(err))
			return
		}
		result, err := svc.Preview(c.Request.Context(), req.Url, req.Container)
		if err != nil {
			utils.RespondError(c, svc.logger, "scraper.PreviewHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
