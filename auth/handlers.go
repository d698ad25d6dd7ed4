package auth

import (
	"errors"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/audit_backend/middlewares"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRoutes mounts /login on public and /me and /logout on protected.
func RegisterRoutes(public, protected *gin.RouterGroup, svc *Service) {
	public.POST("/login", LoginHandler(svc))
	protected.GET("/me", MeHandler())
	protected.POST("/logout", LogoutHandler(svc))
}

func LoginHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, svc.logger, "auth.LoginHandler", utils.BindingError(err))
			return
		}
		res, err := svc.Login(c.Request.Context(), req.Username, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			utils.RespondError(c, svc.logger, "auth.LoginHandler", err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middlewares.CtxValue(c.Request.Context())
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, User{Username: claims.Username, Name: claims.Name})
	}
}

func LogoutHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middlewares.CtxValue(c.Request.Context())
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := svc.Logout(c.Request.Context(), claims.Id, time.Unix(claims.ExpiresAt, 0)); err != nil {
			utils.RespondError(c, svc.logger, "auth.LogoutHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
