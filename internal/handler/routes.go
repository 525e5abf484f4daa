package handler

import (
	"shorturl-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有业务路由
//
// identity 解析可选的 Bearer 令牌，列表和跳转对匿名开放，
// 创建、详情、删除由 LinkService 的所有权规则判断。
func RegisterRoutes(
	router *gin.Engine,
	urlHandler *ShortLinkHandler,
	authHandler *AuthHandler,
	identity gin.HandlerFunc,
) {
	router.GET("/health", urlHandler.HealthCheck)
	router.GET("/:code", urlHandler.RedirectToOriginal)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	api := router.Group("/api")
	api.Use(identity)
	{
		api.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		api.GET("/urls", urlHandler.GetAllLinks)
		api.POST("/urls", urlHandler.CreateShortLink)
		api.GET("/urls/:id", urlHandler.GetLinkDetail)
		api.DELETE("/urls/:id", urlHandler.DeleteLink)
		api.GET("/urls/redirect/:code", urlHandler.RedirectToOriginal)
	}
}
