package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vletron/inkblog/config"
	"github.com/vletron/inkblog/controllers"
	"github.com/vletron/inkblog/middleware"
	"github.com/vletron/inkblog/storage"
	"github.com/vletron/inkblog/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, store *storage.Store) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Request log goes to its own rotated file so it stays out of the
	// application log.
	if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
		r.Use(utils.Ginzap(gl))
		r.Use(utils.RecoveryWithZap(gl))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	blogController := controllers.NewBlogController(db, store)
	commentController := controllers.NewCommentController(db, store)
	fileController := controllers.NewFileController(store)

	// Signed downloads: the token in the query is the only access control.
	r.GET("/files/:key", fileController.Download)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/github/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/github/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// Public reads
	api.GET("/blogs", blogController.ListBlogs)
	api.GET("/blogs/:id", blogController.GetBlog)
	api.GET("/blogs/:id/comments", commentController.ListComments)

	// Comments may be left and edited without an account; identity is
	// attached when present.
	anon := api.Group("")
	anon.Use(middleware.AuthOptional(), middleware.RateLimitMiddleware())
	anon.POST("/blogs/:id/comments", commentController.CreateComment)
	anon.PUT("/comments/:commentId", commentController.UpdateComment)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/blogs", blogController.CreateBlog)
	protected.PUT("/blogs/:id", blogController.UpdateBlog)
	protected.DELETE("/blogs/:id", blogController.DeleteBlog)
	protected.GET("/blogs/mine", blogController.ListMyBlogs)
	protected.DELETE("/comments/:commentId", commentController.DeleteComment)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
