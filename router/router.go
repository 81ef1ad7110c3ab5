package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"boardapp/app"
	"boardapp/controllers"
	"boardapp/middleware"
)

// New assembles the HTTP surface on top of an initialized App.
func New(a *app.App) *gin.Engine {
	engine := gin.New()
	engine.Use(recovery(a))
	engine.Use(requestLog(a))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	users := controllers.NewUserController(a)
	boards := controllers.NewBoardController(a)
	articles := controllers.NewArticleController(a)
	comments := controllers.NewCommentController(a)
	ads := controllers.NewAdController(a)
	messages := controllers.NewMessageController(a)

	auth := middleware.Auth(a)
	optionalAuth := middleware.OptionalAuth(a)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, "ok")
	})

	u := engine.Group("/users")
	{
		u.POST("/sign-up", users.SignUp)
		u.POST("/login", users.Login)
		u.POST("/logout", auth, users.Logout)
		u.POST("/logout/all", auth, users.LogoutAll)
		u.POST("/token/validation", users.ValidateToken)
		u.GET("", auth, users.List)
		u.DELETE("/:user_id", auth, users.Delete)
		u.PATCH("/:user_id/role", auth, users.UpdateRole)
	}

	b := engine.Group("/boards")
	{
		b.POST("", auth, boards.Create)
		b.GET("", boards.List)
		b.GET("/:board_id", boards.Get)

		art := b.Group("/:board_id/articles")
		{
			art.POST("", auth, articles.Create)
			art.GET("", articles.List)
			art.GET("/search", articles.Search)
			art.GET("/:article_id", articles.Get)
			art.PUT("/:article_id", auth, articles.Edit)
			art.DELETE("/:article_id", auth, articles.Delete)

			com := art.Group("/:article_id/comments")
			{
				com.POST("", auth, comments.Create)
				com.PUT("/:comment_id", auth, comments.Edit)
				com.DELETE("/:comment_id", auth, comments.Delete)
			}
		}
	}

	ad := engine.Group("/ads")
	{
		ad.GET("/history/view", ads.ViewHistory)
		ad.GET("/history/click", ads.ClickHistory)
		ad.POST("", auth, ads.Create)
		ad.GET("", ads.List)
		ad.GET("/:ad_id", optionalAuth, ads.Get)
		ad.POST("/:ad_id/click", optionalAuth, ads.Click)
	}

	engine.POST("/internal/messages", messages.Process)

	return engine
}

func recovery(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				a.Log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

func requestLog(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := a.Log.Info()
		if status >= 500 {
			event = a.Log.Error()
		} else if status >= 400 {
			event = a.Log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
