package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"campus_backend/internal/api"
	authhandler "campus_backend/internal/feature/auth/transport/handler"
	bykchandler "campus_backend/internal/feature/bykc/transport/handler"
	jwtmw "campus_backend/internal/platform/jwt"
)

func NewRouter(auth *authhandler.AuthHandler, bykc *bykchandler.BykcHandler) *gin.Engine {
	r := gin.Default()
	r.Use(cors.Default())

	r.GET("/healthz", health)

	// The login flow runs before any app token exists.
	r.POST("/api/auth/preload", auth.Preload)
	r.POST("/api/auth/login", auth.Login)
	r.POST("/api/auth/captcha", auth.RefreshCaptcha)

	// Everything below requires the app token in the Authorization header.
	protected := r.Group("/api")
	protected.Use(jwtmw.AuthRequired())
	{
		protected.GET("/auth/status", auth.Status)
		protected.POST("/auth/logout", auth.Logout)

		protected.POST("/bykc/login", bykc.Login)
		protected.GET("/bykc/profile", bykc.Profile)
		protected.GET("/bykc/courses", bykc.Courses)
		protected.GET("/bykc/chosen", bykc.Chosen)
		protected.POST("/bykc/enroll", bykc.Enroll)
		protected.POST("/bykc/withdraw", bykc.Withdraw)
		protected.POST("/bykc/signin", bykc.SignIn)
		protected.POST("/bykc/signout", bykc.SignOut)
		protected.GET("/bykc/config", bykc.Config)
		protected.GET("/bykc/statistics", bykc.Statistics)
		protected.POST("/bykc/call/:endpoint", bykc.Call)
	}

	return r
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, api.MessageResponse{Message: "ok"})
}
