package auth

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Devcavi19/adal-ui/controllers"
	"github.com/Devcavi19/adal-ui/middleware"
)

// RegisterPublic registers the unauthenticated auth surface.
func RegisterPublic(r *gin.Engine, db *gorm.DB) {
	r.POST("/api/auth/signup", middleware.RateLimit(), controllers.SignUp(db))
	r.POST("/api/auth/signin", middleware.RateLimit(), controllers.SignIn(db))
	r.GET("/api/auth/google", controllers.GoogleSignIn())
	r.GET("/auth/callback", controllers.GoogleCallback(db))
}

// RegisterProtected registers auth routes that need a bearer token.
func RegisterProtected(g *gin.RouterGroup, db *gorm.DB) {
	g.POST("/api/auth/signout", controllers.SignOut())
	g.GET("/api/auth/user", controllers.CurrentUser(db))
}
