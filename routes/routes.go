package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Devcavi19/adal-ui/middleware"
	svc "github.com/Devcavi19/adal-ui/pkg/services"

	authRoutes "github.com/Devcavi19/adal-ui/routes/auth"
	chatRoutes "github.com/Devcavi19/adal-ui/routes/chat"
	searchRoutes "github.com/Devcavi19/adal-ui/routes/search"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, rag *svc.Retriever, gen svc.Generator) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Adal chat backend running"})
	})

	authRoutes.RegisterPublic(r, db)

	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware())
	authRoutes.RegisterProtected(protected, db)
	chatRoutes.Register(protected, db, rag, gen)
	searchRoutes.Register(protected, rag)
}
