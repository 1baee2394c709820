package search

import (
	"github.com/gin-gonic/gin"

	"github.com/Devcavi19/adal-ui/controllers"
	"github.com/Devcavi19/adal-ui/middleware"
	svc "github.com/Devcavi19/adal-ui/pkg/services"
)

// Register registers the document search route (protected).
func Register(g *gin.RouterGroup, rag *svc.Retriever) {
	g.POST("/api/search", middleware.RateLimit(), controllers.SearchDocuments(rag))
}
