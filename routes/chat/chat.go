package chat

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Devcavi19/adal-ui/controllers"
	"github.com/Devcavi19/adal-ui/middleware"
	svc "github.com/Devcavi19/adal-ui/pkg/services"
)

// Register registers chat routes (protected).
func Register(g *gin.RouterGroup, db *gorm.DB, rag *svc.Retriever, gen svc.Generator) {
	g.POST("/api/chat", middleware.RateLimit(), controllers.StreamChat(db, rag, gen))
	g.GET("/api/chat/history", controllers.ChatHistory(db))
	g.GET("/api/chat/:chat_id", controllers.GetChat(db))
	g.DELETE("/api/chat/:chat_id", controllers.DeleteChat(db))
}
