package main

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Devcavi19/adal-ui/middleware"
	"github.com/Devcavi19/adal-ui/models"
	"github.com/Devcavi19/adal-ui/pkg/cache"
	"github.com/Devcavi19/adal-ui/pkg/config"
	svc "github.com/Devcavi19/adal-ui/pkg/services"
	"github.com/Devcavi19/adal-ui/routes"
)

func openDatabase() (*gorm.DB, error) {
	if config.DatabaseURL != "" {
		return gorm.Open(postgres.Open(config.DatabaseURL), &gorm.Config{})
	}
	// local dev fallback
	return gorm.Open(sqlite.Open("app.db"), &gorm.Config{})
}

func main() {
	db, err := openDatabase()
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.ChatSession{}, &models.ChatMessage{}); err != nil {
		log.Fatalf("failed migrate: %v", err)
	}

	middleware.SetRateLimitConfig(
		time.Duration(config.RateLimitWindowSeconds)*time.Second,
		config.RateLimitCapacity,
		config.UserConcurrencyLimit,
	)
	middleware.SetDuplicateTTL(time.Duration(config.DuplicateWindowSeconds) * time.Second)
	cache.SetMaxItems(config.RetrievalCacheMaxItems)

	gemini := svc.NewGeminiService()

	// A missing or broken index is not fatal; the chat endpoint streams
	// its fallback message until the index is fixed.
	rag, err := svc.LoadRetriever(config.IndexPath, gemini, config.RetrievalTopK)
	if err != nil {
		log.Printf("[main] retriever unavailable: %v", err)
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.AppURL, "http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173", "http://127.0.0.1:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, rag, gemini)
	r.Run(":" + config.Port)
}
