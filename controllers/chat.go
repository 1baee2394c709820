package controllers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Devcavi19/adal-ui/middleware"
	"github.com/Devcavi19/adal-ui/models"
	"github.com/Devcavi19/adal-ui/pkg/cache"
	"github.com/Devcavi19/adal-ui/pkg/config"
	svc "github.com/Devcavi19/adal-ui/pkg/services"
)

// streamEvent is one NDJSON frame on the chat wire: either a token
// fragment or the id of a session created for this request.
type streamEvent struct {
	Token  string `json:"token,omitempty"`
	ChatID string `json:"chat_id,omitempty"`
}

// StreamChat handles POST /api/chat. The response is a chunked body of
// newline-delimited JSON events; end of stream is the transport close.
// A session created here has its id emitted before the first token.
func StreamChat(db *gorm.DB, rag *svc.Retriever, gen svc.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := middleware.UserID(c)

		var body struct {
			Message string  `json:"message"`
			ChatID  *string `json:"chat_id"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Message) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}
		message := strings.TrimSpace(body.Message)

		if !svc.IsAllowed(message) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Sorry, I can't assist with that."})
			return
		}

		if !middleware.DuplicateGuard(uid, message) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "duplicate message, please wait"})
			return
		}

		// One open streaming response per user.
		release, ok := middleware.TryAcquireUserSlot(uid)
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "a response is already streaming"})
			return
		}
		defer release()

		// Find or create the session before anything is streamed so the
		// chat_id event can precede the first token.
		var conv models.ChatSession
		created := false
		if body.ChatID != nil && *body.ChatID != "" {
			if err := db.Preload("Messages", func(tx *gorm.DB) *gorm.DB {
				return tx.Order("created_at ASC")
			}).Where("id = ? AND user_id = ?", *body.ChatID, uid).First(&conv).Error; err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
				return
			}
		} else {
			conv = models.ChatSession{UserID: uid, Title: models.TitleFromMessage(message)}
			if err := db.Create(&conv).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
				return
			}
			created = true
		}

		// User turn is persisted before generation starts.
		userMsg := models.ChatMessage{ChatSessionID: conv.ID, Role: models.RoleUser, Content: message}
		if err := db.Create(&userMsg).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
			return
		}

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			c.String(http.StatusInternalServerError, "streaming unsupported")
			return
		}
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("X-Accel-Buffering", "no") // nginx buffering off
		c.Writer.WriteHeader(http.StatusOK)

		emit := func(ev streamEvent) {
			b, err := json.Marshal(ev)
			if err != nil {
				return
			}
			fmt.Fprintf(c.Writer, "%s\n", b)
			flusher.Flush()
		}

		if created {
			emit(streamEvent{ChatID: conv.ID})
		}

		var history []svc.ChatTurn
		for _, m := range conv.Messages {
			history = append(history, svc.ChatTurn{Role: m.Role, Text: m.Content})
		}

		onToken := func(chunk string) { emit(streamEvent{Token: chunk}) }

		if rag == nil || gen == nil {
			log.Printf("[chat] pipeline unavailable, streaming fallback")
			svc.StreamFallback(c.Request.Context(), svc.UnavailableMessage, onToken)
			return
		}

		// Retrieval runs synchronously before generation begins.
		results := retrieveCached(c, rag, message)
		prompt := svc.BuildPrompt(results, history, message)

		var full strings.Builder
		_, err := gen.Stream(c.Request.Context(), prompt, func(chunk string) {
			full.WriteString(chunk)
			onToken(chunk)
		})
		if err != nil {
			// Mid-stream failure: surface the generic failure text and
			// persist nothing for the bot turn, partial or otherwise.
			log.Printf("[chat] generation failed: %v", err)
			svc.StreamFallback(c.Request.Context(), svc.FailureMessage, onToken)
			return
		}

		botText := strings.TrimSpace(full.String())
		if botText == "" {
			svc.StreamFallback(c.Request.Context(), svc.UnavailableMessage, onToken)
			return
		}

		botMsg := models.ChatMessage{ChatSessionID: conv.ID, Role: models.RoleBot, Content: botText}
		if err := db.Create(&botMsg).Error; err != nil {
			log.Printf("[chat] failed to save bot reply: %v", err)
			return
		}
		db.Model(&conv).Update("updated_at", time.Now())
	}
}

// retrieveCached serves repeated queries from the TTL cache so a
// re-asked question skips the embedding round trip.
func retrieveCached(c *gin.Context, rag *svc.Retriever, query string) []svc.SearchResult {
	key := cache.KeyFromStrings("retrieval", strings.ToLower(query))
	if v, ok := cache.Default().Get(key); ok {
		if results, ok := v.([]svc.SearchResult); ok {
			return results
		}
	}
	results, err := rag.Retrieve(c.Request.Context(), query)
	if err != nil {
		log.Printf("[chat] retrieval failed: %v", err)
		return nil
	}
	cache.Default().Set(key, results, time.Duration(config.RetrievalCacheTTL)*time.Second)
	return results
}

// ChatHistory handles GET /api/chat/history: the user's sessions by
// most recent activity.
func ChatHistory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := middleware.UserID(c)

		var convs []models.ChatSession
		if err := db.Where("user_id = ?", uid).Order("updated_at DESC").Find(&convs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		history := make([]gin.H, 0, len(convs))
		for _, conv := range convs {
			history = append(history, gin.H{"id": conv.ID, "title": conv.Title})
		}
		c.JSON(http.StatusOK, gin.H{"history": history})
	}
}

// GetChat handles GET /api/chat/:chat_id: messages in chronological order.
func GetChat(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := middleware.UserID(c)
		chatID := c.Param("chat_id")

		var conv models.ChatSession
		if err := db.Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC")
		}).Where("id = ? AND user_id = ?", chatID, uid).First(&conv).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}

		messages := make([]gin.H, 0, len(conv.Messages))
		for _, m := range conv.Messages {
			messages = append(messages, gin.H{"role": m.Role, "content": m.Content})
		}
		c.JSON(http.StatusOK, gin.H{"chat_id": conv.ID, "messages": messages})
	}
}

// DeleteChat handles DELETE /api/chat/:chat_id. Deleting a session that
// no longer exists succeeds, so retries and stale clients are harmless.
func DeleteChat(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := middleware.UserID(c)
		chatID := c.Param("chat_id")

		var conv models.ChatSession
		if err := db.Where("id = ? AND user_id = ?", chatID, uid).First(&conv).Error; err != nil {
			c.JSON(http.StatusOK, gin.H{"message": "chat deleted"})
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("chat_session_id = ?", conv.ID).Delete(&models.ChatMessage{}).Error; err != nil {
				return err
			}
			return tx.Delete(&conv).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "chat deleted"})
	}
}
