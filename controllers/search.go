package controllers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	svc "github.com/Devcavi19/adal-ui/pkg/services"
)

// SearchDocuments handles POST /api/search: raw retriever access, same
// ranking the chat pipeline sees.
func SearchDocuments(rag *svc.Retriever) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Query string `json:"query"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Query) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
			return
		}
		query := strings.TrimSpace(body.Query)

		if !svc.IsAllowed(query) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Sorry, I can't assist with that."})
			return
		}
		if rag == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search system unavailable"})
			return
		}

		results, err := rag.Retrieve(c.Request.Context(), query)
		if err != nil {
			log.Printf("[search] retrieval failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
			return
		}

		out := make([]gin.H, 0, len(results))
		for _, r := range results {
			out = append(out, gin.H{"content": r.Content, "metadata": r.Metadata})
		}
		c.JSON(http.StatusOK, gin.H{"results": out})
	}
}
