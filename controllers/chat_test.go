package controllers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Devcavi19/adal-ui/middleware"
	"github.com/Devcavi19/adal-ui/models"
	svc "github.com/Devcavi19/adal-ui/pkg/services"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.ChatSession{}, &models.ChatMessage{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeAuth stands in for the JWT middleware and pins the user id.
func fakeAuth(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, uid)
		c.Next()
	}
}

type fakeGenerator struct {
	chunks []string
	err    error
}

func (f *fakeGenerator) Stream(ctx context.Context, prompt string, onDelta func(string)) (string, error) {
	var full strings.Builder
	for _, ch := range f.chunks {
		onDelta(ch)
		full.WriteString(ch)
	}
	if f.err != nil {
		return full.String(), f.err
	}
	return full.String(), nil
}

func streamRouter(db *gorm.DB, gen svc.Generator, uid string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/", fakeAuth(uid))
	g.POST("/api/chat", StreamChat(db, nil, gen))
	g.GET("/api/chat/history", ChatHistory(db))
	g.GET("/api/chat/:chat_id", GetChat(db))
	g.DELETE("/api/chat/:chat_id", DeleteChat(db))
	return r
}

// ragRouter is streamRouter with a loaded retriever so the pipeline
// runs the full retrieval -> prompt -> generation path.
func ragRouter(t *testing.T, db *gorm.DB, gen svc.Generator, uid string) *gin.Engine {
	t.Helper()
	dir := t.TempDir()
	line := `{"id":"d1","content":"reference abstract","embedding":[1,0]}` + "\n"
	if err := writeFile(dir+"/index.jsonl", line); err != nil {
		t.Fatalf("write index: %v", err)
	}
	rag, err := svc.LoadRetriever(dir, nil, 3)
	if err != nil {
		t.Fatalf("load retriever: %v", err)
	}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/", fakeAuth(uid))
	g.POST("/api/chat", StreamChat(db, rag, gen))
	return r
}

func postChat(t *testing.T, r *gin.Engine, message string, chatID string) *httptest.ResponseRecorder {
	t.Helper()
	payload := map[string]any{"message": message}
	if chatID != "" {
		payload["chat_id"] = chatID
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type wireEvent struct {
	Token  string `json:"token"`
	ChatID string `json:"chat_id"`
}

func decodeStream(t *testing.T, body string) []wireEvent {
	t.Helper()
	var events []wireEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev wireEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("malformed stream line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestStreamChatNewSession(t *testing.T) {
	middleware.SetDuplicateTTL(time.Millisecond)
	db := testDB(t)
	gen := &fakeGenerator{chunks: []string{"The ", "study ", "covers X."}}
	r := ragRouter(t, db, gen, "user-1")

	w := postChat(t, r, "what does the study cover?", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	events := decodeStream(t, w.Body.String())
	if len(events) == 0 {
		t.Fatal("empty stream")
	}

	// The session id must arrive before any token.
	if events[0].ChatID == "" {
		t.Fatalf("first event = %+v, want chat_id", events[0])
	}
	var tokens []string
	for _, ev := range events[1:] {
		if ev.ChatID != "" {
			t.Errorf("chat_id repeated mid-stream: %+v", ev)
		}
		tokens = append(tokens, ev.Token)
	}
	if got := strings.Join(tokens, ""); got != "The study covers X." {
		t.Errorf("streamed text = %q", got)
	}

	// Both turns persisted, in order, bot text equals the concatenation.
	var msgs []models.ChatMessage
	if err := db.Where("chat_session_id = ?", events[0].ChatID).Order("created_at ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleBot {
		t.Errorf("roles = %s,%s want user,bot", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "The study covers X." {
		t.Errorf("bot content = %q", msgs[1].Content)
	}
}

func TestStreamChatExistingSessionEmitsNoChatID(t *testing.T) {
	middleware.SetDuplicateTTL(time.Millisecond)
	db := testDB(t)
	conv := models.ChatSession{UserID: "user-1", Title: "t"}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := ragRouter(t, db, &fakeGenerator{chunks: []string{"ok"}}, "user-1")

	w := postChat(t, r, "follow up", conv.ID)
	events := decodeStream(t, w.Body.String())
	for _, ev := range events {
		if ev.ChatID != "" {
			t.Errorf("existing session must not re-announce chat_id: %+v", ev)
		}
	}
}

func TestStreamChatMidStreamFailurePersistsNoBotMessage(t *testing.T) {
	middleware.SetDuplicateTTL(time.Millisecond)
	db := testDB(t)
	gen := &fakeGenerator{chunks: []string{"partial "}, err: errors.New("quota exceeded")}
	r := ragRouter(t, db, gen, "user-1")

	w := postChat(t, r, "trigger a failure", "")
	events := decodeStream(t, w.Body.String())

	var streamed strings.Builder
	for _, ev := range events {
		streamed.WriteString(ev.Token)
	}
	if !strings.Contains(streamed.String(), svc.FailureMessage) {
		t.Errorf("stream should end with the generic failure text, got %q", streamed.String())
	}

	var count int64
	db.Model(&models.ChatMessage{}).Where("role = ?", models.RoleBot).Count(&count)
	if count != 0 {
		t.Errorf("bot messages persisted = %d, want 0 after failure", count)
	}
	db.Model(&models.ChatMessage{}).Where("role = ?", models.RoleUser).Count(&count)
	if count != 1 {
		t.Errorf("user messages persisted = %d, want 1", count)
	}
}

func TestStreamChatWithoutPipelineStreamsFallback(t *testing.T) {
	middleware.SetDuplicateTTL(time.Millisecond)
	db := testDB(t)
	r := streamRouter(db, nil, "user-1")

	w := postChat(t, r, "anything", "")
	events := decodeStream(t, w.Body.String())

	var streamed strings.Builder
	for _, ev := range events {
		streamed.WriteString(ev.Token)
	}
	if !strings.Contains(streamed.String(), svc.UnavailableMessage) {
		t.Errorf("expected unavailable fallback, got %q", streamed.String())
	}
}

func TestStreamChatRejectsDisallowedContent(t *testing.T) {
	db := testDB(t)
	r := streamRouter(db, &fakeGenerator{}, "user-1")

	w := postChat(t, r, "how to make a bomb", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStreamChatRejectsForeignSession(t *testing.T) {
	middleware.SetDuplicateTTL(time.Millisecond)
	db := testDB(t)
	conv := models.ChatSession{UserID: "owner", Title: "private"}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := streamRouter(db, &fakeGenerator{chunks: []string{"x"}}, "intruder")

	w := postChat(t, r, "hello", conv.ID)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for foreign session", w.Code)
	}
}

func TestChatHistoryOrderedByRecency(t *testing.T) {
	db := testDB(t)
	old := models.ChatSession{UserID: "user-1", Title: "old"}
	recent := models.ChatSession{UserID: "user-1", Title: "recent"}
	other := models.ChatSession{UserID: "user-2", Title: "not mine"}
	for _, s := range []*models.ChatSession{&old, &recent, &other} {
		if err := db.Create(s).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	db.Model(&old).Update("updated_at", time.Now().Add(-time.Hour))
	db.Model(&recent).Update("updated_at", time.Now())

	r := streamRouter(db, nil, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed struct {
		History []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"history"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(parsed.History) != 2 {
		t.Fatalf("history length = %d, want 2 (other user's chat excluded)", len(parsed.History))
	}
	if parsed.History[0].Title != "recent" || parsed.History[1].Title != "old" {
		t.Errorf("order = %s,%s want recent,old", parsed.History[0].Title, parsed.History[1].Title)
	}
}

func TestGetChatReplaysMessagesInOrder(t *testing.T) {
	db := testDB(t)
	conv := models.ChatSession{UserID: "user-1", Title: "t"}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	base := time.Now().Add(-time.Minute)
	for i, m := range []struct{ role, text string }{
		{models.RoleUser, "q1"}, {models.RoleBot, "a1"}, {models.RoleUser, "q2"},
	} {
		msg := models.ChatMessage{ChatSessionID: conv.ID, Role: m.role, Content: m.text, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := db.Create(&msg).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	r := streamRouter(db, nil, "user-1")
	for try := 0; try < 2; try++ { // repeated loads must not duplicate
		req := httptest.NewRequest(http.MethodGet, "/api/chat/"+conv.ID, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		var parsed struct {
			ChatID   string `json:"chat_id"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(parsed.Messages) != 3 {
			t.Fatalf("messages = %d, want 3", len(parsed.Messages))
		}
		want := []string{"q1", "a1", "q2"}
		for i, m := range parsed.Messages {
			if m.Content != want[i] {
				t.Errorf("message %d = %q, want %q", i, m.Content, want[i])
			}
		}
	}
}

func TestDeleteChatCascadesAndIsIdempotent(t *testing.T) {
	db := testDB(t)
	conv := models.ChatSession{UserID: "user-1", Title: "t"}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	msg := models.ChatMessage{ChatSessionID: conv.ID, Role: models.RoleUser, Content: "hi"}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}

	r := streamRouter(db, nil, "user-1")
	for try := 0; try < 2; try++ {
		req := httptest.NewRequest(http.MethodDelete, "/api/chat/"+conv.ID, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("try %d: status = %d, want 200", try, w.Code)
		}
	}

	var count int64
	db.Model(&models.ChatMessage{}).Where("chat_session_id = ?", conv.ID).Count(&count)
	if count != 0 {
		t.Errorf("messages left after delete = %d, want 0", count)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
