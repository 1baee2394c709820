package config

import (
	"log"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	GoogleAPIKey string
	GeminiModel  string

	// IndexPath points at the directory holding the prebuilt similarity
	// index (index.jsonl + embedding_model.txt).
	IndexPath string

	// DatabaseURL selects postgres when set; empty means local sqlite.
	DatabaseURL string

	AppEnv       string
	IsProduction bool

	JWTSecret string
	Port      string
	AppURL    string

	// AllowedEmailDomains are the institutional suffixes accepted at
	// signup and at the OAuth callback.
	AllowedEmailDomains []string

	GoogleOAuthClientID     string
	GoogleOAuthClientSecret string

	// runtime tunables
	RetrievalTopK          int
	RateLimitWindowSeconds int
	RateLimitCapacity      int
	UserConcurrencyLimit   int
	DuplicateWindowSeconds int
	RetrievalCacheTTL      int
	RetrievalCacheMaxItems int
)

// loadDotenv loads .env for local runs only; production reads the host
// environment directly.
func loadDotenv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env file loaded: %v", err)
	}
}

func init() {
	loadDotenv()

	GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	GeminiModel = os.Getenv("GEMINI_MODEL")
	if GeminiModel == "" {
		GeminiModel = "gemini-2.5-flash"
	}

	IndexPath = os.Getenv("INDEX_PATH")
	if IndexPath == "" {
		IndexPath = "index"
	}

	DatabaseURL = os.Getenv("DATABASE_URL")

	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "" {
		AppEnv = "development"
	}
	if !slices.Contains([]string{"development", "staging", "production"}, AppEnv) {
		log.Fatal("environment variable APP_ENV must be 'development', 'staging' or 'production'")
	}
	IsProduction = AppEnv == "production"

	JWTSecret = os.Getenv("JWT_SECRET_KEY")
	Port = os.Getenv("PORT")
	if Port == "" {
		Port = "5000"
	}
	AppURL = os.Getenv("APP_URL")
	if AppURL == "" {
		AppURL = "http://localhost:" + Port
	}

	AllowedEmailDomains = splitOr(os.Getenv("ALLOWED_EMAIL_DOMAINS"), []string{"@cspc.edu.ph", "@my.cspc.edu.ph"})

	GoogleOAuthClientID = os.Getenv("GOOGLE_OAUTH_CLIENT_ID")
	GoogleOAuthClientSecret = os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET")

	RetrievalTopK = atoiOr(os.Getenv("RETRIEVAL_TOP_K"), 6)
	RateLimitWindowSeconds = atoiOr(os.Getenv("RATE_LIMIT_WINDOW_SECONDS"), 10)
	RateLimitCapacity = atoiOr(os.Getenv("RATE_LIMIT_CAPACITY"), 5)
	UserConcurrencyLimit = atoiOr(os.Getenv("USER_CONCURRENCY_LIMIT"), 1)
	DuplicateWindowSeconds = atoiOr(os.Getenv("DUPLICATE_WINDOW_SECONDS"), 45)
	RetrievalCacheTTL = atoiOr(os.Getenv("RETRIEVAL_CACHE_TTL_SECONDS"), 600)
	RetrievalCacheMaxItems = atoiOr(os.Getenv("RETRIEVAL_CACHE_MAX_ITEMS"), 500)

	if IsProduction && JWTSecret == "" {
		log.Fatal("JWT_SECRET_KEY must be set in production")
	}

	log.Printf("[config] AppEnv=%s IsProduction=%v", AppEnv, IsProduction)
	log.Printf("[config] GoogleAPIKeyPresent=%v GeminiModel=%s IndexPath=%s", GoogleAPIKey != "", GeminiModel, IndexPath)
	log.Printf("[config] RateLimit window=%ds capacity=%d userConc=%d dupWindow=%ds cacheTTL=%ds cacheMax=%d",
		RateLimitWindowSeconds, RateLimitCapacity, UserConcurrencyLimit, DuplicateWindowSeconds, RetrievalCacheTTL, RetrievalCacheMaxItems)
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func splitOr(s string, def []string) []string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
