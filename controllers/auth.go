package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/Devcavi19/adal-ui/middleware"
	"github.com/Devcavi19/adal-ui/models"
	"github.com/Devcavi19/adal-ui/pkg/cache"
	"github.com/Devcavi19/adal-ui/pkg/config"
	tokenstore "github.com/Devcavi19/adal-ui/pkg/token"
	"github.com/Devcavi19/adal-ui/pkg/utils"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.GoogleOAuthClientID,
		ClientSecret: config.GoogleOAuthClientSecret,
		RedirectURL:  config.AppURL + "/auth/callback",
		Scopes:       []string{"email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

// issueToken creates a 24h HS256 bearer token for the user.
func issueToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret))
}

// SignUp handles POST /api/auth/signup. Email format and the
// institutional domain allowlist are re-validated here regardless of
// what the client already checked.
func SignUp(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email           string `json:"email"`
			FullName        string `json:"full_name"`
			Password        string `json:"password"`
			ConfirmPassword string `json:"confirm_password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		email := strings.TrimSpace(strings.ToLower(body.Email))
		password := body.Password

		if email == "" || password == "" || body.ConfirmPassword == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email, password, and confirm password are required"})
			return
		}
		if msg := utils.ValidateEmail(email, config.AllowedEmailDomains); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		if password != body.ConfirmPassword {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords do not match"})
			return
		}
		if len(password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters"})
			return
		}
		if !utils.HasLetter(password) || !utils.HasNumber(password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must contain at least one letter and one number"})
			return
		}

		var exists models.User
		if err := db.Where("email = ?", email).First(&exists).Error; err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "This email is already registered. Please sign in instead."})
			return
		} else if err != gorm.ErrRecordNotFound {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		user := models.User{
			Email:       email,
			FullName:    strings.TrimSpace(body.FullName),
			EmailDomain: utils.EmailDomain(email, config.AllowedEmailDomains),
		}
		if err := user.SetPassword(password); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set password"})
			return
		}
		if err := db.Create(&user).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "Account created successfully! You can now sign in.",
			"user":    gin.H{"id": user.ID, "email": user.Email, "full_name": user.FullName},
		})
	}
}

// SignIn handles POST /api/auth/signin.
func SignIn(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		email := strings.TrimSpace(strings.ToLower(body.Email))
		if email == "" || body.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
			return
		}

		var user models.User
		if err := db.Where("email = ?", email).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password. Please check your credentials and try again."})
			return
		}
		if !user.CheckPassword(body.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password. Please check your credentials and try again."})
			return
		}

		tokenStr, err := issueToken(user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Sign in successful",
			"user":    gin.H{"id": user.ID, "email": user.Email, "full_name": user.FullName},
			"session": gin.H{"access_token": tokenStr},
		})
	}
}

// SignOut handles POST /api/auth/signout by revoking the token's jti.
func SignOut() gin.HandlerFunc {
	return func(c *gin.Context) {
		jti, _ := c.Get(middleware.ContextJTIKey)
		if s, ok := jti.(string); ok && s != "" {
			tokenstore.RevokeToken(s)
		}
		c.JSON(http.StatusOK, gin.H{"message": "Signed out successfully"})
	}
}

// CurrentUser handles GET /api/auth/user.
func CurrentUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := middleware.UserID(c)

		var user models.User
		if err := db.First(&user, "id = ?", uid).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user": gin.H{"id": user.ID, "email": user.Email, "full_name": user.FullName},
		})
	}
}

// GoogleSignIn handles GET /api/auth/google: returns the authorize URL.
// The state token lives in the cache for ten minutes.
func GoogleSignIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.GoogleOAuthClientID == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign in is not configured"})
			return
		}
		state := uuid.NewString()
		cache.Default().Set(cache.KeyFromStrings("oauth-state", state), state, 10*time.Minute)
		c.JSON(http.StatusOK, gin.H{"url": oauthConfig().AuthCodeURL(state)})
	}
}

// GoogleCallback handles GET /auth/callback: exchanges the code, checks
// the account's email against the domain allowlist, finds or creates
// the user, and issues a bearer token.
func GoogleCallback(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := c.Query("state")
		code := c.Query("code")
		if state == "" || code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing code or state"})
			return
		}
		if _, ok := cache.Default().TakeString(cache.KeyFromStrings("oauth-state", state)); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
			return
		}

		conf := oauthConfig()
		tok, err := conf.Exchange(c.Request.Context(), code)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Authentication failed"})
			return
		}

		info, err := fetchGoogleUser(c.Request.Context(), conf, tok)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch Google profile"})
			return
		}

		email := strings.TrimSpace(strings.ToLower(info.Email))
		if msg := utils.ValidateEmail(email, config.AllowedEmailDomains); msg != "" {
			c.JSON(http.StatusForbidden, gin.H{"error": msg})
			return
		}

		var user models.User
		if err := db.Where("email = ?", email).First(&user).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
				return
			}
			user = models.User{
				Email:       email,
				FullName:    info.Name,
				EmailDomain: utils.EmailDomain(email, config.AllowedEmailDomains),
			}
			if err := db.Create(&user).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
				return
			}
		}

		tokenStr, err := issueToken(user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user":    gin.H{"id": user.ID, "email": user.Email, "full_name": user.FullName},
			"session": gin.H{"access_token": tokenStr},
		})
	}
}

type googleUser struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func fetchGoogleUser(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (*googleUser, error) {
	client := conf.Client(ctx, tok)
	resp, err := client.Get(googleUserinfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var info googleUser
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, fmt.Errorf("userinfo response missing email")
	}
	return &info, nil
}
