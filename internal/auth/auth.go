package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gdg-garage/facility-api/internal/config"
	"github.com/gdg-garage/facility-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	DiscordAuthorizeEndpoint = "https://discord.com/api/oauth2/authorize"
	DiscordTokenEndpoint     = "https://discord.com/api/oauth2/token"
	DiscordUserAPI           = "https://discord.com/api/users/@me"

	TokenCookie       = "auth_token"
	oauthStateCookie  = "oauth_state"
	DefaultTokenTTL   = 24 * time.Hour
	defaultBcryptCost = 10
)

var ErrInvalidToken = errors.New("invalid token")

type AuthHandler struct {
	oauthConfig *oauth2.Config
	db          *gorm.DB
	cfg         *config.Config
	logger      *zap.Logger
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &AuthHandler{db: db, cfg: cfg, logger: logger}
	if cfg.DiscordLoginEnabled() {
		h.oauthConfig = &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  DiscordAuthorizeEndpoint,
				TokenURL: DiscordTokenEndpoint,
			},
		}
	}
	return h
}

func (h *AuthHandler) tokenDuration() time.Duration {
	if h.cfg.TokenDuration > 0 {
		return h.cfg.TokenDuration
	}
	return DefaultTokenTTL
}

func (h *AuthHandler) bcryptCost() int {
	if h.cfg.BcryptCost > 0 {
		return h.cfg.BcryptCost
	}
	return defaultBcryptCost
}

func (h *AuthHandler) GenerateToken(userID uint, role models.Role) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(h.tokenDuration()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// ParseToken validates a session token and returns its principal and expiry.
func (h *AuthHandler) ParseToken(tokenString string) (Principal, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return Principal{}, time.Time{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, time.Time{}, ErrInvalidToken
	}
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok || userIDFloat <= 0 {
		return Principal{}, time.Time{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	if !models.Role(role).Valid() {
		return Principal{}, time.Time{}, ErrInvalidToken
	}

	var exp time.Time
	if e, err := claims.GetExpirationTime(); err == nil && e != nil {
		exp = e.Time
	}

	return Principal{UserID: uint(userIDFloat), Role: models.Role(role)}, exp, nil
}

func (h *AuthHandler) sessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Expires:  time.Now().Add(h.tokenDuration()),
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cfg.Env == "production",
	}
}

// DiscordLoginEnabled reports whether the OAuth routes should be mounted.
func (h *AuthHandler) DiscordLoginEnabled() bool {
	return h.oauthConfig != nil
}

func (h *AuthHandler) HandleDiscordLogin(w http.ResponseWriter, r *http.Request) {
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(stateBytes)
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Path:     "/auth/discord",
	})

	url := h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) HandleDiscordCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "Invalid login state", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		http.Error(w, "Failed to exchange token", http.StatusInternalServerError)
		return
	}

	client := h.oauthConfig.Client(r.Context(), token)

	resp, err := client.Get(DiscordUserAPI)
	if err != nil {
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	var identity discordIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		http.Error(w, "Failed to decode user info", http.StatusInternalServerError)
		return
	}
	if identity.ID == "" {
		http.Error(w, "Failed to decode user info", http.StatusInternalServerError)
		return
	}

	user, err := h.linkDiscordUser(identity)
	if err != nil {
		h.logger.Error("Discord login failed", zap.String("discord_id", identity.ID), zap.Error(err))
		http.Error(w, "Failed to save user", http.StatusInternalServerError)
		return
	}

	jwtToken, err := h.GenerateToken(user.ID, user.Role)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, h.sessionCookie(jwtToken))
	http.Redirect(w, r, h.cfg.FrontendURL, http.StatusTemporaryRedirect)
}

// discordIdentity is the subset of Discord's /users/@me payload used for login.
type discordIdentity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Avatar   string `json:"avatar"`
}

// linkDiscordUser finds the account for a Discord identity. A known Discord ID
// wins. Otherwise a verified e-mail links to an existing resident that has no
// Discord account yet; an administrator account is never claimed through
// Discord. Anything else becomes a new resident.
func (h *AuthHandler) linkDiscordUser(id discordIdentity) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if !id.Verified {
		email = ""
	}

	var user models.User
	err := h.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("discord_id = ?", id.ID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) && email != "" {
			err = tx.Where("email = ?", email).First(&user).Error
			if err == nil && (user.Role != models.RoleResident || user.DiscordID != nil) {
				h.logger.Warn("Refusing to link Discord identity by e-mail",
					zap.String("discord_id", id.ID),
					zap.Uint("user_id", user.ID),
				)
				user = models.User{}
				email = ""
				err = gorm.ErrRecordNotFound
			}
		}
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{
				Name:  id.Username,
				Email: email,
				Role:  models.RoleResident,
			}
			if user.Email == "" {
				user.Email = id.ID + "@users.discord"
			}
		case err != nil:
			return err
		}

		discordID := id.ID
		user.DiscordID = &discordID
		user.Avatar = id.Avatar
		if user.Name == "" {
			user.Name = id.Username
		}
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
