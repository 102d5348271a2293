package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/hallway/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/chat"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/hub"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/observability"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const oauthStateCookie = "hallway_oauth_state"

var (
	errMissingSessionManager = errors.New("session manager dependency required")
	errMissingUsersService   = errors.New("users service dependency required")
	errMissingChatService    = errors.New("chat service dependency required")
	errMissingHub            = errors.New("hub dependency required")
)

// IdentityVerifier validates provider ID tokens.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (auth.IdentityClaims, error)
}

// OAuthFlow drives the provider redirect and code exchange.
type OAuthFlow interface {
	NewState() (string, error)
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// SessionManager issues and validates the session cookie.
type SessionManager interface {
	Issue(identity auth.IdentityClaims) (string, error)
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	SessionCookie(token string) *http.Cookie
	ClearCookie() *http.Cookie
}

// Dependencies wires the HTTP surface to the rest of the service.
type Dependencies struct {
	Flow     OAuthFlow
	Verifier IdentityVerifier
	Sessions SessionManager
	Users    *users.Service
	Chat     *chat.Service
	Hub      *hub.Hub
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// NewHTTPHandler assembles the router for the chat service.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionManager
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Chat == nil {
		return nil, errMissingChatService
	}
	if deps.Hub == nil {
		return nil, errMissingHub
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		flow:     deps.Flow,
		verifier: deps.Verifier,
		sessions: deps.Sessions,
		users:    deps.Users,
		chat:     deps.Chat,
		hub:      deps.Hub,
		logger:   logger,
		metrics:  deps.Metrics,
	}

	router.GET("/auth/google", handler.handleAuthRedirect)
	router.GET("/auth/google/callback", handler.handleAuthCallback)
	router.GET("/logout", handler.handleLogout)
	router.GET("/api/user", handler.handleCurrentUser)
	router.POST("/api/set-username", handler.handleSetUsername)
	router.GET("/api/messages", handler.handleMessages)
	router.GET("/ws", handler.handleWebsocket)
	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	return router, nil
}

type httpHandler struct {
	flow     OAuthFlow
	verifier IdentityVerifier
	sessions SessionManager
	users    *users.Service
	chat     *chat.Service
	hub      *hub.Hub
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func (h *httpHandler) handleAuthRedirect(c *gin.Context) {
	if h.flow == nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	state, err := h.flow.NewState()
	if err != nil {
		h.logger.Error("failed to generate oauth state", zap.Error(err))
		c.Redirect(http.StatusFound, "/")
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.Redirect(http.StatusFound, h.flow.AuthURL(state))
}

func (h *httpHandler) handleAuthCallback(c *gin.Context) {
	// every failure path lands back on the root page, per the login UX
	if h.flow == nil || h.verifier == nil {
		c.Redirect(http.StatusFound, "/")
		return
	}

	stateCookie, err := c.Request.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != c.Query("state") {
		h.logger.Warn("oauth state mismatch")
		c.Redirect(http.StatusFound, "/")
		return
	}

	rawIDToken, err := h.flow.ExchangeCode(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.logger.Warn("oauth code exchange failed", zap.Error(err))
		c.Redirect(http.StatusFound, "/")
		return
	}

	identity, err := h.verifier.Verify(c.Request.Context(), rawIDToken)
	if err != nil {
		h.logger.Warn("id token verification failed", zap.Error(err))
		c.Redirect(http.StatusFound, "/")
		return
	}

	token, err := h.sessions.Issue(identity)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.Redirect(http.StatusFound, "/")
		return
	}

	http.SetCookie(c.Writer, h.sessions.SessionCookie(token))
	c.Redirect(http.StatusFound, "/")
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	http.SetCookie(c.Writer, h.sessions.ClearCookie())
	c.Redirect(http.StatusFound, "/")
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	username, err := h.users.Username(c.Request.Context(), claims.Email)
	if err != nil {
		h.logger.Error("username lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	response := gin.H{
		"authenticated": true,
		"email":         claims.Email,
		"name":          claims.Name,
	}
	if username != "" {
		response["username"] = username
	}
	c.JSON(http.StatusOK, response)
}

type setUsernamePayload struct {
	Username string `json:"username"`
}

func (h *httpHandler) handleSetUsername(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthenticated"})
		return
	}

	var payload setUsernamePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_username"})
		return
	}

	username, err := h.users.SetUsername(c.Request.Context(), claims.Email, payload.Username)
	if err != nil {
		if errors.Is(err, users.ErrInvalidUsername) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_username"})
			return
		}
		h.logger.Error("failed to store username", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "username": username})
}

func (h *httpHandler) handleMessages(c *gin.Context) {
	messages, err := h.chat.ListRecent(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, messages)
}
