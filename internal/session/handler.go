package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Tokens TokenService
}

func NewHandler(tokens TokenService) *Handler {
	return &Handler{Tokens: tokens}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.POST("/refresh", Middleware(h.Tokens), h.refresh)
}

func (h *Handler) create(c *gin.Context) {
	token, claims, err := h.Tokens.Issue()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}
	c.JSON(http.StatusCreated, tokenResponse(token, claims))
}

// refresh extends a live session without changing its watchlist.
func (h *Handler) refresh(c *gin.Context) {
	current := MustGetClaims(c)
	if current == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	token, claims, err := h.Tokens.Sign(current.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse(token, claims))
}

func tokenResponse(token string, claims *Claims) gin.H {
	return gin.H{
		"session_id": claims.SessionID,
		"token":      token,
		"expires_at": claims.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
