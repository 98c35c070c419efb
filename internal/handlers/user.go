package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"earniverse-backend/internal/models"
	"earniverse-backend/internal/services"
)

type UserHandler struct {
	store      *services.RedisStore
	jwtService *services.JWTService
}

func NewUserHandler(store *services.RedisStore, jwtService *services.JWTService) *UserHandler {
	return &UserHandler{
		store:      store,
		jwtService: jwtService,
	}
}

// GuestLogin issues a token for a fresh guest account. Full identity
// providers live outside this service; the table only needs a stable user id
// with a wallet behind it.
func (h *UserHandler) GuestLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=2,max=32"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	user := &models.User{
		ID:        int64(uuid.New().ID()),
		Username:  req.Username,
		CreatedAt: time.Now(),
	}
	if err := h.store.StoreUser(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	session := &models.UserSession{
		UserID:       user.ID,
		SessionID:    uuid.New().String(),
		Username:     user.Username,
		CreatedAt:    time.Now(),
		LastAccessed: time.Now(),
	}
	if err := h.store.StoreUserSession(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, session.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	// Creates the wallet with the starting balance on first access
	wallet, err := h.store.GetWallet(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
		},
		"balance": wallet.Balance,
	})
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetInt64("user_id")
	sessionID := c.GetString("session_id")

	session, err := h.store.GetUserSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
		return
	}

	wallet, err := h.store.GetWallet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":       session.UserID,
			"username": session.Username,
		},
		"session": gin.H{
			"session_id":    session.SessionID,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessed,
		},
		"wallet": gin.H{
			"balance":       wallet.Balance,
			"total_wagered": wallet.TotalWagered,
			"total_won":     wallet.TotalWon,
		},
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	userID := c.GetInt64("user_id")
	sessionID := c.GetString("session_id")

	if err := h.store.DeleteUserSession(c.Request.Context(), userID, sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
