package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"earniverse-backend/internal/models"
	"earniverse-backend/internal/services"
)

type GameHandler struct {
	engine    *services.CrashEngine
	store     *services.RedisStore
	houseEdge float64
}

func NewGameHandler(engine *services.CrashEngine, store *services.RedisStore, houseEdge float64) *GameHandler {
	return &GameHandler{
		engine:    engine,
		store:     store,
		houseEdge: houseEdge,
	}
}

func (h *GameHandler) PlaceBet(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.BetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	// Rate Limit: 30 bets per minute
	allowed, err := h.store.CheckRateLimit(c.Request.Context(), userID, "bet", services.DefaultRateLimitBets, time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
		return
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many bets. Please wait."})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  "invalid_wager",
		})
		return
	}

	wager, err := h.engine.PlaceBet(c.Request.Context(), userID, req.Amount)
	if err != nil {
		status, code := betErrorStatus(err)
		c.JSON(status, gin.H{
			"error": "Failed to place bet",
			"code":  code,
		})
		return
	}

	wallet, err := h.store.GetWallet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"wager": gin.H{
			"round_id":  wager.RoundID,
			"amount":    wager.Amount,
			"placed_at": wager.PlacedAt,
		},
		"balance": wallet.Balance,
	})
}

func betErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidWager):
		return http.StatusBadRequest, "invalid_wager"
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, models.ErrBettingClosed):
		return http.StatusConflict, "betting_closed"
	case errors.Is(err, models.ErrWagerExists):
		return http.StatusConflict, "wager_exists"
	case errors.Is(err, models.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "backend_unavailable"
	default:
		return http.StatusBadRequest, "bet_failed"
	}
}

func (h *GameHandler) Cashout(c *gin.Context) {
	userID := c.GetInt64("user_id")

	// Rate Limit: 60 cashouts per minute
	allowed, err := h.store.CheckRateLimit(c.Request.Context(), userID, "cashout", services.DefaultRateLimitCashout, time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
		return
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many cashouts. Please wait."})
		return
	}

	outcome, err := h.engine.Cashout(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrAlreadySettled) {
			// Settlement already happened: hand back the prior outcome
			// instead of applying a second credit.
			c.JSON(http.StatusOK, gin.H{
				"success":         true,
				"already_settled": true,
				"result":          outcome,
			})
			return
		}
		status, code := cashoutErrorStatus(err)
		c.JSON(status, gin.H{
			"error": "Failed to cashout",
			"code":  code,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  outcome,
	})
}

func cashoutErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNoActiveRound), errors.Is(err, models.ErrRoundNotFlying):
		return http.StatusConflict, "round_not_flying"
	case errors.Is(err, models.ErrNoWager):
		return http.StatusBadRequest, "no_wager"
	case errors.Is(err, models.ErrCashoutTooLate):
		return http.StatusConflict, "cashout_too_late"
	case errors.Is(err, models.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "backend_unavailable"
	default:
		return http.StatusBadRequest, "cashout_failed"
	}
}

func (h *GameHandler) GetRound(c *gin.Context) {
	view := h.engine.CurrentRound()

	history, err := h.store.GetCrashHistory(c.Request.Context(), 20)
	if err != nil {
		history = nil
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   view,
		"history": history,
	})
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.store.GetWallet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get wallet",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": models.BalanceResponse{
			Balance:      wallet.Balance,
			TotalWagered: wallet.TotalWagered,
			TotalWon:     wallet.TotalWon,
		},
		"client_seed": wallet.ClientSeed,
	})
}

func (h *GameHandler) GetGameHistory(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	records, err := h.store.GetGameHistory(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get game history",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"games":   records,
		"count":   len(records),
	})
}

func (h *GameHandler) GetTransactions(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	transactions, err := h.store.GetUserTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get transactions",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (h *GameHandler) GetVerificationData(c *gin.Context) {
	data, err := h.engine.VerificationData(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get verification data",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func (h *GameHandler) VerifyRound(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	crashPoint, hash := services.VerifyCrashPoint(req.ServerSeed, req.ClientSeed, req.Nonce, h.houseEdge)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"verification": gin.H{
			"crash_point":     crashPoint,
			"calculated_hash": hash,
			"client_seed":     req.ClientSeed,
			"server_seed":     req.ServerSeed,
			"nonce":           req.Nonce,
		},
	})
}
