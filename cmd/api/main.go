package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"earniverse-backend/internal/config"
	"earniverse-backend/internal/handlers"
	"earniverse-backend/internal/middleware"
	"earniverse-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := services.NewRedisStore(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer store.Close()

	jwtService := services.NewJWTService(cfg)
	fairness := services.NewFairness()
	hub := handlers.NewWebSocketHub()

	engine := services.NewCrashEngine(services.EngineConfig{
		HouseEdge:    cfg.HouseEdge,
		TickInterval: cfg.TickInterval,
		Countdown:    cfg.CountdownDuration,
		CrashPause:   cfg.CrashPause,
		DisplayCeil:  cfg.MaxDisplayMult,
	}, store, fairness, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx)

	userHandler := handlers.NewUserHandler(store, jwtService)
	gameHandler := handlers.NewGameHandler(engine, store, cfg.HouseEdge)
	wsHandler := handlers.NewWebSocketHandler(engine, store, hub)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/guest", userHandler.GuestLogin)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/logout", userHandler.Logout)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		games := protected.Group("/games")
		{
			games.POST("/bet", gameHandler.PlaceBet)
			games.POST("/cashout", gameHandler.Cashout)
			games.GET("/round", gameHandler.GetRound)
			games.GET("/balance", gameHandler.GetBalance)
			games.GET("/history", gameHandler.GetGameHistory)
			games.GET("/transactions", gameHandler.GetTransactions)

			games.GET("/verification", gameHandler.GetVerificationData)
			games.POST("/verify", gameHandler.VerifyRound)
		}
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
