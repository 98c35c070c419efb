package models

import "time"

type User struct {
	ID       int64  `json:"id" redis:"id"`
	Username string `json:"username" redis:"username"`

	CreatedAt time.Time `json:"created_at" redis:"created_at"`
}

type UserSession struct {
	UserID       int64     `json:"user_id"`
	SessionID    string    `json:"session_id"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// GameRecord is one completed round per player, written after settlement.
type GameRecord struct {
	ID         string    `json:"id" redis:"id"`
	UserID     int64     `json:"user_id" redis:"user_id"`
	RoundID    string    `json:"round_id" redis:"round_id"`
	BetAmount  float64   `json:"bet_amount" redis:"bet_amount"`
	Won        bool      `json:"won" redis:"won"`
	Multiplier float64   `json:"multiplier" redis:"multiplier"`
	Payout     float64   `json:"payout" redis:"payout"`
	CrashPoint float64   `json:"crash_point" redis:"crash_point"`
	Outcome    string    `json:"outcome" redis:"outcome"`
	CreatedAt  time.Time `json:"created_at" redis:"created_at"`
}
