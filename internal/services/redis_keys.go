package services

import "time"

const (
	KeyUserSession      = "user:%d:session:%s"
	KeyUserInfo         = "user:%d:info"
	KeyWallet           = "wallet:%d"
	KeyTransaction      = "transaction:%s"
	KeyUserTransactions = "user:%d:transactions"
	KeyGameRecord       = "record:%s"
	KeyUserRecords      = "user:%d:records"
	KeyCrashHistory     = "table:crash_history"
	KeyRoundNonce       = "table:round_nonce"
	KeyRateLimit        = "ratelimit:%d:%s"

	TTLUserSession = 24 * time.Hour
	TTLUserInfo    = 30 * 24 * time.Hour // 30 days
	TTLGameRecord  = 7 * 24 * time.Hour  // 7 days
	TTLTransaction = 30 * 24 * time.Hour // 30 days

	DefaultRateLimitBets    = 30 // Max 30 bets per minute
	DefaultRateLimitCashout = 60 // Max 60 cashouts per minute

	CrashHistoryLength = 50
)
