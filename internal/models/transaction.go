package models

import "time"

type TransactionType string

const (
	TransactionTypeBetPlaced TransactionType = "bet_placed"
	TransactionTypeGameWin   TransactionType = "game_win"
	TransactionTypeGameLoss  TransactionType = "game_loss"
	TransactionTypeDeposit   TransactionType = "deposit"
	TransactionTypeWithdraw  TransactionType = "withdraw"
)

// Transaction is one entry in the append-only ledger. Amount is the balance
// delta: negative for debits, positive for credits, zero for loss records
// (the stake was already debited when the bet was placed).
type Transaction struct {
	ID           string          `json:"id" redis:"id"`
	UserID       int64           `json:"user_id" redis:"user_id"`
	Type         TransactionType `json:"type" redis:"type"`
	Amount       float64         `json:"amount" redis:"amount"`
	BalanceAfter float64         `json:"balance_after" redis:"balance_after"`
	RoundID      string          `json:"round_id,omitempty" redis:"round_id,omitempty"`
	Description  string          `json:"description" redis:"description"`
	CreatedAt    time.Time       `json:"created_at" redis:"created_at"`
}
