package models

type Wallet struct {
	UserID       int64   `json:"user_id" redis:"user_id"`
	Balance      float64 `json:"balance" redis:"balance"`
	TotalWagered float64 `json:"total_wagered" redis:"total_wagered"`
	TotalWon     float64 `json:"total_won" redis:"total_won"`

	// Provably fair seeds
	ClientSeed string `json:"client_seed" redis:"client_seed"`
	Nonce      int64  `json:"nonce" redis:"nonce"`
}

type BalanceResponse struct {
	Balance      float64 `json:"balance"`
	TotalWagered float64 `json:"total_wagered"`
	TotalWon     float64 `json:"total_won"`
}
