package models

import "fmt"

// MinBetAmount/MaxBetAmount are in cents (1 USD = 100 cents).
const (
	MinBetAmount = 1
	MaxBetAmount = 10000
)

type BetRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

func (br *BetRequest) Validate() error {
	if br.Amount < MinBetAmount {
		return fmt.Errorf("%w: bet amount must be at least %d cent", ErrInvalidWager, MinBetAmount)
	}
	if br.Amount > MaxBetAmount {
		return fmt.Errorf("%w: maximum bet amount is %d cents", ErrInvalidWager, MaxBetAmount)
	}
	return nil
}

type VerifyRequest struct {
	ClientSeed string `json:"client_seed" binding:"required"`
	ServerSeed string `json:"server_seed" binding:"required"`
	Nonce      int64  `json:"nonce" binding:"required"`
}

type VerificationData struct {
	ClientSeed   string `json:"client_seed"`
	ServerHash   string `json:"server_hash"`
	CurrentNonce int64  `json:"current_nonce"`
}
