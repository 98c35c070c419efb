package models

import "errors"

var (
	ErrInvalidWager       = errors.New("invalid wager amount")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrBettingClosed      = errors.New("betting is closed for this round")
	ErrNoActiveRound      = errors.New("no active round")
	ErrNoWager            = errors.New("no wager placed on this round")
	ErrWagerExists        = errors.New("wager already placed on this round")
	ErrRoundNotFlying     = errors.New("round has not started flying")
	ErrCashoutTooLate     = errors.New("cashout after crash")
	ErrAlreadySettled     = errors.New("wager already settled")
	ErrBackendUnavailable = errors.New("balance backend unavailable")
)
