package services

import (
	"context"

	"earniverse-backend/internal/models"
)

// BalanceStore is the external balance collaborator. Debit and Credit are
// atomic read-modify-writes against the backing store; the engine never
// treats a local copy of the balance as authoritative.
type BalanceStore interface {
	GetWallet(ctx context.Context, userID int64) (*models.Wallet, error)
	// Debit subtracts amount, failing with models.ErrInsufficientFunds
	// when the balance is short. Returns the wallet after the mutation.
	Debit(ctx context.Context, userID int64, amount float64) (*models.Wallet, error)
	// Credit adds amount. win controls whether the wallet's running
	// total-won counter moves (refunds do not count as winnings).
	Credit(ctx context.Context, userID int64, amount float64, win bool) (*models.Wallet, error)
}

// Ledger is the append-only transaction record. The engine never updates or
// deletes entries.
type Ledger interface {
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
}

// GameRecorder persists one record per completed round per player, plus the
// table-wide crash history shown to clients.
type GameRecorder interface {
	SaveGameRecord(ctx context.Context, rec *models.GameRecord) error
	SaveCrashPoint(ctx context.Context, roundID string, crashPoint float64) error
}

// Store is everything the engine needs from the backend.
type Store interface {
	BalanceStore
	Ledger
	GameRecorder

	// NextRoundNonce hands out the monotonically increasing nonce fed
	// into the provably fair roll, surviving restarts.
	NextRoundNonce(ctx context.Context) (int64, error)
}
