package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"earniverse-backend/internal/config"
	"earniverse-backend/internal/models"
	"earniverse-backend/internal/services"
)

func setupTestStore(t *testing.T) *services.RedisStore {
	cfg := &config.Config{
		RedisURL:        "localhost:6379",
		RedisPass:       "",
		RedisDB:         0,
		StartingBalance: 10000,
	}

	store, err := services.NewRedisStore(cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return store
}

func TestRedisStoreWallet(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	userID := int64(999999)
	defer store.DeleteWallet(ctx, userID)

	wallet, err := store.GetWallet(ctx, userID)
	if err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}
	if wallet.Balance != 10000 {
		t.Errorf("Expected default balance 10000, got %f", wallet.Balance)
	}

	debited, err := store.Debit(ctx, userID, 1000)
	if err != nil {
		t.Fatalf("Failed to debit: %v", err)
	}
	if debited.Balance != 9000 {
		t.Errorf("Expected balance 9000 after debit, got %f", debited.Balance)
	}
	if debited.TotalWagered != 1000 {
		t.Errorf("Expected total wagered 1000, got %f", debited.TotalWagered)
	}

	if _, err := store.Debit(ctx, userID, 50000); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Errorf("Oversized debit should fail with ErrInsufficientFunds, got %v", err)
	}

	credited, err := store.Credit(ctx, userID, 2000, true)
	if err != nil {
		t.Fatalf("Failed to credit: %v", err)
	}
	if credited.Balance != 11000 {
		t.Errorf("Expected balance 11000 after credit, got %f", credited.Balance)
	}
	if credited.TotalWon != 2000 {
		t.Errorf("Expected total won 2000, got %f", credited.TotalWon)
	}

	// Refunds do not count as winnings
	refunded, err := store.Credit(ctx, userID, 500, false)
	if err != nil {
		t.Fatalf("Failed to credit refund: %v", err)
	}
	if refunded.TotalWon != 2000 {
		t.Errorf("Refund should not move total won, got %f", refunded.TotalWon)
	}
}

func TestRedisStoreLedgerAndRecords(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	userID := int64(999998)
	defer store.DeleteWallet(ctx, userID)

	tx := &models.Transaction{
		ID:          models.GenerateTransactionID(),
		UserID:      userID,
		Type:        models.TransactionTypeBetPlaced,
		Amount:      -1000,
		RoundID:     "round_test",
		Description: "Bet $10.00 on crash",
		CreatedAt:   time.Now(),
	}
	if err := store.SaveTransaction(ctx, tx); err != nil {
		t.Fatalf("Failed to save transaction: %v", err)
	}

	transactions, err := store.GetUserTransactions(ctx, userID, 10)
	if err != nil {
		t.Fatalf("Failed to get transactions: %v", err)
	}
	if len(transactions) == 0 || transactions[0].ID != tx.ID {
		t.Error("Saved transaction should come back first")
	}

	rec := &models.GameRecord{
		ID:         models.GenerateRecordID(),
		UserID:     userID,
		RoundID:    "round_test",
		BetAmount:  1000,
		Won:        true,
		Multiplier: 2.0,
		Payout:     2000,
		Outcome:    "cashed out at 2.00x",
		CreatedAt:  time.Now(),
	}
	if err := store.SaveGameRecord(ctx, rec); err != nil {
		t.Fatalf("Failed to save game record: %v", err)
	}

	records, err := store.GetGameHistory(ctx, userID, 10)
	if err != nil {
		t.Fatalf("Failed to get game history: %v", err)
	}
	if len(records) == 0 || records[0].ID != rec.ID {
		t.Error("Saved game record should come back first")
	}
}

func TestRedisStoreRoundNonce(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	first, err := store.NextRoundNonce(ctx)
	if err != nil {
		t.Fatalf("Failed to get nonce: %v", err)
	}
	second, err := store.NextRoundNonce(ctx)
	if err != nil {
		t.Fatalf("Failed to get nonce: %v", err)
	}
	if second != first+1 {
		t.Errorf("Nonce should be monotonically increasing: %d then %d", first, second)
	}
}

func TestRedisStoreRateLimit(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	userID := int64(999997)

	allowed, err := store.CheckRateLimit(ctx, userID, "test", 5, time.Second)
	if err != nil {
		t.Fatalf("Failed to check rate limit: %v", err)
	}
	if !allowed {
		t.Error("First request should be allowed")
	}
}
