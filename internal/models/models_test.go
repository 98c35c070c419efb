package models_test

import (
	"errors"
	"testing"

	"earniverse-backend/internal/models"
)

func TestBetRequestValidate(t *testing.T) {
	valid := &models.BetRequest{Amount: 50}
	if err := valid.Validate(); err != nil {
		t.Errorf("BetRequest validation failed: %v", err)
	}

	tooSmall := &models.BetRequest{Amount: 0}
	if err := tooSmall.Validate(); !errors.Is(err, models.ErrInvalidWager) {
		t.Errorf("zero bet should fail with ErrInvalidWager, got %v", err)
	}

	tooLarge := &models.BetRequest{Amount: 999999}
	if err := tooLarge.Validate(); !errors.Is(err, models.ErrInvalidWager) {
		t.Errorf("oversized bet should fail with ErrInvalidWager, got %v", err)
	}
}

func TestNewWallet(t *testing.T) {
	wallet, err := models.NewWallet(123456789, 10000)
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}

	if wallet.Balance != 10000 {
		t.Errorf("Expected starting balance 10000, got %f", wallet.Balance)
	}

	if wallet.ClientSeed == "" {
		t.Error("Wallet should have a client seed")
	}
}

func TestCalculatePayout(t *testing.T) {
	if got := models.CalculatePayout(1000, 2.5); got != 2500 {
		t.Errorf("CalculatePayout(1000, 2.5) = %f, want 2500", got)
	}
}

func TestGeneratedIDs(t *testing.T) {
	if models.GenerateRoundID() == "" {
		t.Error("Round ID should not be empty")
	}
	if models.GenerateRoundID() == models.GenerateRoundID() {
		t.Error("Round IDs should be unique")
	}
	if models.GenerateTransactionID() == "" {
		t.Error("Transaction ID should not be empty")
	}
}
