package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"earniverse-backend/internal/models"
)

// memStore is an in-memory Store for engine tests, with injectable backend
// failures.
type memStore struct {
	mu      sync.Mutex
	wallets map[int64]*models.Wallet
	txs     []*models.Transaction
	recs    []*models.GameRecord
	crashes []float64
	nonce   int64

	starting  float64
	creditErr error
	debitErr  error
}

func newMemStore(starting float64) *memStore {
	return &memStore{
		wallets:  make(map[int64]*models.Wallet),
		starting: starting,
	}
}

func (m *memStore) wallet(userID int64) *models.Wallet {
	w, ok := m.wallets[userID]
	if !ok {
		w = &models.Wallet{UserID: userID, Balance: m.starting}
		m.wallets[userID] = w
	}
	return w
}

func (m *memStore) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := *m.wallet(userID)
	return &w, nil
}

func (m *memStore) Debit(ctx context.Context, userID int64, amount float64) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debitErr != nil {
		return nil, m.debitErr
	}
	w := m.wallet(userID)
	if w.Balance < amount {
		return nil, models.ErrInsufficientFunds
	}
	w.Balance -= amount
	w.TotalWagered += amount
	copied := *w
	return &copied, nil
}

func (m *memStore) Credit(ctx context.Context, userID int64, amount float64, win bool) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creditErr != nil {
		return nil, m.creditErr
	}
	w := m.wallet(userID)
	w.Balance += amount
	if win {
		w.TotalWon += amount
	}
	copied := *w
	return &copied, nil
}

func (m *memStore) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, tx)
	return nil
}

func (m *memStore) SaveGameRecord(ctx context.Context, rec *models.GameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) SaveCrashPoint(ctx context.Context, roundID string, crashPoint float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crashes = append(m.crashes, crashPoint)
	return nil
}

func (m *memStore) NextRoundNonce(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonce++
	return m.nonce, nil
}

func (m *memStore) balance(userID int64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallet(userID).Balance
}

func (m *memStore) txCount(kind models.TransactionType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tx := range m.txs {
		if tx.Type == kind {
			n++
		}
	}
	return n
}

func newTestEngine(store Store) *CrashEngine {
	return NewCrashEngine(EngineConfig{
		HouseEdge:    0.05,
		TickInterval: time.Millisecond,
		Countdown:    5 * time.Millisecond,
		CrashPause:   5 * time.Millisecond,
		DisplayCeil:  100,
		ClientSeed:   "table-seed",
	}, store, NewFairness(), nil)
}

// installRound puts a round in a known state, bypassing the timer loop.
func installRound(e *CrashEngine, state models.RoundState, crashPoint, multiplier float64) *RoundSession {
	s := newRoundSession(&models.Round{
		ID:         "round_test",
		State:      state,
		CrashPoint: crashPoint,
		Multiplier: multiplier,
		StartedAt:  time.Now(),
	})
	e.mu.Lock()
	e.current = s
	e.mu.Unlock()
	return s
}

func TestPlaceBetDebitsBalance(t *testing.T) {
	store := newMemStore(10000)
	e := newTestEngine(store)
	installRound(e, models.RoundStateCountdown, 3.0, 1.0)

	w, err := e.PlaceBet(context.Background(), 1, 1000)
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if w.RoundID != "round_test" {
		t.Errorf("wager should bind to the current round, got %q", w.RoundID)
	}
	if got := store.balance(1); got != 9000 {
		t.Errorf("balance after bet = %.2f, want 9000", got)
	}
	if store.txCount(models.TransactionTypeBetPlaced) != 1 {
		t.Error("bet should append one ledger entry")
	}
}

func TestPlaceBetErrors(t *testing.T) {
	store := newMemStore(500)
	e := newTestEngine(store)
	installRound(e, models.RoundStateCountdown, 3.0, 1.0)

	if _, err := e.PlaceBet(context.Background(), 1, 0); !errors.Is(err, models.ErrInvalidWager) {
		t.Errorf("zero amount: got %v, want ErrInvalidWager", err)
	}
	if _, err := e.PlaceBet(context.Background(), 1, -50); !errors.Is(err, models.ErrInvalidWager) {
		t.Errorf("negative amount: got %v, want ErrInvalidWager", err)
	}
	if _, err := e.PlaceBet(context.Background(), 1, 1000); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Errorf("short balance: got %v, want ErrInsufficientFunds", err)
	}
	if got := store.balance(1); got != 500 {
		t.Errorf("failed bets must not move the balance, got %.2f", got)
	}

	installRound(e, models.RoundStateFlying, 3.0, 1.5)
	if _, err := e.PlaceBet(context.Background(), 1, 100); !errors.Is(err, models.ErrBettingClosed) {
		t.Errorf("flying round: got %v, want ErrBettingClosed", err)
	}
}

func TestPlaceBetOncePerRound(t *testing.T) {
	store := newMemStore(10000)
	e := newTestEngine(store)
	installRound(e, models.RoundStateCountdown, 3.0, 1.0)

	if _, err := e.PlaceBet(context.Background(), 1, 100); err != nil {
		t.Fatalf("first bet failed: %v", err)
	}
	if _, err := e.PlaceBet(context.Background(), 1, 100); !errors.Is(err, models.ErrWagerExists) {
		t.Errorf("second bet: got %v, want ErrWagerExists", err)
	}
	if got := store.balance(1); got != 9900 {
		t.Errorf("duplicate bet must not debit again, got %.2f", got)
	}
}

func TestStagedBetJoinsNextRound(t *testing.T) {
	store := newMemStore(10000)
	e := newTestEngine(store)

	// Table idle: the bet is staged and debited immediately
	w, err := e.PlaceBet(context.Background(), 1, 1000)
	if err != nil {
		t.Fatalf("staged bet failed: %v", err)
	}
	if w.RoundID != "" {
		t.Errorf("staged wager should not have a round yet, got %q", w.RoundID)
	}
	if got := store.balance(1); got != 9000 {
		t.Errorf("stake is the cost basis at placement, got %.2f", got)
	}

	session, err := e.openRound(context.Background())
	if err != nil {
		t.Fatalf("openRound failed: %v", err)
	}
	joined, ok := session.Wagers[1]
	if !ok {
		t.Fatal("staged wager should join the new round")
	}
	if joined.RoundID != session.Round.ID {
		t.Errorf("joined wager round = %q, want %q", joined.RoundID, session.Round.ID)
	}
}

func TestCashoutWin(t *testing.T) {
	store := newMemStore(10000)
	e := newTestEngine(store)
	installRound(e, models.RoundStateCountdown, 3.0, 1.0)

	if _, err := e.PlaceBet(context.Background(), 1, 1000); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	e.current.Round.State = models.RoundStateFlying
	e.current.Round.Multiplier = 2.0

	outcome, err := e.Cashout(context.Background(), 1)
	if err != nil {
		t.Fatalf("Cashout failed: %v", err)
	}
	if !outcome.Won || outcome.Multiplier != 2.0 || outcome.Payout != 2000 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	// Net effect: -1000 at placement, +2000 at cashout
	if got := store.balance(1); got != 11000 {
		t.Errorf("balance after win = %.2f, want 11000", got)
	}
	if store.txCount(models.TransactionTypeGameWin) != 1 {
		t.Error("win should append one ledger entry")
	}
}

func TestCashoutTwiceReturnsPriorOutcome(t *testing.T) {
	store := newMemStore(10000)
	e := newTestEngine(store)
	installRound(e, models.RoundStateCountdown, 3.0, 1.0)

	if _, err := e.PlaceBet(context.Background(), 1, 1000); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	e.current.Round.State = models.RoundStateFlying
	e.current.Round.Multiplier = 2.0

	first, err := e.Cashout(context.Background(), 1)
	if err != nil {
		t.Fatalf("first cashout failed: %v", err)
	}

	second, err := e.Cashout(context.Background(), 1)
	if !errors.Is(err, models.ErrAlreadySettled) {
		t.Fatalf("second cashout: got %v, want ErrAlreadySettled", err)
	}
	if second == nil || !second.Won || second.Payout != first.Payout {
		t.Errorf("second cashout should return the prior outcome, got %+v", second)
	}
	if got := store.balance(1); got != 11000 {
		t.Errorf("second cashout must not credit again, got %.2f", got)
	}
	if store.txCount(models.TransactionTypeGameWin) != 1 {
		t.Error("second cashout must not append another win entry")
	}
}

func TestCashoutAfterCrashIsLoss(t *testing.T) {
	store := newMemStore(10000)
	e := newTestEngine(store)
	installRound(e, models.RoundStateCountdown, 1.5, 1.0)

	if _, err := e.PlaceBet(context.Background(), 1, 1000); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	e.current.Round.State = models.RoundStateCrashed
	e.current.Round.Multiplier = 1.5

	if _, err := e.Cashout(context.Background(), 1); !errors.Is(err, models.ErrCashoutTooLate) {
		t.Errorf("cashout after crash: got %v, want ErrCashoutTooLate", err)
	}

	e.finishCrash(context.Background(), e.current)

	// Stake stays debited, nothing credited
	if got := store.balance(1); got != 9000 {
		t.Errorf("balance after loss = %.2f, want 9000", got)
	}
	if store.txCount(models.TransactionTypeGameLoss) != 1 {
		t.Error("loss should append one ledger entry")
	}
}

func TestLossResolutionIdempotent(t *testing.T) {
	store := newMemStore(10000)
	e := newTestEngine(store)
	installRound(e, models.RoundStateCountdown, 1.5, 1.0)

	if _, err := e.PlaceBet(context.Background(), 1, 1000); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	session := e.current
	session.Round.State = models.RoundStateCrashed

	e.finishCrash(context.Background(), session)
	e.finishCrash(context.Background(), session)

	if store.txCount(models.TransactionTypeGameLoss) != 1 {
		t.Errorf("loss must resolve exactly once, got %d entries", store.txCount(models.TransactionTypeGameLoss))
	}
	if got := store.balance(1); got != 9000 {
		t.Errorf("repeated resolution must not move the balance, got %.2f", got)
	}

	// Loss and cashout are mutually exclusive
	if _, err := e.Cashout(context.Background(), 1); !errors.Is(err, models.ErrAlreadySettled) {
		t.Errorf("cashout after loss: got %v, want ErrAlreadySettled", err)
	}
	if store.txCount(models.TransactionTypeGameWin) != 0 {
		t.Error("a lost wager must never produce a win entry")
	}
}

func TestCashoutBackendFailureLeavesWagerOpen(t *testing.T) {
	store := newMemStore(10000)
	e := newTestEngine(store)
	installRound(e, models.RoundStateCountdown, 3.0, 1.0)

	if _, err := e.PlaceBet(context.Background(), 1, 1000); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	e.current.Round.State = models.RoundStateFlying
	e.current.Round.Multiplier = 2.0

	store.creditErr = errors.New("connection refused")
	if _, err := e.Cashout(context.Background(), 1); !errors.Is(err, models.ErrBackendUnavailable) {
		t.Fatalf("failed credit: got %v, want ErrBackendUnavailable", err)
	}
	if e.current.Wagers[1].Settled {
		t.Fatal("wager must stay open when the credit fails")
	}

	// Backend recovers before the crash tick: the retry pays exactly once
	store.creditErr = nil
	outcome, err := e.Cashout(context.Background(), 1)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if outcome.Payout != 2000 {
		t.Errorf("retry payout = %.2f, want 2000", outcome.Payout)
	}
	if got := store.balance(1); got != 11000 {
		t.Errorf("balance after retry = %.2f, want 11000", got)
	}
}

func TestCashoutWithoutWager(t *testing.T) {
	store := newMemStore(10000)
	e := newTestEngine(store)

	if _, err := e.Cashout(context.Background(), 1); !errors.Is(err, models.ErrNoActiveRound) {
		t.Errorf("no round: got %v, want ErrNoActiveRound", err)
	}

	installRound(e, models.RoundStateFlying, 3.0, 1.5)
	if _, err := e.Cashout(context.Background(), 1); !errors.Is(err, models.ErrNoWager) {
		t.Errorf("no wager: got %v, want ErrNoWager", err)
	}
}

func TestCashoutDuringCountdown(t *testing.T) {
	store := newMemStore(10000)
	e := newTestEngine(store)
	installRound(e, models.RoundStateCountdown, 3.0, 1.0)

	if _, err := e.PlaceBet(context.Background(), 1, 1000); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if _, err := e.Cashout(context.Background(), 1); !errors.Is(err, models.ErrRoundNotFlying) {
		t.Errorf("cashout during countdown: got %v, want ErrRoundNotFlying", err)
	}
}

func TestAbortRefundsOpenWagers(t *testing.T) {
	store := newMemStore(10000)
	e := newTestEngine(store)
	installRound(e, models.RoundStateFlying, 3.0, 1.5)

	e.current.Wagers[1] = &models.Wager{UserID: 1, RoundID: "round_test", Amount: 1000, PlacedAt: time.Now()}
	store.mu.Lock()
	store.wallet(1).Balance = 9000 // stake already debited
	store.mu.Unlock()

	e.abort()

	if got := store.balance(1); got != 10000 {
		t.Errorf("abort should refund the stake, got %.2f", got)
	}
	if e.current != nil {
		t.Error("abort should discard the round")
	}
}

func TestEngineRunLifecycle(t *testing.T) {
	store := newMemStore(10000)
	fairness := NewFairnessWithSeed("lifecycle-test-server-seed")

	// Pick a table seed whose first round crashes within a few ticks so the
	// test does not depend on the heavy tail of the distribution.
	var clientSeed string
	var wantCrash float64
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("table-%d", i)
		cp, _ := fairness.CrashPoint(0.05, candidate, 1)
		if cp <= 1.5 {
			clientSeed = candidate
			wantCrash = cp
			break
		}
	}

	e := NewCrashEngine(EngineConfig{
		HouseEdge:    0.05,
		TickInterval: time.Millisecond,
		Countdown:    5 * time.Millisecond,
		CrashPause:   5 * time.Millisecond,
		DisplayCeil:  100,
		ClientSeed:   clientSeed,
	}, store, fairness, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		store.mu.Lock()
		n := len(store.crashes)
		store.mu.Unlock()
		if n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("no round completed in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop after cancellation")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.crashes[0] != wantCrash {
		t.Errorf("first recorded crash point = %.2f, want %.2f", store.crashes[0], wantCrash)
	}
	for _, cp := range store.crashes {
		if cp < 1.0 {
			t.Errorf("recorded crash point %.2f below 1.0", cp)
		}
	}
}
