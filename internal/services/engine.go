package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"earniverse-backend/internal/models"
)

type EngineConfig struct {
	HouseEdge    float64
	TickInterval time.Duration
	Countdown    time.Duration
	CrashPause   time.Duration
	DisplayCeil  float64
	ClientSeed   string
}

// CrashEngine runs the shared crash table: one round at a time, driven by a
// ticker goroutine, with bets and cashouts serialized against the tick loop
// through a single mutex. Holding the lock across the balance mutation ties
// the wager's settled flag to the confirmed backend write, so a cashout and
// the crash tick can never interleave on the same wager.
type CrashEngine struct {
	cfg         EngineConfig
	store       Store
	fairness    *Fairness
	broadcaster Broadcaster

	mu      sync.Mutex
	current *RoundSession
	staged  map[int64]*models.Wager // bets placed while idle, joining the next round
}

func NewCrashEngine(cfg EngineConfig, store Store, fairness *Fairness, b Broadcaster) *CrashEngine {
	if b == nil {
		b = NopBroadcaster{}
	}
	if cfg.ClientSeed == "" {
		seed, err := models.GenerateClientSeed()
		if err != nil {
			panic(fmt.Sprintf("failed to generate table seed: %v", err))
		}
		cfg.ClientSeed = seed
	}
	return &CrashEngine{
		cfg:         cfg,
		store:       store,
		fairness:    fairness,
		broadcaster: b,
		staged:      make(map[int64]*models.Wager),
	}
}

// Run drives rounds back to back until ctx is cancelled. On cancellation any
// open wagers are refunded before returning.
func (e *CrashEngine) Run(ctx context.Context) {
	for {
		if err := e.runRound(ctx); err != nil {
			e.abort()
			return
		}
	}
}

func (e *CrashEngine) runRound(ctx context.Context) error {
	session, err := e.openRound(ctx)
	if err != nil {
		log.Printf("Failed to open round: %v", err)
		return sleepCtx(ctx, time.Second)
	}

	e.broadcaster.RoundCountdown(session.View(e.cfg.DisplayCeil))

	if err := sleepCtx(ctx, e.cfg.Countdown); err != nil {
		return err
	}

	e.beginFlight(session)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			multiplier, crashed := e.tick()
			if crashed {
				e.finishCrash(ctx, session)
				if err := sleepCtx(ctx, e.cfg.CrashPause); err != nil {
					return err
				}
				e.closeRound()
				return nil
			}
			e.broadcaster.RoundTick(session.Round.ID, math.Min(multiplier, e.cfg.DisplayCeil))
		}
	}
}

// openRound fixes the crash point and moves staged wagers onto the new round.
func (e *CrashEngine) openRound(ctx context.Context) (*RoundSession, error) {
	nonce, err := e.store.NextRoundNonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate round nonce: %v", err)
	}

	crashPoint, _ := e.fairness.CrashPoint(e.cfg.HouseEdge, e.cfg.ClientSeed, nonce)

	session := newRoundSession(&models.Round{
		ID:             models.GenerateRoundID(),
		State:          models.RoundStateCountdown,
		CrashPoint:     crashPoint,
		Multiplier:     1.0,
		ServerSeedHash: e.fairness.ServerSeedHash(),
		ClientSeed:     e.cfg.ClientSeed,
		Nonce:          nonce,
		StartedAt:      time.Now(),
	})

	e.mu.Lock()
	e.current = session
	for userID, w := range e.staged {
		w.RoundID = session.Round.ID
		session.Wagers[userID] = w
	}
	e.staged = make(map[int64]*models.Wager)
	e.mu.Unlock()

	return session, nil
}

func (e *CrashEngine) beginFlight(session *RoundSession) {
	e.mu.Lock()
	session.Round.State = models.RoundStateFlying
	session.Round.StartedAt = time.Now()
	view := session.View(e.cfg.DisplayCeil)
	e.mu.Unlock()

	e.broadcaster.RoundStarted(view)
}

func (e *CrashEngine) tick() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return 0, false
	}
	return e.current.Advance()
}

// finishCrash reveals the crash point and resolves every open wager as a
// loss, exactly once each.
func (e *CrashEngine) finishCrash(ctx context.Context, session *RoundSession) {
	e.mu.Lock()
	view := session.View(e.cfg.DisplayCeil)
	open := session.takeUnsettled()
	session.Round.State = models.RoundStateSettling
	revealed := e.fairness.ServerSeed()
	// A revealed seed must never generate another round.
	e.fairness.RotateServerSeed()
	e.mu.Unlock()

	e.broadcaster.RoundCrashed(view, revealed)

	if err := e.store.SaveCrashPoint(ctx, session.Round.ID, session.Round.CrashPoint); err != nil {
		log.Printf("Failed to record crash point for %s: %v", session.Round.ID, err)
	}

	for _, w := range open {
		e.resolveLoss(ctx, w, session.Round)
	}
}

// resolveLoss records a lost wager. No balance mutation happens here: the
// stake was debited when the bet was placed.
func (e *CrashEngine) resolveLoss(ctx context.Context, w *models.Wager, round *models.Round) {
	var balanceAfter float64
	if wallet, err := e.store.GetWallet(ctx, w.UserID); err == nil {
		balanceAfter = wallet.Balance
	}

	tx := &models.Transaction{
		ID:           models.GenerateTransactionID(),
		UserID:       w.UserID,
		Type:         models.TransactionTypeGameLoss,
		Amount:       0,
		BalanceAfter: balanceAfter,
		RoundID:      round.ID,
		Description:  fmt.Sprintf("Lost %s, crashed at %.2fx", models.FormatCurrency(w.Amount), round.CrashPoint),
		CreatedAt:    time.Now(),
	}
	if err := e.store.SaveTransaction(ctx, tx); err != nil {
		log.Printf("Failed to record loss for user %d round %s: %v", w.UserID, round.ID, err)
	}

	rec := &models.GameRecord{
		ID:         models.GenerateRecordID(),
		UserID:     w.UserID,
		RoundID:    round.ID,
		BetAmount:  w.Amount,
		Won:        false,
		CrashPoint: round.CrashPoint,
		Outcome:    fmt.Sprintf("crashed at %.2fx", round.CrashPoint),
		CreatedAt:  time.Now(),
	}
	if err := e.store.SaveGameRecord(ctx, rec); err != nil {
		log.Printf("Failed to save game record for user %d round %s: %v", w.UserID, round.ID, err)
	}
}

func (e *CrashEngine) closeRound() {
	e.mu.Lock()
	if e.current != nil {
		e.current.Round.State = models.RoundStateIdle
		e.current = nil
	}
	e.mu.Unlock()
}

// abort refunds every unsettled wager when the table shuts down mid-round.
// Uses a fresh context: the run context is already cancelled by now.
func (e *CrashEngine) abort() {
	e.mu.Lock()
	var open []*models.Wager
	if e.current != nil {
		open = e.current.takeUnsettled()
		e.current = nil
	}
	for _, w := range e.staged {
		open = append(open, w)
	}
	e.staged = make(map[int64]*models.Wager)
	e.mu.Unlock()

	ctx := context.Background()
	for _, w := range open {
		wallet, err := e.store.Credit(ctx, w.UserID, w.Amount, false)
		if err != nil {
			log.Printf("Failed to refund user %d stake %.2f: %v", w.UserID, w.Amount, err)
			continue
		}
		tx := &models.Transaction{
			ID:           models.GenerateTransactionID(),
			UserID:       w.UserID,
			Type:         models.TransactionTypeDeposit,
			Amount:       w.Amount,
			BalanceAfter: wallet.Balance,
			RoundID:      w.RoundID,
			Description:  "Bet refunded: round aborted",
			CreatedAt:    time.Now(),
		}
		if err := e.store.SaveTransaction(ctx, tx); err != nil {
			log.Printf("Failed to record refund for user %d: %v", w.UserID, err)
		}
	}
}

// PlaceBet debits the stake and binds a wager to the current round (or
// stages it for the next one while the table is idle). One wager per user
// per round. The debit is the wager's cost basis regardless of the outcome.
func (e *CrashEngine) PlaceBet(ctx context.Context, userID int64, amount float64) (*models.Wager, error) {
	if amount < models.MinBetAmount || amount > models.MaxBetAmount {
		return nil, models.ErrInvalidWager
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stage := false
	roundID := ""
	switch {
	case e.current == nil || e.current.Round.State == models.RoundStateIdle:
		stage = true
	case e.current.Round.State == models.RoundStateCountdown:
		roundID = e.current.Round.ID
	default:
		return nil, models.ErrBettingClosed
	}

	if stage {
		if _, ok := e.staged[userID]; ok {
			return nil, models.ErrWagerExists
		}
	} else if _, ok := e.current.Wagers[userID]; ok {
		return nil, models.ErrWagerExists
	}

	wallet, err := e.store.Debit(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrBackendUnavailable, err)
	}

	w := &models.Wager{
		UserID:   userID,
		RoundID:  roundID,
		Amount:   amount,
		PlacedAt: time.Now(),
	}
	if stage {
		e.staged[userID] = w
	} else {
		e.current.Wagers[userID] = w
	}

	tx := &models.Transaction{
		ID:           models.GenerateTransactionID(),
		UserID:       userID,
		Type:         models.TransactionTypeBetPlaced,
		Amount:       -amount,
		BalanceAfter: wallet.Balance,
		RoundID:      roundID,
		Description:  fmt.Sprintf("Bet %s on crash", models.FormatCurrency(amount)),
		CreatedAt:    time.Now(),
	}
	if err := e.store.SaveTransaction(ctx, tx); err != nil {
		// Debit already applied; the ledger entry is history, not state.
		log.Printf("Failed to record bet for user %d: %v", userID, err)
	}

	e.broadcaster.WagerPlaced(userID, amount)
	return w, nil
}

// Cashout settles the caller's wager at the current multiplier, at most
// once. The settled flag only flips after the backend confirms the credit;
// on a backend failure the wager stays open and the player may retry until
// the crash tick. A second cashout returns the prior outcome unchanged.
func (e *CrashEngine) Cashout(ctx context.Context, userID int64) (*models.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return nil, models.ErrNoActiveRound
	}
	session := e.current

	w, ok := session.Wagers[userID]
	if !ok {
		return nil, models.ErrNoWager
	}
	if w.Settled {
		return priorOutcome(w), models.ErrAlreadySettled
	}

	switch session.Round.State {
	case models.RoundStateFlying:
	case models.RoundStateCrashed, models.RoundStateSettling:
		return nil, models.ErrCashoutTooLate
	default:
		return nil, models.ErrRoundNotFlying
	}

	captured := session.Round.Multiplier
	if captured >= session.Round.CrashPoint {
		// Unreachable while flying; kept as a guard so a tie can never pay.
		return nil, models.ErrCashoutTooLate
	}

	payout := models.CalculatePayout(w.Amount, captured)
	wallet, err := e.store.Credit(ctx, userID, payout, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBackendUnavailable, err)
	}

	w.Settled = true
	w.CashedOut = true
	w.CashoutMultiplier = captured
	w.Payout = payout

	tx := &models.Transaction{
		ID:           models.GenerateTransactionID(),
		UserID:       userID,
		Type:         models.TransactionTypeGameWin,
		Amount:       payout,
		BalanceAfter: wallet.Balance,
		RoundID:      session.Round.ID,
		Description:  fmt.Sprintf("Won %s at %.2fx", models.FormatCurrency(payout), captured),
		CreatedAt:    time.Now(),
	}
	if err := e.store.SaveTransaction(ctx, tx); err != nil {
		log.Printf("Failed to record win for user %d: %v", userID, err)
	}

	rec := &models.GameRecord{
		ID:         models.GenerateRecordID(),
		UserID:     userID,
		RoundID:    session.Round.ID,
		BetAmount:  w.Amount,
		Won:        true,
		Multiplier: captured,
		Payout:     payout,
		Outcome:    fmt.Sprintf("cashed out at %.2fx", captured),
		CreatedAt:  time.Now(),
	}
	if err := e.store.SaveGameRecord(ctx, rec); err != nil {
		log.Printf("Failed to save game record for user %d: %v", userID, err)
	}

	e.broadcaster.WagerCashedOut(userID, captured, payout)

	return &models.Outcome{
		RoundID:    session.Round.ID,
		Won:        true,
		Multiplier: captured,
		Payout:     payout,
		NewBalance: wallet.Balance,
	}, nil
}

func priorOutcome(w *models.Wager) *models.Outcome {
	return &models.Outcome{
		RoundID:    w.RoundID,
		Won:        w.CashedOut,
		Multiplier: w.CashoutMultiplier,
		Payout:     w.Payout,
	}
}

// CurrentRound returns the client-safe view of the table.
func (e *CrashEngine) CurrentRound() *models.RoundView {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return &models.RoundView{
			State:          models.RoundStateIdle,
			ServerSeedHash: e.fairness.ServerSeedHash(),
			ClientSeed:     e.cfg.ClientSeed,
		}
	}
	return e.current.View(e.cfg.DisplayCeil)
}

// VerificationData exposes the fairness commitment for the table.
func (e *CrashEngine) VerificationData(ctx context.Context) (*models.VerificationData, error) {
	e.mu.Lock()
	var nonce int64
	if e.current != nil {
		nonce = e.current.Round.Nonce
	}
	seed := e.cfg.ClientSeed
	hash := e.fairness.ServerSeedHash()
	e.mu.Unlock()

	return &models.VerificationData{
		ClientSeed:   seed,
		ServerHash:   hash,
		CurrentNonce: nonce,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
