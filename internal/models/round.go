package models

import "time"

type RoundState string

const (
	RoundStateIdle      RoundState = "idle"
	RoundStateCountdown RoundState = "countdown"
	RoundStateFlying    RoundState = "flying"
	RoundStateCrashed   RoundState = "crashed"
	RoundStateSettling  RoundState = "settling"
)

// Round is one play of the crash game, shared by every wager placed on the
// table. CrashPoint is fixed at creation and must never be serialized to
// clients before the round crashes.
type Round struct {
	ID         string     `json:"id"`
	State      RoundState `json:"state"`
	CrashPoint float64    `json:"-"`
	Multiplier float64    `json:"multiplier"`

	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int64  `json:"nonce"`

	StartedAt time.Time `json:"started_at"`
	CrashedAt time.Time `json:"crashed_at,omitempty"`
}

// Wager is a single player's bet, bound to exactly one round. Settled flips
// at most once: either by a cashout or by loss resolution at the crash tick.
type Wager struct {
	UserID            int64     `json:"user_id"`
	RoundID           string    `json:"round_id"`
	Amount            float64   `json:"amount"`
	PlacedAt          time.Time `json:"placed_at"`
	Settled           bool      `json:"settled"`
	CashedOut         bool      `json:"cashed_out"`
	CashoutMultiplier float64   `json:"cashout_multiplier,omitempty"`
	Payout            float64   `json:"payout,omitempty"`
}

// Outcome is the final result of a settled wager. The same Outcome is
// returned again if settlement is attempted a second time.
type Outcome struct {
	RoundID    string  `json:"round_id"`
	Won        bool    `json:"won"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
	NewBalance float64 `json:"new_balance"`
}

// CrashHistoryEntry is one line of the table-wide recent-crash strip.
type CrashHistoryEntry struct {
	RoundID    string    `json:"round_id"`
	CrashPoint float64   `json:"crash_point"`
	CreatedAt  time.Time `json:"created_at"`
}

// RoundView is the client-safe projection of a round. While the round is
// flying it carries only the running multiplier and the fairness commitment;
// the crash point and server seed appear after the crash.
type RoundView struct {
	ID             string     `json:"id"`
	State          RoundState `json:"state"`
	Multiplier     float64    `json:"multiplier"`
	CrashPoint     float64    `json:"crash_point,omitempty"`
	ServerSeedHash string     `json:"server_seed_hash"`
	ClientSeed     string     `json:"client_seed"`
	Nonce          int64      `json:"nonce"`
	Players        int        `json:"players"`
}
