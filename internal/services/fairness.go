package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
)

const (
	// InstantCrashProb is the fixed share of rounds that crash at 1.00x.
	InstantCrashProb = 0.01

	// MaxCrashPoint caps the generated multiplier so payout math cannot
	// overflow on extreme draws.
	MaxCrashPoint = 1000000.0
)

// GenerateCrashPoint maps a uniform draw r in (0, 1) to a crash multiplier.
// Draws below InstantCrashProb crash instantly at 1.00x; the rest follow a
// heavy-tailed distribution truncated to 2 decimal digits, tuned so the
// long-run expected payout is (1 - houseEdge) of the wagered amount.
func GenerateCrashPoint(houseEdge, r float64) float64 {
	if r < InstantCrashProb {
		return 1.0
	}

	e := 100 / (100 - houseEdge*100)
	crashPoint := math.Floor((e/r)*100) / 100

	if crashPoint < 1.0 {
		crashPoint = 1.0
	}
	if crashPoint > MaxCrashPoint {
		crashPoint = MaxCrashPoint
	}

	return crashPoint
}

// Fairness implements the provably fair commitment scheme: the server seed
// is never revealed before a round crashes, only its hash. The crash point
// is derived from HMAC-SHA256(serverSeed, clientSeed:nonce), so it never has
// to leave the server process before settlement.
type Fairness struct {
	serverSeed string
}

func NewFairness() *Fairness {
	return &Fairness{serverSeed: generateServerSeed()}
}

// NewFairnessWithSeed restores a persisted server seed, keeping the
// published commitment valid across restarts.
func NewFairnessWithSeed(serverSeed string) *Fairness {
	if serverSeed == "" {
		return NewFairness()
	}
	return &Fairness{serverSeed: serverSeed}
}

func generateServerSeed() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("failed to read random seed: %v", err))
	}
	return hex.EncodeToString(bytes)
}

func (f *Fairness) ServerSeed() string {
	return f.serverSeed
}

func (f *Fairness) ServerSeedHash() string {
	hash := sha256.Sum256([]byte(f.serverSeed))
	return hex.EncodeToString(hash[:])
}

// Roll derives the uniform draw for one round along with the round hash.
func (f *Fairness) Roll(clientSeed string, nonce int64) (float64, string) {
	return deriveRoll(f.serverSeed, clientSeed, nonce)
}

// CrashPoint produces the crash multiplier for one round. Called exactly
// once per round, before any ticking begins.
func (f *Fairness) CrashPoint(houseEdge float64, clientSeed string, nonce int64) (float64, string) {
	r, hash := f.Roll(clientSeed, nonce)
	return GenerateCrashPoint(houseEdge, r), hash
}

// RotateServerSeed swaps in a fresh seed. Should happen on a schedule so a
// revealed seed cannot be used to predict future rounds.
func (f *Fairness) RotateServerSeed() {
	f.serverSeed = generateServerSeed()
}

// VerifyCrashPoint recomputes a round's crash point from the revealed server
// seed so players can check fairness after the fact.
func VerifyCrashPoint(serverSeed, clientSeed string, nonce int64, houseEdge float64) (float64, string) {
	r, hash := deriveRoll(serverSeed, clientSeed, nonce)
	return GenerateCrashPoint(houseEdge, r), hash
}

func deriveRoll(serverSeed, clientSeed string, nonce int64) (float64, string) {
	message := fmt.Sprintf("%s:%d", clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))
	hash := hex.EncodeToString(h.Sum(nil))

	// First 52 bits (13 hex characters) of the hash as a float in [0, 1)
	n := new(big.Int)
	n.SetString(hash[:13], 16)
	r := float64(n.Int64()) / math.Pow(2, 52)

	return r, hash
}
