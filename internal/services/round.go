package services

import (
	"math"
	"time"

	"earniverse-backend/internal/models"
)

// multiplierIncrement returns the per-tick step for the current multiplier:
// small steps early for a slow takeoff, larger absolute steps as the curve
// accelerates. The schedule switches at exactly 2.00x and 10.00x.
func multiplierIncrement(m float64) float64 {
	switch {
	case m < 2.0:
		return 0.01
	case m < 10.0:
		return 0.05
	default:
		return 0.1
	}
}

// RoundSession holds one round and every wager riding on it. It is owned by
// the engine, which serializes all access; the session itself carries no
// locking. Discarded wholesale once the post-crash pause elapses.
type RoundSession struct {
	Round  *models.Round
	Wagers map[int64]*models.Wager
}

func newRoundSession(round *models.Round) *RoundSession {
	return &RoundSession{
		Round:  round,
		Wagers: make(map[int64]*models.Wager),
	}
}

// Advance applies one tick. The multiplier is kept to 2 decimal digits so
// the schedule boundaries at 2.00x and 10.00x are hit exactly. Returns the
// post-tick multiplier and whether this tick crashed the round; on the crash
// tick the state flips before the caller releases the engine lock, so any
// cashout arriving afterwards is rejected (ties favor the house).
func (s *RoundSession) Advance() (float64, bool) {
	if s.Round.State != models.RoundStateFlying {
		return s.Round.Multiplier, false
	}

	next := math.Round((s.Round.Multiplier+multiplierIncrement(s.Round.Multiplier))*100) / 100
	s.Round.Multiplier = next

	if next >= s.Round.CrashPoint {
		s.Round.Multiplier = s.Round.CrashPoint
		s.Round.State = models.RoundStateCrashed
		s.Round.CrashedAt = time.Now()
		return s.Round.CrashPoint, true
	}

	return next, false
}

// takeUnsettled marks every open wager settled and returns them for loss
// resolution. Marking before resolving keeps a late cashout from racing a
// loss record for the same wager.
func (s *RoundSession) takeUnsettled() []*models.Wager {
	var open []*models.Wager
	for _, w := range s.Wagers {
		if !w.Settled {
			w.Settled = true
			open = append(open, w)
		}
	}
	return open
}

// View projects the round for clients. The crash point is withheld until
// the round has crashed; the running multiplier is capped at displayCeil
// for presentation only.
func (s *RoundSession) View(displayCeil float64) *models.RoundView {
	v := &models.RoundView{
		ID:             s.Round.ID,
		State:          s.Round.State,
		Multiplier:     math.Min(s.Round.Multiplier, displayCeil),
		ServerSeedHash: s.Round.ServerSeedHash,
		ClientSeed:     s.Round.ClientSeed,
		Nonce:          s.Round.Nonce,
		Players:        len(s.Wagers),
	}
	if s.Round.State == models.RoundStateCrashed || s.Round.State == models.RoundStateSettling {
		v.CrashPoint = s.Round.CrashPoint
	}
	return v
}
