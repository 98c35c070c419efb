package services

import "earniverse-backend/internal/models"

// Broadcaster publishes round lifecycle events to connected clients.
type Broadcaster interface {
	RoundCountdown(view *models.RoundView)
	RoundStarted(view *models.RoundView)
	RoundTick(roundID string, multiplier float64)
	RoundCrashed(view *models.RoundView, serverSeed string)
	WagerPlaced(userID int64, amount float64)
	WagerCashedOut(userID int64, multiplier, payout float64)
}

type NopBroadcaster struct{}

func (NopBroadcaster) RoundCountdown(*models.RoundView) {}
func (NopBroadcaster) RoundStarted(*models.RoundView) {}
func (NopBroadcaster) RoundTick(string, float64) {}
func (NopBroadcaster) RoundCrashed(*models.RoundView, string) {}
func (NopBroadcaster) WagerPlaced(int64, float64) {}
func (NopBroadcaster) WagerCashedOut(int64, float64, float64) {}
