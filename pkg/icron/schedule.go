package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type TriggerInfo struct {
	Expression    string
	Next          time.Time
	Following     time.Time
	TimeUntilNext time.Duration
	Interval      time.Duration
}

// GetTriggerInfo describes when a standard 5-field cron expression fires next
// relative to refTime, and the gap to the run after that.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	next := schedule.Next(refTime)
	following := schedule.Next(next)

	return &TriggerInfo{
		Expression:    cronExpr,
		Next:          next,
		Following:     following,
		TimeUntilNext: next.Sub(refTime),
		Interval:      following.Sub(next),
	}, nil
}
