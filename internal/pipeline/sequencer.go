package pipeline

import (
	"context"
	"math"
	"time"
)

// DefaultSteps is the number of progress updates emitted per stage.
const DefaultSteps = 20

// Sequencer animates progress between two percentages over a fixed duration.
type Sequencer struct {
	Steps int
	Sleep Sleeper
}

func NewSequencer(steps int, sleep Sleeper) Sequencer {
	if steps < 1 {
		steps = DefaultSteps
	}
	if sleep == nil {
		sleep = Sleep
	}
	return Sequencer{Steps: steps, Sleep: sleep}
}

// Advance calls set with evenly spaced values from start (exclusive) to end
// (inclusive), pausing duration/Steps between calls. The final value is
// exactly end and no value exceeds it. ctx is checked before every call to
// set; a cancelled context stops the animation without further updates.
func (s Sequencer) Advance(ctx context.Context, start, end int, duration time.Duration, set func(int) error) error {
	if end <= start {
		return ctx.Err()
	}
	steps := s.Steps
	if steps < 1 {
		steps = DefaultSteps
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	interval := duration / time.Duration(steps)
	increment := float64(end-start) / float64(steps)

	last := start
	for i := 1; i <= steps; i++ {
		if err := sleep(ctx, interval); err != nil {
			return err
		}
		current := int(math.Round(float64(start) + increment*float64(i)))
		if i == steps || current > end {
			current = end
		}
		if current == last {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := set(current); err != nil {
			return err
		}
		last = current
		if current >= end {
			break
		}
	}
	return nil
}
