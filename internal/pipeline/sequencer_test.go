package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestAdvanceEndsExactlyAtEnd(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("progress is increasing, bounded by end and finishes at end", prop.ForAll(
		func(start, span, steps int) bool {
			end := start + span
			seq := NewSequencer(steps, NoSleep)
			var got []int
			err := seq.Advance(context.Background(), start, end, time.Second, func(p int) error {
				got = append(got, p)
				return nil
			})
			if err != nil || len(got) == 0 {
				return false
			}
			prev := start
			for _, p := range got {
				if p <= prev || p > end {
					return false
				}
				prev = p
			}
			return got[len(got)-1] == end
		},
		gen.IntRange(0, 99),
		gen.IntRange(1, 100),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}

func TestAdvanceEmitsTwentyUpdatesByDefault(t *testing.T) {
	seq := NewSequencer(0, NoSleep)
	count := 0
	if err := seq.Advance(context.Background(), 0, 100, time.Second, func(int) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if count != DefaultSteps {
		t.Errorf("updates = %d, want %d", count, DefaultSteps)
	}
}

func TestAdvanceSpacesSleeps(t *testing.T) {
	var slept []time.Duration
	seq := NewSequencer(4, func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})
	if err := seq.Advance(context.Background(), 0, 8, 400*time.Millisecond, func(int) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 4 {
		t.Fatalf("sleeps = %d, want 4", len(slept))
	}
	for _, d := range slept {
		if d != 100*time.Millisecond {
			t.Errorf("sleep = %v, want 100ms", d)
		}
	}
}

func TestAdvanceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	seq := NewSequencer(10, NoSleep)
	var got []int
	err := seq.Advance(ctx, 0, 100, time.Second, func(p int) error {
		got = append(got, p)
		if p >= 30 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got[len(got)-1] != 30 {
		t.Errorf("updates after cancel: %v", got)
	}
}

func TestAdvanceEmptyRange(t *testing.T) {
	seq := NewSequencer(5, NoSleep)
	called := false
	if err := seq.Advance(context.Background(), 50, 50, time.Second, func(int) error {
		called = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("set called for an empty range")
	}
}
