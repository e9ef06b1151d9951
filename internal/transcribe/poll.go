package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrWaitExceeded = errors.New("transcription job did not finish in time")

type PollOptions struct {
	Interval    time.Duration
	MaxInterval time.Duration
	MaxWait     time.Duration
	// Sleep is replaceable in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = 3 * time.Second
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 30 * time.Second
	}
	if o.MaxInterval < o.Interval {
		o.MaxInterval = o.Interval
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 30 * time.Minute
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	return o
}

// Poll calls check until it reports done, returns an error, or MaxWait has
// elapsed. The delay between checks doubles up to MaxInterval.
func Poll(ctx context.Context, opts PollOptions, check func(ctx context.Context) (bool, error)) error {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.MaxWait)
	delay := opts.Interval

	for attempt := 1; ; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w after %d checks (max wait %s)", ErrWaitExceeded, attempt, opts.MaxWait)
		}
		if delay > remaining {
			delay = remaining
		}
		if err := opts.Sleep(ctx, delay); err != nil {
			return err
		}

		delay *= 2
		if delay > opts.MaxInterval {
			delay = opts.MaxInterval
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
