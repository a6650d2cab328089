package dedup

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
)

// Mode selects whether the executor touches the store
type Mode int

const (
	// DryRun reports what would be deleted and issues no deletes
	DryRun Mode = iota
	// Execute deletes after the countdown
	Execute
)

// Deleter removes one facility row
type Deleter interface {
	HardDelete(ctx context.Context, id string) error
}

// IndexRemover drops a facility from a search index
type IndexRemover interface {
	Delete(ctx context.Context, id string) error
}

// Progress is reported after each delete attempt
type Progress struct {
	Done  int
	Total int
	ID    string
	Err   error
}

// ExecutorConfig configures an Executor
type ExecutorConfig struct {
	Mode      Mode
	Countdown time.Duration
	Delay     time.Duration

	// Index, when set, has successfully deleted ids removed from it
	Index IndexRemover
	// Metrics may be nil
	Metrics *observability.Metrics

	// OnCountdown is called once per second of the countdown with the time left
	OnCountdown func(remaining time.Duration)
	OnProgress  func(Progress)
}

// ExecutionResult summarizes a run
type ExecutionResult struct {
	DryRun    bool
	Attempted int
	Succeeded int
	Failed    int
	FailedIDs []string
}

// Executor deletes facility rows one at a time with a fixed pause between requests
type Executor struct {
	deleter Deleter
	cfg     ExecutorConfig
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor
func NewExecutor(deleter Deleter, cfg ExecutorConfig) *Executor {
	return &Executor{deleter: deleter, cfg: cfg, sleep: sleepContext}
}

// Execute deletes ids sequentially. Individual failures are counted and the run
// continues. A cancelled context stops the run before the next delete and the
// partial result is returned with the context error.
func (e *Executor) Execute(ctx context.Context, ids []string) (*ExecutionResult, error) {
	result := &ExecutionResult{DryRun: e.cfg.Mode != Execute}
	if result.DryRun || len(ids) == 0 {
		return result, nil
	}

	if err := e.countdown(ctx); err != nil {
		return result, err
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if i > 0 && e.cfg.Delay > 0 {
			if err := e.sleep(ctx, e.cfg.Delay); err != nil {
				return result, err
			}
		}

		result.Attempted++
		err := e.deleter.HardDelete(ctx, id)
		if err != nil {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, id)
			log.Warn().Err(err).Str("facility_id", id).Msg("delete failed")
		} else {
			result.Succeeded++
			observability.RecordFacilitiesDeleted(ctx, e.cfg.Metrics, 1)
			e.removeFromIndex(ctx, id)
		}

		if e.cfg.OnProgress != nil {
			e.cfg.OnProgress(Progress{Done: i + 1, Total: len(ids), ID: id, Err: err})
		}
	}
	return result, nil
}

func (e *Executor) countdown(ctx context.Context) error {
	remaining := e.cfg.Countdown
	for remaining > 0 {
		if e.cfg.OnCountdown != nil {
			e.cfg.OnCountdown(remaining)
		}
		step := time.Second
		if remaining < step {
			step = remaining
		}
		if err := e.sleep(ctx, step); err != nil {
			return err
		}
		remaining -= step
	}
	return nil
}

func (e *Executor) removeFromIndex(ctx context.Context, id string) {
	if e.cfg.Index == nil {
		return
	}
	if err := e.cfg.Index.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Str("facility_id", id).Msg("failed to remove deleted facility from search index")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
