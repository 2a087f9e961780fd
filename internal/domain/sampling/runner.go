package sampling

import (
	"context"
	"sync"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/errors"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

// DefaultTrialsPerPair bounds the battery when the caller passes no
// explicit trial count.
const DefaultTrialsPerPair = 6

// defaultWorkers caps trial concurrency when the caller passes no pool size.
const defaultWorkers = 8

// ─────────────────────────────────────────────────────────────────────────────
// Runner
// ─────────────────────────────────────────────────────────────────────────────

// Runner executes every (prompt, keyword, trial) combination through a
// bounded worker pool. Workers write into preassigned slots, so the output
// order is prompt-major then keyword then trial index regardless of
// completion order.
type Runner struct {
	sampler Sampler
	workers int
	log     logging.Logger
}

// NewRunner builds a Runner over the given sampler.
func NewRunner(sampler Sampler, workers int, log logging.Logger) *Runner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Runner{
		sampler: sampler,
		workers: workers,
		log:     log.Named("sampling"),
	}
}

// Run samples trialsPerPair trials for each (prompt, keyword) pair and
// returns the flattened check list. An empty prompt or keyword set is an
// analysis error; sampler failures and cancellation abort the whole run.
func (r *Runner) Run(ctx context.Context, targetID string, prompts []visibility.Prompt, keywords []visibility.Keyword, trialsPerPair int) ([]visibility.VisibilityCheck, error) {
	if len(prompts) == 0 {
		return nil, errors.Analysis("no prompts to sample")
	}
	if len(keywords) == 0 {
		return nil, errors.Analysis("no keywords to sample")
	}
	if trialsPerPair <= 0 {
		trialsPerPair = DefaultTrialsPerPair
	}

	total := len(prompts) * len(keywords) * trialsPerPair
	checks := make([]visibility.VisibilityCheck, total)

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

dispatch:
	for pi := range prompts {
		for ki := range keywords {
			for t := 0; t < trialsPerPair; t++ {
				select {
				case <-ctx.Done():
					setErr(ctx.Err())
					break dispatch
				case sem <- struct{}{}:
				}

				idx := (pi*len(keywords)+ki)*trialsPerPair + t
				wg.Add(1)
				go func(idx int, prompt, keyword string, trial int) {
					defer wg.Done()
					defer func() { <-sem }()

					outcome, err := r.sampler.SampleTrial(ctx, targetID, prompt, keyword, trial)
					if err != nil {
						setErr(err)
						return
					}
					checks[idx] = outcome.Check(prompt, keyword)
				}(idx, prompts[pi].Value, keywords[ki].Value, t)
			}
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, errors.Wrap(firstErr, errors.ErrCodeAnalysis, "sampling failed")
	}

	r.log.Debug("sampling complete",
		logging.String("target_id", targetID),
		logging.Int("prompts", len(prompts)),
		logging.Int("keywords", len(keywords)),
		logging.Int("checks", total))
	return checks, nil
}
