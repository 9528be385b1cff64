package flagcube

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEachBaseline calls fn once per baseline on a bounded pool of goroutines
// (see WithWorkers) and returns the first error.
//
// Baselines never share storage, so fn may flag its baseline through any
// agent without locking. fn must not call barrier operations (Advance, Load,
// Publish, NewAgent, Init, Close).
func (s *Shared) ForEachBaseline(ctx context.Context, fn func(ctx context.Context, ifr int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.workers)

	for ifr := range s.shape.NumBaselines {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(ctx, ifr)
		})
	}
	return g.Wait()
}
