// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunPool runs fn over tasks on up to workers goroutines and delivers the
// results in completion order. The channel closes once every started task
// has finished. After ctx is cancelled no further tasks are started, so the
// channel may carry fewer results than there are tasks; fn is expected to
// return promptly with a failure result once ctx is done.
//
// Workers only compute results. Callers apply them to shared state from the
// goroutine that drains the channel.
func RunPool[T, R any](ctx context.Context, workers int, tasks []T, fn func(context.Context, T) R) <-chan R {
	out := make(chan R, len(tasks))
	if workers < 1 {
		workers = 1
	}
	go func() {
		defer close(out)
		var g errgroup.Group
		g.SetLimit(workers)
		for _, task := range tasks {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				out <- fn(ctx, task)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return out
}
