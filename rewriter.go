package pathtree

import (
	"context"
	"fmt"
	"sync"
)

// rewrite drains cur, calling fn for every record with at most workers
// calls in flight. Once a call fails no further records are scheduled;
// calls already running finish. It returns how many calls succeeded and
// the first error. cur is closed before returning.
func rewrite(ctx context.Context, cur Cursor, workers int, fn func(context.Context, *Node) error) (int, error) {
	if workers < 1 {
		workers = 1
	}
	gate := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		gate <- struct{}{}
	}
	var (
		l        sync.Mutex
		firstErr error
		applied  int
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		l.Lock()
		if firstErr == nil {
			firstErr = err
		}
		l.Unlock()
	}
	failed := func() bool {
		l.Lock()
		defer l.Unlock()
		return firstErr != nil
	}

schedule:
	for {
		select {
		case <-gate:
		case <-ctx.Done():
			fail(ctx.Err())
			break schedule
		}
		if failed() {
			gate <- struct{}{}
			break
		}
		if !cur.Next(ctx) {
			gate <- struct{}{}
			if err := cur.Err(); err != nil {
				fail(fmt.Errorf("cursor: %w", err))
			}
			break
		}
		var n Node
		if err := cur.Decode(&n); err != nil {
			gate <- struct{}{}
			fail(fmt.Errorf("decode: %w", err))
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { gate <- struct{}{} }()
			if failed() {
				return
			}
			if err := fn(ctx, &n); err != nil {
				fail(fmt.Errorf("%s: %w", n.ID, err))
				return
			}
			l.Lock()
			applied++
			l.Unlock()
		}()
	}
	wg.Wait()

	if err := cur.Close(ctx); err != nil {
		fail(fmt.Errorf("close cursor: %w", err))
	}
	return applied, firstErr
}
