package main

import (
	"context"
	"sync"
)

// workers tracks the background loops main starts so shutdown can wait for them
type workers struct {
	wg sync.WaitGroup
}

func (w *workers) Go(fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// Wait blocks until every loop has returned or ctx is done
func (w *workers) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
