package ingest

import (
	"context"
	"sync"
	"sync/atomic"
)

// compilePool bounds the number of pages compiling at once. Submission
// blocks when the pool is at capacity and respects context cancellation
// while waiting.
type compilePool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	panics int64
}

func newCompilePool(size int) *compilePool {
	if size <= 0 {
		size = 1
	}
	return &compilePool{sem: make(chan struct{}, size)}
}

// Submit enqueues one page compilation. A panicking task is contained so
// the remaining pages still compile.
func (p *compilePool) Submit(ctx context.Context, fn func()) error {
	// Checked up front so a cancelled context never wins the select race
	// against a free slot.
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&p.panics, 1)
			}
			<-p.sem
			p.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Wait blocks until all submitted work completes.
func (p *compilePool) Wait() {
	p.wg.Wait()
}

// Panics reports how many submitted tasks panicked.
func (p *compilePool) Panics() int64 {
	return atomic.LoadInt64(&p.panics)
}
