// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"os"
	"sync"
)

// CloseGroup runs goroutines tied to a shared context that is canceled, and
// waited for, by Close.
type CloseGroup struct {
	closeCtx  context.Context
	causeFunc context.CancelCauseFunc

	wg sync.WaitGroup

	once sync.Once
}

func (cg *CloseGroup) init() {
	cg.closeCtx, cg.causeFunc = context.WithCancelCause(context.Background())
}

// Close cancels the group context and waits for every goroutine.
func (cg *CloseGroup) Close() {
	cg.once.Do(cg.init)
	cg.causeFunc(os.ErrClosed)
	cg.wg.Wait()
}

// Context returns the group context.
func (cg *CloseGroup) Context() context.Context {
	cg.once.Do(cg.init)
	return cg.closeCtx
}

// Go runs f in a new goroutine with the group context.
func (cg *CloseGroup) Go(f func(ctx context.Context)) {
	cg.once.Do(cg.init)

	cg.wg.Add(1)
	go func() {
		defer cg.wg.Done()
		f(cg.closeCtx)
	}()
}
