// Copyright (c) 2023 BVK Chaitanya

// Package ctxutil holds small context helpers shared by the ports.
package ctxutil

import (
	"context"
	"time"
)

// Sleep blocks the caller for given timeout duration. Returns early if the
// input context is canceled.
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	sctx, scancel := context.WithTimeout(ctx, d)
	<-sctx.Done()
	scancel()
}
