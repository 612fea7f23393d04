package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkersWait(t *testing.T) {
	tests := []struct {
		name    string
		loop    func(ctx context.Context, stuck <-chan struct{})
		wantErr error
	}{
		{
			name:    "loops stop on cancel",
			loop:    func(ctx context.Context, _ <-chan struct{}) { <-ctx.Done() },
			wantErr: nil,
		},
		{
			name:    "stuck loop times out",
			loop:    func(_ context.Context, stuck <-chan struct{}) { <-stuck },
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			stuck := make(chan struct{})
			defer close(stuck)

			var w workers
			var finished atomic.Int32
			for i := 0; i < 3; i++ {
				w.Go(func() {
					tt.loop(ctx, stuck)
					finished.Add(1)
				})
			}
			cancel()

			waitCtx, waitCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer waitCancel()
			err := w.Wait(waitCtx)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, int32(3), finished.Load())
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, finished.Load())
		})
	}
}
