package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dspace-group/veos-cosim/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"steps", snap.Steps,
					"io_changes", snap.IoChanges,
					"bus_tx", snap.BusTx,
					"bus_rx", snap.BusRx,
					"bus_full", snap.BusFull,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
