package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

// mdnsServiceType advertises the standalone port mapper daemon so co-sim
// clients/servers on the local network can discover it without a
// hardcoded VEOS_COSIM_PORTMAPPER_PORT. Entirely new relative to the
// original (which has no discovery mechanism at all); grounded on the
// teacher's cmd/can-server/mdns.go, which already carries
// github.com/grandcat/zeroconf for exactly this purpose.
const mdnsServiceType = "_veos-cosim-portmapper._tcp"

func startMDNS(ctx context.Context, cfg *appConfig, port int) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	instance := cfg.mdnsName
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("veos-cosim-portmapperd-%s", host)
	}
	meta := []string{
		"version=" + version,
		"commit=" + commit,
	}
	svc, err := zeroconf.Register(instance, mdnsServiceType, "local.", port, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
