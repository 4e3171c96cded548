// Command portmapperd runs the co-sim port mapper as a standalone daemon:
// the internal/portmapper.Registry/Server pair as its own long-lived
// process, so several co-sim servers on one host can share a single
// well-known lookup point (a server with ServerConfig.RegisterAtPortMapper
// set registers its port with it over RPC). Grounded on the teacher's
// cmd/can-server main.go/logger.go/metrics_logger.go/mdns.go shape, using
// github.com/spf13/cobra and github.com/spf13/viper for configuration
// instead of the teacher's hand-rolled flag+env overlay.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dspace-group/veos-cosim/internal/metrics"
	"github.com/dspace-group/veos-cosim/internal/portmapper"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:           "portmapperd",
		Short:         "Standalone co-sim port mapper daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.Flags().Bool("version", false, "Print version and exit")
	if err := bindFlags(root, v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	root.PreRunE = func(cmd *cobra.Command, args []string) error {
		if show, _ := cmd.Flags().GetBool("version"); show {
			fmt.Printf("portmapperd %s (commit %s, built %s)\n", version, commit, date)
			os.Exit(0)
		}
		return nil
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appConfig) error {
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	registry := portmapper.NewRegistry()
	srv, err := portmapper.NewServer(registry, cfg.listenPort, cfg.enableRemote)
	if err != nil {
		return fmt.Errorf("portmapperd: start server: %w", err)
	}

	ready := make(chan struct{})
	go func() {
		close(ready)
		if err := srv.Serve(); err != nil {
			l.Error("portmapper_serve_error", "error", err)
			cancel()
		}
	}()

	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return
		}
		tcpAddr, ok := srv.Addr().(*net.TCPAddr)
		if !ok {
			l.Warn("mdns_start_failed", "error", "server address is not a TCP address")
			return
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, tcpAddr.Port)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", tcpAddr.Port)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	metrics.SetReadinessFunc(func() bool {
		select {
		case <-ready:
			return ctx.Err() == nil
		default:
			return false
		}
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metricsSrv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigCh:
		l.Info("shutdown_signal", "signal", s.String())
	case <-ctx.Done():
	}
	cancel()
	_ = srv.Stop()
	wg.Wait()
	return nil
}
