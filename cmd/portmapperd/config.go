package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dspace-group/veos-cosim/internal/portmapper"
)

// appConfig mirrors the teacher's cmd/can-server appConfig shape, but
// parsed via cobra flags bound through viper instead of hand-rolled
// flag+env overlay, and scoped to the port mapper's own knobs.
type appConfig struct {
	listenPort      uint16
	enableRemote    bool
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

// bindFlags wires cmd's flags into v, binding --port to
// VEOS_COSIM_PORTMAPPER_PORT (the variable internal/portmapper.Port reads)
// and every other flag to a daemon-only VEOS_COSIM_PORTMAPPERD_* variable.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Flags()
	flags.Uint16("port", 0, "Port mapper TCP port (0 = VEOS_COSIM_PORTMAPPER_PORT or default 27027)")
	flags.Bool("remote-access", false, "Bind 0.0.0.0 instead of 127.0.0.1")
	flags.String("log-format", "text", "Log format: text|json")
	flags.String("log-level", "info", "Log level: debug|info|warn|error")
	flags.String("metrics-addr", "", "Metrics HTTP listen address (e.g. :9100); empty disables")
	flags.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters")
	flags.Bool("mdns-enable", false, "Advertise the port mapper over mDNS")
	flags.String("mdns-name", "", "mDNS instance name (default veos-cosim-portmapperd-<hostname>)")

	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix("VEOS_COSIM_PORTMAPPERD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// The port itself is shared with the rest of the core (clients/servers
	// dial VEOS_COSIM_PORTMAPPER_PORT, not a daemon-specific variable), so
	// bind it explicitly to that name instead of the VEOS_COSIM_PORTMAPPERD_
	// prefix the rest of the flags use.
	if err := v.BindEnv("port", "VEOS_COSIM_PORTMAPPER_PORT"); err != nil {
		return fmt.Errorf("bind port env: %w", err)
	}
	return nil
}

func loadConfig(v *viper.Viper) (*appConfig, error) {
	listenPort := uint16(v.GetUint("port"))
	if listenPort == 0 {
		listenPort = portmapper.Port()
	}
	cfg := &appConfig{
		listenPort:      listenPort,
		enableRemote:    v.GetBool("remote-access"),
		logFormat:       v.GetString("log-format"),
		logLevel:        v.GetString("log-level"),
		metricsAddr:     v.GetString("metrics-addr"),
		logMetricsEvery: v.GetDuration("log-metrics-interval"),
		mdnsEnable:      v.GetBool("mdns-enable"),
		mdnsName:        v.GetString("mdns-name"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *appConfig) validate() error {
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.logMetricsEvery < 0 {
		return fmt.Errorf("log-metrics-interval must be >= 0")
	}
	return nil
}
