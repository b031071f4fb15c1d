package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/proxy"
)

const relayLongDesc string = `Run the relay edge proxy.

Requests are forwarded to the upstream API. When API_KEY is set, clients
must present an allowlisted access code in the AUTH_CODE header and the
relay sends API_KEY upstream as their bearer credential.

Environment:
  API_HOST    upstream host override (e.g. api.openai.com)
  API_KEY     upstream key injected for allowlisted access codes
  CODES       allowlist; an access code is allowed when it is a substring
  API_SCHEME  upstream scheme, http or https (default https)

Examples:
  relay
  relay --listen :8080 --metrics-listen :9090
  relay --config /etc/relay/relay.toml --debug`

const relayShortDesc string = "Access-code gated edge proxy for an LLM API"

// shutdownTimeout bounds how long in-flight requests get after a signal.
const shutdownTimeout = 10 * time.Second

type relayCommander struct {
	configPath  string
	listenAddr  string
	metricsAddr string
	debug       bool
	jsonLogs    bool
}

func newRelayCmd() *cobra.Command {
	cmder := &relayCommander{}

	cmd := &cobra.Command{
		Use:           "relay",
		Short:         relayShortDesc,
		Long:          relayLongDesc,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", proxy.DefaultListenAddr, "Address to listen on")
	cmd.Flags().StringVar(&cmder.metricsAddr, "metrics-listen", "", "Address to serve Prometheus metrics on (disabled when empty)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json", false, "Output logs in JSON format")
	cmd.CompletionOptions.DisableDefaultCmd = true

	return cmd
}

func (c *relayCommander) run(ctx context.Context, cmd *cobra.Command) error {
	logger := logger.NewLogger(c.debug, c.jsonLogs)
	defer logger.Sync()

	config, err := proxy.LoadConfig(c.configPath)
	if err != nil {
		return err
	}

	// Explicit flags win over the config file.
	if cmd.Flags().Changed("listen") {
		config.ListenAddr = c.listenAddr
	}
	if cmd.Flags().Changed("metrics-listen") {
		config.MetricsAddr = c.metricsAddr
	}

	logger.Info("relay starting",
		zap.String("listen", config.ListenAddr),
		zap.String("metrics_listen", config.MetricsAddr),
		zap.Bool("debug", c.debug),
	)

	p, err := proxy.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to create proxy: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("proxy server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return p.Shutdown(shutdownCtx)
}

func main() {
	if err := newRelayCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}
