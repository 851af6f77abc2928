package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		var inUse *server.PortInUseError
		if errors.As(err, &inUse) {
			color.New(color.FgRed).Fprint(os.Stderr, inUse.Diagnostic())
		} else {
			fmt.Fprintln(os.Stderr, color.RedString("ERROR:"), err)
		}
		os.Exit(1)
	}
}

type flagValues struct {
	port           int
	host           string
	target         string
	certPath       string
	keyPath        string
	distDir        string
	writeCert      bool
	allowedOrigins []string
	logLevel       string
	dev            bool
	metrics        bool
	rateLimit      bool
}

func newRootCommand() *cobra.Command {
	var fv flagValues

	cmd := &cobra.Command{
		Use:   "topaz-bridge",
		Short: "Local HTTPS bridge for the Topaz SigWeb tablet host",
		Long: heredoc.Doc(`
			Serves HTTPS on localhost and forwards /sigweb/* to the plaintext SigWeb
			host, adding the CORS and Private Network Access headers browsers need
			to call it from an HTTPS page.

			Every flag can also be set through the environment (BRIDGE_PORT,
			SIGWEB_TARGET, ...). Flags win over the environment.
		`),
		Example: heredoc.Doc(`
			# Defaults: https://localhost:9443 -> http://localhost:47289
			topaz-bridge

			# Another port, loopback only
			topaz-bridge --port 9444 --host 127.0.0.1
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cfg, cmd.Flags(), fv)
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&fv.port, "port", "p", 9443, "HTTPS port (BRIDGE_PORT)")
	flags.StringVar(&fv.host, "host", "", "bind host, empty for all interfaces (BRIDGE_HOST)")
	flags.StringVarP(&fv.target, "target", "t", "http://localhost:47289", "SigWeb base URL (SIGWEB_TARGET)")
	flags.StringVar(&fv.certPath, "cert", "certs/localhost-cert.pem", "PEM certificate (BRIDGE_CERT_PATH)")
	flags.StringVar(&fv.keyPath, "key", "certs/localhost-key.pem", "PEM private key (BRIDGE_KEY_PATH)")
	flags.StringVar(&fv.distDir, "dist", "dist/topaz-demo", "prebuilt app to serve (BRIDGE_DIST_DIR)")
	flags.BoolVar(&fv.writeCert, "write-cert", false, "save a generated certificate to --cert/--key (BRIDGE_WRITE_CERT)")
	flags.StringSliceVar(&fv.allowedOrigins, "allowed-origins", nil, "origin allowlist; empty reflects any origin (BRIDGE_ALLOWED_ORIGINS)")
	flags.StringVar(&fv.logLevel, "log-level", "info", "debug, info, warn or error (LOG_LEVEL)")
	flags.BoolVar(&fv.dev, "dev", false, "human-readable logs (LOG_DEV)")
	flags.BoolVar(&fv.metrics, "metrics", false, "expose Prometheus metrics on /metrics (METRICS_ENABLED)")
	flags.BoolVar(&fv.rateLimit, "rate-limit", true, "per-client rate limit on /sigweb (RATE_LIMIT_ENABLED)")

	return cmd
}

// applyFlags copies explicitly set flags over the environment config.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet, fv flagValues) {
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("port", func() { cfg.Bridge.Port = fv.port })
	set("host", func() { cfg.Bridge.Host = fv.host })
	set("target", func() { cfg.Upstream.Target = fv.target })
	set("cert", func() { cfg.TLS.CertPath = fv.certPath })
	set("key", func() { cfg.TLS.KeyPath = fv.keyPath })
	set("dist", func() { cfg.Bridge.DistDir = fv.distDir })
	set("write-cert", func() { cfg.TLS.WriteGenerated = fv.writeCert })
	set("allowed-origins", func() { cfg.CORS.AllowedOrigins = fv.allowedOrigins })
	set("log-level", func() { cfg.Logging.Level = fv.logLevel })
	set("dev", func() { cfg.Logging.Development = fv.dev })
	set("metrics", func() { cfg.Metrics.Enabled = fv.metrics })
	set("rate-limit", func() { cfg.RateLimit.Enabled = fv.rateLimit })
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.NewFromSettings(cfg.Logging.Level, cfg.Logging.Development)
	defer func() { _ = logger.Sync() }()

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	printBanner(out, cfg)
	logger.Info("Bridge started",
		zap.String("addr", srv.Addr().String()),
		zap.String("target", cfg.Upstream.Target),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func printBanner(out io.Writer, cfg *config.Config) {
	origin := server.BridgeURL(cfg.Bridge.Port)
	bold := color.New(color.Bold)

	bold.Fprintf(out, "Topaz demo bridge listening: %s\n", origin)
	fmt.Fprintf(out, "Proxying: %s/sigweb/*  ->  %s/sigweb/*\n", origin, cfg.Upstream.Target)
	fmt.Fprintf(out, "Health check: %s/health\n", origin)
}
