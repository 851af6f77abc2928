package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/TopazBridge/internal/domain/capture"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TopazBridge/internal/sigweb"
)

// errActionFailed signals a failed action whose message is already printed.
var errActionFailed = errors.New("action failed")

type options struct {
	pageOrigin string
	bridgePort int
	baseURL    string
	timeout    time.Duration
	output     string
	insecure   bool
	verbose    bool
}

// action has the shape of capture.Controller method expressions.
type action func(ctrl *capture.Controller, ctx context.Context, st capture.State) capture.State

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "sigwebctl",
		Short: "Drive a Topaz signature pad through SigWeb",
		Long: heredoc.Doc(`
			sigwebctl talks to the SigWeb REST host the way the demo page does.

			--page-origin stands in for the page the client runs on and picks the
			address like a browser would: an https page uses the local bridge, any
			other page talks to SigWeb on http://localhost:47289 directly.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.complete(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.pageOrigin, "page-origin", "", "origin of the page the client runs on, e.g. https://demo.example (SIGWEB_PAGE_ORIGIN)")
	flags.IntVar(&opts.bridgePort, "bridge-port", sigweb.DefaultBridgePort, "local bridge port (BRIDGE_PORT)")
	flags.StringVar(&opts.baseURL, "base-url", "", "SigWeb base URL, overrides --page-origin (SIGWEB_BASE_URL)")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall timeout per command (SIGWEB_CLIENT_TIMEOUT)")
	flags.StringVarP(&opts.output, "output", "o", "text", "output format: text or json")
	flags.BoolVar(&opts.insecure, "insecure", true, "accept the bridge's self-signed certificate")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")

	cmd.AddCommand(
		simpleCommand(opts, "status", "Show SigWeb version, tablet and bridge status", func(c *capture.Controller, ctx context.Context, st capture.State) capture.State {
			st = c.RefreshStatus(ctx, st)
			st.LastAction = "Status"
			return st
		}),
		simpleCommand(opts, "start", "Open the tablet and start capturing", (*capture.Controller).Start),
		simpleCommand(opts, "stop", "Leave capture mode", (*capture.Controller).Stop),
		simpleCommand(opts, "close", "Close the tablet session", (*capture.Controller).Close),
		simpleCommand(opts, "clear", "Clear the signature on the pad", (*capture.Controller).Clear),
		simpleCommand(opts, "info", "Show tablet model, serial number and firmware", (*capture.Controller).DeviceInfo),
		simpleCommand(opts, "stats", "Show point and stroke counts", (*capture.Controller).Stats),
		simpleCommand(opts, "bridge-check", "Check that the local bridge answers", (*capture.Controller).BridgeCheck),
		newSaveCommand(opts),
		newSigStringCommand(opts),
	)
	return cmd
}

// complete fills unset flags from the environment and validates.
func (o *options) complete(cmd *cobra.Command) error {
	env, err := config.LoadClient()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("page-origin") && env.PageOrigin != "" {
		o.pageOrigin = env.PageOrigin
	}
	if !flags.Changed("bridge-port") && env.BridgePort != 0 {
		o.bridgePort = env.BridgePort
	}
	if !flags.Changed("base-url") && env.BaseURL != "" {
		o.baseURL = env.BaseURL
	}
	if !flags.Changed("timeout") && env.Timeout > 0 {
		o.timeout = env.Timeout
	}

	if o.output != "text" && o.output != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", o.output)
	}
	if _, err := o.page(); err != nil {
		return err
	}
	return nil
}

func (o *options) page() (*url.URL, error) {
	if o.pageOrigin == "" {
		return nil, nil
	}
	u, err := url.Parse(o.pageOrigin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid --page-origin %q", o.pageOrigin)
	}
	return u, nil
}

func (o *options) controller(onImage func(capture.Image)) (*capture.Controller, string) {
	page, _ := o.page()
	base := o.baseURL
	if base == "" {
		base = sigweb.SelectBaseURL(page, o.bridgePort)
	}

	logger := logging.NewNop()
	if o.verbose {
		logger = logging.NewFromSettings("debug", true)
	}

	client := sigweb.NewClient(base, sigweb.Options{
		Timeout:            o.timeout,
		InsecureSkipVerify: o.insecure,
		Logger:             logger.Named("sigweb"),
	})
	ctrl := capture.NewController(client,
		capture.WithPage(page),
		capture.WithBridgePort(o.bridgePort),
		capture.WithLogger(logger.Named("capture")),
		capture.WithImageHandler(onImage),
	)
	return ctrl, base
}

// execute runs act and prints the resulting state.
func (o *options) execute(cmd *cobra.Command, act action, onImage func(capture.Image)) error {
	ctrl, base := o.controller(onImage)

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	st := act(ctrl, ctx, capture.State{})
	if err := render(cmd.OutOrStdout(), o.output, base, st); err != nil {
		return err
	}
	if st.Failed() {
		return errActionFailed
	}
	return nil
}

func simpleCommand(opts *options, use, short string, act action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.execute(cmd, act, nil)
		},
	}
}

func newSaveCommand(opts *options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Fetch the signature image and write it to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var writeErr error
			err := opts.execute(cmd, (*capture.Controller).Save, func(img capture.Image) {
				path := out
				if path == "" {
					path = "signature" + img.Extension
				}
				if writeErr = os.WriteFile(path, img.Data, 0o644); writeErr == nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%s, %d bytes)\n", path, img.MIMEType, len(img.Data))
				}
			})
			if err != nil {
				return err
			}
			return writeErr
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default signature.<ext>)")
	return cmd
}

func newSigStringCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sigstring",
		Short: "Export or import the signature as a SigString",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "export",
			Short: "Print the current signature as a SigString",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.execute(cmd, (*capture.Controller).ExportSigString, nil)
			},
		},
		&cobra.Command{
			Use:   "import <value|->",
			Short: "Load a SigString into the tablet; - reads it from stdin",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value := args[0]
				if value == "-" {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return fmt.Errorf("read stdin: %w", err)
					}
					value = string(data)
				}
				return opts.execute(cmd, func(c *capture.Controller, ctx context.Context, st capture.State) capture.State {
					return c.ImportSigString(ctx, st, value)
				}, nil)
			},
		},
	)
	return cmd
}
