// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/gofrs/flock"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/routerpeer/lib/config"
	"github.com/bureau-foundation/routerpeer/lib/identity"
	"github.com/bureau-foundation/routerpeer/lib/version"
	"github.com/bureau-foundation/routerpeer/relay"
	"github.com/bureau-foundation/routerpeer/transport"
)

const binaryName = "router-peer"

// Exit codes.
const (
	exitFailure = 1
	exitDenied  = 2
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		code := exitFailure
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			code = coder.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(code)
	}
}

// exitError attaches a process exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

type options struct {
	configPath string
	keyfile    string
	name       string
	addresses  []string
	verbose    bool
	printPage  bool
	version    bool
	help       bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "client_state.yaml", "client state file, created on first run")
	flagSet.StringVar(&opts.keyfile, "keyfile", "", "identity keyfile, generated if missing (overrides identity.keyfile)")
	flagSet.StringVar(&opts.name, "name", "", "display name published to the router (overrides identity.display_name)")
	flagSet.StringArrayVar(&opts.addresses, "address", nil, "router address, host:port or ws:// URL; repeatable (overrides router.fixed_addresses)")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolVar(&opts.printPage, "print-page", false, "print the page this peer publishes and exit")
	flagSet.BoolVar(&opts.version, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if opts.help {
		printHelp(stderr, flagSet)
		return nil
	}
	if opts.version {
		fmt.Fprintf(stdout, "%s %s\n", binaryName, version.Info())
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	unlock, err := lockStateFile(opts.configPath)
	if err != nil {
		return err
	}
	defer unlock()

	cfg, created, err := config.LoadOrCreate(opts.configPath, func(cfg *config.Config) {
		cfg.Router.UseFixedAddresses = true
		cfg.Router.FixedAddresses = []string{config.DefaultRouterAddress}
	})
	if err != nil {
		return fmt.Errorf("loading client state: %w", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration in %s:\n%w", opts.configPath, err)
	}

	logger, closeLog, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	logger = logger.With("component", binaryName)
	if created {
		logger.Info("created client state file", "path", opts.configPath)
	}

	keypair, generated, err := identity.LoadOrGenerateKeyfile(cfg.Identity.Keyfile)
	if err != nil {
		return fmt.Errorf("loading keyfile: %w", err)
	}
	if generated {
		logger.Info("generated a new identity", "keyfile", cfg.Identity.Keyfile)
	}
	owner := keypair.Identity()
	logger.Info("identity loaded", "identity", owner.Base64(), "fingerprint", owner.Fingerprint())

	if opts.printPage {
		printer := newPagePrinter(lipgloss.NewRenderer(stdout))
		fmt.Fprintln(stdout, printer.render(relay.BuildPage(owner)))
		return nil
	}

	compression, err := transport.ParseCompression(cfg.Router.Compression)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := transport.NewClient(transport.ClientConfig{
		Signer:         keypair,
		Addresses:      cfg.Addresses(),
		DialTimeout:    cfg.Router.DialTimeout.Std(),
		Reconnect:      cfg.Router.Reconnect,
		InitialBackoff: cfg.Router.InitialBackoff.Std(),
		MaxBackoff:     cfg.Router.MaxBackoff.Std(),
		Codec: transport.FrameCodec{
			Compression: compression,
			Threshold:   cfg.Router.CompressionThreshold,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	client.Start(ctx)
	defer client.Close()

	state := relay.Start(ctx, client, owner, relay.Options{
		DisplayName:  cfg.Identity.DisplayName,
		HistoryLimit: cfg.Relay.HistoryLimit,
		Logger:       logger,
	})
	if err := state.Run(ctx); err != nil {
		if errors.Is(err, relay.ErrDenied) {
			return &exitError{code: exitDenied, err: err}
		}
		return err
	}
	logger.Info("router-peer exiting")
	return nil
}

// apply layers command-line overrides onto cfg.
func (o *options) apply(cfg *config.Config) {
	if o.keyfile != "" {
		cfg.Identity.Keyfile = o.keyfile
	}
	if o.name != "" {
		cfg.Identity.DisplayName = o.name
	}
	if len(o.addresses) > 0 {
		cfg.Router.UseFixedAddresses = true
		cfg.Router.FixedAddresses = o.addresses
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
}

// lockStateFile takes an exclusive lock on <path>.lock. The returned
// function releases it.
func lockStateFile(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, &exitError{
			code: exitFailure,
			err:  fmt.Errorf("another %s is already using %s (lock held on %s)", binaryName, path, lock.Path()),
		}
	}
	return func() { lock.Unlock() }, nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `router-peer: relay test_event messages between peers on a router.

Loads (or creates) the client state file, loads (or generates) the
identity keyfile, connects to the router and publishes a page with
"Add Recp" and "Send Msg" entries. Text entered in "Add Recp" adds a
recipient; text entered in "Send Msg" is sent to every recipient.

Usage:
  router-peer [flags]

Examples:
  # Connect using client_state.yaml in the current directory
  router-peer

  # Connect to a specific router over WebSocket
  router-peer --address wss://router.example.com/peer

  # Show the published page without connecting
  router-peer --print-page

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
