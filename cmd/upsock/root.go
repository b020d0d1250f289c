package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"upsock/pkg/config"
	"upsock/pkg/core/netstack"
	"upsock/pkg/identity"
	"upsock/pkg/observability"
	"upsock/pkg/protocol/codec"
	"upsock/pkg/transport"
)

// app is the state shared by subcommands, filled in by PersistentPreRunE.
type app struct {
	cfgPath   string
	logLevel  string
	socketDir string
	channel   string
	authority string
	kind      string

	cfg    *config.Config
	logger *zap.Logger
	reg    *codec.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "upsock",
		Short: "Local publish/subscribe over a unix domain socket channel",
		Long: `upsock carries uProtocol-style messages between two processes on one host.
The publisher binds the channel and waits for one subscriber; the subscriber
dials it and reconnects whenever the publisher goes away.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "path to YAML config file (default: search ., ./configs, ~/.upsock)")
	pf.StringVar(&a.logLevel, "log-level", "", "override log.level")
	pf.StringVar(&a.socketDir, "socket-dir", "", "override transport.socket_dir")
	pf.StringVar(&a.channel, "channel", "", "override transport.channel")
	pf.StringVar(&a.authority, "authority", "", "override identity.authority")
	pf.StringVar(&a.kind, "kind", "", "override transport.kind (uds|mem)")

	root.AddCommand(newPubCmd(a), newSubCmd(a), newRPCServerCmd(a), newRPCClientCmd(a), newFrameCmd(a), newConfigCmd(a))
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.socketDir != "" {
		cfg.Transport.SocketDir = a.socketDir
	}
	if a.channel != "" {
		cfg.Transport.Channel = a.channel
	}
	if a.authority != "" {
		cfg.Identity.Authority = a.authority
	}
	if a.kind != "" {
		cfg.Transport.Kind = a.kind
	}
	a.cfg = cfg

	if a.logger, err = observability.SetupLogger(cfg.Log); err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	if a.reg, err = codec.Default(); err != nil {
		return fmt.Errorf("codec registry: %w", err)
	}
	return nil
}

func (a *app) openTransport() (transport.Transport, error) {
	local := identity.Local(a.cfg.Identity)
	a.logger.Info("opening transport",
		zap.String("app", a.cfg.AppName),
		zap.Stringer("local", local),
		zap.String("kind", a.cfg.Transport.Kind))
	return netstack.NewByKind(a.cfg.Transport, local, a.logger)
}
