package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"upsock/pkg/core/netstack"
	"upsock/pkg/identity"
	"upsock/pkg/sample"
	"upsock/pkg/transport"
)

// Default channels of the rpc demo: one per direction, since a uds channel
// carries messages from its acceptor to its connector only.
const (
	defaultRequestChannel  = "rpc.milliseconds.req"
	defaultResponseChannel = "rpc.milliseconds.rsp"
)

type rpcChannels struct {
	request  string
	response string
}

func (c *rpcChannels) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.request, "request-channel", defaultRequestChannel, "channel carrying requests to the server")
	cmd.Flags().StringVar(&c.response, "response-channel", defaultResponseChannel, "channel carrying responses to the client")
}

// openChannel opens a transport like openTransport but on the named channel.
func (a *app) openChannel(channel string) (transport.Transport, error) {
	cfg := a.cfg.Transport
	cfg.Channel = channel
	local := identity.Local(a.cfg.Identity)
	a.logger.Info("opening transport", zap.Stringer("local", local), zap.String("channel", channel), zap.String("kind", cfg.Kind))
	return netstack.NewByKind(cfg, local, a.logger)
}

// openRPC opens the request and response transports. The caller closes both.
func (a *app) openRPC(ch rpcChannels) (req, rsp transport.Transport, err error) {
	if ch.request == ch.response {
		return nil, nil, fmt.Errorf("request and response channels must differ (both %q)", ch.request)
	}
	if req, err = a.openChannel(ch.request); err != nil {
		return nil, nil, err
	}
	if rsp, err = a.openChannel(ch.response); err != nil {
		_ = req.Close()
		return nil, nil, err
	}
	return req, rsp, nil
}

func newRPCServerCmd(a *app) *cobra.Command {
	var ch rpcChannels
	cmd := &cobra.Command{
		Use:   "rpc-server",
		Short: "Answer milliseconds requests with the current time until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, rsp, err := a.openRPC(ch)
			if err != nil {
				return err
			}
			defer closeAll(a.logger, req, rsp)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			method := sample.MethodFor(a.cfg.Identity)
			srv := sample.NewRPCServer(req, rsp, method, a.logger)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			a.logger.Info("serving", zap.Stringer("method", method))
			<-ctx.Done()
			if err := srv.Stop(); err != nil {
				a.logger.Warn("unregister", zap.Error(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "answered %d requests\n", srv.Handled())
			return nil
		},
	}
	ch.bind(cmd)
	return cmd
}

func newRPCClientCmd(a *app) *cobra.Command {
	var (
		ch       rpcChannels
		interval time.Duration
		timeout  time.Duration
		count    int
	)
	cmd := &cobra.Command{
		Use:   "rpc-client",
		Short: "Call the milliseconds method once per interval and print each reply",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, rsp, err := a.openRPC(ch)
			if err != nil {
				return err
			}
			defer closeAll(a.logger, req, rsp)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			cli := sample.NewRPCClient(rsp, req, sample.MethodFor(a.cfg.Identity), identity.Local(a.cfg.Identity), a.logger)
			if err := cli.Start(); err != nil {
				return err
			}
			defer func() {
				if err := cli.Stop(); err != nil {
					a.logger.Warn("unregister", zap.Error(err))
				}
			}()

			out := cmd.OutOrStdout()
			seen := 0
			return cli.Run(ctx, interval, timeout, func(ms uint64) {
				fmt.Fprintf(out, "received %d\n", ms)
				seen++
				if count > 0 && seen >= count {
					cancel()
				}
			})
		},
	}
	ch.bind(cmd)
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "time between calls")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-call timeout, including waiting for the server to connect")
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many replies (0 = until interrupted)")
	return cmd
}

func closeAll(log *zap.Logger, trs ...transport.Transport) {
	var errs []error
	for _, tr := range trs {
		errs = append(errs, tr.Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn("close", zap.Error(err))
	}
}
