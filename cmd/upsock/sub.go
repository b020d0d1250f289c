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

	"upsock/pkg/sample"
)

func newSubCmd(a *app) *cobra.Command {
	var (
		duration time.Duration
		count    int
	)
	cmd := &cobra.Command{
		Use:   "sub",
		Short: "Print samples received from the publisher until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tr, err := a.openTransport()
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			out := cmd.OutOrStdout()
			// The callback blocks the receive loop while the printer is
			// behind. Cancelling ctx, deferred after tr.Close, releases it.
			readings := make(chan sample.Reading, 64)
			sub := sample.NewSubscriber(tr, sample.TopicsFor(a.cfg.Identity), a.reg, a.logger, func(r sample.Reading) {
				select {
				case readings <- r:
				case <-ctx.Done():
					a.logger.Debug("reading discarded at shutdown", zap.String("name", r.Name), zap.Uint64("value", r.Value))
				}
			})
			if err := sub.Start(); err != nil {
				return err
			}
			defer func() {
				if err := sub.Stop(); err != nil {
					a.logger.Warn("unregister", zap.Error(err))
				}
			}()

			seen := 0
			for {
				select {
				case <-ctx.Done():
					return nil
				case r := <-readings:
					fmt.Fprintf(out, "%-8s %s %d\n", r.Name, r.Topic, r.Value)
					seen++
					if count > 0 && seen >= count {
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "exit after this long (0 = until interrupted)")
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many readings (0 = unlimited)")
	return cmd
}
