package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"upsock/pkg/protocol"
	"upsock/pkg/sample"
)

func newPubCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		format   string
		count    int
	)
	cmd := &cobra.Command{
		Use:   "pub",
		Short: "Publish time, random and counter samples until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format == "" {
				format = a.cfg.Publish.PayloadFormat
			}
			pf, ok := protocol.ParseFormat(format)
			if !ok {
				return fmt.Errorf("unknown payload format %q", format)
			}
			if interval <= 0 {
				interval = time.Duration(a.cfg.Publish.IntervalMS) * time.Millisecond
			}

			tr, err := a.openTransport()
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pub := sample.NewPublisher(tr, sample.TopicsFor(a.cfg.Identity), pf, a.reg, a.logger)
			if count <= 0 {
				return pub.Run(ctx, interval)
			}
			for i := 0; i < count; i++ {
				if err := pub.PublishOnce(ctx); err != nil {
					return err
				}
				if i+1 < count {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(interval):
					}
				}
			}
			a.logger.Info("published", zap.Int("rounds", count))
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "publish interval (default publish.interval_ms)")
	cmd.Flags().StringVar(&format, "format", "", "payload format: raw, text, json, cbor, proto (default publish.payload_format)")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many rounds (0 = until interrupted)")
	return cmd
}
