package sample

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"upsock/pkg/protocol"
	"upsock/pkg/protocol/codec"
	"upsock/pkg/transport"
)

// Publisher sends one sample per topic on every tick.
type Publisher struct {
	tr      transport.Transport
	reg     *codec.Registry
	format  protocol.PayloadFormat
	topics  Topics
	log     *zap.Logger
	counter uint8
	now     func() time.Time
	random  func() uint32
}

func NewPublisher(tr transport.Transport, topics Topics, format protocol.PayloadFormat, reg *codec.Registry, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.L()
	}
	return &Publisher{
		tr:     tr,
		reg:    reg,
		format: format,
		topics: topics,
		log:    logger.Named("pub"),
		now:    time.Now,
		random: rand.Uint32,
	}
}

// PublishOnce sends the time, random and counter samples in that order and
// stops at the first failure.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	p.counter++
	samples := []struct {
		topic protocol.UUri
		value uint64
		width int
	}{
		{p.topics.Time, uint64(p.now().UnixMilli()), 8},
		{p.topics.Random, uint64(p.random()), 4},
		{p.topics.Counter, uint64(p.counter), 1},
	}
	for _, s := range samples {
		payload, err := EncodeValue(p.reg, p.format, s.value, s.width)
		if err != nil {
			return err
		}
		m := protocol.NewPublish(s.topic, p.format, payload)
		if err := p.tr.Send(ctx, m); err != nil {
			return err
		}
		p.log.Debug("published", zap.Stringer("topic", s.topic), zap.Uint64("value", s.value))
	}
	return nil
}

// Run publishes every interval until ctx is cancelled. Cancellation is not
// an error; a failed send ends the loop and is returned.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := p.PublishOnce(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			p.log.Error("publish failed", zap.Error(err))
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
