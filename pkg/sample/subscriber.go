package sample

import (
	"errors"

	"go.uber.org/zap"

	"upsock/pkg/protocol"
	"upsock/pkg/protocol/codec"
	"upsock/pkg/transport"
)

// Subscriber listens on the demo topics and hands each decoded reading to a
// callback on the transport's receive goroutine.
type Subscriber struct {
	tr     transport.Transport
	reg    *codec.Registry
	topics Topics
	log    *zap.Logger
	emit   func(Reading)
}

func NewSubscriber(tr transport.Transport, topics Topics, reg *codec.Registry, logger *zap.Logger, emit func(Reading)) *Subscriber {
	if logger == nil {
		logger = zap.L()
	}
	return &Subscriber{tr: tr, reg: reg, topics: topics, log: logger.Named("sub"), emit: emit}
}

// Start registers one listener per topic.
func (s *Subscriber) Start() error {
	for _, topic := range s.topics.All() {
		if err := s.tr.RegisterListener(topic, s.onMessage); err != nil {
			return err
		}
	}
	return nil
}

// Stop unregisters every topic Start registered.
func (s *Subscriber) Stop() error {
	var errs []error
	for _, topic := range s.topics.All() {
		if err := s.tr.UnregisterListener(topic); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Subscriber) onMessage(m *protocol.Message) {
	v, err := DecodeValue(s.reg, m.Attributes.PayloadFormat, m.Payload)
	if err != nil {
		s.log.Warn("undecodable payload", zap.Stringer("topic", m.Topic()), zap.Error(err))
		return
	}
	r := Reading{Topic: m.Topic(), Name: s.topics.Name(m.Topic()), Value: v}
	s.log.Info("received", zap.String("name", r.Name), zap.Uint64("value", v), zap.Stringer("id", m.Attributes.ID))
	if s.emit != nil {
		s.emit(r)
	}
}
