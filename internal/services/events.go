package services

import (
	"encoding/json"

	"go.uber.org/zap"
)

// EventPublisher sends a message to the broker. *rabbitmq.Client
// implements it.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// Emitter publishes domain events as JSON. A nil Emitter, or one without a
// publisher, drops events; publishing never fails the operation that
// triggered it.
type Emitter struct {
	pub      EventPublisher
	exchange string
	log      *zap.Logger
}

func NewEmitter(pub EventPublisher, exchange string, log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{pub: pub, exchange: exchange, log: log}
}

func (e *Emitter) Emit(routingKey string, payload any) {
	if e == nil || e.pub == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("failed to encode event", zap.String("routing_key", routingKey), zap.Error(err))
		return
	}
	if err := e.pub.Publish(e.exchange, routingKey, body); err != nil {
		e.log.Warn("failed to publish event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
