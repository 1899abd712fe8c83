// Package events publishes style change notifications to Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

type Action string

const (
	StyleCreated Action = "created"
	StyleUpdated Action = "updated"
)

type StyleEvent struct {
	Action    Action    `json:"action"`
	Workspace string    `json:"workspace,omitempty"`
	Layer     string    `json:"layer"`
	Style     string    `json:"style"`
	Filename  string    `json:"filename"`
	Format    string    `json:"format"`
	TS        time.Time `json:"ts"`
}

// Key groups events of one style on one partition.
func (e StyleEvent) Key() string {
	if e.Workspace == "" {
		return e.Style
	}
	return e.Workspace + ":" + e.Style
}

// Publisher is best effort: Publish never blocks and drops events when
// the queue is full or the publisher is closed.
type Publisher struct {
	mu     sync.RWMutex
	closed bool

	topic    string
	log      *slog.Logger
	events   chan StyleEvent
	prod     sarama.AsyncProducer
	stopped  chan struct{}
	errsDone chan struct{}
}

func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	return cfg
}

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	prod, err := sarama.NewAsyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return NewPublisherWithProducer(prod, topic, queueSize, log), nil
}

// NewPublisherWithProducer takes ownership of prod.
func NewPublisherWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		topic:    topic,
		log:      log.With("component", "events"),
		events:   make(chan StyleEvent, queueSize),
		prod:     prod,
		stopped:  make(chan struct{}),
		errsDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("marshal style event", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Key()),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		defer close(p.errsDone)
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Warn("style event not delivered", "err", err)
			}
		}
	}()

	return p
}

func (p *Publisher) Publish(ev StyleEvent) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Debug("publisher closed, dropping style event", "style", ev.Key())
		return
	}
	select {
	case p.events <- ev:
	default:
		p.log.Warn("style event queue full, dropping", "style", ev.Key())
	}
}

// Close flushes queued events and closes the producer. Later calls are
// no-ops.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	<-p.errsDone
	return nil
}
