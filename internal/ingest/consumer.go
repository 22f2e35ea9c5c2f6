package ingest

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/technosupport/fusion-pipeline/internal/event"
	"github.com/technosupport/fusion-pipeline/internal/metrics"
)

// EventProcessor is the pipeline entry point the consumer drives.
type EventProcessor interface {
	Process(ctx context.Context, e *event.StandardizedEvent) error
}

type Config struct {
	Subject     string
	Queue       string
	MaxInflight int
}

// Consumer subscribes to the connector drivers' standardized-event
// subject and feeds the processor. Each message is processed in its own
// goroutine, bounded by a semaphore; within one event processing is a
// linear sequence.
type Consumer struct {
	conn      *nats.Conn
	processor EventProcessor
	cfg       Config

	sub *nats.Subscription
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewConsumer(conn *nats.Conn, processor EventProcessor, cfg Config) *Consumer {
	if cfg.Subject == "" {
		cfg.Subject = "fusion.events.standardized"
	}
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 32
	}
	return &Consumer{
		conn:      conn,
		processor: processor,
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.MaxInflight),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	handler := func(msg *nats.Msg) {
		var evt event.StandardizedEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			log.Printf("[ERROR] Ingest: malformed event payload on %s: %v", msg.Subject, err)
			metrics.EventsProcessedTotal.WithLabelValues("decode_error").Inc()
			return
		}
		if evt.EventID == "" {
			log.Printf("[ERROR] Ingest: event without event_id on %s, dropping", msg.Subject)
			metrics.EventsProcessedTotal.WithLabelValues("decode_error").Inc()
			return
		}

		c.sem <- struct{}{}
		c.wg.Add(1)
		metrics.IngestInflight.Inc()
		go func() {
			defer c.wg.Done()
			defer func() { <-c.sem }()
			defer metrics.IngestInflight.Dec()

			if err := c.processor.Process(ctx, &evt); err != nil {
				// Persistence failed; the caller-side policy is log and
				// drop. The unique constraint makes replays land here.
				log.Printf("[ERROR] Ingest: event %s not processed: %v", evt.EventID, err)
			}
		}()
	}

	var err error
	if c.cfg.Queue != "" {
		c.sub, err = c.conn.QueueSubscribe(c.cfg.Subject, c.cfg.Queue, handler)
	} else {
		c.sub, err = c.conn.Subscribe(c.cfg.Subject, handler)
	}
	if err != nil {
		return err
	}
	log.Printf("Ingest: subscribed to %s", c.cfg.Subject)
	return nil
}

// Stop drains the subscription and waits for inflight events.
func (c *Consumer) Stop() {
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			log.Printf("[WARN] Ingest: drain failed: %v", err)
		}
	}
	c.wg.Wait()
}
